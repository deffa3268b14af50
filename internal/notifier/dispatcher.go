package notifier

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"batteryfriend/internal/eventbus"
	"batteryfriend/internal/rules"
	logx "batteryfriend/pkg/logx"
)

// Dispatcher shows notifications for matched rules.
//
// A failing rule (bad urgency, sink error) is logged and skipped; the
// remaining rules are still shown. Dispatch is safe for concurrent use but the
// poller calls it from a single goroutine.
type Dispatcher struct {
	sink    Sink
	tracker *Tracker
	log     logx.Logger
	bus     eventbus.Bus

	mu      sync.Mutex
	limiter *rate.Limiter
	rps     int
}

type DispatcherOption func(*Dispatcher)

func WithLogger(log logx.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = log }
}

func WithBus(bus eventbus.Bus) DispatcherOption {
	return func(d *Dispatcher) {
		if bus != nil {
			d.bus = bus
		}
	}
}

func NewDispatcher(sink Sink, tracker *Tracker, opts ...DispatcherOption) *Dispatcher {
	if tracker == nil {
		tracker = NewTracker()
	}
	d := &Dispatcher{
		sink:    sink,
		tracker: tracker,
		log:     logx.Nop(),
		bus:     eventbus.Nop(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Tracker returns the identity tracker used by d.
func (d *Dispatcher) Tracker() *Tracker { return d.tracker }

// Dispatch shows one notification per match and returns how many were shown.
// The only error is ctx's, returned when it ends while waiting for the rate limiter.
func (d *Dispatcher) Dispatch(ctx context.Context, s Settings, matches []rules.Match, percent int) (int, error) {
	lim := d.limiterFor(s.RatePerSec)
	shown := 0
	for _, m := range matches {
		log := d.log.With(logx.String("rule", m.Name))

		p, err := Build(m.Rule, percent)
		if err != nil {
			log.Error("unable to build a notification", logx.Err(err))
			d.publishFailure(m.Name, err)
			continue
		}
		p.AppName = s.AppName
		p.ExpireTimeout = s.ExpireTimeout
		id, known := d.tracker.Get(m.Name)
		if known {
			p.ReplacesID = id
		}

		if err := lim.Wait(ctx); err != nil {
			return shown, err
		}

		got, err := d.sink.Show(ctx, p)
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrShow, err)
			log.Error("unable to show a notification", logx.Err(err), logx.Uint32("replaces_id", p.ReplacesID))
			d.publishFailure(m.Name, err)
			continue
		}
		d.tracker.Remember(m.Name, got)
		shown++

		log.Debug("notification shown",
			logx.Uint32("id", got),
			logx.Bool("replaced", known),
			logx.Int("percent", percent),
		)
		d.bus.Publish(eventbus.Event{
			Type: eventbus.TypeNotificationShown,
			Data: eventbus.Notification{Rule: m.Name, ID: got, Replaced: known},
		})
	}
	return shown, nil
}

func (d *Dispatcher) publishFailure(rule string, err error) {
	d.bus.Publish(eventbus.Event{
		Type: eventbus.TypeNotificationFailed,
		Data: eventbus.Notification{Rule: rule, Error: err.Error()},
	})
}

// limiterFor returns the shared token bucket, resized when rate_per_sec changed.
// Burst equals the rate so a cycle with a few matches is not delayed.
func (d *Dispatcher) limiterFor(rps int) *rate.Limiter {
	if rps <= 0 {
		rps = 1
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.limiter == nil {
		d.limiter = rate.NewLimiter(rate.Limit(rps), rps)
		d.rps = rps
	} else if d.rps != rps {
		d.limiter.SetLimit(rate.Limit(rps))
		d.limiter.SetBurst(rps)
		d.rps = rps
	}
	return d.limiter
}
