// Package poller runs the read-evaluate-notify loop.
package poller

import (
	"context"
	"time"

	"batteryfriend/internal/battery"
	"batteryfriend/internal/config"
	"batteryfriend/internal/eventbus"
	"batteryfriend/internal/notifier"
	"batteryfriend/internal/rules"
	logx "batteryfriend/pkg/logx"
)

// Poller alternates between evaluating the rules against a fresh battery
// reading and sleeping for the configured poll interval.
//
// Wake cuts the current sleep short. A wake that arrives while a cycle is
// running is kept and ends the following sleep immediately.
type Poller struct {
	store  *config.Store
	sensor battery.Sensor
	disp   *notifier.Dispatcher

	log logx.Logger
	bus eventbus.Bus
	now func() time.Time

	wake chan struct{}
}

type Option func(*Poller)

func WithLogger(log logx.Logger) Option {
	return func(p *Poller) { p.log = log }
}

func WithBus(bus eventbus.Bus) Option {
	return func(p *Poller) {
		if bus != nil {
			p.bus = bus
		}
	}
}

// WithClock overrides time.Now for poll_interval cron schedules.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

func New(store *config.Store, sensor battery.Sensor, disp *notifier.Dispatcher, opts ...Option) *Poller {
	p := &Poller{
		store:  store,
		sensor: sensor,
		disp:   disp,
		log:    logx.Nop(),
		bus:    eventbus.Nop(),
		now:    time.Now,
		wake:   make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Wake requests an early poll. It never blocks and repeated calls collapse
// into one.
func (p *Poller) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run polls until ctx is canceled. It returns an error only when the config
// store is poisoned.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("poller started")
	defer p.log.Info("poller stopped")

	for {
		delay, err := p.Cycle(ctx)
		if err != nil {
			return err
		}

		p.log.Debug("poller sleeping", logx.Duration("delay", delay))
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-p.wake:
			t.Stop()
			p.log.Debug("poller woken")
		case <-t.C:
		}
	}
}

// Cycle performs one evaluation and returns how long to sleep before the next.
//
// Sensor failures skip evaluation and tracker pruning for this cycle. The
// returned error is non-nil only for config.ErrPoisoned.
func (p *Poller) Cycle(ctx context.Context) (time.Duration, error) {
	cfg, err := p.store.Snapshot()
	if err != nil {
		return 0, err
	}

	ev, ok := p.evaluate(ctx, cfg)
	// Measured after dispatch so a slow cycle does not overshoot a cron fire time.
	delay := p.delay(cfg)
	if !ok {
		return delay, nil
	}

	p.log.Debug("poll cycle",
		logx.Int("percent", ev.Percent),
		logx.String("status", ev.Status),
		logx.Strings("matched", ev.Matched),
		logx.Int("shown", ev.Shown),
	)
	ev.Next = delay
	p.bus.Publish(eventbus.Event{Type: eventbus.TypePollCycle, Data: ev})
	return delay, nil
}

func (p *Poller) delay(cfg *config.Config) time.Duration {
	d, err := config.PollDelay(cfg.PollInterval, p.now())
	if err != nil {
		p.log.Warn("invalid poll_interval; using default",
			logx.String("field", "poll_interval"),
			logx.String("value", cfg.PollInterval),
			logx.Duration("default", config.DefaultPollInterval),
			logx.Err(err),
		)
		return config.DefaultPollInterval
	}
	return d
}

// evaluate reads the sensor, shows the matching rules and prunes the tracker.
// It reports false when the reading failed.
func (p *Poller) evaluate(ctx context.Context, cfg *config.Config) (eventbus.PollCycle, bool) {
	percent, perr := p.sensor.Percentage()
	status, serr := p.sensor.Status()
	switch {
	case perr != nil && serr != nil:
		p.log.Error("unable to get battery percentage and battery status",
			logx.String("percentage_err", perr.Error()),
			logx.String("status_err", serr.Error()),
		)
		return eventbus.PollCycle{}, false
	case perr != nil:
		p.log.Error("unable to get battery percentage", logx.Err(perr))
		return eventbus.PollCycle{}, false
	case serr != nil:
		p.log.Error("unable to get battery status", logx.Err(serr))
		return eventbus.PollCycle{}, false
	}

	matches := rules.Evaluate(cfg.Rules, percent, status, p.log)
	shown, err := p.disp.Dispatch(ctx, notifier.SettingsFrom(cfg.Notifier), matches, percent)
	if err != nil {
		// Only cancellation ends a dispatch early; Run notices it next.
		p.log.Debug("dispatch interrupted", logx.Err(err))
	}

	if n := p.disp.Tracker().Prune(cfg.HasRule); n > 0 {
		p.log.Debug("forgot notifications of removed rules", logx.Int("count", n))
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.Name)
	}
	return eventbus.PollCycle{
		Percent: percent,
		Status:  status.String(),
		Matched: names,
		Shown:   shown,
	}, true
}
