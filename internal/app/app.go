// Package app wires the config store, reloader, poller and notification
// sink into one supervised daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"batteryfriend/internal/battery"
	"batteryfriend/internal/config"
	"batteryfriend/internal/eventbus"
	"batteryfriend/internal/notifier"
	"batteryfriend/internal/poller"
	"batteryfriend/internal/runtime/supervisor"
	logx "batteryfriend/pkg/logx"
	"batteryfriend/pkg/systemd"
)

type Options struct {
	ConfigPath        string
	Verbose           bool
	DisableAutoReload bool

	// Battery selects the power supply under SysfsRoot. Ignored when Sensor is set.
	Battery   string
	SysfsRoot string

	Sensor battery.Sensor
	Sink   notifier.Sink
}

type App struct {
	opts Options

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus
	sd   *systemd.Notifier

	store    *config.Store
	reloader *config.Reloader
	poller   *poller.Poller
	sink     notifier.Sink

	sup *supervisor.Supervisor
}

// NewApp loads the initial configuration and builds every component.
// A missing or invalid config file is returned as a *config.LoadError.
func NewApp(opts Options) (*App, error) {
	if strings.TrimSpace(opts.ConfigPath) == "" {
		return nil, errors.New("config path is empty")
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	logs, root := logx.New(logConfig(cfg.Logging))
	if opts.Verbose {
		logs.ForceLevel("debug")
	}
	log := root.With(logx.String("comp", "app"))
	warnUnknown(log, cfg)

	sensor := opts.Sensor
	if sensor == nil {
		sensor = battery.NewSysfsSensor(battery.WithRoot(opts.SysfsRoot), battery.WithName(opts.Battery))
	}
	sink := opts.Sink
	if sink == nil {
		sink = notifier.NewDBusSink(root.With(logx.String("comp", "dbus")))
	}

	bus := eventbus.New()
	store := config.NewStore(cfg)
	disp := notifier.NewDispatcher(sink, notifier.NewTracker(),
		notifier.WithLogger(root.With(logx.String("comp", "notifier"))),
		notifier.WithBus(bus),
	)

	a := &App{
		opts:  opts,
		log:   log,
		logs:  logs,
		bus:   bus,
		sd:    systemd.New(root.With(logx.String("comp", "systemd"))),
		store: store,
		sink:  sink,
		poller: poller.New(store, sensor, disp,
			poller.WithLogger(root.With(logx.String("comp", "poller"))),
			poller.WithBus(bus),
		),
	}
	if !opts.DisableAutoReload {
		a.reloader = config.NewReloader(opts.ConfigPath, store,
			config.WithReloadLogger(root.With(logx.String("comp", "config"))),
			config.WithOnReload(a.onReload),
			config.WithOnFailure(a.onReloadFailure),
		)
	}
	return a, nil
}

// Bus exposes the event bus for observers.
func (a *App) Bus() eventbus.Bus { return a.bus }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	events, unsub := a.bus.Subscribe(64)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				a.log.Trace("event", logx.String("type", e.Type), logx.Any("data", e.Data))
			}
		}
	})

	if a.reloader != nil {
		// Broken watchers self-heal; a poisoned store takes the daemon down.
		a.sup.GoRestart("config.watch", a.reloader.Watch,
			supervisor.WithRestartBackoff(250*time.Millisecond, 10*time.Second),
			supervisor.WithFatal(func(err error) bool { return errors.Is(err, config.ErrPoisoned) }),
		)
	} else {
		a.log.Info("config autoreload disabled")
	}
	a.sup.Go("poll.loop", a.poller.Run)
	a.sup.Go("systemd.watchdog", a.sd.RunWatchdog)

	a.sd.Ready()
	a.sd.Status(a.statusLine())
	a.log.Info("app started",
		logx.String("config", a.opts.ConfigPath),
		logx.Bool("autoreload", a.reloader != nil),
	)
	return nil
}

// Stop cancels every goroutine and releases the sink and log files.
// Each step is bounded by ctx and by its own time limit.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sd.Stopping()
	a.sup.Cancel()

	var err error
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()
		if serr := fn(stepCtx); serr != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(serr))
			if err == nil {
				err = fmt.Errorf("%s: %w", name, serr)
			}
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("supervisor", 3*time.Second, func(c context.Context) error {
		if werr := a.sup.Wait(c); werr != nil && !errors.Is(werr, config.ErrPoisoned) {
			return werr
		}
		return nil
	})
	step("sink", time.Second, func(context.Context) error {
		if cl, ok := a.sink.(interface{ Close() error }); ok {
			return cl.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	_ = a.logs.Close()
	return err
}

func (a *App) onReload(old, cur *config.Config) {
	a.logs.Apply(logConfig(cur.Logging))
	warnUnknown(a.log, cur)
	a.poller.Wake()

	sections, attrs := config.SummarizeConfigChange(old, cur)
	if len(sections) > 0 {
		fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
		a.log.Info("config reloaded", fields...)
	} else {
		a.log.Info("config reloaded (no effective changes)")
	}
	a.bus.Publish(eventbus.Event{
		Type: eventbus.TypeConfigReloaded,
		Data: eventbus.ConfigReloaded{Sections: sections},
	})
	a.sd.Status(a.statusLine())
}

func (a *App) onReloadFailure(err error) {
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReloadFailed, Data: err.Error()})
}

func (a *App) statusLine() string {
	cfg, err := a.store.Snapshot()
	if err != nil {
		return "config unavailable"
	}
	return fmt.Sprintf("watching %d rules, poll_interval %s", len(cfg.Rules), cfg.PollInterval)
}

func logConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled:    c.File.Enabled,
			Path:       c.File.Path,
			MaxSizeMB:  c.File.MaxSizeMB,
			MaxBackups: c.File.MaxBackups,
		},
	}
}

func warnUnknown(log logx.Logger, cfg *config.Config) {
	if len(cfg.Unknown) > 0 {
		log.Warn("config contains unknown keys", logx.Strings("keys", cfg.Unknown))
	}
}
