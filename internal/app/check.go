package app

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"batteryfriend/internal/battery"
	"batteryfriend/internal/config"
	"batteryfriend/internal/notifier"
	"batteryfriend/internal/rules"
	logx "batteryfriend/pkg/logx"
)

// Check loads the configuration, takes one battery reading and writes which
// rules would fire to w. Nothing is shown on the desktop.
//
// Configuration errors are returned; sensor errors are reported in the output.
func Check(opts Options, w io.Writer, log logx.Logger) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	sensor := opts.Sensor
	if sensor == nil {
		sensor = battery.NewSysfsSensor(battery.WithRoot(opts.SysfsRoot), battery.WithName(opts.Battery))
	}

	fmt.Fprintf(w, "config: %s\n", opts.ConfigPath)
	delay, err := config.PollDelay(cfg.PollInterval, time.Now())
	if err != nil {
		fmt.Fprintf(w, "poll_interval: %q is invalid (%v); default %s applies\n", cfg.PollInterval, err, config.DefaultPollInterval)
	} else {
		fmt.Fprintf(w, "poll_interval: %s (next poll in %s)\n", cfg.PollInterval, delay)
	}
	if len(cfg.Unknown) > 0 {
		fmt.Fprintf(w, "unknown keys: %v\n", cfg.Unknown)
	}

	names := make([]string, 0, len(cfg.Rules))
	for name := range cfg.Rules {
		names = append(names, name)
	}
	sort.Strings(names)

	percent, perr := sensor.Percentage()
	status, serr := sensor.Status()
	reading := perr == nil && serr == nil
	var fire map[string]bool
	if reading {
		fmt.Fprintf(w, "battery: %d%% %s\n", percent, status)
		fire = map[string]bool{}
		for _, m := range rules.Evaluate(cfg.Rules, percent, status, log) {
			fire[m.Name] = true
		}
	} else {
		for _, e := range []error{perr, serr} {
			if e != nil {
				fmt.Fprintf(w, "battery: %v\n", e)
			}
		}
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tSTATUS\tRANGE\tURGENCY\tFIRES\tSUMMARY")
	for _, name := range names {
		r := cfg.Rules[name]
		fires := "-"
		summary := r.Summary
		if reading {
			fires = "no"
			if fire[name] {
				fires = "yes"
			}
			if p, err := notifier.Build(r, percent); err == nil {
				summary = p.Summary
			} else {
				summary = err.Error()
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%d-%d\t%s\t%s\t%s\n", name, r.Status, r.From, r.To, r.Urgency, fires, summary)
	}
	return tw.Flush()
}
