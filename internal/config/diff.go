package config

import (
	"sort"
	"strings"

	logx "batteryfriend/pkg/logx"
)

// RuleChanges lists rule names by what happened to them between two configs.
// A renamed rule shows up as one removal plus one addition.
type RuleChanges struct {
	Added   []string
	Removed []string
	Changed []string
}

func (rc RuleChanges) Empty() bool {
	return len(rc.Added) == 0 && len(rc.Removed) == 0 && len(rc.Changed) == 0
}

// DiffRules compares the rule sets of two configs.
func DiffRules(oldCfg, newCfg *Config) RuleChanges {
	var oldR, newR map[string]Rule
	if oldCfg != nil {
		oldR = oldCfg.Rules
	}
	if newCfg != nil {
		newR = newCfg.Rules
	}

	var rc RuleChanges
	for name, nr := range newR {
		or, ok := oldR[name]
		switch {
		case !ok:
			rc.Added = append(rc.Added, name)
		case or != nr:
			rc.Changed = append(rc.Changed, name)
		}
	}
	for name := range oldR {
		if _, ok := newR[name]; !ok {
			rc.Removed = append(rc.Removed, name)
		}
	}
	sort.Strings(rc.Added)
	sort.Strings(rc.Removed)
	sort.Strings(rc.Changed)
	return rc
}

// SummarizeConfigChange returns a compact list of changed sections and
// structured fields for logging.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 8)

	if strings.TrimSpace(oldCfg.PollInterval) != strings.TrimSpace(newCfg.PollInterval) {
		changed = append(changed, "poll_interval")
		attrs = append(attrs, logx.String("poll_interval", strings.TrimSpace(newCfg.PollInterval)))
	}

	if rc := DiffRules(oldCfg, newCfg); !rc.Empty() {
		changed = append(changed, "rules")
		attrs = append(attrs, logx.Int("rules.count", len(newCfg.Rules)))
		if len(rc.Added) > 0 {
			attrs = append(attrs, logx.Strings("rules.added", rc.Added))
		}
		if len(rc.Removed) > 0 {
			attrs = append(attrs, logx.Strings("rules.removed", rc.Removed))
		}
		if len(rc.Changed) > 0 {
			attrs = append(attrs, logx.Strings("rules.changed", rc.Changed))
		}
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.String("notifier.app_name", newCfg.Notifier.AppName),
			logx.String("notifier.expire_timeout", newCfg.Notifier.ExpireTimeout),
			logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
