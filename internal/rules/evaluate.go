// Package rules decides which configured rules apply to a battery reading.
package rules

import (
	"sort"

	"batteryfriend/internal/battery"
	"batteryfriend/internal/config"
	logx "batteryfriend/pkg/logx"
)

// Match is a rule that qualified for the current reading.
type Match struct {
	Name string
	Rule config.Rule
}

// Evaluate returns every rule whose status equals status and whose inclusive
// range [From, To] contains percent, ordered by rule name.
//
// Rules with an unparsable status never match and are reported with a single
// warning per call. A rule with From > To is reported only when its status
// matches the reading.
func Evaluate(rules map[string]config.Rule, percent int, status battery.Status, log logx.Logger) []Match {
	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Match
	for _, name := range names {
		r := rules[name]
		want, err := battery.ParseStatus(r.Status)
		if err != nil {
			log.Warn("rule skipped: invalid status",
				logx.String("rule", name),
				logx.String("field", "status"),
				logx.String("value", r.Status),
				logx.Err(err),
			)
			continue
		}
		if want != status {
			continue
		}
		if r.From > r.To {
			log.Warn("rule skipped: from is greater than to",
				logx.String("rule", name),
				logx.Int("from", r.From),
				logx.Int("to", r.To),
			)
			continue
		}
		if percent < r.From || percent > r.To {
			continue
		}
		out = append(out, Match{Name: name, Rule: r})
	}
	return out
}
