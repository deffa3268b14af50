package rules

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batteryfriend/internal/battery"
	"batteryfriend/internal/config"
	logx "batteryfriend/pkg/logx"
)

func names(ms []Match) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Name)
	}
	return out
}

func countLevel(buf *bytes.Buffer, level string) int {
	return strings.Count(buf.String(), `"level":"`+level+`"`)
}

func TestEvaluateBounds(t *testing.T) {
	t.Parallel()
	rules := map[string]config.Rule{
		"r": {Status: "Discharging", From: 10, To: 20},
	}
	for p := 0; p <= 100; p++ {
		got := Evaluate(rules, p, battery.Discharging, logx.Nop())
		if p >= 10 && p <= 20 {
			assert.Equal(t, []string{"r"}, names(got), "percent %d", p)
		} else {
			assert.Empty(t, got, "percent %d", p)
		}
	}
}

func TestEvaluateStatusMatch(t *testing.T) {
	t.Parallel()
	rules := map[string]config.Rule{
		"charging": {Status: "charging", From: 0, To: 100},
		"full":     {Status: "Full", From: 0, To: 100},
		"idle":     {Status: "Not charging", From: 0, To: 100},
		"low":      {Status: "Discharging", From: 0, To: 100},
	}
	tests := []struct {
		status battery.Status
		want   []string
	}{
		{battery.Charging, []string{"charging"}},
		{battery.Full, []string{"full"}},
		{battery.NotCharging, []string{"idle"}},
		{battery.Discharging, []string{"low"}},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, names(Evaluate(rules, 50, tt.status, logx.Nop())))
		})
	}
}

func TestEvaluateSortedAndComplete(t *testing.T) {
	t.Parallel()
	rules := map[string]config.Rule{
		"zeta":  {Status: "Discharging", From: 0, To: 30},
		"alpha": {Status: "Discharging", From: 10, To: 15},
		"mid":   {Status: "Discharging", From: 15, To: 15},
		"other": {Status: "Charging", From: 0, To: 100},
	}
	got := Evaluate(rules, 15, battery.Discharging, logx.Nop())
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names(got))
	assert.Equal(t, rules["mid"], got[1].Rule)
}

func TestEvaluateScenarios(t *testing.T) {
	t.Parallel()
	rules := map[string]config.Rule{
		"low": {Status: "Discharging", From: 0, To: 20, Summary: "Battery at {percent}%"},
	}
	assert.Equal(t, []string{"low"}, names(Evaluate(rules, 15, battery.Discharging, logx.Nop())))
	assert.Empty(t, Evaluate(rules, 50, battery.Discharging, logx.Nop()))
}

func TestEvaluateInvalidRulesWarnOnce(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		rule config.Rule
		want string
	}{
		{name: "inverted range", rule: config.Rule{Status: "Discharging", From: 50, To: 10}, want: "from is greater than to"},
		{name: "bad status", rule: config.Rule{Status: "Exploding", From: 0, To: 100}, want: "invalid status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := logx.NewWriter(&buf, "debug")
			rules := map[string]config.Rule{
				"bad":  tt.rule,
				"good": {Status: "Discharging", From: 0, To: 100},
			}

			got := Evaluate(rules, 30, battery.Discharging, log)
			require.Equal(t, []string{"good"}, names(got))
			assert.Equal(t, 1, countLevel(&buf, "warn"))
			assert.Contains(t, buf.String(), tt.want)
			assert.Contains(t, buf.String(), `"rule":"bad"`)
		})
	}
}

func TestEvaluateInvertedRangeQuietOnOtherStatus(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := logx.NewWriter(&buf, "debug")
	rules := map[string]config.Rule{
		"bad":  {Status: "Discharging", From: 50, To: 10},
		"plug": {Status: "Charging", From: 0, To: 100},
	}

	got := Evaluate(rules, 30, battery.Charging, log)
	require.Equal(t, []string{"plug"}, names(got))
	assert.Zero(t, countLevel(&buf, "warn"))
}

func TestEvaluateEmpty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Evaluate(nil, 10, battery.Discharging, logx.Nop()))
}
