package config

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultPollInterval is used whenever poll_interval can't be parsed.
const DefaultPollInterval = 2 * time.Minute

var (
	reHHMM   = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)
	reDigits = regexp.MustCompile(`^\d+$`)

	// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
	cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// PollDelay parses a poll_interval value and returns how long to sleep,
// measured from now, before the next poll.
//
// Supported forms:
//   - Go duration: "2m", "90s", "1h30m"
//   - bare seconds: "120"
//   - interval HH:MM: "00:05" (5 minutes)
//   - cron: "*/5 * * * *", "@every 2m", or anything prefixed with "cron:"
//
// For cron forms the delay is the time until the next fire after now.
// Errors wrap ErrParse.
func PollDelay(raw string, now time.Time) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: poll_interval is empty", ErrParse)
	}

	low := strings.ToLower(s)
	if strings.HasPrefix(low, "cron:") {
		return cronDelay(strings.TrimSpace(s[len("cron:"):]), raw, now)
	}
	// any whitespace or leading '@' => cron
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return cronDelay(s, raw, now)
	}

	var (
		d   time.Duration
		err error
	)
	switch {
	case reHHMM.MatchString(s):
		d, err = parseHHMMDuration(s)
	case reDigits.MatchString(s):
		var n int64
		n, err = strconv.ParseInt(s, 10, 64)
		if err == nil && n > math.MaxInt64/int64(time.Second) {
			err = fmt.Errorf("%d seconds overflows a duration", n)
		}
		d = time.Duration(n) * time.Second
	default:
		d, err = time.ParseDuration(s)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: poll_interval %q: %v", ErrParse, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: poll_interval %q must be > 0", ErrParse, raw)
	}
	return d, nil
}

func cronDelay(expr, raw string, now time.Time) (time.Duration, error) {
	if expr == "" {
		return 0, fmt.Errorf("%w: poll_interval %q: cron expression required", ErrParse, raw)
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0, fmt.Errorf("%w: poll_interval %q: %v", ErrParse, raw, err)
	}
	next := sched.Next(now)
	if next.IsZero() {
		return 0, fmt.Errorf("%w: poll_interval %q never fires", ErrParse, raw)
	}
	return next.Sub(now), nil
}

func parseHHMMDuration(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute, nil
}

// ParseDurationField parses an optional, non-negative Go duration.
// Empty input yields 0.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}
