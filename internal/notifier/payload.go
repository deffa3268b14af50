package notifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"batteryfriend/internal/config"
)

var (
	// ErrUrgency marks an urgency value that is not low, normal or critical.
	ErrUrgency = errors.New("parse urgency")
	// ErrRender marks text that cannot be sent to the notification server.
	ErrRender = errors.New("render notification")
	// ErrShow marks a failure of the Sink to display a notification.
	ErrShow = errors.New("show notification")
)

// PercentToken is replaced with the current charge level in body and summary.
const PercentToken = "{percent}"

// Urgency of a notification. The zero value leaves it to the server.
type Urgency int8

const (
	UrgencyUnset Urgency = iota
	UrgencyLow
	UrgencyNormal
	UrgencyCritical
)

// ParseUrgency accepts "low", "normal", "critical" and their capitalized forms.
func ParseUrgency(s string) (Urgency, error) {
	switch s {
	case "low", "Low":
		return UrgencyLow, nil
	case "normal", "Normal":
		return UrgencyNormal, nil
	case "critical", "Critical":
		return UrgencyCritical, nil
	}
	return UrgencyUnset, fmt.Errorf("%w: unknown urgency %q", ErrUrgency, s)
}

func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyNormal:
		return "normal"
	case UrgencyCritical:
		return "critical"
	default:
		return ""
	}
}

// Level is the value of the freedesktop "urgency" hint.
func (u Urgency) Level() byte {
	switch u {
	case UrgencyLow:
		return 0
	case UrgencyCritical:
		return 2
	default:
		return 1
	}
}

// Payload is everything a Sink needs to display one notification.
type Payload struct {
	AppName string
	Summary string
	Body    string
	Icon    string
	Urgency Urgency
	// ExpireTimeout of 0 leaves expiry to the server.
	ExpireTimeout time.Duration
	// ReplacesID is the id of the notification to update in place; 0 for a new one.
	ReplacesID uint32
}

// Sink displays notifications and returns the id the server assigned.
type Sink interface {
	Show(ctx context.Context, p Payload) (uint32, error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, p Payload) (uint32, error)

func (f SinkFunc) Show(ctx context.Context, p Payload) (uint32, error) { return f(ctx, p) }

// Build renders rule for the given charge level.
//
// Summary and body get PercentToken substituted, the icon is passed verbatim.
// An invalid urgency returns an error wrapping ErrUrgency.
func Build(rule config.Rule, percent int) (Payload, error) {
	p := Payload{
		Summary: render(rule.Summary, percent),
		Body:    render(rule.Body, percent),
		Icon:    rule.Icon,
	}
	for _, f := range [...]struct{ name, v string }{{"summary", p.Summary}, {"body", p.Body}, {"icon", p.Icon}} {
		if !utf8.ValidString(f.v) {
			return Payload{}, fmt.Errorf("%w: %s is not valid UTF-8", ErrRender, f.name)
		}
	}
	if rule.Urgency != "" {
		u, err := ParseUrgency(rule.Urgency)
		if err != nil {
			return Payload{}, err
		}
		p.Urgency = u
	}
	return p, nil
}

func render(s string, percent int) string {
	if s == "" {
		return ""
	}
	return strings.ReplaceAll(s, PercentToken, strconv.Itoa(percent))
}

// Settings are the notifier knobs taken from the live configuration.
type Settings struct {
	AppName       string
	ExpireTimeout time.Duration
	RatePerSec    int
}

// SettingsFrom converts the [notifier] section. The expire timeout was
// validated when the file was loaded; a bad value here falls back to 0.
func SettingsFrom(cfg config.NotifierConfig) Settings {
	exp, _ := config.ParseDurationField("notifier.expire_timeout", cfg.ExpireTimeout)
	s := Settings{AppName: cfg.AppName, ExpireTimeout: exp, RatePerSec: cfg.RatePerSec}
	if strings.TrimSpace(s.AppName) == "" {
		s.AppName = config.DefaultAppName
	}
	if s.RatePerSec <= 0 {
		s.RatePerSec = config.DefaultRatePerSec
	}
	return s
}
