package config

// Config is one fully parsed configuration file.
//
// A *Config handed out by Store is shared between goroutines and must be
// treated as read-only. Reloads build a new value and swap it in whole.
type Config struct {
	// PollInterval is re-parsed on every poll cycle (see PollDelay).
	PollInterval string          `json:"poll_interval"`
	Rules        map[string]Rule `json:"rules"`

	Logging  LoggingConfig  `json:"logging"`
	Notifier NotifierConfig `json:"notifier"`

	// Unknown lists keys present in the file that no field consumed (TOML only).
	Unknown []string `json:"-"`
}

// Rule is a named threshold predicate plus its notification template.
//
// From/To are inclusive. From > To is not rejected at load time; the rule
// engine skips such rules each cycle.
type Rule struct {
	Status string `json:"status"`
	From   int    `json:"from"`
	To     int    `json:"to"`

	Body    string `json:"body,omitempty"`
	Summary string `json:"summary,omitempty"`
	Icon    string `json:"icon,omitempty"`
	Urgency string `json:"urgency,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// NotifierConfig tunes how notifications are handed to the desktop.
//
// ExpireTimeout is a Go duration string; empty leaves expiry to the
// notification server.
type NotifierConfig struct {
	AppName       string `toml:"app_name" yaml:"app_name" json:"app_name"`
	ExpireTimeout string `toml:"expire_timeout" yaml:"expire_timeout" json:"expire_timeout"`
	RatePerSec    int    `toml:"rate_per_sec" yaml:"rate_per_sec" json:"rate_per_sec"`
}

const (
	DefaultPollIntervalRaw = "2m"
	DefaultStatus          = "Discharging"
	DefaultAppName         = "battery-friend"
	DefaultRatePerSec      = 5
	DefaultLogLevel        = "info"
)

// HasRule reports whether name is a rule of this configuration.
func (c *Config) HasRule(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Rules[name]
	return ok
}
