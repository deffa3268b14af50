package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	yaml "go.yaml.in/yaml/v3"
)

// fileConfig mirrors the on-disk layout. Pointers distinguish "absent" from
// zero so defaults and required keys can be enforced after decoding.
//
// Legacy keys:
//   - "poll" is accepted for "poll_interval"
//   - "messages" is accepted for "rules"
//
// When both spellings are present the new key wins.
type fileConfig struct {
	PollInterval *string             `toml:"poll_interval" yaml:"poll_interval" json:"poll_interval"`
	Poll         *string             `toml:"poll" yaml:"poll" json:"poll"`
	Rules        map[string]fileRule `toml:"rules" yaml:"rules" json:"rules"`
	Messages     map[string]fileRule `toml:"messages" yaml:"messages" json:"messages"`
	Logging      *fileLogging        `toml:"logging" yaml:"logging" json:"logging"`
	Notifier     *NotifierConfig     `toml:"notifier" yaml:"notifier" json:"notifier"`
}

type fileRule struct {
	Status  *string `toml:"status" yaml:"status" json:"status"`
	From    *int    `toml:"from" yaml:"from" json:"from"`
	To      *int    `toml:"to" yaml:"to" json:"to"`
	Body    string  `toml:"body" yaml:"body" json:"body"`
	Summary string  `toml:"summary" yaml:"summary" json:"summary"`
	Icon    string  `toml:"icon" yaml:"icon" json:"icon"`
	Urgency string  `toml:"urgency" yaml:"urgency" json:"urgency"`
}

type fileLogging struct {
	Level   string `toml:"level" yaml:"level" json:"level"`
	Console *bool  `toml:"console" yaml:"console" json:"console"`
	File    struct {
		Enabled    bool   `toml:"enabled" yaml:"enabled" json:"enabled"`
		Path       string `toml:"path" yaml:"path" json:"path"`
		MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb" json:"max_size_mb"`
		MaxBackups int    `toml:"max_backups" yaml:"max_backups" json:"max_backups"`
	} `toml:"file" yaml:"file" json:"file"`
}

// Load reads and parses the config file at path.
// Failures are *LoadError with Kind ErrRead or ErrParse.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Kind: ErrRead, Err: err}
	}
	return Parse(path, b)
}

// Parse decodes data using the format implied by path's extension:
// .yaml/.yml, .json, anything else is TOML.
func Parse(path string, data []byte) (*Config, error) {
	var (
		fc      fileConfig
		unknown []string
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, parseErr(path, fmt.Errorf("yaml unmarshal: %w", err))
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&fc); err != nil {
			return nil, parseErr(path, fmt.Errorf("json decode: %w", err))
		}
	default:
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, parseErr(path, err)
		}
		for _, k := range md.Undecoded() {
			unknown = append(unknown, k.String())
		}
		sort.Strings(unknown)
	}

	cfg, err := fc.build()
	if err != nil {
		return nil, parseErr(path, err)
	}
	cfg.Unknown = unknown
	return cfg, nil
}

func parseErr(path string, err error) error {
	return &LoadError{Path: path, Kind: ErrParse, Err: err}
}

func (fc *fileConfig) build() (*Config, error) {
	cfg := &Config{PollInterval: DefaultPollIntervalRaw}
	switch {
	case fc.PollInterval != nil:
		cfg.PollInterval = *fc.PollInterval
	case fc.Poll != nil:
		cfg.PollInterval = *fc.Poll
	}

	raw := fc.Rules
	if raw == nil {
		raw = fc.Messages
	}
	// An empty file (common mid-write) must not parse as "no rules".
	if raw == nil {
		return nil, fmt.Errorf("missing field `rules`")
	}

	cfg.Rules = make(map[string]Rule, len(raw))
	for name, fr := range raw {
		if fr.From == nil {
			return nil, fmt.Errorf("rules.%s: missing field `from`", name)
		}
		if fr.To == nil {
			return nil, fmt.Errorf("rules.%s: missing field `to`", name)
		}
		r := Rule{
			Status:  DefaultStatus,
			From:    *fr.From,
			To:      *fr.To,
			Body:    fr.Body,
			Summary: fr.Summary,
			Icon:    fr.Icon,
			Urgency: fr.Urgency,
		}
		if fr.Status != nil {
			r.Status = *fr.Status
		}
		cfg.Rules[name] = r
	}

	cfg.Logging = LoggingConfig{Level: DefaultLogLevel, Console: true}
	if l := fc.Logging; l != nil {
		if strings.TrimSpace(l.Level) != "" {
			cfg.Logging.Level = l.Level
		}
		if l.Console != nil {
			cfg.Logging.Console = *l.Console
		}
		cfg.Logging.File = LoggingFile{
			Enabled:    l.File.Enabled,
			Path:       l.File.Path,
			MaxSizeMB:  l.File.MaxSizeMB,
			MaxBackups: l.File.MaxBackups,
		}
	}

	cfg.Notifier = NotifierConfig{AppName: DefaultAppName, RatePerSec: DefaultRatePerSec}
	if n := fc.Notifier; n != nil {
		if strings.TrimSpace(n.AppName) != "" {
			cfg.Notifier.AppName = n.AppName
		}
		if n.RatePerSec > 0 {
			cfg.Notifier.RatePerSec = n.RatePerSec
		}
		if _, err := ParseDurationField("notifier.expire_timeout", n.ExpireTimeout); err != nil {
			return nil, err
		}
		cfg.Notifier.ExpireTimeout = n.ExpireTimeout
	}
	return cfg, nil
}
