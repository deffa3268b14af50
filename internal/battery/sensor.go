package battery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultRoot = "/sys/class/power_supply"
	DefaultName = "BAT0"
)

var (
	// ErrRead marks failures reading the power supply attributes.
	ErrRead = errors.New("read battery")
	// ErrParse marks attribute contents that could not be interpreted.
	ErrParse = errors.New("parse battery")
)

// Sensor reports the current battery reading. Each call queries the device.
type Sensor interface {
	Percentage() (int, error)
	Status() (Status, error)
}

// SensorError wraps a failed reading with the attribute that failed.
// errors.Is matches both the kind (ErrRead or ErrParse) and the cause.
type SensorError struct {
	Attr string
	Kind error
	Err  error
}

func (e *SensorError) Error() string {
	return fmt.Sprintf("unable to get battery %s: %v", e.Attr, e.Err)
}

func (e *SensorError) Unwrap() []error { return []error{e.Kind, e.Err} }

// SysfsSensor reads /sys/class/power_supply/<name>/{capacity,status}.
type SysfsSensor struct {
	dir string
}

type SysfsOption func(*sysfsOptions)

type sysfsOptions struct {
	root string
	name string
}

// WithRoot overrides the power_supply root directory.
func WithRoot(root string) SysfsOption {
	return func(o *sysfsOptions) {
		if strings.TrimSpace(root) != "" {
			o.root = root
		}
	}
}

// WithName selects the power supply, e.g. "BAT1".
func WithName(name string) SysfsOption {
	return func(o *sysfsOptions) {
		if strings.TrimSpace(name) != "" {
			o.name = name
		}
	}
}

func NewSysfsSensor(opts ...SysfsOption) *SysfsSensor {
	o := sysfsOptions{root: DefaultRoot, name: DefaultName}
	for _, fn := range opts {
		fn(&o)
	}
	return &SysfsSensor{dir: filepath.Join(o.root, o.name)}
}

// Dir returns the power supply directory this sensor reads from.
func (s *SysfsSensor) Dir() string { return s.dir }

func (s *SysfsSensor) Percentage() (int, error) {
	raw, err := s.read("capacity")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &SensorError{Attr: "percentage", Kind: ErrParse, Err: err}
	}
	return n, nil
}

func (s *SysfsSensor) Status() (Status, error) {
	raw, err := s.read("status")
	if err != nil {
		return StatusUnknown, err
	}
	st, err := ParseStatus(raw)
	if err != nil {
		return StatusUnknown, &SensorError{Attr: "status", Kind: ErrParse, Err: err}
	}
	return st, nil
}

func (s *SysfsSensor) read(attr string) (string, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, attr))
	if err != nil {
		name := attr
		if attr == "capacity" {
			name = "percentage"
		}
		return "", &SensorError{Attr: name, Kind: ErrRead, Err: err}
	}
	return strings.TrimSpace(string(b)), nil
}
