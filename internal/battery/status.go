package battery

import "fmt"

// Status is the charging state reported by the power supply.
type Status int

const (
	StatusUnknown Status = iota
	Charging
	NotCharging
	Discharging
	Full
)

func (s Status) String() string {
	switch s {
	case Charging:
		return "Charging"
	case NotCharging:
		return "Not charging"
	case Discharging:
		return "Discharging"
	case Full:
		return "Full"
	default:
		return "Unknown"
	}
}

// ParseStatus accepts the kernel's spelling ("Not charging") and the
// all-lowercase form ("not charging"). Anything else is an error wrapping ErrParse.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "charging", "Charging":
		return Charging, nil
	case "not charging", "Not charging":
		return NotCharging, nil
	case "discharging", "Discharging":
		return Discharging, nil
	case "full", "Full":
		return Full, nil
	}
	return StatusUnknown, fmt.Errorf("%w: unknown status %q", ErrParse, s)
}
