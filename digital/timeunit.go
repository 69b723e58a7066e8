package digital

import (
	"fmt"
	"strings"
	"time"
)

// TimeUnit is the unit of pulse and blink timing arguments.
type TimeUnit int8

// Supported and recognised timing units. Microseconds and Days are
// recognised for completeness but rejected by Duration: sub-millisecond
// sleeps are below the scheduling granularity the timing protocols
// guarantee, and day-scale sleeps are outside their intended range.
const (
	Microseconds TimeUnit = iota
	Milliseconds
	Seconds
	Minutes
	Hours
	Days
)

const (
	msPerSecond int64 = 1000
	msPerMinute int64 = 60 * msPerSecond
	msPerHour   int64 = 60 * msPerMinute
)

func (u TimeUnit) String() string {
	switch u {
	case Microseconds:
		return "MICROSECONDS"
	case Milliseconds:
		return "MILLISECONDS"
	case Seconds:
		return "SECONDS"
	case Minutes:
		return "MINUTES"
	case Hours:
		return "HOURS"
	case Days:
		return "DAYS"
	default:
		return fmt.Sprintf("TimeUnit(%d)", int8(u))
	}
}

// ParseTimeUnit converts a textual unit to a TimeUnit. Accepted values,
// case insensitive: us/microseconds, ms/milliseconds, s/seconds,
// m/min/minutes, h/hours, d/days.
func ParseTimeUnit(v string) (TimeUnit, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "us", "microseconds":
		return Microseconds, nil
	case "ms", "milliseconds":
		return Milliseconds, nil
	case "s", "sec", "seconds":
		return Seconds, nil
	case "m", "min", "minutes":
		return Minutes, nil
	case "h", "hours":
		return Hours, nil
	case "d", "days":
		return Days, nil
	default:
		return Milliseconds, fmt.Errorf("digital: unrecognised time unit %q", v)
	}
}

// Duration converts n units into a concrete duration with millisecond
// resolution. Microseconds and Days fail with ErrUnsupportedUnit.
func (u TimeUnit) Duration(n int64) (time.Duration, error) {
	var msPer int64
	switch u {
	case Milliseconds:
		msPer = 1
	case Seconds:
		msPer = msPerSecond
	case Minutes:
		msPer = msPerMinute
	case Hours:
		msPer = msPerHour
	case Microseconds, Days:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedUnit, u)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedUnit, u)
	}
	return time.Duration(n*msPer) * time.Millisecond, nil
}
