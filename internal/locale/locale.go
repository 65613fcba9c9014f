// Package locale resolves the platform's fixed-offset timezone codes into
// local hours and weekdays. The codes are a closed set with static UTC
// offsets; there is no DST adjustment.
package locale

import (
	"fmt"
	"time"
)

// ConfigurationError reports a timezone code outside the supported set.
// Unknown codes never fall back to a default offset.
type ConfigurationError struct {
	Code string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unsupported timezone code %q", e.Code)
}

// offsetHours maps each supported code to its fixed UTC offset in hours.
var offsetHours = map[string]int{
	"ET":  -5,
	"CT":  -6,
	"MT":  -7,
	"PT":  -8,
	"BDT": 6,
}

var weekdayCodes = map[time.Weekday]string{
	time.Monday:    "mon",
	time.Tuesday:   "tue",
	time.Wednesday: "wed",
	time.Thursday:  "thu",
	time.Friday:    "fri",
	time.Saturday:  "sat",
	time.Sunday:    "sun",
}

// Codes returns the supported timezone codes. The set is small enough for
// callers to precompute per-code local times once per tick.
func Codes() []string {
	codes := make([]string, 0, len(offsetHours))
	for code := range offsetHours {
		codes = append(codes, code)
	}
	return codes
}

// Zone returns a fixed-offset *time.Location for the code.
func Zone(code string) (*time.Location, error) {
	offset, ok := offsetHours[code]
	if !ok {
		return nil, &ConfigurationError{Code: code}
	}
	return time.FixedZone(code, offset*3600), nil
}

// LocalTime converts a UTC instant into the code's local time.
func LocalTime(nowUTC time.Time, code string) (time.Time, error) {
	zone, err := Zone(code)
	if err != nil {
		return time.Time{}, err
	}
	return nowUTC.In(zone), nil
}

// LocalHour returns the local hour [0,23] the UTC instant represents in the
// given timezone code.
func LocalHour(nowUTC time.Time, code string) (int, error) {
	local, err := LocalTime(nowUTC, code)
	if err != nil {
		return 0, err
	}
	return local.Hour(), nil
}

// LocalWeekday returns the local weekday code (mon..sun) the UTC instant
// represents in the given timezone code.
func LocalWeekday(nowUTC time.Time, code string) (string, error) {
	local, err := LocalTime(nowUTC, code)
	if err != nil {
		return "", err
	}
	return weekdayCodes[local.Weekday()], nil
}

// WeekdayCode returns the platform weekday code for a time value.
func WeekdayCode(t time.Time) string {
	return weekdayCodes[t.Weekday()]
}
