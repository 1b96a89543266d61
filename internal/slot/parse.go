package slot

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidDate = errors.New("unrecognized date format")
	ErrInvalidTime = errors.New("unrecognized time format")
)

// Accepted caller date formats: YYYY-MM-DD, MM/DD/YYYY, Month DD, YYYY,
// Mon DD, YYYY and DD-MM-YYYY. Unpadded variants are tried after the padded ones.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"02-01-2006",
	"1/2/2006",
	"2-1-2006",
}

// Accepted time formats: HH:MM (24h), H:MM AM/PM, H:MMAM/PM, HH:MM:SS.
var timeLayouts = []string{
	"15:04",
	"3:04 PM",
	"3:04PM",
	"15:04:05",
}

// ParseDate parses a caller-supplied date into midnight of that day in loc.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	value := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if d, err := time.ParseInLocation(layout, value, loc); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

// ParseClock parses a caller-supplied time of day and returns the offset from midnight.
func ParseClock(raw string) (time.Duration, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
}

// ParseDateTime normalizes a caller date and time into a single local instant
// in the facility location. No other timezone conversion is applied.
func ParseDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	day, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	offset, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return At(day, offset), nil
}

// At returns the wall-clock instant offset after midnight of day. It is DST safe
// because it goes through time.Date rather than adding durations to midnight.
func At(day time.Time, offset time.Duration) time.Time {
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	s := int((offset % time.Minute) / time.Second)
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, s, 0, day.Location())
}
