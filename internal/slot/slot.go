package slot

import (
	"fmt"
	"time"
)

const DefaultDurationMinutes = 30

const (
	DateFormat = "2006-01-02"
	TimeFormat = "15:04"
	// SpokenTimeFormat is what the dialogue layer reads back to callers.
	SpokenTimeFormat = "3:04 PM"
)

// Slot is a half-open [Start, End) interval.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New builds a slot of the given length. Non-positive lengths use the default.
func New(start time.Time, minutes int) Slot {
	if minutes <= 0 {
		minutes = DefaultDurationMinutes
	}
	return Slot{Start: start, End: start.Add(time.Duration(minutes) * time.Minute)}
}

// Overlaps reports half-open overlap with [start, end).
func (s Slot) Overlaps(start, end time.Time) bool {
	return s.Start.Before(end) && s.End.After(start)
}

func (s Slot) OverlapsSlot(o Slot) bool {
	return s.Overlaps(o.Start, o.End)
}

func (s Slot) Equal(o Slot) bool {
	return s.Start.Equal(o.Start) && s.End.Equal(o.End)
}

func (s Slot) Minutes() int {
	return int(s.End.Sub(s.Start) / time.Minute)
}

func (s Slot) Date() string {
	return s.Start.Format(DateFormat)
}

func (s Slot) String() string {
	return fmt.Sprintf("%s %s-%s", s.Start.Format(DateFormat), s.Start.Format(TimeFormat), s.End.Format(TimeFormat))
}

// DayBounds returns [midnight, next midnight) of t's calendar day in t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// SameDay compares calendar days in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// DayKey names the calendar day of t in loc. Booking locks in the engine and in
// the calendar store are both keyed on it, so they always agree on the day.
func DayKey(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DateFormat)
}
