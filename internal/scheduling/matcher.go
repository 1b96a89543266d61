package scheduling

import (
	"strings"
	"time"

	"github.com/hackgods/voice-appointment-engine/internal/calendar"
)

// Matcher picks the event a cancellation request refers to. events are in
// calendar order; the first acceptable one wins.
type Matcher interface {
	Match(req CancelRequest, target time.Time, events []calendar.Event, tolerance time.Duration) (calendar.Event, bool)
}

func withinTolerance(ev calendar.Event, target time.Time, tolerance time.Duration) bool {
	if ev.Start.IsZero() {
		return false
	}
	delta := ev.Start.Sub(target)
	if delta < 0 {
		delta = -delta
	}
	return delta <= tolerance
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(strings.TrimSpace(needle)))
}

// SubstringMatcher accepts an event when its start is within tolerance and both
// the patient and the doctor name appear, case-insensitively, in the title or
// description. Email and phone are not required to match.
type SubstringMatcher struct{}

func (SubstringMatcher) Match(req CancelRequest, target time.Time, events []calendar.Event, tolerance time.Duration) (calendar.Event, bool) {
	for _, ev := range events {
		if !withinTolerance(ev, target, tolerance) {
			continue
		}
		text := ev.Title + "\n" + ev.Description
		if containsFold(text, req.PatientName) && containsFold(text, req.DoctorName) {
			return ev, true
		}
	}
	return calendar.Event{}, false
}

// StrictMatcher requires the exact booking title and, when both sides have an
// email, the same attendee.
type StrictMatcher struct{}

func (StrictMatcher) Match(req CancelRequest, target time.Time, events []calendar.Event, tolerance time.Duration) (calendar.Event, bool) {
	want := "appointment: " + strings.ToLower(strings.TrimSpace(req.PatientName)) + " - " + strings.ToLower(strings.TrimSpace(req.DoctorName))
	for _, ev := range events {
		if !withinTolerance(ev, target, tolerance) {
			continue
		}
		if strings.ToLower(strings.TrimSpace(ev.Title)) != want {
			continue
		}
		if req.PatientEmail != "" && ev.AttendeeEmail != "" && !strings.EqualFold(req.PatientEmail, ev.AttendeeEmail) {
			continue
		}
		return ev, true
	}
	return calendar.Event{}, false
}
