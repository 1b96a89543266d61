// Package calendar is the shared calendar store the engine books against.
// The engine only ever creates or deletes whole events.
package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/hackgods/voice-appointment-engine/internal/slot"
)

var (
	ErrSlotConflict  = errors.New("calendar slot already taken")
	ErrEventNotFound = errors.New("calendar event not found")
)

type Event struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Location      string    `json:"location,omitempty"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	AttendeeEmail string    `json:"attendee_email,omitempty"`
}

// HasBounds is false for events with a missing start or end, e.g. all-day entries.
func (e Event) HasBounds() bool {
	return !e.Start.IsZero() && !e.End.IsZero()
}

func (e Event) Slot() slot.Slot {
	return slot.Slot{Start: e.Start, End: e.End}
}

// Provider is the narrow boundary to the external calendar system.
type Provider interface {
	// ListEventsForDay returns every event intersecting the calendar day of day,
	// in day's location.
	ListEventsForDay(ctx context.Context, day time.Time) ([]Event, error)
	// CreateEvent stores ev and returns the provider's event id. Providers that can
	// check atomically return ErrSlotConflict when the interval is already taken.
	CreateEvent(ctx context.Context, ev Event) (string, error)
	DeleteEvent(ctx context.Context, id string) error
}

// Overlapping returns the events with both bounds set that overlap s.
func Overlapping(events []Event, s slot.Slot) []Event {
	var out []Event
	for _, ev := range events {
		if !ev.HasBounds() {
			continue
		}
		if s.Overlaps(ev.Start, ev.End) {
			out = append(out, ev)
		}
	}
	return out
}
