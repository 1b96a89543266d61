package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/voice-appointment-engine/internal/slot"
)

// MemoryProvider keeps events in process. Used for local runs and tests.
type MemoryProvider struct {
	mu     sync.RWMutex
	events map[string]Event
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{events: make(map[string]Event)}
}

func (p *MemoryProvider) ListEventsForDay(ctx context.Context, day time.Time) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	from, to := slot.DayBounds(day)
	window := slot.Slot{Start: from, End: to}

	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []Event
	for _, ev := range p.events {
		if ev.HasBounds() && window.Overlaps(ev.Start, ev.End) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (p *MemoryProvider) CreateEvent(ctx context.Context, ev Event) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !ev.HasBounds() || !ev.End.After(ev.Start) {
		return "", fmt.Errorf("create event: invalid interval %s - %s", ev.Start, ev.End)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, existing := range p.events {
		if existing.HasBounds() && ev.Slot().Overlaps(existing.Start, existing.End) {
			return "", ErrSlotConflict
		}
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	p.events[ev.ID] = ev
	return ev.ID, nil
}

func (p *MemoryProvider) DeleteEvent(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.events[id]; !ok {
		return ErrEventNotFound
	}
	delete(p.events, id)
	return nil
}

// Get returns a stored event by id.
func (p *MemoryProvider) Get(id string) (Event, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ev, ok := p.events[id]
	return ev, ok
}

func (p *MemoryProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.events)
}
