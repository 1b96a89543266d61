package scheduling

import (
	"time"

	"github.com/hackgods/voice-appointment-engine/internal/calendar"
	"github.com/hackgods/voice-appointment-engine/internal/slot"
)

// SuggestAlternatives walks the working grid from the requested slot forward,
// requested day first, then following weekdays within the horizon, and returns
// up to the configured number of candidates.
//
// Same-day candidates start at the first grid point at or after both the workday
// start and the requested start, and must not overlap any of conflicts. Later days are not checked
// against the calendar.
func (e *Engine) SuggestAlternatives(requested slot.Slot, conflicts []calendar.Event, durationMinutes int) []slot.Slot {
	if durationMinutes <= 0 {
		durationMinutes = e.sched.DefaultDuration
	}
	out := make([]slot.Slot, 0, e.sched.MaxAlternatives)
	if e.sched.MaxAlternatives <= 0 || e.sched.SlotStep <= 0 {
		return out
	}

	firstDay, _ := slot.DayBounds(requested.Start)
	for d := 0; d < e.sched.SearchHorizonDays; d++ {
		day := firstDay.AddDate(0, 0, d)
		if slot.IsWeekend(day) {
			continue
		}

		from := slot.At(day, e.sched.WorkdayStart)
		until := slot.At(day, e.sched.WorkdayEnd)
		if d == 0 && requested.Start.After(from) {
			from = onGrid(from, requested.Start, e.sched.SlotStep)
		}

		for t := from; ; t = t.Add(e.sched.SlotStep) {
			cand := slot.New(t, durationMinutes)
			if cand.End.After(until) {
				break
			}
			if cand.Equal(requested) {
				continue
			}
			if d == 0 && len(calendar.Overlapping(conflicts, cand)) > 0 {
				continue
			}
			out = append(out, cand)
			if len(out) == e.sched.MaxAlternatives {
				return out
			}
		}
	}
	return out
}

// onGrid rounds t up to the next point of the grid that starts at origin.
func onGrid(origin, t time.Time, step time.Duration) time.Time {
	steps := (t.Sub(origin) + step - 1) / step
	return origin.Add(steps * step)
}
