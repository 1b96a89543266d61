package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/voice-appointment-engine/internal/calendar"
	"github.com/hackgods/voice-appointment-engine/internal/callrecord"
	"github.com/hackgods/voice-appointment-engine/internal/config"
	"github.com/hackgods/voice-appointment-engine/internal/slot"
	"github.com/hackgods/voice-appointment-engine/pkg/apperrors"
)

func TestCheckAvailabilityEmptyDay(t *testing.T) {
	h := newHarness(t)
	sid := h.session(t, "+91 98765 43210")

	res, err := h.engine.CheckAvailability(context.Background(), sid, AppointmentRequest{Date: "2025-03-10", Time: "10:00"})
	require.NoError(t, err)

	assert.True(t, res.Available)
	assert.Empty(t, res.Conflicts)
	assert.Empty(t, res.Alternatives)
	assert.True(t, h.at(0, 10, 0).Equal(res.Requested.Start))
	assert.Equal(t, 30, res.Requested.Minutes())

	rec := h.snapshot(t, sid)
	assert.Equal(t, "2025-03-10", rec.AppointmentDate)
	assert.Equal(t, "10:00", rec.AppointmentTime)
	assert.Equal(t, callrecord.StatusPending, rec.Status)
}

func TestCheckAvailabilityConflictSuggestsAlternatives(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "Appointment: Someone Else - Dr. Lee", h.at(0, 9, 45), h.at(0, 10, 15))

	res, err := h.engine.CheckAvailability(context.Background(), "", AppointmentRequest{Date: "March 10, 2025", Time: "10:00 AM"})
	require.NoError(t, err)

	assert.False(t, res.Available)
	require.Len(t, res.Conflicts, 1)
	require.Len(t, res.ConflictSlots(), 1)
	assert.Equal(t, "another appointment", res.ConflictSlots()[0].Description())

	require.Len(t, res.Alternatives, 5)
	wantStarts := []time.Time{h.at(0, 10, 30), h.at(0, 11, 0), h.at(0, 11, 30), h.at(0, 12, 0), h.at(0, 12, 30)}
	for i, alt := range res.Alternatives {
		assert.True(t, wantStarts[i].Equal(alt.Start), "alternative %d: %s", i, alt)
		assert.False(t, alt.Start.Before(h.at(0, 10, 15)))
	}
	assertAlternativesValid(t, res.Requested, res.Alternatives, res.Conflicts)
}

func TestCheckAvailabilityAdjacentEventsDoNotConflict(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "Appointment: A - Dr. Lee", h.at(0, 9, 30), h.at(0, 10, 0))
	h.seed(t, "Appointment: B - Dr. Lee", h.at(0, 10, 30), h.at(0, 11, 0))

	res, err := h.engine.CheckAvailability(context.Background(), "", AppointmentRequest{Date: "2025-03-10", Time: "10:00"})
	require.NoError(t, err)
	assert.True(t, res.Available)
}

func TestCheckAvailabilityOtherDaysIgnored(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "Appointment: A - Dr. Lee", h.at(1, 10, 0), h.at(1, 10, 30))

	res, err := h.engine.CheckAvailability(context.Background(), "", AppointmentRequest{Date: "2025-03-10", Time: "10:00"})
	require.NoError(t, err)
	assert.True(t, res.Available)
}

func TestCheckAvailabilityProviderDownIsNeverAvailable(t *testing.T) {
	h := newHarness(t)
	h.cal.listErr = errBoom
	sid := h.session(t, "+15550000000")

	res, err := h.engine.CheckAvailability(context.Background(), sid, AppointmentRequest{Date: "2025-03-10", Time: "10:00"})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, apperrors.KindProviderUnavailable, apperrors.KindOf(err))

	rec := h.snapshot(t, sid)
	assert.Equal(t, callrecord.StatusError, rec.Status)
	assert.Contains(t, rec.Failures, apperrors.KindProviderUnavailable)
}

func TestCheckAvailabilityValidation(t *testing.T) {
	tests := []struct {
		name string
		req  AppointmentRequest
	}{
		{"unparseable date", AppointmentRequest{Date: "next tuesday", Time: "10:00"}},
		{"unparseable time", AppointmentRequest{Date: "2025-03-10", Time: "after lunch"}},
		{"impossible date", AppointmentRequest{Date: "2025-02-30", Time: "10:00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			sid := h.session(t, "+15550000000")

			_, err := h.engine.CheckAvailability(context.Background(), sid, tt.req)
			assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
			assert.Equal(t, callrecord.StatusUnresolved, h.snapshot(t, sid).Status)
		})
	}
}

func TestCheckAvailabilityRecoversPanics(t *testing.T) {
	h := newHarness(t)
	h.cal.panicOnList = true
	sid := h.session(t, "+15550000000")

	_, err := h.engine.CheckAvailability(context.Background(), sid, AppointmentRequest{Date: "2025-03-10", Time: "10:00"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))

	rec := h.snapshot(t, sid)
	assert.Equal(t, callrecord.StatusError, rec.Status)
	assert.Contains(t, rec.Failures, apperrors.KindInternal)
}

func TestSuggestAlternativesSkipsEveryEventOfTheDay(t *testing.T) {
	h := newHarness(t)
	events := []calendar.Event{
		{ID: "a", Start: h.at(0, 9, 45), End: h.at(0, 10, 15)},
		{ID: "b", Start: h.at(0, 10, 30), End: h.at(0, 11, 30)},
	}
	requested := slot.New(h.at(0, 10, 0), 30)

	alts := h.engine.SuggestAlternatives(requested, events, 30)
	require.Len(t, alts, 5)
	assert.True(t, h.at(0, 11, 30).Equal(alts[0].Start))
	assertAlternativesValid(t, requested, alts, events)
}

func TestSuggestAlternativesCrossesTheWeekend(t *testing.T) {
	h := newHarness(t)
	friday := h.at(4, 17, 0)
	require.Equal(t, time.Friday, friday.Weekday())

	requested := slot.New(friday, 30)
	events := []calendar.Event{{ID: "a", Start: friday, End: friday.Add(30 * time.Minute)}}

	alts := h.engine.SuggestAlternatives(requested, events, 30)
	require.Len(t, alts, 5)
	assert.True(t, h.at(4, 17, 30).Equal(alts[0].Start))
	assert.True(t, h.at(7, 9, 0).Equal(alts[1].Start), "got %s", alts[1])
	assert.True(t, h.at(7, 10, 30).Equal(alts[4].Start), "got %s", alts[4])
	assertAlternativesValid(t, requested, alts, events)
}

func TestSuggestAlternativesBeforeOpeningStartsAtWorkdayStart(t *testing.T) {
	h := newHarness(t)
	requested := slot.New(h.at(0, 7, 0), 30)

	alts := h.engine.SuggestAlternatives(requested, nil, 30)
	require.NotEmpty(t, alts)
	assert.True(t, h.at(0, 9, 0).Equal(alts[0].Start))
}

func TestSuggestAlternativesHonoursScheduling(t *testing.T) {
	sched := config.DefaultScheduling()
	sched.MaxAlternatives = 2
	sched.SlotStep = 15 * time.Minute
	h := newHarness(t, WithScheduling(sched))

	requested := slot.New(h.at(0, 10, 0), 30)
	alts := h.engine.SuggestAlternatives(requested, nil, 30)
	require.Len(t, alts, 2)
	assert.True(t, h.at(0, 10, 15).Equal(alts[0].Start))
	assert.True(t, h.at(0, 10, 30).Equal(alts[1].Start))

	late := slot.New(h.at(0, 17, 0), 45)
	alts = h.engine.SuggestAlternatives(late, nil, 45)
	require.Len(t, alts, 2)
	assert.True(t, h.at(0, 17, 15).Equal(alts[0].Start))
	assert.Equal(t, 45, alts[0].Minutes())

	sched.MaxAlternatives = 0
	h = newHarness(t, WithScheduling(sched))
	assert.Empty(t, h.engine.SuggestAlternatives(requested, nil, 30))
}

func TestSuggestAlternativesAcrossRequestTimes(t *testing.T) {
	h := newHarness(t)
	events := []calendar.Event{
		{ID: "a", Start: h.at(0, 9, 0), End: h.at(0, 12, 0)},
		{ID: "b", Start: h.at(0, 13, 0), End: h.at(0, 13, 45)},
		{ID: "c", Start: h.at(0, 16, 10), End: h.at(0, 17, 50)},
	}

	for hour := 6; hour < 21; hour++ {
		for _, min := range []int{0, 20, 30} {
			requested := slot.New(h.at(0, hour, min), 30)
			alts := h.engine.SuggestAlternatives(requested, events, 30)
			assertAlternativesValid(t, requested, alts, events)
		}
	}
}

// assertAlternativesValid checks what every suggestion must satisfy: inside the
// working window of a weekday within the horizon, never the requested slot,
// never overlapping a same-day event, capped and in chronological order.
func assertAlternativesValid(t *testing.T, requested slot.Slot, alts []slot.Slot, events []calendar.Event) {
	t.Helper()
	sched := config.DefaultScheduling()
	firstDay, _ := slot.DayBounds(requested.Start)
	horizonEnd := firstDay.AddDate(0, 0, sched.SearchHorizonDays)

	assert.LessOrEqual(t, len(alts), sched.MaxAlternatives)
	for i, alt := range alts {
		assert.False(t, slot.IsWeekend(alt.Start), "weekend alternative %s", alt)
		assert.True(t, alt.Start.Before(horizonEnd), "beyond horizon %s", alt)
		assert.False(t, alt.Start.Before(firstDay), "before the requested day %s", alt)
		assert.False(t, alt.Equal(requested), "requested slot suggested back")

		opens := slot.At(alt.Start, sched.WorkdayStart)
		closes := slot.At(alt.Start, sched.WorkdayEnd)
		assert.False(t, alt.Start.Before(opens), "before opening %s", alt)
		assert.False(t, alt.End.After(closes), "after closing %s", alt)

		if slot.SameDay(requested.Start, alt.Start) {
			assert.False(t, alt.Start.Before(requested.Start) && requested.Start.After(opens), "same-day alternative before the request %s", alt)
			assert.Empty(t, calendar.Overlapping(events, alt), "alternative %s overlaps an event", alt)
		}
		if i > 0 {
			assert.True(t, alts[i-1].Start.Before(alt.Start), "not chronological at %d", i)
		}
	}
}

func TestSuggestAlternativesOffGridRequestSnapsToGrid(t *testing.T) {
	h := newHarness(t)

	requested := slot.New(h.at(0, 10, 10), 30)
	alts := h.engine.SuggestAlternatives(requested, nil, 30)
	require.Len(t, alts, 5)
	assert.True(t, h.at(0, 10, 30).Equal(alts[0].Start), "got %s", alts[0])
	assert.True(t, h.at(0, 11, 0).Equal(alts[1].Start), "got %s", alts[1])

	onTime := slot.New(h.at(0, 10, 30), 30)
	alts = h.engine.SuggestAlternatives(onTime, nil, 30)
	require.NotEmpty(t, alts)
	assert.True(t, h.at(0, 11, 0).Equal(alts[0].Start), "got %s", alts[0])
}
