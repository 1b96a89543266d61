package scheduling

import (
	"context"
	"errors"

	"github.com/hackgods/voice-appointment-engine/internal/calendar"
	"github.com/hackgods/voice-appointment-engine/internal/callrecord"
	"github.com/hackgods/voice-appointment-engine/internal/slot"
	"github.com/hackgods/voice-appointment-engine/pkg/apperrors"
)

// CheckAvailability reports whether the requested slot is free and, if it is
// not, which slots are. A provider failure is returned as an error, never as a
// free slot.
func (e *Engine) CheckAvailability(ctx context.Context, sessionID string, req AppointmentRequest) (*AvailabilityResult, error) {
	const op = "check_availability"

	var res *AvailabilityResult
	err := e.guard(ctx, sessionID, op, func(ctx context.Context) error {
		requested, err := e.normalize(op, req.Date, req.Time, req.DurationMinutes)
		if err != nil {
			return err
		}

		e.record(sessionID, func(r *callrecord.Record) {
			r.AppointmentDate = requested.Date()
			r.AppointmentTime = requested.Start.Format(slot.TimeFormat)
		})

		res, err = e.availability(ctx, op, requested)
		return err
	})
	return res, err
}

func (e *Engine) normalize(op, date, clock string, minutes int) (slot.Slot, error) {
	start, err := slot.ParseDateTime(date, clock, e.loc)
	switch {
	case errors.Is(err, slot.ErrInvalidDate):
		return slot.Slot{}, apperrors.Validation(op, "could not understand the appointment date")
	case errors.Is(err, slot.ErrInvalidTime):
		return slot.Slot{}, apperrors.Validation(op, "could not understand the appointment time")
	case err != nil:
		return slot.Slot{}, apperrors.Validation(op, err.Error())
	}
	if minutes <= 0 {
		minutes = e.sched.DefaultDuration
	}
	return slot.New(start, minutes), nil
}

func (e *Engine) availability(ctx context.Context, op string, requested slot.Slot) (*AvailabilityResult, error) {
	events, err := e.listDay(ctx, requested.Start)
	if err != nil {
		e.logger.Warn().Err(err).Str("day", requested.Date()).Msg("calendar lookup failed")
		return nil, apperrors.ProviderUnavailable(op, "calendar unavailable", err)
	}

	conflicts := calendar.Overlapping(events, requested)
	if len(conflicts) == 0 {
		return &AvailabilityResult{
			Available:    true,
			Requested:    requested,
			Conflicts:    []calendar.Event{},
			Alternatives: []slot.Slot{},
		}, nil
	}

	// every bounded event of the day rules out a same-day alternative, not
	// only the ones overlapping the request
	return &AvailabilityResult{
		Available:    false,
		Requested:    requested,
		Conflicts:    conflicts,
		Alternatives: e.SuggestAlternatives(requested, events, requested.Minutes()),
	}, nil
}
