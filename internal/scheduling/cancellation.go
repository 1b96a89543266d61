package scheduling

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hackgods/voice-appointment-engine/internal/calendar"
	"github.com/hackgods/voice-appointment-engine/internal/callrecord"
	"github.com/hackgods/voice-appointment-engine/internal/identity"
	"github.com/hackgods/voice-appointment-engine/internal/notify"
	"github.com/hackgods/voice-appointment-engine/internal/slot"
	"github.com/hackgods/voice-appointment-engine/pkg/apperrors"
)

// Cancel finds the caller's appointment from partial details and deletes it.
// When nothing matches, the not_found error carries the details back.
func (e *Engine) Cancel(ctx context.Context, sessionID string, req CancelRequest) (*CancellationResult, error) {
	const op = "cancel"

	var res *CancellationResult
	err := e.guard(ctx, sessionID, op, func(ctx context.Context) error {
		if strings.TrimSpace(req.PatientName) == "" || strings.TrimSpace(req.DoctorName) == "" {
			return apperrors.Validation(op, "patient name and doctor name are required")
		}
		target, err := e.normalize(op, req.Date, req.Time, 0)
		if err != nil {
			return err
		}

		e.record(sessionID, func(r *callrecord.Record) {
			r.CallType = callrecord.CallTypeCancellation
			r.CustomerName = req.PatientName
			if req.PatientEmail != "" {
				r.CustomerEmail = req.PatientEmail
			}
			r.Doctor = req.DoctorName
			r.AppointmentDate = target.Date()
			r.AppointmentTime = target.Start.Format(slot.TimeFormat)
		})

		events, err := e.listDay(ctx, target.Start)
		if err != nil {
			return apperrors.ProviderUnavailable(op, "calendar unavailable", err)
		}

		ev, ok := e.matcher.Match(req, target.Start, events, e.sched.CancelTolerance)
		if !ok {
			return apperrors.NotFound(op, "no appointment matches the details provided", req.Details())
		}
		e.corroborate(sessionID, req, ev)

		start := time.Now()
		err = e.cal.DeleteEvent(ctx, ev.ID)
		e.observeProvider("delete", start)
		if errors.Is(err, calendar.ErrEventNotFound) {
			return apperrors.NotFound(op, "the appointment was already removed", req.Details())
		}
		if err != nil {
			e.record(sessionID, func(r *callrecord.Record) {
				if r.Status != callrecord.StatusResolved {
					r.Status = callrecord.StatusUnresolved
				}
			})
			return apperrors.ProviderUnavailable(op, "could not delete the calendar event", err)
		}

		e.logger.Info().Str("session_id", sessionID).Str("event_id", ev.ID).Msg("appointment cancelled")
		res = &CancellationResult{Cancelled: true, EventID: ev.ID, Slot: ev.Slot()}
		e.record(sessionID, func(r *callrecord.Record) {
			r.CalendarEventID = ev.ID
			r.Status = callrecord.StatusResolved
		})

		res.Warning = e.sendCancellationNotice(ctx, sessionID, req, ev)
		return nil
	})
	return res, err
}

// corroborate notes, without failing, when the soft identifiers disagree with
// what the event carries.
func (e *Engine) corroborate(sessionID string, req CancelRequest, ev calendar.Event) {
	var notes []string
	if req.PatientEmail != "" && ev.AttendeeEmail != "" && !strings.EqualFold(req.PatientEmail, ev.AttendeeEmail) {
		notes = append(notes, "caller email differs from the booking")
	}
	if phone := identity.NormalizePhone(req.PatientPhone); phone != "" && !strings.Contains(identity.NormalizePhone(ev.Description), phone) {
		notes = append(notes, "caller phone not found on the booking")
	}
	if len(notes) == 0 {
		return
	}
	e.record(sessionID, func(r *callrecord.Record) {
		for _, n := range notes {
			r.AddNote("cancellation %s: %s", ev.ID, n)
		}
	})
}

func (e *Engine) sendCancellationNotice(ctx context.Context, sessionID string, req CancelRequest, ev calendar.Event) *apperrors.Error {
	email := req.PatientEmail
	if email == "" {
		email = ev.AttendeeEmail
	}
	err := e.notifier.SendCancellationNotice(ctx, notify.Appointment{
		EventID:      ev.ID,
		PatientName:  req.PatientName,
		PatientEmail: email,
		PatientPhone: req.PatientPhone,
		DoctorName:   req.DoctorName,
		Date:         ev.Start.Format(slot.DateFormat),
		Time:         ev.Start.Format(slot.SpokenTimeFormat),
		Location:     ev.Location,
	})
	if err == nil {
		return nil
	}
	e.logger.Warn().Err(err).Str("event_id", ev.ID).Msg("cancellation notice not sent")
	warning := apperrors.PartialFailure("cancel", "appointment cancelled but notice not sent", err)
	e.record(sessionID, func(r *callrecord.Record) {
		r.AddFailure(apperrors.KindPartialFailure)
		r.AddNote("%s", warning.Message)
	})
	return warning
}
