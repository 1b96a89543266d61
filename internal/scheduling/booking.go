package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/voice-appointment-engine/internal/calendar"
	"github.com/hackgods/voice-appointment-engine/internal/callrecord"
	"github.com/hackgods/voice-appointment-engine/internal/identity"
	"github.com/hackgods/voice-appointment-engine/internal/notify"
	redisclient "github.com/hackgods/voice-appointment-engine/internal/redis"
	"github.com/hackgods/voice-appointment-engine/internal/slot"
	"github.com/hackgods/voice-appointment-engine/pkg/apperrors"
)

// Book re-checks the slot under the day lock and commits exactly one calendar
// event. If the slot was taken in the meantime nothing is written and fresh
// alternatives are returned with Booked=false.
func (e *Engine) Book(ctx context.Context, sessionID string, req BookingRequest) (*BookingResult, error) {
	const op = "book"

	var res *BookingResult
	err := e.guard(ctx, sessionID, op, func(ctx context.Context) error {
		if err := validateBooking(op, req); err != nil {
			return err
		}
		patient := e.completePatient(sessionID, req.Patient)

		requested, err := e.normalize(op, req.Appointment.Date, req.Appointment.Time, e.sched.BookingDuration)
		if err != nil {
			return err
		}

		e.record(sessionID, func(r *callrecord.Record) {
			r.CallType = callrecord.CallTypeBooking
			r.CustomerName = patient.Name
			r.CustomerEmail = patient.Email
			r.Doctor = req.Doctor.Name
			r.Department = req.Doctor.Department
			r.AppointmentDate = requested.Date()
			r.AppointmentTime = requested.Start.Format(slot.TimeFormat)
			if patient.Language != "" {
				r.Language = patient.Language
			}
		})

		res, err = e.commit(ctx, op, requested, patient, req.Doctor)
		if err != nil {
			return err
		}
		if !res.Booked {
			e.logger.Info().Str("session_id", sessionID).Str("slot", requested.String()).Msg("slot taken before booking")
			e.record(sessionID, func(r *callrecord.Record) {
				if r.Status != callrecord.StatusResolved {
					r.Status = callrecord.StatusUnresolved
				}
				r.AddNote("requested slot %s was no longer available", requested.String())
			})
			return nil
		}

		e.logger.Info().Str("session_id", sessionID).Str("event_id", res.EventID).Str("slot", requested.String()).Msg("appointment booked")
		res.Warning = e.afterBooking(ctx, sessionID, res, patient, req.Doctor)
		return nil
	})
	return res, err
}

func validateBooking(op string, req BookingRequest) error {
	var missing []string
	if strings.TrimSpace(req.Patient.Name) == "" {
		missing = append(missing, "patient name")
	}
	if strings.TrimSpace(req.Doctor.Name) == "" {
		missing = append(missing, "doctor name")
	}
	if strings.TrimSpace(req.Doctor.Department) == "" {
		missing = append(missing, "department")
	}
	if len(missing) > 0 {
		return apperrors.Validation(op, "missing "+strings.Join(missing, ", "))
	}
	return nil
}

// completePatient fills the phone from the session and the email from the
// identity cache, so returning callers are not asked again.
func (e *Engine) completePatient(sessionID string, p Patient) Patient {
	if p.Phone == "" && e.calls != nil {
		if rec, ok := e.calls.Snapshot(sessionID); ok {
			p.Phone = rec.CallerPhone
		}
	}
	p.Phone = identity.NormalizePhone(p.Phone)
	if p.Phone == "" {
		return p
	}
	if known, ok := e.identity.Lookup(p.Phone); ok {
		if p.Email == "" {
			p.Email = known.Email
		}
		if p.Language == "" {
			p.Language = known.Language
		}
	}
	return p
}

func (e *Engine) commit(ctx context.Context, op string, requested slot.Slot, patient Patient, doctor Doctor) (*BookingResult, error) {
	var res *BookingResult

	lockErr := e.locker.WithDayLock(ctx, slot.DayKey(requested.Start, e.loc), func(ctx context.Context) error {
		avail, err := e.availability(ctx, op, requested)
		if err != nil {
			return err
		}
		if !avail.Available {
			res = &BookingResult{Slot: requested, Alternatives: avail.Alternatives}
			return nil
		}

		start := time.Now()
		id, err := e.cal.CreateEvent(ctx, e.buildEvent(requested, patient, doctor))
		e.observeProvider("create", start)
		if errors.Is(err, calendar.ErrSlotConflict) {
			res = &BookingResult{Slot: requested, Alternatives: e.freshAlternatives(ctx, op, requested)}
			return nil
		}
		if err != nil {
			return apperrors.ProviderUnavailable(op, "could not create the calendar event", err)
		}

		res = &BookingResult{Booked: true, EventID: id, Slot: requested}
		return nil
	})

	if lockErr != nil {
		var appErr *apperrors.Error
		if errors.As(lockErr, &appErr) {
			return nil, lockErr
		}
		if errors.Is(lockErr, redisclient.ErrLockNotAcquired) {
			return nil, apperrors.ProviderUnavailable(op, "calendar is busy, try again", lockErr)
		}
		return nil, apperrors.ProviderUnavailable(op, "booking lock unavailable", lockErr)
	}
	return res, nil
}

// freshAlternatives is used after the store itself rejected the insert.
func (e *Engine) freshAlternatives(ctx context.Context, op string, requested slot.Slot) []slot.Slot {
	avail, err := e.availability(ctx, op, requested)
	if err != nil {
		return e.SuggestAlternatives(requested, nil, requested.Minutes())
	}
	return avail.Alternatives
}

func (e *Engine) buildEvent(s slot.Slot, p Patient, d Doctor) calendar.Event {
	var desc strings.Builder
	fmt.Fprintf(&desc, "Patient: %s\n", p.Name)
	fmt.Fprintf(&desc, "Phone: %s\n", p.Phone)
	fmt.Fprintf(&desc, "Email: %s\n", p.Email)
	fmt.Fprintf(&desc, "Doctor: %s\n", d.Name)
	fmt.Fprintf(&desc, "Department: %s\n", d.Department)
	desc.WriteString("\nBooked via voice assistant")

	return calendar.Event{
		Title:         fmt.Sprintf("Appointment: %s - %s", p.Name, d.Name),
		Description:   desc.String(),
		Location:      e.facility,
		Start:         s.Start,
		End:           s.End,
		AttendeeEmail: p.Email,
	}
}

// afterBooking runs the steps that must not undo a committed booking. Their
// failures come back as a single partial_failure warning.
func (e *Engine) afterBooking(ctx context.Context, sessionID string, res *BookingResult, p Patient, d Doctor) *apperrors.Error {
	const op = "book"
	var (
		problems []string
		errs     []error
	)

	if p.Phone != "" {
		_, err := e.identity.Save(ctx, identity.PatientRecord{
			Phone:           p.Phone,
			Name:            p.Name,
			Email:           p.Email,
			Language:        p.Language,
			LastVisit:       res.Slot.Date(),
			PreferredDoctor: d.Name,
			Department:      d.Department,
		})
		if err != nil {
			problems = append(problems, "patient record not saved")
			errs = append(errs, err)
		}
	}

	e.record(sessionID, func(r *callrecord.Record) {
		r.CalendarEventID = res.EventID
		r.Status = callrecord.StatusResolved
	})

	err := e.notifier.SendConfirmation(ctx, notify.Appointment{
		EventID:      res.EventID,
		PatientName:  p.Name,
		PatientEmail: p.Email,
		PatientPhone: p.Phone,
		DoctorName:   d.Name,
		Department:   d.Department,
		Date:         res.Slot.Date(),
		Time:         res.Slot.Start.Format(slot.SpokenTimeFormat),
		Location:     e.facility,
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("event_id", res.EventID).Msg("confirmation not sent")
		problems = append(problems, "confirmation not sent")
		errs = append(errs, err)
	}

	if len(problems) == 0 {
		return nil
	}
	warning := apperrors.PartialFailure(op, "appointment booked but "+strings.Join(problems, " and "), errors.Join(errs...))
	e.record(sessionID, func(r *callrecord.Record) {
		r.AddFailure(apperrors.KindPartialFailure)
		r.AddNote("%s", warning.Message)
	})
	return warning
}
