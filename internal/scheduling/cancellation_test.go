package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/voice-appointment-engine/internal/calendar"
	"github.com/hackgods/voice-appointment-engine/internal/callrecord"
	"github.com/hackgods/voice-appointment-engine/pkg/apperrors"
)

func cancelRequest() CancelRequest {
	return CancelRequest{
		PatientName: "john smith",
		DoctorName:  "Dr. Lee",
		Date:        "2025-03-10",
		Time:        "10:00",
	}
}

func (h *harness) seedBooking(t *testing.T, hour, min int) string {
	t.Helper()
	start := h.at(0, hour, min)
	id, err := h.cal.MemoryProvider.CreateEvent(context.Background(), calendar.Event{
		Title:         "Appointment: John Smith - Dr. Lee",
		Description:   "Patient: John Smith\nPhone: +15550000000\nEmail: john@example.com\nDoctor: Dr. Lee\nDepartment: Cardiology\n",
		Location:      "Renova Hospitals",
		Start:         start,
		End:           start.Add(30 * time.Minute),
		AttendeeEmail: "john@example.com",
	})
	require.NoError(t, err)
	return id
}

func TestCancelWithinTolerance(t *testing.T) {
	h := newHarness(t)
	id := h.seedBooking(t, 10, 5)
	sid := h.session(t, "+15550000000")

	res, err := h.engine.Cancel(context.Background(), sid, cancelRequest())
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, id, res.EventID)
	assert.True(t, h.at(0, 10, 5).Equal(res.Slot.Start))
	assert.Nil(t, res.Warning)
	assert.Equal(t, 0, h.cal.Len())

	rec := h.snapshot(t, sid)
	assert.Equal(t, callrecord.CallTypeCancellation, rec.CallType)
	assert.Equal(t, callrecord.StatusResolved, rec.Status)
	assert.Equal(t, id, rec.CalendarEventID)

	require.Len(t, h.notifier.cancellations, 1)
	assert.Equal(t, "john@example.com", h.notifier.cancellations[0].PatientEmail)
	assert.Equal(t, "10:05 AM", h.notifier.cancellations[0].Time)
}

func TestCancelToleranceBoundary(t *testing.T) {
	h := newHarness(t)
	h.seedBooking(t, 10, 15)

	res, err := h.engine.Cancel(context.Background(), "", cancelRequest())
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
}

func TestCancelOutsideToleranceIsNotFound(t *testing.T) {
	h := newHarness(t)
	h.seedBooking(t, 10, 20)
	sid := h.session(t, "+15550000000")

	req := cancelRequest()
	req.PatientEmail = "john@example.com"

	res, err := h.engine.Cancel(context.Background(), sid, req)
	assert.Nil(t, res)
	require.Error(t, err)

	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.KindNotFound, appErr.Kind)
	assert.Equal(t, "john smith", appErr.Details["patient_name"])
	assert.Equal(t, "john@example.com", appErr.Details["patient_email"])
	assert.Equal(t, "2025-03-10", appErr.Details["date"])
	assert.Equal(t, "10:00", appErr.Details["time"])
	assert.Equal(t, "Dr. Lee", appErr.Details["doctor_name"])

	assert.Equal(t, 1, h.cal.Len())
	assert.Equal(t, callrecord.StatusUnresolved, h.snapshot(t, sid).Status)
}

func TestCancelRequiresNameAndDoctorMatch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CancelRequest)
	}{
		{"other patient", func(r *CancelRequest) { r.PatientName = "Jane Doe" }},
		{"other doctor", func(r *CancelRequest) { r.DoctorName = "Dr. Rao" }},
		{"other day", func(r *CancelRequest) { r.Date = "2025-03-11" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.seedBooking(t, 10, 0)
			req := cancelRequest()
			tt.mutate(&req)

			_, err := h.engine.Cancel(context.Background(), "", req)
			assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
			assert.Equal(t, 1, h.cal.Len())
		})
	}
}

func TestCancelNotesMismatchedContactDetails(t *testing.T) {
	h := newHarness(t)
	h.seedBooking(t, 10, 0)
	sid := h.session(t, "+15550000000")

	req := cancelRequest()
	req.PatientEmail = "someone@else.com"
	req.PatientPhone = "+1 555 999 9999"

	res, err := h.engine.Cancel(context.Background(), sid, req)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)

	rec := h.snapshot(t, sid)
	require.Len(t, rec.Notes, 2)
	assert.Contains(t, rec.Notes[0], "email differs")
	assert.Contains(t, rec.Notes[1], "phone not found")
}

func TestCancelStrictMatcher(t *testing.T) {
	h := newHarness(t, WithMatcher(StrictMatcher{}))
	h.seedBooking(t, 10, 0)

	req := cancelRequest()
	req.PatientName = "John"
	_, err := h.engine.Cancel(context.Background(), "", req)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	req = cancelRequest()
	req.PatientEmail = "someone@else.com"
	_, err = h.engine.Cancel(context.Background(), "", req)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	res, err := h.engine.Cancel(context.Background(), "", cancelRequest())
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
}

func TestSubstringMatcherAcceptsPartialName(t *testing.T) {
	h := newHarness(t)
	h.seedBooking(t, 10, 0)

	req := cancelRequest()
	req.PatientName = "SMITH"
	res, err := h.engine.Cancel(context.Background(), "", req)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
}

func TestCancelDeleteFailures(t *testing.T) {
	t.Run("provider down", func(t *testing.T) {
		h := newHarness(t)
		h.seedBooking(t, 10, 0)
		h.cal.deleteErr = errBoom
		sid := h.session(t, "+15550000000")

		_, err := h.engine.Cancel(context.Background(), sid, cancelRequest())
		assert.Equal(t, apperrors.KindProviderUnavailable, apperrors.KindOf(err))
		assert.Equal(t, callrecord.StatusUnresolved, h.snapshot(t, sid).Status)
		assert.Empty(t, h.notifier.cancellations)
	})

	t.Run("already gone", func(t *testing.T) {
		h := newHarness(t)
		h.seedBooking(t, 10, 0)
		h.cal.deleteErr = calendar.ErrEventNotFound

		_, err := h.engine.Cancel(context.Background(), "", cancelRequest())
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})

	t.Run("list fails", func(t *testing.T) {
		h := newHarness(t)
		h.cal.listErr = errBoom

		_, err := h.engine.Cancel(context.Background(), "", cancelRequest())
		assert.Equal(t, apperrors.KindProviderUnavailable, apperrors.KindOf(err))
	})
}

func TestCancelNoticeFailureIsPartial(t *testing.T) {
	h := newHarness(t)
	h.seedBooking(t, 10, 0)
	h.notifier.err = errBoom

	res, err := h.engine.Cancel(context.Background(), "", cancelRequest())
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	require.NotNil(t, res.Warning)
	assert.Equal(t, apperrors.KindPartialFailure, res.Warning.Kind)
	assert.Equal(t, 0, h.cal.Len())
}

func TestCancelValidation(t *testing.T) {
	h := newHarness(t)

	req := cancelRequest()
	req.DoctorName = ""
	_, err := h.engine.Cancel(context.Background(), "", req)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	req = cancelRequest()
	req.Time = "noonish"
	_, err = h.engine.Cancel(context.Background(), "", req)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}
