package scheduling

import (
	"time"

	"github.com/hackgods/voice-appointment-engine/internal/calendar"
	"github.com/hackgods/voice-appointment-engine/internal/slot"
	"github.com/hackgods/voice-appointment-engine/pkg/apperrors"
)

// AppointmentRequest is what the caller said. Date and Time are free-form in
// one of the accepted formats; DurationMinutes <= 0 means the default.
type AppointmentRequest struct {
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

type AvailabilityResult struct {
	Available    bool             `json:"available"`
	Requested    slot.Slot        `json:"requested"`
	Conflicts    []calendar.Event `json:"-"`
	Alternatives []slot.Slot      `json:"alternatives"`
}

// Conflict is the caller-facing view of an overlapping event. It never carries
// the other patient's details.
type Conflict struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (Conflict) Description() string { return "another appointment" }

func (r AvailabilityResult) ConflictSlots() []Conflict {
	out := make([]Conflict, 0, len(r.Conflicts))
	for _, ev := range r.Conflicts {
		out = append(out, Conflict{Start: ev.Start, End: ev.End})
	}
	return out
}

type Patient struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Language string `json:"language,omitempty"`
}

type Doctor struct {
	Name       string `json:"name"`
	Department string `json:"department"`
}

type BookingRequest struct {
	Appointment AppointmentRequest `json:"appointment"`
	Patient     Patient            `json:"patient"`
	Doctor      Doctor             `json:"doctor"`
}

// BookingResult is either a booked event or, when the slot was taken by the
// time the booking ran, fresh alternatives. Warning is set when the booking
// stands but a follow-up step (patient record, confirmation) failed.
type BookingResult struct {
	Booked       bool             `json:"booked"`
	EventID      string           `json:"event_id,omitempty"`
	Slot         slot.Slot        `json:"slot"`
	Alternatives []slot.Slot      `json:"alternatives,omitempty"`
	Warning      *apperrors.Error `json:"-"`
}

type CancelRequest struct {
	PatientName  string `json:"patient_name"`
	PatientEmail string `json:"patient_email,omitempty"`
	PatientPhone string `json:"patient_phone,omitempty"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	DoctorName   string `json:"doctor_name"`
}

// Details echoes the caller's input back for re-verification.
func (r CancelRequest) Details() map[string]string {
	return map[string]string{
		"patient_name":  r.PatientName,
		"patient_email": r.PatientEmail,
		"patient_phone": r.PatientPhone,
		"date":          r.Date,
		"time":          r.Time,
		"doctor_name":   r.DoctorName,
	}
}

type CancellationResult struct {
	Cancelled bool             `json:"cancelled"`
	EventID   string           `json:"event_id"`
	Slot      slot.Slot        `json:"slot"`
	Warning   *apperrors.Error `json:"-"`
}

// LogRequest is the explicit call log entry the dialogue layer writes when it
// wraps up a call.
type LogRequest struct {
	CustomerName     string `json:"customer_name"`
	CustomerPhone    string `json:"customer_phone,omitempty"`
	CustomerEmail    string `json:"customer_email,omitempty"`
	CallType         string `json:"call_type"`
	Department       string `json:"department,omitempty"`
	Doctor           string `json:"doctor,omitempty"`
	Summary          string `json:"summary"`
	ResolutionStatus string `json:"resolution_status,omitempty"`
	Language         string `json:"language,omitempty"`
	Notes            string `json:"notes,omitempty"`
}
