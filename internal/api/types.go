package api

import (
	"time"

	"github.com/hackgods/voice-appointment-engine/internal/identity"
	"github.com/hackgods/voice-appointment-engine/internal/scheduling"
	"github.com/hackgods/voice-appointment-engine/internal/slot"
	"github.com/hackgods/voice-appointment-engine/pkg/apperrors"
)

type StartSessionRequest struct {
	SessionID   string `json:"session_id"`
	CallerPhone string `json:"caller_phone"`
}

type SessionResponse struct {
	SessionID string    `json:"session_id"`
	CallID    string    `json:"call_id"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

type IdentityRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

type IdentityResponse struct {
	CustomerType string                  `json:"customer_type"`
	SkipEmail    bool                    `json:"skip_email"`
	Patient      *identity.PatientRecord `json:"patient,omitempty"`
	Warning      *WarningResponse        `json:"warning,omitempty"`
}

type AvailabilityRequest struct {
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
}

type AvailabilityResponse struct {
	Available    bool               `json:"available"`
	Requested    SlotResponse       `json:"requested"`
	Conflicts    []ConflictResponse `json:"conflicts"`
	Alternatives []SlotResponse     `json:"alternatives"`
}

type ConflictResponse struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description"`
}

// SlotResponse carries both the instants and the spoken form the dialogue
// layer reads back.
type SlotResponse struct {
	Date  string    `json:"date"`
	Time  string    `json:"time"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type BookingRequest struct {
	Patient scheduling.Patient `json:"patient"`
	Doctor  scheduling.Doctor  `json:"doctor"`
	Date    string             `json:"date"`
	Time    string             `json:"time"`
}

type BookingResponse struct {
	Booked       bool             `json:"booked"`
	EventID      string           `json:"event_id,omitempty"`
	Slot         SlotResponse     `json:"slot"`
	Alternatives []SlotResponse   `json:"alternatives,omitempty"`
	Warning      *WarningResponse `json:"warning,omitempty"`
}

type CancellationResponse struct {
	Cancelled bool             `json:"cancelled"`
	EventID   string           `json:"event_id"`
	Slot      SlotResponse     `json:"slot"`
	Warning   *WarningResponse `json:"warning,omitempty"`
}

type EndSessionRequest struct {
	Reason string `json:"reason"`
}

type EndSessionResponse struct {
	CallID          string   `json:"call_id"`
	Status          string   `json:"status"`
	Summary         string   `json:"summary"`
	DurationSeconds int64    `json:"duration_seconds"`
	FailedSinks     []string `json:"failed_sinks,omitempty"`
}

type WarningResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func toSlot(s slot.Slot) SlotResponse {
	return SlotResponse{
		Date:  s.Start.Format(slot.DateFormat),
		Time:  s.Start.Format(slot.SpokenTimeFormat),
		Start: s.Start,
		End:   s.End,
	}
}

func toSlots(in []slot.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(in))
	for _, s := range in {
		out = append(out, toSlot(s))
	}
	return out
}

func toWarning(err *apperrors.Error) *WarningResponse {
	if err == nil {
		return nil
	}
	return &WarningResponse{Kind: string(err.Kind), Message: err.Message}
}
