// Package callrecord keeps one in-flight record per call session and persists
// it exactly once when the session ends.
package callrecord

import (
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/voice-appointment-engine/pkg/apperrors"
)

type CallType string

const (
	CallTypeBooking           CallType = "appointment_booking"
	CallTypeCancellation      CallType = "appointment_cancellation"
	CallTypeGeneralEnquiry    CallType = "general_enquiry"
	CallTypeDepartmentEnquiry CallType = "department_enquiry"
	CallTypeDoctorEnquiry     CallType = "doctor_enquiry"
	CallTypeBillingEnquiry    CallType = "billing_enquiry"
	CallTypeEmergency         CallType = "emergency"
	CallTypeOther             CallType = "other"
)

var callTypes = map[CallType]struct{}{
	CallTypeBooking: {}, CallTypeCancellation: {}, CallTypeGeneralEnquiry: {},
	CallTypeDepartmentEnquiry: {}, CallTypeDoctorEnquiry: {}, CallTypeBillingEnquiry: {},
	CallTypeEmergency: {}, CallTypeOther: {},
}

// ParseCallType maps unknown values to CallTypeOther.
func ParseCallType(s string) CallType {
	ct := CallType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := callTypes[ct]; ok {
		return ct
	}
	return CallTypeOther
}

type Status string

const (
	StatusPending           Status = "pending"
	StatusResolved          Status = "resolved"
	StatusPartiallyResolved Status = "partially_resolved"
	StatusUnresolved        Status = "unresolved"
	StatusEscalated         Status = "escalated"
	StatusFollowUpRequired  Status = "follow_up_required"
	StatusError             Status = "error"
)

// ParseStatus accepts the terminal statuses a caller may set explicitly.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusResolved, StatusPartiallyResolved, StatusUnresolved, StatusEscalated, StatusFollowUpRequired:
		return st, true
	}
	return "", false
}

type EndReason string

const (
	EndHangup         EndReason = "hangup"
	EndTransportError EndReason = "transport_error"
	EndPipelineError  EndReason = "pipeline_error"
	EndIdleTimeout    EndReason = "idle_timeout"
	EndShutdown       EndReason = "shutdown"
)

func ParseEndReason(s string) (EndReason, bool) {
	switch r := EndReason(strings.ToLower(strings.TrimSpace(s))); r {
	case EndHangup, EndTransportError, EndPipelineError, EndIdleTimeout, EndShutdown:
		return r, true
	}
	return "", false
}

// IsError reports whether the session ended abnormally.
func (r EndReason) IsError() bool {
	return r == EndTransportError || r == EndPipelineError
}

type Record struct {
	CallID          string           `json:"call_id" dynamodbav:"call_id"`
	SessionID       string           `json:"session_id" dynamodbav:"session_id"`
	CallerPhone     string           `json:"caller_phone" dynamodbav:"caller_phone"`
	CustomerType    string           `json:"customer_type" dynamodbav:"customer_type"`
	CustomerName    string           `json:"customer_name" dynamodbav:"customer_name"`
	CustomerEmail   string           `json:"customer_email" dynamodbav:"customer_email"`
	CallType        CallType         `json:"call_type" dynamodbav:"call_type"`
	Department      string           `json:"department" dynamodbav:"department"`
	Doctor          string           `json:"doctor" dynamodbav:"doctor"`
	AppointmentDate string           `json:"appointment_date" dynamodbav:"appointment_date"`
	AppointmentTime string           `json:"appointment_time" dynamodbav:"appointment_time"`
	CalendarEventID string           `json:"calendar_event_id" dynamodbav:"calendar_event_id"`
	Language        string           `json:"language" dynamodbav:"language"`
	Summary         string           `json:"summary" dynamodbav:"summary"`
	Status          Status           `json:"status" dynamodbav:"status"`
	Notes           []string         `json:"notes" dynamodbav:"notes"`
	Failures        []apperrors.Kind `json:"failures" dynamodbav:"failures"`
	StartedAt       time.Time        `json:"started_at" dynamodbav:"started_at"`
	EndedAt         time.Time        `json:"ended_at" dynamodbav:"ended_at"`
	Duration        time.Duration    `json:"duration" dynamodbav:"-"`
	DurationSeconds int64            `json:"duration_seconds" dynamodbav:"duration_seconds"`
	EndReason       EndReason        `json:"end_reason" dynamodbav:"end_reason"`
}

func (r Record) clone() Record {
	out := r
	out.Notes = append([]string(nil), r.Notes...)
	out.Failures = append([]apperrors.Kind(nil), r.Failures...)
	return out
}

// AddNote appends a free-text note.
func (r *Record) AddNote(format string, args ...any) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// AddFailure records a failure kind once.
func (r *Record) AddFailure(kind apperrors.Kind) {
	for _, k := range r.Failures {
		if k == kind {
			return
		}
	}
	r.Failures = append(r.Failures, kind)
}

func composeSummary(r Record) string {
	var b strings.Builder
	switch r.CallType {
	case CallTypeBooking:
		b.WriteString("Appointment booking")
	case CallTypeCancellation:
		b.WriteString("Appointment cancellation")
	case "":
		b.WriteString("Call")
	default:
		b.WriteString(strings.ReplaceAll(string(r.CallType), "_", " "))
	}
	if r.CustomerName != "" {
		fmt.Fprintf(&b, " for %s", r.CustomerName)
	}
	if r.Doctor != "" {
		fmt.Fprintf(&b, " with %s", r.Doctor)
	}
	if r.AppointmentDate != "" {
		fmt.Fprintf(&b, " on %s", r.AppointmentDate)
		if r.AppointmentTime != "" {
			fmt.Fprintf(&b, " at %s", r.AppointmentTime)
		}
	}
	fmt.Fprintf(&b, "; %s after %ds (%s)", r.Status, int64(r.Duration/time.Second), r.EndReason)
	return b.String()
}
