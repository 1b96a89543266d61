// Package notify delivers booking confirmations and cancellation notices.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Appointment carries what a patient needs to see in a notice.
type Appointment struct {
	EventID      string
	PatientName  string
	PatientEmail string
	PatientPhone string
	DoctorName   string
	Department   string
	Date         string // YYYY-MM-DD
	Time         string // spoken form, e.g. 10:00 AM
	Location     string
}

type Notifier interface {
	SendConfirmation(ctx context.Context, appt Appointment) error
	SendCancellationNotice(ctx context.Context, appt Appointment) error
}

// EmailNotifier renders notices as plain-text email. Patients without an email
// address are skipped silently.
type EmailNotifier struct {
	sender   EmailSender
	facility string
	logger   zerolog.Logger
}

func NewEmailNotifier(sender EmailSender, facility string, logger zerolog.Logger) *EmailNotifier {
	return &EmailNotifier{
		sender:   sender,
		facility: facility,
		logger:   logger.With().Str("component", "notify").Logger(),
	}
}

func (n *EmailNotifier) SendConfirmation(ctx context.Context, appt Appointment) error {
	if appt.PatientEmail == "" {
		n.logger.Debug().Str("event_id", appt.EventID).Msg("no patient email, skipping confirmation")
		return nil
	}
	return n.sender.Send(ctx, EmailMessage{
		To:      appt.PatientEmail,
		ToName:  appt.PatientName,
		Subject: fmt.Sprintf("Appointment Confirmed - %s - %s", appt.Date, n.facility),
		Body:    n.body("Your appointment is confirmed.", appt),
	})
}

func (n *EmailNotifier) SendCancellationNotice(ctx context.Context, appt Appointment) error {
	if appt.PatientEmail == "" {
		n.logger.Debug().Str("event_id", appt.EventID).Msg("no patient email, skipping cancellation notice")
		return nil
	}
	return n.sender.Send(ctx, EmailMessage{
		To:      appt.PatientEmail,
		ToName:  appt.PatientName,
		Subject: fmt.Sprintf("Appointment Cancelled - %s - %s", appt.Date, n.facility),
		Body:    n.body("Your appointment has been cancelled.", appt),
	})
}

func (n *EmailNotifier) body(headline string, appt Appointment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n%s\n\n", appt.PatientName, headline)
	fmt.Fprintf(&b, "Doctor: %s\n", appt.DoctorName)
	if appt.Department != "" {
		fmt.Fprintf(&b, "Department: %s\n", appt.Department)
	}
	fmt.Fprintf(&b, "Date: %s\nTime: %s\n", appt.Date, appt.Time)
	location := appt.Location
	if location == "" {
		location = n.facility
	}
	fmt.Fprintf(&b, "Location: %s\n", location)
	if appt.EventID != "" {
		fmt.Fprintf(&b, "Reference: %s\n", appt.EventID)
	}
	fmt.Fprintf(&b, "\n%s\n", n.facility)
	return b.String()
}
