package callrecord

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

var csvHeader = []string{
	"call_id", "timestamp", "caller_phone", "duration_seconds",
	"customer_type", "customer_name", "customer_email",
	"call_type", "department_enquired", "doctor_enquired",
	"appointment_date", "appointment_time", "language_used",
	"call_summary", "resolution_status", "agent_notes",
	"session_id", "hangup_reason", "calendar_event_id", "failures",
}

// CSVSink appends one row per finalized call to a local file, writing the
// header when the file is new or empty.
type CSVSink struct {
	mu   sync.Mutex
	path string
}

func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Write(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create call log dir: %w", err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open call log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat call log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("write call log header: %w", err)
		}
	}
	if err := w.Write(csvRow(rec)); err != nil {
		return fmt.Errorf("write call log row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush call log: %w", err)
	}
	return nil
}

func csvRow(rec Record) []string {
	failures := make([]string, 0, len(rec.Failures))
	for _, k := range rec.Failures {
		failures = append(failures, string(k))
	}
	return []string{
		rec.CallID,
		rec.StartedAt.Format(time.RFC3339),
		rec.CallerPhone,
		strconv.FormatInt(rec.DurationSeconds, 10),
		rec.CustomerType,
		rec.CustomerName,
		rec.CustomerEmail,
		string(rec.CallType),
		rec.Department,
		rec.Doctor,
		rec.AppointmentDate,
		rec.AppointmentTime,
		rec.Language,
		rec.Summary,
		string(rec.Status),
		strings.Join(rec.Notes, "; "),
		rec.SessionID,
		string(rec.EndReason),
		rec.CalendarEventID,
		strings.Join(failures, ";"),
	}
}
