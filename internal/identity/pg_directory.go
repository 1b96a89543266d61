package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hackgods/voice-appointment-engine/internal/callrecord"
	"github.com/hackgods/voice-appointment-engine/internal/db"
)

// PgDirectory keeps patient records and the call log in Postgres.
type PgDirectory struct {
	pool db.Pool
}

func NewPgDirectory(pool db.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func scanPatient(row pgx.Row) (*PatientRecord, error) {
	var p PatientRecord
	err := row.Scan(
		&p.Phone,
		&p.Name,
		&p.Email,
		&p.LastVisit,
		&p.PreferredDoctor,
		&p.Department,
		&p.Language,
		&p.CustomerType,
		&p.Notes,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *PgDirectory) GetByPhone(ctx context.Context, phone string) (*PatientRecord, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT phone, name, email, last_visit, preferred_doctor, department, language,
		       customer_type, notes, created_at, updated_at
		FROM patients
		WHERE phone = $1
	`, phone)

	rec, err := scanPatient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get patient by phone: %w", err)
	}
	return rec, nil
}

// Upsert inserts or merges by phone. created_at of an existing row is kept, and
// an empty incoming text field keeps the stored value.
func (d *PgDirectory) Upsert(ctx context.Context, rec PatientRecord) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO patients (phone, name, email, last_visit, preferred_doctor, department, language,
		                      customer_type, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (phone) DO UPDATE
		SET name = COALESCE(NULLIF(btrim(EXCLUDED.name), ''), patients.name),
		    email = COALESCE(NULLIF(btrim(EXCLUDED.email), ''), patients.email),
		    last_visit = COALESCE(NULLIF(btrim(EXCLUDED.last_visit), ''), patients.last_visit),
		    preferred_doctor = COALESCE(NULLIF(btrim(EXCLUDED.preferred_doctor), ''), patients.preferred_doctor),
		    department = COALESCE(NULLIF(btrim(EXCLUDED.department), ''), patients.department),
		    language = COALESCE(NULLIF(btrim(EXCLUDED.language), ''), patients.language),
		    customer_type = COALESCE(NULLIF(btrim(EXCLUDED.customer_type), ''), patients.customer_type),
		    notes = COALESCE(NULLIF(btrim(EXCLUDED.notes), ''), patients.notes),
		    updated_at = EXCLUDED.updated_at
	`, rec.Phone, rec.Name, rec.Email, rec.LastVisit, rec.PreferredDoctor, rec.Department, rec.Language,
		rec.CustomerType, rec.Notes, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert patient: %w", err)
	}
	return nil
}

// LogCall appends a finalized call record to call_logs. Re-logging the same
// call id is a no-op.
func (d *PgDirectory) LogCall(ctx context.Context, rec callrecord.Record) error {
	failures := make([]string, 0, len(rec.Failures))
	for _, k := range rec.Failures {
		failures = append(failures, string(k))
	}
	notes := rec.Notes
	if notes == nil {
		notes = []string{}
	}

	_, err := d.pool.Exec(ctx, `
		INSERT INTO call_logs (call_id, session_id, caller_phone, customer_type, customer_name, customer_email,
		                       call_type, department, doctor, appointment_date, appointment_time,
		                       calendar_event_id, language, summary, status, notes, failures,
		                       started_at, ended_at, duration_seconds, end_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (call_id) DO NOTHING
	`, rec.CallID, rec.SessionID, rec.CallerPhone, rec.CustomerType, rec.CustomerName, rec.CustomerEmail,
		string(rec.CallType), rec.Department, rec.Doctor, rec.AppointmentDate, rec.AppointmentTime,
		rec.CalendarEventID, rec.Language, rec.Summary, string(rec.Status), notes, failures,
		rec.StartedAt, rec.EndedAt, rec.DurationSeconds, string(rec.EndReason))
	if err != nil {
		return fmt.Errorf("insert call log: %w", err)
	}
	return nil
}
