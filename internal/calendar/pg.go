package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/voice-appointment-engine/internal/db"
	"github.com/hackgods/voice-appointment-engine/internal/slot"
)

// PgProvider stores the shared calendar in the calendar_events table.
type PgProvider struct {
	pool db.Pool
	loc  *time.Location
}

func NewPgProvider(pool db.Pool, loc *time.Location) *PgProvider {
	if loc == nil {
		loc = time.Local
	}
	return &PgProvider{pool: pool, loc: loc}
}

func scanEvent(row pgx.Row, loc *time.Location) (*Event, error) {
	var ev Event
	err := row.Scan(
		&ev.ID,
		&ev.Title,
		&ev.Description,
		&ev.Location,
		&ev.AttendeeEmail,
		&ev.Start,
		&ev.End,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	ev.Start = ev.Start.In(loc)
	ev.End = ev.End.In(loc)
	return &ev, nil
}

func (p *PgProvider) ListEventsForDay(ctx context.Context, day time.Time) ([]Event, error) {
	from, to := slot.DayBounds(day.In(p.loc))

	rows, err := p.pool.Query(ctx, `
		SELECT id, title, description, location, attendee_email, starts_at, ends_at
		FROM calendar_events
		WHERE starts_at < $2
		  AND ends_at > $1
		ORDER BY starts_at
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}
	defer rows.Close()

	var result []Event
	for rows.Next() {
		ev, err := scanEvent(rows, p.loc)
		if err != nil {
			return nil, fmt.Errorf("scan calendar event: %w", err)
		}
		result = append(result, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calendar events: %w", err)
	}
	return result, nil
}

// CreateEvent inserts ev inside a transaction holding an advisory lock for the
// calendar day, so two concurrent inserts for the same interval cannot both pass
// the overlap check.
func (p *PgProvider) CreateEvent(ctx context.Context, ev Event) (string, error) {
	if !ev.HasBounds() || !ev.End.After(ev.Start) {
		return "", fmt.Errorf("create event: invalid interval %s - %s", ev.Start, ev.End)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin create event: %w", err)
	}
	defer tx.Rollback(ctx)

	dayKey := "calendar:" + slot.DayKey(ev.Start, p.loc)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, dayKey); err != nil {
		return "", fmt.Errorf("lock calendar day: %w", err)
	}

	var taken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM calendar_events
			WHERE starts_at < $2
			  AND ends_at > $1
		)
	`, ev.Start, ev.End).Scan(&taken)
	if err != nil {
		return "", fmt.Errorf("check calendar overlap: %w", err)
	}
	if taken {
		return "", ErrSlotConflict
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO calendar_events (id, title, description, location, attendee_email, starts_at, ends_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`, ev.ID, ev.Title, ev.Description, ev.Location, ev.AttendeeEmail, ev.Start, ev.End)
	if err != nil {
		return "", fmt.Errorf("insert calendar event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit create event: %w", err)
	}
	return ev.ID, nil
}

func (p *PgProvider) DeleteEvent(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM calendar_events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}
