package identity

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/voice-appointment-engine/internal/callrecord"
	"github.com/hackgods/voice-appointment-engine/pkg/apperrors"
)

var patientColumns = []string{
	"phone", "name", "email", "last_visit", "preferred_doctor", "department", "language",
	"customer_type", "notes", "created_at", "updated_at",
}

func newMockDirectory(t *testing.T) (pgxmock.PgxPoolIface, *PgDirectory) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPgDirectory(mock)
}

func TestPgDirectoryGetByPhone(t *testing.T) {
	mock, d := newMockDirectory(t)
	created := time.Date(2025, time.January, 5, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT phone, name, email").
		WithArgs("+15550000").
		WillReturnRows(pgxmock.NewRows(patientColumns).
			AddRow("+15550000", "Jane Doe", "jane@example.com", "2025-03-10", "Dr. Lee", "Cardiology", "english", "existing", "", created, created))

	rec, err := d.GetByPhone(context.Background(), "+15550000")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Jane Doe", rec.Name)
	assert.Equal(t, "Dr. Lee", rec.PreferredDoctor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDirectoryGetByPhoneMissing(t *testing.T) {
	mock, d := newMockDirectory(t)

	mock.ExpectQuery("SELECT phone, name, email").
		WithArgs("+15559999").
		WillReturnError(pgx.ErrNoRows)

	rec, err := d.GetByPhone(context.Background(), "+15559999")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPgDirectoryUpsert(t *testing.T) {
	mock, d := newMockDirectory(t)
	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO patients").
		WithArgs("+15550000", "Jane Doe", "jane@example.com", "", "Dr. Lee", "Cardiology", "", "", "", now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := d.Upsert(context.Background(), PatientRecord{
		Phone:           "+15550000",
		Name:            "Jane Doe",
		Email:           "jane@example.com",
		PreferredDoctor: "Dr. Lee",
		Department:      "Cardiology",
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDirectoryUpsertKeepsStoredFieldsOnEmptyInput(t *testing.T) {
	mock, d := newMockDirectory(t)
	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`email = COALESCE\(NULLIF\(btrim\(EXCLUDED\.email\), ''\), patients\.email\)`).
		WithArgs("+15550000", "Jane", "", "", "", "", "", "returning", "", now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := d.Upsert(context.Background(), PatientRecord{
		Phone:        "+15550000",
		Name:         "Jane",
		CustomerType: "returning",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDirectoryLogCall(t *testing.T) {
	mock, d := newMockDirectory(t)

	args := make([]any, 21)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	mock.ExpectExec("INSERT INTO call_logs").
		WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := d.LogCall(context.Background(), callrecord.Record{
		CallID:    "call-1",
		SessionID: "s1",
		CallType:  callrecord.CallTypeBooking,
		Status:    callrecord.StatusResolved,
		Failures:  []apperrors.Kind{apperrors.KindPartialFailure},
		EndReason: callrecord.EndHangup,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
