package slot

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return loc
}

func TestParseDateTimeAcceptedFormats(t *testing.T) {
	loc := mustLoc(t)
	want := time.Date(2025, time.March, 10, 14, 30, 0, 0, loc)

	dates := []string{"2025-03-10", "03/10/2025", "March 10, 2025", "Mar 10, 2025", "10-03-2025", " 3/10/2025 "}
	times := []string{"14:30", "2:30 PM", "2:30PM", "14:30:00", "2:30 pm"}

	for _, d := range dates {
		for _, c := range times {
			got, err := ParseDateTime(d, c, loc)
			require.NoError(t, err, "%q %q", d, c)
			assert.True(t, want.Equal(got), "%q %q -> %s", d, c, got)
			assert.Equal(t, loc, got.Location())
		}
	}
}

func TestParseDateTimeRejectsGarbage(t *testing.T) {
	loc := mustLoc(t)

	_, err := ParseDateTime("next tuesday", "10:00", loc)
	assert.True(t, errors.Is(err, ErrInvalidDate))

	_, err = ParseDateTime("2025-03-10", "half past ten", loc)
	assert.True(t, errors.Is(err, ErrInvalidTime))

	_, err = ParseDateTime("2025-02-30", "10:00", loc)
	assert.True(t, errors.Is(err, ErrInvalidDate))
}

func TestOverlapIsHalfOpen(t *testing.T) {
	base := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)
	s := New(base, 30)

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"ends exactly at start", base.Add(-30 * time.Minute), base, false},
		{"starts exactly at end", base.Add(30 * time.Minute), base.Add(time.Hour), false},
		{"straddles start", base.Add(-15 * time.Minute), base.Add(15 * time.Minute), true},
		{"inside", base.Add(5 * time.Minute), base.Add(10 * time.Minute), true},
		{"covers", base.Add(-time.Hour), base.Add(time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Overlaps(tt.start, tt.end))
		})
	}
}

func TestNewDefaultsDuration(t *testing.T) {
	start := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 30, New(start, 0).Minutes())
	assert.Equal(t, 45, New(start, 45).Minutes())
}

func TestDayBounds(t *testing.T) {
	loc := mustLoc(t)
	start, end := DayBounds(time.Date(2025, time.March, 10, 17, 45, 0, 0, loc))
	assert.Equal(t, time.Date(2025, time.March, 10, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2025, time.March, 11, 0, 0, 0, 0, loc), end)
}

func TestSameDayUsesFirstLocation(t *testing.T) {
	loc := mustLoc(t)
	a := time.Date(2025, time.March, 10, 1, 0, 0, 0, loc)
	b := time.Date(2025, time.March, 9, 20, 0, 0, 0, time.UTC) // 01:30 on the 10th in Kolkata
	assert.True(t, SameDay(a, b))
}

func TestDayKeyUsesFacilityDay(t *testing.T) {
	loc := mustLoc(t)
	late := time.Date(2025, time.March, 9, 20, 0, 0, 0, time.UTC) // 01:30 on the 10th in Kolkata

	assert.Equal(t, "2025-03-10", DayKey(late, loc))
	assert.Equal(t, "2025-03-09", DayKey(late, time.UTC))
	assert.Equal(t, DayKey(late, loc), DayKey(late.In(loc), nil))
}
