package callrecord

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/voice-appointment-engine/pkg/apperrors"
)

type recordingSink struct {
	name string
	mu   sync.Mutex
	recs []Record
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

func newTestManager(opts Options, sinks ...Sink) *Manager {
	return NewManager(opts, sinks, nil, zerolog.Nop())
}

func TestFinalizeRunsExactlyOnce(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	m := newTestManager(Options{}, sink)

	_, err := m.Start("s1", "+15550000")
	require.NoError(t, err)

	reasons := []EndReason{EndHangup, EndTransportError, EndPipelineError, EndIdleTimeout, EndShutdown}
	var ok int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := m.Finalize(context.Background(), "s1", reasons[i%len(reasons)]); err == nil {
				atomic.AddInt32(&ok, 1)
			} else {
				assert.ErrorIs(t, err, ErrSessionNotFound)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok)
	assert.Equal(t, 1, sink.count())
	assert.Equal(t, 0, m.Active())
}

func TestFinalizeIsolatesFailingSinks(t *testing.T) {
	good := &recordingSink{name: "good"}
	failing := SinkFunc{SinkName: "failing", Fn: func(context.Context, Record) error {
		return errors.New("disk full")
	}}
	panicking := SinkFunc{SinkName: "panicking", Fn: func(context.Context, Record) error {
		panic("boom")
	}}
	hanging := SinkFunc{SinkName: "hanging", Fn: func(ctx context.Context, _ Record) error {
		select {} // ignores ctx entirely
	}}

	m := newTestManager(Options{SinkTimeout: 50 * time.Millisecond}, failing, panicking, hanging, good)
	_, err := m.Start("s1", "+15550000")
	require.NoError(t, err)

	start := time.Now()
	report, err := m.Finalize(context.Background(), "s1", EndHangup)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, report.Results, 4)
	assert.ElementsMatch(t, []string{"failing", "panicking", "hanging"}, report.Failed())
	assert.True(t, report.Results[3].OK)
	assert.Contains(t, report.Results[1].Error, "boom")
	assert.Equal(t, 1, good.count())
}

func TestFinalizeResolvesPendingStatus(t *testing.T) {
	tests := []struct {
		name   string
		reason EndReason
		set    Status
		want   Status
	}{
		{"hangup while pending", EndHangup, "", StatusUnresolved},
		{"transport error while pending", EndTransportError, "", StatusError},
		{"pipeline error while pending", EndPipelineError, "", StatusError},
		{"idle while pending", EndIdleTimeout, "", StatusUnresolved},
		{"explicit status kept", EndTransportError, StatusResolved, StatusResolved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(Options{})
			_, err := m.Start("s", "+1")
			require.NoError(t, err)
			if tt.set != "" {
				require.NoError(t, m.Update("s", func(r *Record) { r.Status = tt.set }))
			}
			report, err := m.Finalize(context.Background(), "s", tt.reason)
			require.NoError(t, err)
			assert.Equal(t, tt.want, report.Record.Status)
			assert.Equal(t, tt.reason, report.Record.EndReason)
		})
	}
}

func TestFinalizeComputesDurationAndSummary(t *testing.T) {
	m := newTestManager(Options{})
	clock := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	_, err := m.Start("s", "+15550000")
	require.NoError(t, err)
	require.NoError(t, m.Update("s", func(r *Record) {
		r.CallType = CallTypeBooking
		r.CustomerName = "John Smith"
		r.Doctor = "Dr. Lee"
		r.AppointmentDate = "2025-03-10"
		r.AppointmentTime = "10:00"
		r.Status = StatusResolved
		r.AddFailure(apperrors.KindPartialFailure)
		r.AddFailure(apperrors.KindPartialFailure)
	}))

	clock = clock.Add(95 * time.Second)
	report, err := m.Finalize(context.Background(), "s", EndHangup)
	require.NoError(t, err)

	assert.Equal(t, 95*time.Second, report.Record.Duration)
	assert.Equal(t, int64(95), report.Record.DurationSeconds)
	assert.Equal(t, []apperrors.Kind{apperrors.KindPartialFailure}, report.Record.Failures)
	assert.Equal(t, "Appointment booking for John Smith with Dr. Lee on 2025-03-10 at 10:00; resolved after 95s (hangup)", report.Record.Summary)
}

func TestIdleTimeoutFinalizes(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	m := newTestManager(Options{IdleTimeout: 30 * time.Millisecond}, sink)

	_, err := m.Start("s", "+1")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, EndIdleTimeout, sink.recs[0].EndReason)

	_, err = m.Finalize(context.Background(), "s", EndHangup)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestTouchKeepsSessionAlive(t *testing.T) {
	m := newTestManager(Options{IdleTimeout: 80 * time.Millisecond})
	_, err := m.Start("s", "+1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		time.Sleep(30 * time.Millisecond)
		require.NoError(t, m.Touch("s"))
	}
	_, ok := m.Snapshot("s")
	assert.True(t, ok)
}

func TestStartLimits(t *testing.T) {
	m := newTestManager(Options{MaxSessions: 1})

	rec, err := m.Start("", "+1")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.SessionID)
	assert.Equal(t, StatusPending, rec.Status)

	_, err = m.Start(rec.SessionID, "+1")
	assert.ErrorIs(t, err, ErrSessionExists)

	_, err = m.Start("other", "+2")
	assert.ErrorIs(t, err, ErrTooManySessions)

	assert.ErrorIs(t, m.Update("nope", func(*Record) {}), ErrSessionNotFound)
	assert.ErrorIs(t, m.Touch("nope"), ErrSessionNotFound)
}

func TestShutdownFinalizesAll(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	m := newTestManager(Options{}, sink)
	for _, id := range []string{"a", "b", "c"} {
		_, err := m.Start(id, "+1")
		require.NoError(t, err)
	}

	reports := m.Shutdown(context.Background())
	assert.Len(t, reports, 3)
	assert.Equal(t, 3, sink.count())
	assert.Equal(t, 0, m.Active())
	for _, r := range reports {
		assert.Equal(t, EndShutdown, r.Record.EndReason)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	m := newTestManager(Options{})
	_, err := m.Start("s", "+1")
	require.NoError(t, err)
	require.NoError(t, m.Update("s", func(r *Record) { r.AddNote("first") }))

	snap, _ := m.Snapshot("s")
	snap.Notes[0] = "changed"

	again, _ := m.Snapshot("s")
	assert.Equal(t, "first", again.Notes[0])
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, CallTypeBillingEnquiry, ParseCallType(" Billing_Enquiry "))
	assert.Equal(t, CallTypeOther, ParseCallType("complaint"))

	st, ok := ParseStatus("escalated")
	assert.True(t, ok)
	assert.Equal(t, StatusEscalated, st)
	_, ok = ParseStatus("pending")
	assert.False(t, ok)

	r, ok := ParseEndReason("transport_error")
	assert.True(t, ok)
	assert.True(t, r.IsError())
	_, ok = ParseEndReason("bored")
	assert.False(t, ok)
}
