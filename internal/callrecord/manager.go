package callrecord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/voice-appointment-engine/internal/metrics"
)

var (
	ErrSessionNotFound = errors.New("call session not found")
	ErrSessionExists   = errors.New("call session already started")
	ErrTooManySessions = errors.New("too many concurrent call sessions")
)

type Options struct {
	IdleTimeout time.Duration // 0 disables the idle timer
	MaxSessions int           // 0 means unbounded
	SinkTimeout time.Duration
}

type session struct {
	rec   Record
	timer *time.Timer
	gen   uint64
}

// Manager owns every in-flight call record.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session

	sinks   []Sink
	opts    Options
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewManager(opts Options, sinks []Sink, m *metrics.Metrics, logger zerolog.Logger) *Manager {
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = 10 * time.Second
	}
	return &Manager{
		sessions: make(map[string]*session),
		sinks:    sinks,
		opts:     opts,
		logger:   logger.With().Str("component", "callrecord").Logger(),
		metrics:  m,
		now:      time.Now,
	}
}

// Start opens a record in status pending. An empty sessionID gets a generated one.
func (m *Manager) Start(sessionID, callerPhone string) (Record, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; ok {
		return Record{}, ErrSessionExists
	}
	if m.opts.MaxSessions > 0 && len(m.sessions) >= m.opts.MaxSessions {
		return Record{}, ErrTooManySessions
	}

	s := &session{rec: Record{
		CallID:       uuid.NewString(),
		SessionID:    sessionID,
		CallerPhone:  callerPhone,
		CustomerType: "unknown",
		Language:     "english",
		Status:       StatusPending,
		StartedAt:    m.now(),
	}}
	m.sessions[sessionID] = s
	m.armLocked(sessionID, s)
	m.metrics.SetActiveSessions(len(m.sessions))

	m.logger.Info().Str("session_id", sessionID).Str("call_id", s.rec.CallID).Msg("call session started")
	return s.rec.clone(), nil
}

// armLocked (re)starts the idle timer. Each arm bumps gen so a timer that fired
// concurrently with a reset is ignored.
func (m *Manager) armLocked(id string, s *session) {
	if m.opts.IdleTimeout <= 0 {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(m.opts.IdleTimeout, func() { m.expire(id, gen) })
}

func (m *Manager) expire(id string, gen uint64) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	stale := !ok || s.gen != gen
	m.mu.Unlock()
	if stale {
		return
	}
	m.logger.Info().Str("session_id", id).Msg("call session idle, finalizing")
	_, _ = m.Finalize(context.Background(), id, EndIdleTimeout)
}

// Touch resets the idle timer.
func (m *Manager) Touch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	m.armLocked(id, s)
	return nil
}

// Update applies fn to the in-flight record and resets the idle timer.
func (m *Manager) Update(id string, fn func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	fn(&s.rec)
	m.armLocked(id, s)
	return nil
}

// Snapshot returns a copy of the in-flight record.
func (m *Manager) Snapshot(id string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Record{}, false
	}
	return s.rec.clone(), true
}

func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Finalize freezes the record and hands it to every sink. Only the first call
// for a session id does any work; later calls return ErrSessionNotFound. Sink
// failures are logged and reported, never returned.
func (m *Manager) Finalize(ctx context.Context, id string, reason EndReason) (Report, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		if s.timer != nil {
			s.timer.Stop()
		}
	}
	active := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return Report{}, ErrSessionNotFound
	}
	m.metrics.SetActiveSessions(active)

	rec := s.rec.clone()
	rec.EndedAt = m.now()
	rec.Duration = rec.EndedAt.Sub(rec.StartedAt)
	rec.DurationSeconds = int64(rec.Duration / time.Second)
	rec.EndReason = reason
	if rec.Status == StatusPending {
		if reason.IsError() {
			rec.Status = StatusError
		} else {
			rec.Status = StatusUnresolved
		}
	}
	if rec.Summary == "" {
		rec.Summary = composeSummary(rec)
	}

	report := Report{Record: rec, Results: m.dispatch(ctx, rec)}
	m.metrics.ObserveFinalize(string(reason), string(rec.Status))

	m.logger.Info().
		Str("session_id", id).
		Str("call_id", rec.CallID).
		Str("status", string(rec.Status)).
		Str("reason", string(reason)).
		Dur("duration", rec.Duration).
		Strs("failed_sinks", report.Failed()).
		Msg("call session finalized")

	return report, nil
}

// dispatch writes rec to all sinks concurrently. Each sink gets its own
// timeout derived from a context that ignores the caller's cancellation, and
// a sink that never returns is abandoned once its budget is spent.
func (m *Manager) dispatch(ctx context.Context, rec Record) []SinkResult {
	results := make([]SinkResult, len(m.sinks))
	base := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i, sink := range m.sinks {
		wg.Add(1)
		go func(i int, sink Sink) {
			defer wg.Done()
			results[i] = m.writeOne(base, sink, rec)
		}(i, sink)
	}
	wg.Wait()
	return results
}

func (m *Manager) writeOne(base context.Context, sink Sink, rec Record) SinkResult {
	sinkCtx, cancel := context.WithTimeout(base, m.opts.SinkTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("sink panic: %v", r)
			}
		}()
		done <- sink.Write(sinkCtx, rec.clone())
	}()

	var err error
	select {
	case err = <-done:
	case <-sinkCtx.Done():
		err = fmt.Errorf("sink timed out: %w", sinkCtx.Err())
	}

	res := SinkResult{Sink: sink.Name(), OK: err == nil, Elapsed: time.Since(start)}
	if err != nil {
		res.Error = err.Error()
		m.logger.Error().Err(err).Str("sink", sink.Name()).Str("call_id", rec.CallID).Msg("call record sink failed")
	}
	m.metrics.ObserveSinkWrite(sink.Name(), err == nil)
	return res
}

// Shutdown finalizes every in-flight session with EndShutdown.
func (m *Manager) Shutdown(ctx context.Context) []Report {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var (
		mu      sync.Mutex
		reports []Report
		wg      sync.WaitGroup
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			rep, err := m.Finalize(ctx, id, EndShutdown)
			if err != nil {
				return
			}
			mu.Lock()
			reports = append(reports, rep)
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return reports
}
