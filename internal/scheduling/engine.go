// Package scheduling is the appointment engine the dialogue front end calls:
// availability, alternatives, booking, cancellation, caller identity and the
// per-call log.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/voice-appointment-engine/internal/calendar"
	"github.com/hackgods/voice-appointment-engine/internal/callrecord"
	"github.com/hackgods/voice-appointment-engine/internal/config"
	"github.com/hackgods/voice-appointment-engine/internal/identity"
	"github.com/hackgods/voice-appointment-engine/internal/metrics"
	"github.com/hackgods/voice-appointment-engine/internal/notify"
	redisclient "github.com/hackgods/voice-appointment-engine/internal/redis"
	"github.com/hackgods/voice-appointment-engine/pkg/apperrors"
)

var tracer = otel.Tracer("github.com/hackgods/voice-appointment-engine/internal/scheduling")

// Deps are the collaborators owned by the composition root. Calendar and
// Identity are required; the rest fall back to in-process defaults.
type Deps struct {
	Calendar calendar.Provider
	Locker   redisclient.Locker
	Identity *identity.Resolver
	Calls    *callrecord.Manager
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

type Engine struct {
	cal      calendar.Provider
	locker   redisclient.Locker
	identity *identity.Resolver
	calls    *callrecord.Manager
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	sched    config.Scheduling
	loc      *time.Location
	facility string
	matcher  Matcher
}

type Option func(*Engine)

func WithScheduling(s config.Scheduling) Option {
	return func(e *Engine) { e.sched = s }
}

// WithLocation sets the facility time zone every caller date is read in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithFacility(name string) Option {
	return func(e *Engine) { e.facility = name }
}

func WithMatcher(m Matcher) Option {
	return func(e *Engine) {
		if m != nil {
			e.matcher = m
		}
	}
}

func New(d Deps, opts ...Option) (*Engine, error) {
	if d.Calendar == nil {
		return nil, errors.New("scheduling: calendar provider is required")
	}
	if d.Identity == nil {
		return nil, errors.New("scheduling: identity resolver is required")
	}

	e := &Engine{
		cal:      d.Calendar,
		locker:   d.Locker,
		identity: d.Identity,
		calls:    d.Calls,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		logger:   d.Logger.With().Str("component", "scheduling").Logger(),
		sched:    config.DefaultScheduling(),
		loc:      time.Local,
		matcher:  SubstringMatcher{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.locker == nil {
		e.locker = redisclient.NewLocalLocker(5 * time.Second)
	}
	if e.notifier == nil {
		e.notifier = nopNotifier{}
	}
	return e, nil
}

type nopNotifier struct{}

func (nopNotifier) SendConfirmation(context.Context, notify.Appointment) error { return nil }
func (nopNotifier) SendCancellationNotice(context.Context, notify.Appointment) error { return nil }

// guard is the boundary of every public operation: it opens a span, recovers
// panics into internal errors, normalizes stray errors, records the failure
// kind on the session's call record and observes metrics.
func (e *Engine) guard(ctx context.Context, sessionID, op string, fn func(ctx context.Context) error) (err error) {
	ctx, span := tracer.Start(ctx, "scheduling."+op, trace.WithAttributes(attribute.String("session.id", sessionID)))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str("op", op).
				Str("session_id", sessionID).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("recovered panic in engine operation")
			err = apperrors.Internal(op, fmt.Errorf("panic: %v", r))
		}

		var appErr *apperrors.Error
		if err != nil && !errors.As(err, &appErr) {
			err = apperrors.Internal(op, err)
		}

		outcome := "ok"
		if err != nil {
			kind := apperrors.KindOf(err)
			outcome = string(kind)
			span.RecordError(err)
			span.SetStatus(codes.Error, string(kind))
			e.recordFailure(sessionID, kind)
		}
		span.End()
		e.metrics.ObserveOperation(op, outcome, time.Since(start).Seconds())
	}()

	return fn(ctx)
}

// record applies fn to the session's call record. Sessions the manager does not
// know about are ignored; engine operations never fail because of bookkeeping.
func (e *Engine) record(sessionID string, fn func(*callrecord.Record)) {
	if e.calls == nil || sessionID == "" {
		return
	}
	if err := e.calls.Update(sessionID, fn); err != nil {
		e.logger.Debug().Err(err).Str("session_id", sessionID).Msg("call record not updated")
	}
}

// recordFailure appends kind and, while the record is still pending, moves it
// to the status that kind implies. Operations that set a status themselves win.
func (e *Engine) recordFailure(sessionID string, kind apperrors.Kind) {
	e.record(sessionID, func(r *callrecord.Record) {
		r.AddFailure(kind)
		if r.Status != callrecord.StatusPending {
			return
		}
		switch kind {
		case apperrors.KindValidation, apperrors.KindNotFound:
			r.Status = callrecord.StatusUnresolved
		case apperrors.KindProviderUnavailable, apperrors.KindInternal:
			r.Status = callrecord.StatusError
		}
	})
}

func (e *Engine) observeProvider(call string, start time.Time) {
	e.metrics.ObserveProvider("calendar", call, time.Since(start).Seconds())
}

func (e *Engine) listDay(ctx context.Context, day time.Time) ([]calendar.Event, error) {
	defer e.observeProvider("list", time.Now())
	return e.cal.ListEventsForDay(ctx, day)
}

// StartSession opens the call record for a new session.
func (e *Engine) StartSession(sessionID, callerPhone string) (callrecord.Record, error) {
	if e.calls == nil {
		return callrecord.Record{}, apperrors.Internal("start_session", errors.New("call records are not configured"))
	}
	rec, err := e.calls.Start(sessionID, identity.NormalizePhone(callerPhone))
	switch {
	case errors.Is(err, callrecord.ErrSessionExists):
		return rec, apperrors.Validation("start_session", "session already started")
	case errors.Is(err, callrecord.ErrTooManySessions):
		return rec, apperrors.ProviderUnavailable("start_session", "too many concurrent calls", err)
	case err != nil:
		return rec, apperrors.Internal("start_session", err)
	}
	return rec, nil
}

// EndSession finalizes the session. Repeated ends for the same session return
// a not_found error and have no effect.
func (e *Engine) EndSession(ctx context.Context, sessionID string, reason callrecord.EndReason) (callrecord.Report, error) {
	if e.calls == nil {
		return callrecord.Report{}, apperrors.Internal("end_session", errors.New("call records are not configured"))
	}
	report, err := e.calls.Finalize(ctx, sessionID, reason)
	if errors.Is(err, callrecord.ErrSessionNotFound) {
		return report, apperrors.NotFound("end_session", "call session not found", map[string]string{"session_id": sessionID})
	}
	return report, err
}
