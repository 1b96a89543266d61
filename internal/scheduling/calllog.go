package scheduling

import (
	"context"
	"errors"
	"strings"

	"github.com/hackgods/voice-appointment-engine/internal/callrecord"
	"github.com/hackgods/voice-appointment-engine/internal/identity"
	"github.com/hackgods/voice-appointment-engine/pkg/apperrors"
)

// LogCall writes the dialogue layer's own account of the call onto the record.
// Non-empty fields overwrite; the record is persisted when the session ends.
func (e *Engine) LogCall(ctx context.Context, sessionID string, req LogRequest) error {
	const op = "log_call"

	return e.guard(ctx, sessionID, op, func(ctx context.Context) error {
		if strings.TrimSpace(req.CustomerName) == "" || strings.TrimSpace(req.CallType) == "" || strings.TrimSpace(req.Summary) == "" {
			return apperrors.Validation(op, "customer name, call type and summary are required")
		}
		var status callrecord.Status
		if req.ResolutionStatus != "" {
			st, ok := callrecord.ParseStatus(req.ResolutionStatus)
			if !ok {
				return apperrors.Validation(op, "unknown resolution status "+req.ResolutionStatus)
			}
			status = st
		}
		if e.calls == nil {
			return apperrors.Internal(op, errors.New("call records are not configured"))
		}

		err := e.calls.Update(sessionID, func(r *callrecord.Record) {
			r.CustomerName = req.CustomerName
			r.CallType = callrecord.ParseCallType(req.CallType)
			r.Summary = req.Summary
			set(&r.CallerPhone, identity.NormalizePhone(req.CustomerPhone))
			set(&r.CustomerEmail, req.CustomerEmail)
			set(&r.Department, req.Department)
			set(&r.Doctor, req.Doctor)
			set(&r.Language, req.Language)
			if status != "" {
				r.Status = status
			}
			if req.Notes != "" {
				r.AddNote("%s", req.Notes)
			}
		})
		if errors.Is(err, callrecord.ErrSessionNotFound) {
			return apperrors.NotFound(op, "call session not found", map[string]string{"session_id": sessionID})
		}
		return err
	})
}

func set(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}
