package scheduling

import (
	"context"
	"strings"

	"github.com/hackgods/voice-appointment-engine/internal/callrecord"
	"github.com/hackgods/voice-appointment-engine/internal/identity"
	"github.com/hackgods/voice-appointment-engine/pkg/apperrors"
)

// ResolveCaller classifies the caller and stores the outcome on the call
// record. On a directory failure the resolution is CustomerUnknown and the
// provider_unavailable error is returned alongside it.
func (e *Engine) ResolveCaller(ctx context.Context, sessionID, phone, name string) (identity.Resolution, error) {
	const op = "resolve_caller"

	var res identity.Resolution
	err := e.guard(ctx, sessionID, op, func(ctx context.Context) error {
		if strings.TrimSpace(phone) == "" && e.calls != nil {
			if rec, ok := e.calls.Snapshot(sessionID); ok {
				phone = rec.CallerPhone
			}
		}

		var err error
		res, err = e.identity.Resolve(ctx, phone, name)
		if apperrors.Is(err, apperrors.KindValidation) {
			return err
		}
		e.metrics.ObserveIdentity(string(res.CustomerType))

		e.record(sessionID, func(r *callrecord.Record) {
			r.CustomerType = string(res.CustomerType)
			if p := identity.NormalizePhone(phone); p != "" {
				r.CallerPhone = p
			}
			if strings.TrimSpace(name) != "" {
				r.CustomerName = name
			}
			if res.Record != nil {
				if r.CustomerName == "" {
					r.CustomerName = res.Record.Name
				}
				if r.CustomerEmail == "" {
					r.CustomerEmail = res.Record.Email
				}
				if res.Record.Language != "" {
					r.Language = res.Record.Language
				}
			}
		})
		return err
	})
	return res, err
}
