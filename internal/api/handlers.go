package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/voice-appointment-engine/internal/callrecord"
	"github.com/hackgods/voice-appointment-engine/internal/identity"
	"github.com/hackgods/voice-appointment-engine/internal/scheduling"
	"github.com/hackgods/voice-appointment-engine/pkg/apperrors"
)

// Engine is what the dialogue front end can call.
type Engine interface {
	StartSession(sessionID, callerPhone string) (callrecord.Record, error)
	EndSession(ctx context.Context, sessionID string, reason callrecord.EndReason) (callrecord.Report, error)
	ResolveCaller(ctx context.Context, sessionID, phone, name string) (identity.Resolution, error)
	CheckAvailability(ctx context.Context, sessionID string, req scheduling.AppointmentRequest) (*scheduling.AvailabilityResult, error)
	Book(ctx context.Context, sessionID string, req scheduling.BookingRequest) (*scheduling.BookingResult, error)
	Cancel(ctx context.Context, sessionID string, req scheduling.CancelRequest) (*scheduling.CancellationResult, error)
	LogCall(ctx context.Context, sessionID string, req scheduling.LogRequest) error
}

type handlers struct {
	engine Engine
	logger zerolog.Logger
}

func (h *handlers) startSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if !decode(w, r, &req) {
		return
	}

	rec, err := h.engine.StartSession(req.SessionID, req.CallerPhone)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, SessionResponse{
		SessionID: rec.SessionID,
		CallID:    rec.CallID,
		Status:    string(rec.Status),
		StartedAt: rec.StartedAt,
	})
}

func (h *handlers) resolveIdentity(w http.ResponseWriter, r *http.Request) {
	var req IdentityRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.engine.ResolveCaller(r.Context(), chi.URLParam(r, "id"), req.Phone, req.Name)
	resp := IdentityResponse{
		CustomerType: string(res.CustomerType),
		SkipEmail:    res.SkipEmail,
		Patient:      res.Record,
	}

	// an unreachable directory still yields a usable answer: treat the caller as new
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Kind == apperrors.KindProviderUnavailable && res.CustomerType == identity.CustomerUnknown {
		resp.Warning = &WarningResponse{Kind: string(appErr.Kind), Message: appErr.Message}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) checkAvailability(w http.ResponseWriter, r *http.Request) {
	var req AvailabilityRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.engine.CheckAvailability(r.Context(), chi.URLParam(r, "id"), scheduling.AppointmentRequest{
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	conflicts := make([]ConflictResponse, 0, len(res.Conflicts))
	for _, c := range res.ConflictSlots() {
		conflicts = append(conflicts, ConflictResponse{Start: c.Start, End: c.End, Description: c.Description()})
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		Available:    res.Available,
		Requested:    toSlot(res.Requested),
		Conflicts:    conflicts,
		Alternatives: toSlots(res.Alternatives),
	})
}

func (h *handlers) book(w http.ResponseWriter, r *http.Request) {
	var req BookingRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.engine.Book(r.Context(), chi.URLParam(r, "id"), scheduling.BookingRequest{
		Appointment: scheduling.AppointmentRequest{Date: req.Date, Time: req.Time},
		Patient:     req.Patient,
		Doctor:      req.Doctor,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	resp := BookingResponse{
		Booked:  res.Booked,
		EventID: res.EventID,
		Slot:    toSlot(res.Slot),
		Warning: toWarning(res.Warning),
	}
	if !res.Booked {
		resp.Alternatives = toSlots(res.Alternatives)
		writeJSON(w, http.StatusOK, resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	var req scheduling.CancelRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.engine.Cancel(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CancellationResponse{
		Cancelled: res.Cancelled,
		EventID:   res.EventID,
		Slot:      toSlot(res.Slot),
		Warning:   toWarning(res.Warning),
	})
}

func (h *handlers) logCall(w http.ResponseWriter, r *http.Request) {
	var req scheduling.LogRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.engine.LogCall(r.Context(), chi.URLParam(r, "id"), req); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) endSession(w http.ResponseWriter, r *http.Request) {
	var req EndSessionRequest
	if !decode(w, r, &req) {
		return
	}

	reason := callrecord.EndHangup
	if req.Reason != "" {
		parsed, ok := callrecord.ParseEndReason(req.Reason)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_reason", "reason must be hangup, transport_error or pipeline_error", nil)
			return
		}
		reason = parsed
	}

	report, err := h.engine.EndSession(r.Context(), chi.URLParam(r, "id"), reason)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, EndSessionResponse{
		CallID:          report.Record.CallID,
		Status:          string(report.Record.Status),
		Summary:         report.Record.Summary,
		DurationSeconds: report.Record.DurationSeconds,
		FailedSinks:     report.Failed(),
	})
}

// writeEngineError maps error kinds to status codes. Internal errors never
// leak their cause to the caller.
func (h *handlers) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal("api", err)
	}

	switch appErr.Kind {
	case apperrors.KindValidation:
		writeError(w, http.StatusBadRequest, string(appErr.Kind), appErr.Message, nil)
	case apperrors.KindNotFound:
		writeError(w, http.StatusNotFound, string(appErr.Kind), appErr.Message, appErr.Details)
	case apperrors.KindProviderUnavailable:
		writeError(w, http.StatusServiceUnavailable, string(appErr.Kind), appErr.Message, nil)
	default:
		h.logger.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, string(apperrors.KindInternal), "something went wrong, please try again", nil)
	}
}

// decode reads a JSON body. An empty body decodes to the zero value.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON", nil)
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message, Details: details})
}
