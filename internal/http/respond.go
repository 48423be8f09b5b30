package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"tally/internal/core"
	applog "tally/internal/log"
	"tally/internal/middleware/trace"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, status int, code, msg, field string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg, Field: field})
}

// writeError maps domain errors onto status codes. Anything unrecognised is
// logged and reported as 500 without leaking its message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fe *core.FieldError
	var be *badRequestError
	switch {
	case errors.As(err, &be):
		writeErrorCode(w, http.StatusBadRequest, "bad_request", be.msg, "")
	case errors.As(err, &fe):
		writeErrorCode(w, http.StatusUnprocessableEntity, "invalid_input", fe.Reason, fe.Field)
	case errors.Is(err, core.ErrInvalidInput):
		writeErrorCode(w, http.StatusUnprocessableEntity, "invalid_input", err.Error(), "")
	case errors.Is(err, core.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "not_found", err.Error(), "")
	case errors.Is(err, core.ErrAlreadyCheckedIn):
		writeErrorCode(w, http.StatusConflict, "already_checked_in", "already checked in today", "")
	case errors.Is(err, core.ErrConflict):
		writeErrorCode(w, http.StatusConflict, "conflict", err.Error(), "")
	case errors.Is(err, core.ErrInvalidState):
		writeErrorCode(w, http.StatusConflict, "invalid_state", err.Error(), "")
	case errors.Is(err, core.ErrForbidden):
		writeErrorCode(w, http.StatusForbidden, "forbidden", "not allowed", "")
	default:
		requestID := trace.RequestID(r)
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:     "internal",
			Message:   "internal server error",
			RequestID: requestID,
		})
	}
}

type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

// decodeJSON reads a single JSON object into dst. Syntax and type errors are
// bad requests; field validation errors raised while decoding pass through.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return &badRequestError{msg: "request body is empty"}
		}
		return &badRequestError{msg: fmt.Sprintf("malformed JSON: %v", err)}
	}
	if dec.More() {
		return &badRequestError{msg: "request body must hold a single JSON object"}
	}
	return nil
}
