package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nerrad567/devicehub/internal/device"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	// Detail carries the wrapped error text in development mode only.
	Detail string `json:"detail,omitempty"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeInternal     = "internal_error"
	ErrCodeUnavailable  = "unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeServiceError maps a service error onto a status by its kind.
// 4xx messages are the domain error text, which never carries internals.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := device.KindOf(err)
	switch kind {
	case device.KindInvalidInput:
		writeBadRequest(w, err.Error())
		return
	case device.KindNotFound:
		writeNotFound(w, err.Error())
		return
	}

	resp := Error{
		Status:  http.StatusInternalServerError,
		Code:    ErrCodeInternal,
		Message: "internal server error",
	}
	if kind == device.KindUnavailable {
		resp.Code = ErrCodeUnavailable
		resp.Message = "storage temporarily unavailable"
	}
	if s.development {
		resp.Detail = err.Error()
	}

	s.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"kind", kind.String(),
		"error", err,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
	writeJSON(w, resp.Status, resp)
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched and is accepted only when allowEmpty is set.
func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && allowEmpty:
		return nil
	case errors.Is(err, io.EOF):
		return errors.New("request body is required")
	default:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.New("request body too large")
		}
		return errors.New("invalid JSON body")
	}
}
