package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/fittingroom/storefront/pkg/errors"
	"github.com/fittingroom/storefront/pkg/logger"
)

// ErrorInfo is the client-facing description of a failed request.
type ErrorInfo struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// Describe maps err to a status, a stable code and a message safe to show to
// clients. Internal failures never leak their cause.
func Describe(err error) ErrorInfo {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg := appErr.Message
		if appErr.Status >= http.StatusInternalServerError && appErr.Code == "INTERNAL_ERROR" {
			msg = "an internal error occurred"
		}
		return ErrorInfo{Status: appErr.Status, Code: appErr.Code, Message: msg}
	}

	info := ErrorInfo{
		Status:  apperrors.HTTPStatus(err),
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	}
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		info.Code, info.Message = "NOT_FOUND", "resource not found"
	case errors.Is(err, apperrors.ErrInvalidInput):
		info.Code, info.Message = "INVALID_INPUT", err.Error()
	case errors.Is(err, apperrors.ErrServiceUnavail):
		info.Code, info.Message = "BACKEND_UNAVAILABLE", "catalog backend is unavailable"
	case errors.Is(err, apperrors.ErrUpstream):
		info.Code, info.Message = "UPSTREAM_ERROR", "catalog upstream returned an error"
	}
	return info
}

// WriteError writes `{"error": ..., "code": ...}` for err.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	WriteErrorWith(w, r, err, fallback, nil)
}

// WriteErrorWith writes the error description merged into body, so list
// endpoints can answer with their empty collection alongside the error.
// Server-side failures are logged with the request-scoped logger when the
// RequestLogger middleware is mounted, the fallback logger otherwise.
func WriteErrorWith(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger, body map[string]any) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	info := Describe(err)
	info.RequestID = logger.CorrelationIDFromContext(r.Context())

	if info.Status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("code", info.Code),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	out := make(map[string]any, len(body)+3)
	for k, v := range body {
		out[k] = v
	}
	out["error"] = info.Message
	out["code"] = info.Code
	if info.RequestID != "" {
		out["request_id"] = info.RequestID
	}
	WriteJSON(w, info.Status, out)
}
