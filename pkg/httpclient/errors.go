package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/fittingroom/storefront/pkg/errors"
)

const maxErrorBody = 1 << 20

// StatusError reports a 5xx response consumed by the circuit breaker.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

// errorBody covers the error shapes catalog upstreams answer with:
// {"error": "msg"} and {"error": {"code": ..., "message": ...}}.
type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

// ExtractMessage pulls a human-readable message out of an error body, falling
// back to the trimmed raw text.
func ExtractMessage(body []byte) string {
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		if len(eb.Error) > 0 {
			var s string
			if json.Unmarshal(eb.Error, &s) == nil && s != "" {
				return s
			}
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(eb.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
		}
		if eb.Message != "" {
			return eb.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an upstream AppError. The body is consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return apperrors.Upstream(resp.StatusCode,
			fmt.Sprintf("%s returned status %d", serviceName, resp.StatusCode))
	}

	msg := ExtractMessage(body)
	if msg == "" {
		msg = fmt.Sprintf("%s returned status %d", serviceName, resp.StatusCode)
	}
	return apperrors.Upstream(resp.StatusCode, msg)
}

// UpstreamFromStatus converts a breaker StatusError into an upstream AppError.
func UpstreamFromStatus(se *StatusError, serviceName string) error {
	msg := se.Message
	if msg == "" {
		msg = fmt.Sprintf("%s returned status %d", serviceName, se.StatusCode)
	}
	return apperrors.Upstream(se.StatusCode, msg)
}
