package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/fittingroom/storefront/pkg/errors"
)

func fakeResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestExtractMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"flat error", `{"error":"Product not found"}`, "Product not found"},
		{"nested error", `{"error":{"code":"NOT_FOUND","message":"no such product"}}`, "no such product"},
		{"message field", `{"message":"index missing"}`, "index missing"},
		{"plain text", "  upstream exploded \n", "upstream exploded"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractMessage([]byte(tt.body)))
		})
	}
}

func TestExtractMessage_TruncatesLongText(t *testing.T) {
	assert.Len(t, ExtractMessage([]byte(strings.Repeat("x", 500))), 200)
}

func TestParseResponseError_NotFound(t *testing.T) {
	err := ParseResponseError(fakeResponse(http.StatusNotFound, `{"error":"Product not found"}`), "catalog")

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, "Product not found", appErr.Message)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestParseResponseError_OtherStatusesBecomeBadGateway(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusForbidden, http.StatusTooManyRequests} {
		err := ParseResponseError(fakeResponse(status, ""), "catalog")

		var appErr *apperrors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, http.StatusBadGateway, appErr.Status)
		assert.Contains(t, appErr.Message, "catalog returned status")
	}
}

func TestUpstreamFromStatus(t *testing.T) {
	err := UpstreamFromStatus(&StatusError{StatusCode: 500}, "catalog")
	assert.Equal(t, http.StatusBadGateway, apperrors.HTTPStatus(err))
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}
