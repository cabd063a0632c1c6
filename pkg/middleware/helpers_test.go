package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"github.com/fittingroom/storefront/pkg/logger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bufferLogger(buf *bytes.Buffer, level string) *slog.Logger {
	return logger.NewWithWriter("test-svc", level, logger.FormatJSON, buf)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
