package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"myinfra-hq/smartgate/pkg/gateway"
)

// RecoveryMiddleware recovers from panics in the pipeline and writes a
// 500 error envelope. The panic and stack trace are logged; no internal
// detail reaches the client.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				requestID := GetRequestID(r.Context())
				stack := debug.Stack()

				slog.ErrorContext(r.Context(), "panic in handler",
					"error", err,
					"request_id", requestID,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(stack),
				)

				gateway.WriteEnvelope(w, gateway.NewEnvelope(
					http.StatusInternalServerError,
					"An unexpected error occurred.",
					r.URL.Path,
				))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
