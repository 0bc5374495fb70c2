package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/logger"
)

// LoggingMiddleware writes one access log line per request. Handlers find
// a request-scoped logger and the audit request metadata in the context.
type LoggingMiddleware struct {
	logger zerolog.Logger
}

// NewLoggingMiddleware creates a new LoggingMiddleware.
func NewLoggingMiddleware(logger zerolog.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger}
}

// Wrap wraps an http.Handler with logging.
func (m *LoggingMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := chimw.GetReqID(r.Context())
		ip := ClientIP(r)

		ctx := logger.WithRequest(r.Context(), m.logger, reqID, "")
		ctx = domain.ContextWithRequestMeta(ctx, domain.RequestMeta{
			IPAddress: ip,
			UserAgent: r.UserAgent(),
			RequestID: reqID,
		})

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		status := responseStatus(ww)

		m.logger.WithLevel(accessLevel(status)).
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote_addr", ip).
			Msg("request completed")
	})
}

func accessLevel(status int) zerolog.Level {
	switch {
	case status >= 500:
		return zerolog.ErrorLevel
	case status >= 400:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// responseStatus reports 200 for handlers that never wrote a header.
func responseStatus(ww chimw.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}
