package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const requestLogContextKey contextKey = "request_log"

// requestLogFields collects values discovered deeper in the chain, such as the
// authenticated user, so the access log line can carry them.
type requestLogFields struct {
	userID uint
}

func annotateRequestLog(ctx context.Context, userID uint) {
	if f, ok := ctx.Value(requestLogContextKey).(*requestLogFields); ok {
		f.userID = userID
	}
}

func requestLogLevel(path string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case strings.HasPrefix(path, "/health/"):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// StructuredRequestLogger emits one "http.request" record per request. 5xx log
// at error, 4xx at warn, successful health probes at debug.
func StructuredRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		fields := &requestLogFields{}
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		r = r.WithContext(context.WithValue(r.Context(), requestLogContextKey, fields))

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ctx := r.Context()
		attrs := make([]slog.Attr, 0, 10)
		attrs = append(attrs,
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000.0),
			slog.String("request_id", chimiddleware.GetReqID(ctx)),
			slog.String("client_ip", clientIPKey(r)),
		)
		if rctx := chi.RouteContext(ctx); rctx != nil {
			attrs = append(attrs, slog.String("route", rctx.RoutePattern()))
		}
		if fields.userID != 0 {
			attrs = append(attrs, slog.Uint64("user_id", uint64(fields.userID)))
		}
		if ua := r.UserAgent(); ua != "" {
			attrs = append(attrs, slog.String("user_agent", ua))
		}
		slog.Default().LogAttrs(ctx, requestLogLevel(r.URL.Path, status), "http.request", attrs...)
	})
}
