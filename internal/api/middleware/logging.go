package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Logger emits one structured line per request: status, byte counts in both
// directions, latency, source address, and whether the rate limiter tripped.
// Server faults log at error level so crash-looping handlers stand out from
// ordinary protocol traffic.
func Logger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			evt := logger.Info()
			if ww.Status() >= 500 {
				evt = logger.Error()
			}
			evt.Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("ip", RealIP(r)).
				Str("request_id", chimw.GetReqID(r.Context())).
				Int("status", ww.Status()).
				Int64("req_bytes", r.ContentLength).
				Int("resp_bytes", ww.BytesWritten()).
				Bool("rate_limited", ww.Status() == http.StatusTooManyRequests).
				Dur("latency", time.Since(start)).
				Msg("request")
		})
	}
}
