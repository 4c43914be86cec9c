package middleware

import (
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/photo-finder/internal/logger"
)

// RequestLogger logs every request through the zap logger once it has been
// served. It expects chi's RequestID middleware to run first.
func RequestLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				payload := []logger.LoggerOptions{
					{Key: "method", Data: r.Method},
					{Key: "path", Data: r.URL.Path},
					{Key: "status", Data: status},
					{Key: "bytes", Data: ww.BytesWritten()},
					{Key: "duration", Data: time.Since(start)},
					{Key: "request_id", Data: chiMiddleware.GetReqID(r.Context())},
					{Key: "remote", Data: r.RemoteAddr},
				}
				if status >= http.StatusInternalServerError {
					logger.Error("request failed", payload...)
					return
				}
				logger.Info("request served", payload...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
