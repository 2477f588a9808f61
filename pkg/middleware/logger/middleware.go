// Package logger builds enroute's zap loggers and the HTTP access log.
package logger

import (
	"bytes"
	"io"
	"net/http"
	"time"

	chimd "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Middleware writes one access log line per request.
type Middleware struct{}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := accessLogger()

		ww := chimd.NewWrapResponseWriter(w, r.ProtoMajor)

		// Read and restore the body so handlers can still consume it.
		var body []byte
		if r.Body != nil && shouldReadBody(r) {
			if b, err := io.ReadAll(r.Body); err == nil {
				body = b
			}
			r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}

		start := time.Now()
		defer func() {
			log := l.With(
				zap.String("requestId", chimd.GetReqID(r.Context())),
				zap.String("httpScheme", scheme),
				zap.String("httpProto", r.Proto),
				zap.String("httpMethod", r.Method),
				zap.String("remoteAddr", r.RemoteAddr),
				zap.String("uri", r.URL.Path),
				zap.Duration("lat", time.Since(start)),
				zap.Int("responseSize", ww.BytesWritten()),
				zap.Int("status", ww.Status()),
			)

			// Redact by default; allowlist small JSON bodies only.
			if shouldLogBody(r, body) {
				log.Info("request", zap.ByteString("requestData", body))
			} else {
				log.Info("request")
			}
		}()

		next.ServeHTTP(ww, r)
	})
}
