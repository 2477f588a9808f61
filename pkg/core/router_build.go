package core

import (
	"net/http"
	"time"

	chimd "github.com/go-chi/chi/v5/middleware"

	"github.com/joeydtaylor/enroute/pkg/expiry"
	hmetrics "github.com/joeydtaylor/enroute/pkg/middleware/metrics"
	httpx "github.com/joeydtaylor/enroute/pkg/transport/httpx"
)

// BuildRouter installs the shared middleware stack and /metrics on d.Router
// and returns it, ready to receive manifest routes.
func BuildRouter(d BuildDeps) httpx.Router {
	r := d.Router
	r.Use(chimd.RequestID, chimd.Recoverer, chimd.Heartbeat("/ping"))
	if d.LogMW != nil {
		r.Use(d.LogMW.Handler)
	}
	r.Use(hmetrics.Collect())
	if d.Timeout > 0 {
		r.Use(timeout(d.Timeout))
	}

	if d.Metrics != nil {
		r.Handle(http.MethodGet, "/metrics", d.Metrics)
	}
	return r
}

func timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return expiry.WithTimeout(next, d) }
}
