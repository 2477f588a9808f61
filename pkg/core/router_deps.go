package core

import (
	"net/http"
	"time"

	"github.com/joeydtaylor/enroute/pkg/middleware/logger"
	httpx "github.com/joeydtaylor/enroute/pkg/transport/httpx"
)

// BuildDeps is what BuildRouter needs to prepare a server for installs.
type BuildDeps struct {
	LogMW   *logger.Middleware
	Metrics http.Handler
	Router  httpx.Router
	// Timeout bounds every request's context; zero leaves it unbounded.
	Timeout time.Duration
}
