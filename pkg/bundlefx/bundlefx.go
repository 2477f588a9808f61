// bundlefx/bundlefx.go
package bundlefx

import (
	"go.uber.org/fx"

	"github.com/joeydtaylor/enroute/pkg/loader"
	"github.com/joeydtaylor/enroute/pkg/middleware/logger"
	"github.com/joeydtaylor/enroute/pkg/middleware/metrics"
)

// Module provides the system logger, the access-log middleware, the
// /metrics handler and the artifact loaders.
var Module = fx.Options(
	logger.Module,
	metrics.Module,
	fx.Provide(loader.NewRegistry),
	fx.Provide(ProvideLoader),
)

// ProvideLoader serves compiled-in handlers from reg and interprets every
// other source as a Go script.
func ProvideLoader(reg *loader.Registry) loader.Loader {
	return loader.Fallback(reg, loader.NewScript())
}
