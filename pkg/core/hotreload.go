package core

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/joeydtaylor/enroute/pkg/chain"
	"github.com/joeydtaylor/enroute/pkg/loader"
	hmetrics "github.com/joeydtaylor/enroute/pkg/middleware/metrics"
)

// reloadConfig is shared by every hot-reloading route of one install.
type reloadConfig struct {
	base      string // resolved; artifacts under it are dropped per request
	exclude   string // resolved; artifacts under it stay cached
	cache     *loader.Cache
	pre, post []chain.Step
	guard     chain.Step
	log       *zap.Logger
}

func newReloadConfig(base string, opts InstallOptions, guard chain.Step, log *zap.Logger) (*reloadConfig, error) {
	rc := &reloadConfig{
		cache: opts.Cache,
		pre:   opts.Pre,
		post:  opts.Post,
		guard: guard,
		log:   log,
	}
	var err error
	if rc.base, err = loader.ResolvePath(base, "."); err != nil {
		return nil, err
	}
	if opts.ExcludePath != "" {
		if rc.exclude, err = loader.ResolvePath(base, opts.ExcludePath); err != nil {
			return nil, err
		}
	}
	if rc.cache == nil {
		if rc.cache, err = loader.NewCache(opts.Loader, loader.DefaultCacheSize); err != nil {
			return nil, err
		}
	}
	return rc, nil
}

// step is the single step registered for a hot-reloading route. Each request
// drops cached artifacts under the base path (except the excluded ones),
// reloads the route's source and runs it composed like a static route.
// Concurrent requests race on invalidation; the last one wins.
func (rc *reloadConfig) step(rt ResolvedRoute) chain.Step {
	return func(w http.ResponseWriter, r *http.Request) error {
		dropped := rc.cache.Invalidate(rc.base, rc.exclude)
		steps, err := rc.cache.Load(r.Context(), rt.Source)
		hmetrics.ObserveReload(rt.Path, rt.Method, err == nil)
		if err == nil && len(steps) == 0 {
			err = loader.ErrShape
		}
		if err != nil {
			rc.log.Error("hot reload failed",
				zap.String("path", rt.Path),
				zap.String("method", rt.Method),
				zap.String("source", rt.Source),
				zap.Error(err),
			)
			return &ResolveError{Route: rt.Name, Method: rt.Method, Source: rt.Source, Err: err}
		}
		rc.log.Debug("hot reload",
			zap.String("path", rt.Path),
			zap.String("method", rt.Method),
			zap.Int("dropped", dropped),
		)
		return chain.Run(w, r, chain.Build(rc.pre, steps, rc.post, rc.guard))
	}
}
