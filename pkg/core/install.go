// Package core resolves a validated manifest into handler chains and
// registers them on a server.
package core

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joeydtaylor/enroute/pkg/chain"
	"github.com/joeydtaylor/enroute/pkg/expiry"
	"github.com/joeydtaylor/enroute/pkg/loader"
	"github.com/joeydtaylor/enroute/pkg/manifest"
	hmetrics "github.com/joeydtaylor/enroute/pkg/middleware/metrics"
	httpx "github.com/joeydtaylor/enroute/pkg/transport/httpx"
)

// Server is where resolved routes are registered.
type Server interface {
	Route(verb httpx.Verb, path string, steps ...chain.Step) error
	Registered(verb httpx.Verb, path string) bool
}

// Replacer is implemented by servers that can overwrite a route. Install uses
// it when AllowDuplicateRoutes is set.
type Replacer interface {
	Replace(verb httpx.Verb, path string, steps ...chain.Step) error
}

// Committer is implemented by servers that register a batch atomically.
// Installs onto other servers register route by route once every check has
// passed, so only the server's own Route can fail part way.
type Committer interface {
	Commit(b httpx.Batch) error
}

type routeLister interface {
	Routes() []httpx.RouteInfo
}

// InstallOptions configures Install. Exactly one of Config and Raw is set.
type InstallOptions struct {
	Config *manifest.Config
	Raw    map[string]any // validated with manifest.Parse

	Server   Server
	BasePath string // overrides Config.BasePath
	// Prefix is prepended to every route path: route "gettest" under
	// "/website/test" serves /website/test/gettest.
	Prefix string

	Pre  []chain.Step
	Post []chain.Step
	// Expiry guards the gaps between steps. A route made of a single
	// handler and no Pre or Post has no gap, so its handler always runs.
	Expiry *expiry.Config

	// HotReload is OR-ed with Config.HotReload.
	HotReload bool
	// ExcludePath keeps artifacts under it cached across hot reloads.
	ExcludePath string

	AllowDuplicateRoutes bool

	Loader loader.Loader
	// Cache backs hot reload. A private one over Loader is used when nil.
	Cache *loader.Cache

	// Concurrency bounds parallel artifact loads; GOMAXPROCS when <= 0.
	Concurrency int
	Logger      *zap.Logger
}

// ResolvedRoute is one (route, method) pair ready to register.
type ResolvedRoute struct {
	Name   string
	Path   string
	Method string
	Verb   httpx.Verb
	Source string
	Steps  []chain.Step
}

func (o InstallOptions) config() (*manifest.Config, error) {
	switch {
	case o.Config != nil && o.Raw != nil:
		return nil, fmt.Errorf("%w: Config and Raw are mutually exclusive", manifest.ErrUsage)
	case o.Config != nil:
		return o.Config.Clone(), nil
	case o.Raw != nil:
		return manifest.Parse(manifest.ParseOptions{Config: o.Raw, BasePath: o.BasePath})
	}
	return nil, fmt.Errorf("%w: must specify Config or Raw", manifest.ErrUsage)
}

func (o InstallOptions) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// mountPlan is one InstallOptions checked and expanded into routes.
type mountPlan struct {
	opts   InstallOptions
	base   string
	hot    bool
	guard  chain.Step
	cs     *bool
	routes []ResolvedRoute
	proxy  *reloadConfig
}

func plan(opts InstallOptions) (*mountPlan, error) {
	if opts.Server == nil {
		return nil, fmt.Errorf("%w: Server is required", manifest.ErrUsage)
	}
	if opts.Loader == nil && opts.Cache == nil {
		return nil, fmt.Errorf("%w: Loader is required", manifest.ErrUsage)
	}
	cfg, err := opts.config()
	if err != nil {
		return nil, err
	}

	p := &mountPlan{opts: opts, base: opts.BasePath, hot: opts.HotReload || cfg.HotReload, cs: cfg.CaseSensitive}
	if p.base == "" {
		p.base = cfg.BasePath
	}
	if p.base == "" {
		return nil, fmt.Errorf("%w: no base path (set InstallOptions.BasePath or the manifest basePath)", manifest.ErrUsage)
	}
	if opts.Expiry != nil {
		if err := opts.Expiry.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", manifest.ErrUsage, err)
		}
		p.guard = opts.Expiry.Guard()
	}

	if p.routes, err = Routes(cfg, p.base); err != nil {
		return nil, err
	}
	if opts.Prefix != "" {
		for i := range p.routes {
			p.routes[i].Path = manifest.NormalizePath(opts.Prefix + "/" + p.routes[i].Path)
		}
	}
	if p.hot {
		if p.proxy, err = newReloadConfig(p.base, opts, p.guard, opts.logger()); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Install resolves every route of the manifest and, only when all of them
// resolved, registers them on the server. A failed install registers nothing.
func Install(ctx context.Context, opts InstallOptions) error {
	return InstallAll(ctx, opts)
}

// InstallAll installs several manifests onto one server as a unit: every
// route of every mount is resolved before any is registered, duplicates are
// checked across mounts, and a failure registers nothing. Duplicates are
// allowed only when every mount sets AllowDuplicateRoutes; the last one in
// mount order, then route order, wins.
func InstallAll(ctx context.Context, mounts ...InstallOptions) (err error) {
	if len(mounts) == 0 {
		return fmt.Errorf("%w: nothing to install", manifest.ErrUsage)
	}
	srv := mounts[0].Server
	log := mounts[0].logger()
	var routes []ResolvedRoute
	defer func() { hmetrics.ObserveInstall(err == nil, len(routes)) }()

	plans := make([]*mountPlan, 0, len(mounts))
	allow := true
	var cs *bool
	for _, m := range mounts {
		p, err := plan(m)
		if err != nil {
			return err
		}
		if m.Server != srv {
			return fmt.Errorf("%w: every mount must use the same Server", manifest.ErrUsage)
		}
		if p.cs != nil {
			if cs != nil && *cs != *p.cs {
				return fmt.Errorf("%w: mounts disagree on caseSensitive", manifest.ErrUsage)
			}
			cs = p.cs
		}
		allow = allow && m.AllowDuplicateRoutes
		plans = append(plans, p)
	}

	for _, p := range plans {
		if err := resolve(ctx, p); err != nil {
			log.Error("install failed", zap.String("basePath", p.base), zap.Error(err))
			return err
		}
		for _, rt := range p.routes {
			if !p.hot {
				rt.Steps = chain.Build(p.opts.Pre, rt.Steps, p.opts.Post, p.guard)
			}
			routes = append(routes, rt)
		}
	}

	fold := cs != nil && !*cs
	if routes, err = dedupe(routes, srv, allow, fold); err != nil {
		log.Error("install failed", zap.Error(err))
		return err
	}
	if err = commit(srv, routes, cs, allow, log); err != nil {
		log.Error("install failed", zap.Error(err))
		return err
	}

	for _, rt := range routes {
		log.Info("route installed",
			zap.String("verb", string(rt.Verb)),
			zap.String("path", rt.Path),
			zap.String("source", rt.Source),
		)
	}
	return nil
}

// resolve fills in Steps for every route of p. It returns after all loads
// have finished, with the first failure.
func resolve(ctx context.Context, p *mountPlan) error {
	opts := p.opts
	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	var ld loader.Loader = opts.Cache
	if opts.Loader != nil {
		ld = opts.Loader
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range p.routes {
		rt := &p.routes[i]
		g.Go(func() error {
			fail := func(err error) error {
				return &ResolveError{Route: rt.Name, Method: rt.Method, Source: rt.Source, Err: err}
			}
			if err := gctx.Err(); err != nil {
				return fail(err)
			}
			if p.proxy != nil {
				if err := loader.Stat(ld, rt.Source); err != nil {
					return fail(err)
				}
				rt.Steps = []chain.Step{p.proxy.step(*rt)}
				return nil
			}
			steps, err := ld.Load(gctx, rt.Source)
			if err != nil {
				return fail(err)
			}
			if len(steps) == 0 {
				return fail(loader.ErrShape)
			}
			rt.Steps = steps
			return nil
		})
	}
	return g.Wait()
}

func routeKey(v httpx.Verb, path string, fold bool) string {
	if fold {
		path = httpx.FoldPath(path)
	}
	return string(v) + " " + path
}

// registered reports routes already on srv, compared the way the install
// will compare them once its case sensitivity applies.
func registered(srv Server, fold bool) func(httpx.Verb, string) bool {
	if l, ok := srv.(routeLister); ok && fold {
		taken := map[string]bool{}
		for _, ri := range l.Routes() {
			taken[routeKey(ri.Verb, ri.Path, true)] = true
		}
		return func(v httpx.Verb, path string) bool { return taken[routeKey(v, path, true)] }
	}
	return srv.Registered
}

// dedupe rejects repeated (verb, path) pairs unless allow is set, in which
// case the last one wins.
func dedupe(routes []ResolvedRoute, srv Server, allow, fold bool) ([]ResolvedRoute, error) {
	taken := registered(srv, fold)
	seen := make(map[string]int, len(routes))
	out := make([]ResolvedRoute, 0, len(routes))
	for _, rt := range routes {
		k := routeKey(rt.Verb, rt.Path, fold)
		if i, ok := seen[k]; ok {
			if !allow {
				return nil, &DuplicateRouteError{Verb: rt.Verb, Path: rt.Path, Routes: []string{out[i].Name, rt.Name}}
			}
			out[i] = rt
			continue
		}
		if !allow && taken(rt.Verb, rt.Path) {
			return nil, &DuplicateRouteError{Verb: rt.Verb, Path: rt.Path, Routes: []string{rt.Name}, Existing: true}
		}
		seen[k] = len(out)
		out = append(out, rt)
	}
	return out, nil
}

// commit registers routes and applies cs, atomically when srv is a
// Committer.
func commit(srv Server, routes []ResolvedRoute, cs *bool, allow bool, log *zap.Logger) error {
	if c, ok := srv.(Committer); ok {
		b := httpx.Batch{Replace: allow, CaseSensitive: cs, Routes: make([]httpx.Registration, 0, len(routes))}
		for _, rt := range routes {
			b.Routes = append(b.Routes, httpx.Registration{Verb: rt.Verb, Path: rt.Path, Steps: rt.Steps})
		}
		return c.Commit(b)
	}

	if cs != nil {
		if c, ok := srv.(httpx.CaseSensitivityConfigurer); ok {
			if err := c.SetCaseSensitive(*cs); err != nil {
				return err
			}
		} else {
			log.Warn("server does not support caseSensitive; ignored", zap.Bool("caseSensitive", *cs))
		}
	}
	for _, rt := range routes {
		if err := register(srv, rt, allow); err != nil {
			return fmt.Errorf("register %s %s: %w", rt.Verb, rt.Path, err)
		}
	}
	return nil
}

func register(srv Server, rt ResolvedRoute, allow bool) error {
	if allow {
		if rep, ok := srv.(Replacer); ok {
			return rep.Replace(rt.Verb, rt.Path, rt.Steps...)
		}
	}
	return srv.Route(rt.Verb, rt.Path, rt.Steps...)
}

// Routes lists the normalized routes of cfg with sources resolved against
// base, sorted by path, verb and name. Nothing is loaded.
func Routes(cfg *manifest.Config, base string) ([]ResolvedRoute, error) {
	out := make([]ResolvedRoute, 0, cfg.Count())
	for _, name := range cfg.RouteNames() {
		methods := cfg.Routes[name]
		for _, m := range methods.Methods() {
			spec := methods[m]
			fail := func(err error) error {
				return &ResolveError{Route: name, Method: m, Source: spec.Source, Err: err}
			}
			method, err := manifest.NormalizeMethod(m)
			if err != nil {
				return nil, fail(err)
			}
			verb, err := httpx.VerbFor(method)
			if err != nil {
				return nil, fail(err)
			}
			if strings.TrimSpace(spec.Source) == "" {
				return nil, fail(fmt.Errorf("empty source"))
			}
			src, err := loader.ResolvePath(base, spec.Source)
			if err != nil {
				return nil, fail(err)
			}
			out = append(out, ResolvedRoute{
				Name:   name,
				Path:   manifest.NormalizePath(name),
				Method: method,
				Verb:   verb,
				Source: src,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Verb != b.Verb {
			return a.Verb < b.Verb
		}
		return a.Name < b.Name
	})
	return out, nil
}
