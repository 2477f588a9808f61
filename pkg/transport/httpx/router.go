// Package httpx is the HTTP server that installed routes are registered on.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	chimd "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/joeydtaylor/enroute/pkg/chain"
	"github.com/joeydtaylor/enroute/pkg/codec"
)

// ErrDuplicateRoute is returned by Route when the verb and path are taken.
var ErrDuplicateRoute = errors.New("duplicate route")

// Router is the HTTP router contract enroute installs onto.
// NewChi implements it.
type Router interface {
	// Route registers a chain of steps for verb and path.
	Route(verb Verb, path string, steps ...chain.Step) error
	// Replace is Route without the duplicate check.
	Replace(verb Verb, path string, steps ...chain.Step) error
	// Commit registers a whole batch or, on any error, nothing.
	Commit(b Batch) error
	Registered(verb Verb, path string) bool
	Routes() []RouteInfo
	SetCaseSensitive(on bool) error

	Handle(method, path string, h http.Handler)
	Use(mw ...func(http.Handler) http.Handler)
	Mux() http.Handler
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// RouteInfo describes one registered route.
type RouteInfo struct {
	Verb Verb
	Path string
}

// Registration is one route of a Batch.
type Registration struct {
	Verb  Verb
	Path  string
	Steps []chain.Step
}

// Batch is applied by Commit entirely or not at all.
type Batch struct {
	Routes []Registration
	// Replace overwrites taken routes instead of failing.
	Replace bool
	// CaseSensitive, when set, switches path matching along with the batch.
	CaseSensitive *bool
}

// ErrorHandler renders a chain error.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Option configures NewChi.
type Option func(*chiRouter)

// WithLogger logs chain errors.
func WithLogger(l *zap.Logger) Option { return func(c *chiRouter) { c.log = l } }

// WithErrorHandler replaces the JSON error renderer.
func WithErrorHandler(h ErrorHandler) Option { return func(c *chiRouter) { c.onError = h } }

type entry struct {
	verb   Verb // empty for Handle
	method string
	path   string
	h      http.Handler
}

type snapshot struct {
	mux       *chi.Mux
	sensitive bool
}

// chiRouter keeps its registrations and rebuilds an immutable chi.Mux when
// they change, so routes can be added while requests are being served.
type chiRouter struct {
	mu        sync.Mutex
	mws       []func(http.Handler) http.Handler
	routes    map[string]RouteInfo // routeKey -> info
	entries   []entry
	sensitive bool

	snap  atomic.Pointer[snapshot]
	dirty atomic.Bool

	log     *zap.Logger
	onError ErrorHandler
}

// NewChi returns a Router backed by github.com/go-chi/chi/v5. Paths are
// case-sensitive until SetCaseSensitive(false).
func NewChi(opts ...Option) Router {
	c := &chiRouter{
		routes:    map[string]RouteInfo{},
		sensitive: true,
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.onError == nil {
		c.onError = c.writeError
	}
	c.dirty.Store(true)
	return c
}

// FoldPath lowercases the ASCII letters of a route pattern outside {}, so
// parameter names and regular expressions survive.
func FoldPath(p string) string {
	b := []byte(p)
	depth := 0
	for i, ch := range b {
		switch {
		case ch == '{':
			depth++
		case ch == '}' && depth > 0:
			depth--
		case depth == 0 && 'A' <= ch && ch <= 'Z':
			b[i] = ch + 'a' - 'A'
		}
	}
	return string(b)
}

func lowerASCII(p string) string {
	b := []byte(p)
	for i, ch := range b {
		if 'A' <= ch && ch <= 'Z' {
			b[i] = ch + 'a' - 'A'
		}
	}
	return string(b)
}

func routeKey(sensitive bool, v Verb, path string) string {
	if !sensitive {
		path = FoldPath(path)
	}
	return string(v) + " " + path
}

// rekey indexes routes under the given sensitivity. Two routes that only
// differ in case collide when sensitive is false.
func rekey(routes map[string]RouteInfo, sensitive bool) (map[string]RouteInfo, error) {
	out := make(map[string]RouteInfo, len(routes))
	for _, ri := range routes {
		k := routeKey(sensitive, ri.Verb, ri.Path)
		if prev, ok := out[k]; ok {
			return nil, fmt.Errorf("%w: %s %s and %s differ only in case", ErrDuplicateRoute, ri.Verb, prev.Path, ri.Path)
		}
		out[k] = ri
	}
	return out, nil
}

func (c *chiRouter) Route(v Verb, path string, steps ...chain.Step) error {
	return c.Commit(Batch{Routes: []Registration{{Verb: v, Path: path, Steps: steps}}})
}

func (c *chiRouter) Replace(v Verb, path string, steps ...chain.Step) error {
	return c.Commit(Batch{Routes: []Registration{{Verb: v, Path: path, Steps: steps}}, Replace: true})
}

func (c *chiRouter) Commit(b Batch) error {
	for _, r := range b.Routes {
		if !r.Verb.Valid() {
			return fmt.Errorf("route %s %s: unsupported verb", r.Verb, r.Path)
		}
		if !strings.HasPrefix(r.Path, "/") {
			return fmt.Errorf("route %s %s: path must start with /", r.Verb, r.Path)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sensitive := c.sensitive
	if b.CaseSensitive != nil {
		sensitive = *b.CaseSensitive
	}
	routes, err := rekey(c.routes, sensitive)
	if err != nil {
		return err
	}
	replaced := map[string]bool{}
	for _, r := range b.Routes {
		k := routeKey(sensitive, r.Verb, r.Path)
		if _, ok := routes[k]; ok {
			if !b.Replace {
				return fmt.Errorf("%w: %s %s", ErrDuplicateRoute, r.Verb, r.Path)
			}
			replaced[k] = true
		}
		routes[k] = RouteInfo{Verb: r.Verb, Path: r.Path}
	}

	// nothing below fails
	if len(replaced) > 0 {
		kept := make([]entry, 0, len(c.entries))
		for _, e := range c.entries {
			if e.verb != "" && replaced[routeKey(sensitive, e.verb, e.path)] {
				continue
			}
			kept = append(kept, e)
		}
		c.entries = kept
	}
	for _, r := range b.Routes {
		c.entries = append(c.entries, entry{verb: r.Verb, method: r.Verb.HTTPMethod(), path: r.Path, h: c.chainHandler(r.Steps)})
	}
	c.sensitive = sensitive
	c.routes = routes
	c.dirty.Store(true)
	return nil
}

func (c *chiRouter) Registered(v Verb, path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.routes[routeKey(c.sensitive, v, path)]
	return ok
}

func (c *chiRouter) Routes() []RouteInfo {
	c.mu.Lock()
	out := make([]RouteInfo, 0, len(c.routes))
	for _, ri := range c.routes {
		out = append(out, ri)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Verb < out[j].Verb
	})
	return out
}

// SetCaseSensitive fails with ErrDuplicateRoute, changing nothing, when
// ignoring case would merge two registered routes.
func (c *chiRouter) SetCaseSensitive(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sensitive == on {
		return nil
	}
	routes, err := rekey(c.routes, on)
	if err != nil {
		c.log.Warn("case sensitivity unchanged", zap.Bool("caseSensitive", on), zap.Error(err))
		return err
	}
	c.sensitive = on
	c.routes = routes
	c.dirty.Store(true)
	return nil
}

func (c *chiRouter) Handle(method, path string, h http.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry{method: strings.ToUpper(method), path: path, h: h})
	c.dirty.Store(true)
}

func (c *chiRouter) Use(mw ...func(http.Handler) http.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mws = append(c.mws, mw...)
	c.dirty.Store(true)
}

func (c *chiRouter) Mux() http.Handler { return c }

// ServeHTTP routes case-insensitively by handing chi a folded route path
// while the request itself, and so every URL parameter, keeps its case.
func (c *chiRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s := c.current()
	if !s.sensitive {
		rctx := chi.NewRouteContext()
		rctx.Routes = s.mux
		rctx.RoutePath = matchPath(s.mux, r)
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	s.mux.ServeHTTP(w, r)
}

// matchPath is the request path with each static segment of the matching
// route pattern in its folded form. Parameter segments keep the request's
// bytes; a parameter sharing a segment with static text is folded with it.
func matchPath(m *chi.Mux, r *http.Request) string {
	p := r.URL.RawPath
	if p == "" {
		p = r.URL.Path
	}
	if p == "" {
		p = "/"
	}
	folded := lowerASCII(p)
	pattern := m.Find(chi.NewRouteContext(), r.Method, folded)
	if pattern == "" {
		return folded
	}

	ps, rs := strings.Split(pattern, "/"), strings.Split(p, "/")
	out := make([]string, 0, len(rs))
	for i, seg := range ps {
		if seg == "*" && i == len(ps)-1 && i <= len(rs) {
			return strings.Join(append(out, rs[i:]...), "/")
		}
		if i >= len(rs) {
			return folded
		}
		switch {
		case !strings.ContainsAny(seg, "{*"):
			out = append(out, seg)
		case isParam(seg):
			out = append(out, rs[i])
		default:
			out = append(out, lowerASCII(rs[i]))
		}
	}
	if len(ps) != len(rs) {
		return folded
	}
	return strings.Join(out, "/")
}

func isParam(seg string) bool {
	return strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") && strings.Count(seg, "{") == 1
}

func (c *chiRouter) current() *snapshot {
	if !c.dirty.Load() {
		return c.snap.Load()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dirty.Load() {
		c.snap.Store(&snapshot{mux: c.build(), sensitive: c.sensitive})
		c.dirty.Store(false)
	}
	return c.snap.Load()
}

// build must be called with mu held.
func (c *chiRouter) build() *chi.Mux {
	m := chi.NewRouter()
	m.Use(c.mws...)
	for _, e := range c.entries {
		p := e.path
		if !c.sensitive {
			p = FoldPath(p)
		}
		m.Method(e.method, p, e.h)
	}
	return m
}

func (c *chiRouter) chainHandler(steps []chain.Step) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimd.NewWrapResponseWriter(w, r.ProtoMajor)
		err := chain.Run(ww, r, steps)
		if err == nil {
			return
		}
		c.log.Warn("route error",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		if ww.Status() != 0 {
			// headers already sent; nothing sensible left to write
			return
		}
		c.onError(ww, r, err)
	})
}

func (c *chiRouter) writeError(w http.ResponseWriter, _ *http.Request, err error) {
	WriteError(w, err)
}

// WriteError renders err as {"error": "..."} with the status the error
// carries, or 500.
func WriteError(w http.ResponseWriter, err error) {
	body, mErr := codec.JSONStrict.Marshal(map[string]string{"error": err.Error()})
	if mErr != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", codec.JSONStrict.ContentType())
	w.WriteHeader(chain.StatusOf(err, http.StatusInternalServerError))
	_, _ = w.Write(body)
}
