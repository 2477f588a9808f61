package core

import (
	"fmt"
	"strings"

	httpx "github.com/joeydtaylor/enroute/pkg/transport/httpx"
)

// ResolveError reports the route whose handler could not be resolved.
type ResolveError struct {
	Route  string
	Method string
	Source string
	Err    error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("route %q %s (%s): %v", e.Route, e.Method, e.Source, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// DuplicateRouteError is returned when two manifest entries, or a manifest
// entry and an already registered route, share a verb and path.
type DuplicateRouteError struct {
	Verb     httpx.Verb
	Path     string
	Routes   []string // manifest route names involved
	Existing bool     // the server already had the route
}

func (e *DuplicateRouteError) Error() string {
	if e.Existing {
		return fmt.Sprintf("duplicate route %s %s: already registered on the server", e.Verb, e.Path)
	}
	return fmt.Sprintf("duplicate route %s %s: declared by %s", e.Verb, e.Path, strings.Join(e.Routes, ", "))
}

func (e *DuplicateRouteError) Is(target error) bool { return target == httpx.ErrDuplicateRoute }
