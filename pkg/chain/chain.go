// Package chain models a route handler as an ordered sequence of steps.
package chain

import (
	"errors"
	"net/http"
)

// Step is one element of a handler chain. Returning nil continues with the
// next step, ErrHalt ends the chain quietly, any other error ends it and is
// handed back to the server for rendering.
type Step func(w http.ResponseWriter, r *http.Request) error

// ErrHalt stops a chain without reporting an error.
var ErrHalt = errors.New("chain: halt")

// StatusCoder lets an error pick the HTTP status it is rendered with.
type StatusCoder interface {
	StatusCode() int
}

// Run executes steps in order.
func Run(w http.ResponseWriter, r *http.Request, steps []Step) error {
	for _, s := range steps {
		if s == nil {
			continue
		}
		if err := s(w, r); err != nil {
			if errors.Is(err, ErrHalt) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Interleave returns a new sequence with guard inserted between every
// adjacent pair of steps. A nil guard returns a copy of steps.
func Interleave(steps []Step, guard Step) []Step {
	if guard == nil || len(steps) < 2 {
		return append([]Step(nil), steps...)
	}
	out := make([]Step, 0, len(steps)*2-1)
	for i, s := range steps {
		if i > 0 {
			out = append(out, guard)
		}
		out = append(out, s)
	}
	return out
}

// Build concatenates pre, handler and post, then interleaves guard.
func Build(pre, handler, post []Step, guard Step) []Step {
	all := make([]Step, 0, len(pre)+len(handler)+len(post))
	all = append(all, pre...)
	all = append(all, handler...)
	all = append(all, post...)
	return Interleave(all, guard)
}

// StatusOf reports the status err asks for, or def.
func StatusOf(err error, def int) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		if c := sc.StatusCode(); c > 0 {
			return c
		}
	}
	return def
}
