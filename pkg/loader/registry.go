package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/joeydtaylor/enroute/pkg/chain"
)

// Registry serves handlers compiled into the binary, keyed by the absolute
// path a manifest source resolves to.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]chain.Step
}

func NewRegistry() *Registry { return &Registry{handlers: map[string][]chain.Step{}} }

// Register makes steps available under path. Relative paths are made
// absolute against the working directory, the same way manifest sources are.
func (r *Registry) Register(path string, steps ...chain.Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("register %s: %w", path, ErrShape)
	}
	abs, err := ResolvePath("", path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.handlers[abs] = append([]chain.Step(nil), steps...)
	r.mu.Unlock()
	return nil
}

// Lookup retrieves the steps registered under path.
func (r *Registry) Lookup(path string) ([]chain.Step, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.handlers[filepath.Clean(path)]
	return s, ok
}

// Stat reports fs.ErrNotExist for paths nothing was registered under.
func (r *Registry) Stat(path string) error {
	if _, ok := r.Lookup(path); !ok {
		return &LoadError{Path: path, Err: fs.ErrNotExist}
	}
	return nil
}

func (r *Registry) Load(ctx context.Context, path string) ([]chain.Step, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	s, ok := r.Lookup(path)
	if !ok {
		return nil, &LoadError{Path: path, Err: fs.ErrNotExist}
	}
	return append([]chain.Step(nil), s...), nil
}

type fallback []Loader

// Fallback tries each loader in turn, moving on only when the artifact does
// not exist for that loader.
func Fallback(loaders ...Loader) Loader { return fallback(loaders) }

func (f fallback) Load(ctx context.Context, path string) ([]chain.Step, error) {
	err := error(&LoadError{Path: path, Err: fs.ErrNotExist})
	for _, l := range f {
		var steps []chain.Step
		steps, err = l.Load(ctx, path)
		if err == nil {
			return steps, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, err
}

// Stat succeeds when any of the loaders has the artifact.
func (f fallback) Stat(path string) error {
	err := error(&LoadError{Path: path, Err: fs.ErrNotExist})
	for _, l := range f {
		if err = Stat(l, path); err == nil {
			return nil
		}
	}
	return err
}
