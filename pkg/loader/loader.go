// Package loader turns handler artifact paths into handler chains.
package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeydtaylor/enroute/pkg/chain"
)

// Loader resolves the artifact at path to the steps it exports.
type Loader interface {
	Load(ctx context.Context, path string) ([]chain.Step, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, path string) ([]chain.Step, error)

func (f LoaderFunc) Load(ctx context.Context, path string) ([]chain.Step, error) {
	return f(ctx, path)
}

// Statter is implemented by loaders that can tell whether an artifact exists
// without loading it.
type Statter interface {
	Stat(path string) error
}

// Stat checks path through ld when it is a Statter and on disk otherwise.
func Stat(ld Loader, path string) error {
	if p, ok := ld.(Statter); ok {
		return p.Stat(path)
	}
	if _, err := os.Stat(path); err != nil {
		return &LoadError{Path: path, Err: err}
	}
	return nil
}

// ErrShape is wrapped when an artifact loads but exports nothing callable.
var ErrShape = errors.New("artifact does not export a handler")

// LoadError carries the artifact path of a failed load.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return "load " + e.Path + ": " + e.Err.Error() }
func (e *LoadError) Unwrap() error { return e.Err }

// ResolvePath returns the absolute, cleaned path of source. Relative sources
// are joined to base; the drive letter follows the casing of the working
// directory so cache keys stay stable on case-insensitive filesystems.
func ResolvePath(base, source string) (string, error) {
	p := source
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if wd, err := os.Getwd(); err == nil {
		abs = matchDriveCase(abs, wd)
	}
	return abs, nil
}

func matchDriveCase(p, root string) string {
	if !hasDrive(p) || !hasDrive(root) {
		return p
	}
	if p[0] != root[0] && strings.EqualFold(p[:1], root[:1]) {
		return root[:1] + p[1:]
	}
	return p
}

func hasDrive(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// Within reports whether p is prefix itself or lies beneath it.
func Within(p, prefix string) bool {
	if prefix == "" {
		return false
	}
	p, prefix = filepath.Clean(p), filepath.Clean(prefix)
	if p == prefix {
		return true
	}
	rel, err := filepath.Rel(prefix, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
