package loader

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeydtaylor/enroute/pkg/chain"
)

func noop(http.ResponseWriter, *http.Request) error { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	p := filepath.Join(t.TempDir(), "foo.go")
	require.NoError(t, r.Register(p, noop, noop))

	steps, err := r.Load(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, steps, 2)

	_, err = r.Load(context.Background(), p+".missing")
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	assert.ErrorIs(t, r.Register(p), ErrShape)
}

func TestRegistryCancelled(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Load(ctx, "/x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFallback(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry()
	builtin := filepath.Join(dir, "builtin.go")
	require.NoError(t, reg.Register(builtin, noop))

	broken := errors.New("broken")
	second := LoaderFunc(func(_ context.Context, path string) ([]chain.Step, error) {
		if path == filepath.Join(dir, "broken.go") {
			return nil, &LoadError{Path: path, Err: broken}
		}
		return []chain.Step{noop, noop, noop}, nil
	})
	l := Fallback(reg, second)

	steps, err := l.Load(context.Background(), builtin)
	require.NoError(t, err)
	assert.Len(t, steps, 1)

	steps, err = l.Load(context.Background(), filepath.Join(dir, "other.go"))
	require.NoError(t, err)
	assert.Len(t, steps, 3)

	_, err = l.Load(context.Background(), filepath.Join(dir, "broken.go"))
	assert.ErrorIs(t, err, broken)

	_, err = Fallback().Load(context.Background(), "/none")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestRegistryRelativeKeyMatchesManifestSource(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("handlers/foo.go", noop))

	wd, err := os.Getwd()
	require.NoError(t, err)
	src, err := ResolvePath(wd, "./handlers/foo.go")
	require.NoError(t, err)

	_, ok := r.Lookup(src)
	assert.True(t, ok)
}

func TestStat(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry()
	builtin := filepath.Join(dir, "builtin.go")
	require.NoError(t, reg.Register(builtin, noop))
	onDisk := filepath.Join(dir, "disk.go")
	require.NoError(t, os.WriteFile(onDisk, []byte("package disk\n"), 0o644))
	missing := filepath.Join(dir, "missing.go")

	assert.NoError(t, Stat(reg, builtin))
	assert.ErrorIs(t, Stat(reg, onDisk), fs.ErrNotExist)

	l := Fallback(reg, NewScript())
	assert.NoError(t, Stat(l, builtin))
	assert.NoError(t, Stat(l, onDisk))
	assert.ErrorIs(t, Stat(l, missing), fs.ErrNotExist)

	c, err := NewCache(l, 4)
	require.NoError(t, err)
	assert.NoError(t, Stat(c, builtin))
	assert.ErrorIs(t, Stat(c, missing), fs.ErrNotExist)

	var le *LoadError
	require.ErrorAs(t, Stat(NewScript(), missing), &le)
	assert.Equal(t, missing, le.Path)
}
