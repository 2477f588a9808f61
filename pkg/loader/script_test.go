package loader

import (
	"context"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/joeydtaylor/enroute/pkg/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fooGet = `package foo

import "net/http"

func Handler(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("name", "foo")
	w.Header().Set("method", "get")
	w.WriteHeader(http.StatusOK)
	return nil
}
`

const arrayGet = `package array

import "net/http"

func setName(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("name", "array")
	return nil
}

func setMethod(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("method", "get")
	w.WriteHeader(http.StatusOK)
	return nil
}

var Handlers = []func(http.ResponseWriter, *http.Request) error{setName, setMethod}
`

const plainGet = `package plain

import "net/http"

func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("name", "plain")
}
`

func write(t *testing.T, dir, name, src string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(src), 0o644))
	return p
}

func serve(t *testing.T, steps []chain.Step) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	require.NoError(t, chain.Run(w, httptest.NewRequest(http.MethodGet, "/", nil), steps))
	return w
}

func TestScriptSingleHandler(t *testing.T) {
	p := write(t, t.TempDir(), "fooGet.go", fooGet)

	steps, err := NewScript().Load(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, steps, 1)

	w := serve(t, steps)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "foo", w.Header().Get("name"))
}

func TestScriptHandlerList(t *testing.T) {
	p := write(t, t.TempDir(), "arrayGet.go", arrayGet)

	steps, err := NewScript().Load(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, steps, 2)

	w := serve(t, steps)
	assert.Equal(t, "array", w.Header().Get("name"))
	assert.Equal(t, "get", w.Header().Get("method"))
}

func TestScriptPlainHandlerFunc(t *testing.T) {
	p := write(t, t.TempDir(), "plain.go", plainGet)

	steps, err := NewScript().Load(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "plain", serve(t, steps).Header().Get("name"))
}

func TestScriptReloadsChangedFile(t *testing.T) {
	dir := t.TempDir()
	p := write(t, dir, "fooGet.go", fooGet)
	s := NewScript()

	steps, err := s.Load(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "foo", serve(t, steps).Header().Get("name"))

	write(t, dir, "fooGet.go", `package foo

import "net/http"

func Handler(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("name", "foo")
	w.Header().Set("reload", "yes")
	return nil
}
`)
	steps, err = s.Load(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "yes", serve(t, steps).Header().Get("reload"))
}

func TestScriptErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := NewScript().Load(context.Background(), filepath.Join(dir, "nope.go"))
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.ErrorIs(t, err, fs.ErrNotExist)
		assert.Contains(t, err.Error(), "nope.go")
	})

	t.Run("syntax error", func(t *testing.T) {
		p := write(t, dir, "broken.go", "package broken\n\nfunc Handler( {\n")
		_, err := NewScript().Load(context.Background(), p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken.go")
		assert.Contains(t, err.Error(), "syntax")
	})

	t.Run("no handler", func(t *testing.T) {
		p := write(t, dir, "none.go", "package none\n\nvar X = 1\n")
		_, err := NewScript().Load(context.Background(), p)
		assert.True(t, IsShape(err))
	})

	t.Run("handler is not a function", func(t *testing.T) {
		p := write(t, dir, "notfunc.go", "package notfunc\n\nvar Handler = \"not a function\"\n")
		_, err := NewScript().Load(context.Background(), p)
		assert.True(t, IsShape(err))
	})

	t.Run("wrong signature", func(t *testing.T) {
		p := write(t, dir, "sig.go", "package sig\n\nfunc Handler(s string) string { return s }\n")
		_, err := NewScript().Load(context.Background(), p)
		assert.True(t, IsShape(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewScript().Load(ctx, filepath.Join(dir, "any.go"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
