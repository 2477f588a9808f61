package serverfx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/joeydtaylor/enroute/pkg/core"
	"github.com/joeydtaylor/enroute/pkg/loader"
	"github.com/joeydtaylor/enroute/pkg/middleware/logger"
	"github.com/joeydtaylor/enroute/pkg/transport/httpx"
)

func TestModuleValidates(t *testing.T) {
	require.NoError(t, fx.ValidateApp(Module(DefaultOptions())))
}

func TestSettingsFromEnv(t *testing.T) {
	t.Setenv("ENROUTE_MANIFEST", "/etc/enroute/routes.toml")
	t.Setenv("ENROUTE_BASE_PATH", "/srv")
	t.Setenv("ENROUTE_HOT_RELOAD", "true")
	t.Setenv("ENROUTE_HOT_RELOAD_EXCLUDE", "vendor")
	t.Setenv("ENROUTE_PREFIX", "/website")
	t.Setenv("SERVER_LISTEN_ADDRESS", ":9000")

	s := DefaultOptions().Settings()
	assert.Equal(t, Settings{
		Manifest:    "/etc/enroute/routes.toml",
		BasePath:    "/srv",
		HotReload:   true,
		ExcludePath: "vendor",
		Prefix:      "/website",
		ListenAddr:  ":9000",
	}, s)

	opts := DefaultOptions()
	opts.ManifestPath = "explicit.json"
	opts.ListenAddr = "127.0.0.1:0"
	s = opts.Settings()
	assert.Equal(t, "explicit.json", s.Manifest)
	assert.Equal(t, "127.0.0.1:0", s.ListenAddr)
}

func TestSettingsDefaults(t *testing.T) {
	t.Setenv("ENROUTE_MANIFEST", "")
	t.Setenv("SERVER_LISTEN_ADDRESS", "")
	t.Setenv("ENROUTE_HOT_RELOAD", "")

	s := DefaultOptions().Settings()
	assert.Equal(t, "enroute.json", s.Manifest)
	assert.Equal(t, ":4000", s.ListenAddr)
	assert.False(t, s.HotReload)
}

const helloSource = `package hello

import "net/http"

func Handler(w http.ResponseWriter, r *http.Request) error {
	_, err := w.Write([]byte("hello"))
	return err
}
`

func testOptions(t *testing.T, manifestBody string) Options {
	t.Helper()
	logger.Dir = t.TempDir()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.go"), []byte(helloSource), 0o644))
	p := filepath.Join(dir, "enroute.json")
	require.NoError(t, os.WriteFile(p, []byte(manifestBody), 0o644))

	opts := DefaultOptions()
	opts.ManifestPath = p
	opts.BasePath = dir
	opts.ListenAddr = "127.0.0.1:0"
	return opts
}

func TestModuleInstallsManifestOnStart(t *testing.T) {
	opts := testOptions(t, `{
  "schemaVersion": 1,
  "routes": {
    "hello":   { "get": { "source": "hello.go" } },
    "builtin": { "post": { "source": "builtin.go" } }
  }
}`)

	var router httpx.Router
	app := fxtest.New(t,
		Module(opts),
		fx.Populate(&router),
		fx.Invoke(func(reg *loader.Registry) error {
			return reg.Register(filepath.Join(opts.BasePath, "builtin.go"), func(w http.ResponseWriter, _ *http.Request) error {
				w.WriteHeader(http.StatusAccepted)
				return nil
			})
		}),
	)
	assert.Empty(t, router.Routes())
	app.RequireStart()
	defer app.RequireStop()

	assert.Len(t, router.Routes(), 2)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hello", nil))
	assert.Equal(t, "hello", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/builtin", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestModuleFailsStartOnBadManifest(t *testing.T) {
	opts := testOptions(t, `{"schemaVersion": 1, "routes": {"gone": {"get": {"source": "missing.go"}}}}`)

	app := fx.New(Module(opts))
	require.NoError(t, app.Err())

	err := app.Start(context.Background())
	var re *core.ResolveError
	assert.ErrorAs(t, err, &re)
	_ = app.Stop(context.Background())
}
