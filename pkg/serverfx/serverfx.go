package serverfx

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/joeydtaylor/enroute/pkg/bundlefx"
	"github.com/joeydtaylor/enroute/pkg/core"
	"github.com/joeydtaylor/enroute/pkg/loader"
	"github.com/joeydtaylor/enroute/pkg/manifest"
	"github.com/joeydtaylor/enroute/pkg/middleware/logger"
	"github.com/joeydtaylor/enroute/pkg/transport/httpx"
)

// Options allow per-service env keys/defaults. Explicit values win over
// their environment variable.
type Options struct {
	Service string

	ManifestPath    string
	ManifestEnv     string // ENROUTE_MANIFEST
	DefaultManifest string // enroute.json

	BasePath    string
	BasePathEnv string // ENROUTE_BASE_PATH

	HotReload    bool
	HotReloadEnv string // ENROUTE_HOT_RELOAD

	ExcludePath string
	ExcludeEnv  string // ENROUTE_HOT_RELOAD_EXCLUDE

	// Prefix is prepended to every route path.
	Prefix    string
	PrefixEnv string // ENROUTE_PREFIX

	ListenAddr    string
	ListenAddrEnv string // SERVER_LISTEN_ADDRESS
	DefaultListen string // :4000

	TLSCertEnv string // SSL_SERVER_CERTIFICATE
	TLSKeyEnv  string // SSL_SERVER_KEY

	// RequestTimeout bounds each request's context; zero disables it.
	RequestTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Service:         "enroute",
		ManifestEnv:     "ENROUTE_MANIFEST",
		DefaultManifest: "enroute.json",
		BasePathEnv:     "ENROUTE_BASE_PATH",
		HotReloadEnv:    "ENROUTE_HOT_RELOAD",
		ExcludeEnv:      "ENROUTE_HOT_RELOAD_EXCLUDE",
		PrefixEnv:       "ENROUTE_PREFIX",
		ListenAddrEnv:   "SERVER_LISTEN_ADDRESS",
		DefaultListen:   ":4000",
		TLSCertEnv:      "SSL_SERVER_CERTIFICATE",
		TLSKeyEnv:       "SSL_SERVER_KEY",
	}
}

// Settings are Options with the environment applied.
type Settings struct {
	Manifest    string
	BasePath    string
	HotReload   bool
	ExcludePath string
	Prefix      string
	ListenAddr  string
	TLSCert     string
	TLSKey      string
}

func (o Options) Settings() Settings {
	s := Settings{
		Manifest:    orEnv(o.ManifestPath, o.ManifestEnv, o.DefaultManifest),
		BasePath:    orEnv(o.BasePath, o.BasePathEnv, ""),
		HotReload:   o.HotReload,
		ExcludePath: orEnv(o.ExcludePath, o.ExcludeEnv, ""),
		Prefix:      orEnv(o.Prefix, o.PrefixEnv, ""),
		ListenAddr:  orEnv(o.ListenAddr, o.ListenAddrEnv, o.DefaultListen),
		TLSCert:     envOr(o.TLSCertEnv, ""),
		TLSKey:      envOr(o.TLSKeyEnv, ""),
	}
	if !s.HotReload && o.HotReloadEnv != "" {
		s.HotReload, _ = strconv.ParseBool(os.Getenv(o.HotReloadEnv))
	}
	return s
}

// ---- Router ----

func provideChi(l *zap.Logger) httpx.Router {
	return httpx.NewChi(httpx.WithLogger(l))
}

type routerDeps struct {
	fx.In

	Opts    Options
	LogMW   *logger.Middleware
	Metrics http.Handler
	R       httpx.Router
}

func provideRouter(d routerDeps) http.Handler {
	return core.BuildRouter(core.BuildDeps{
		LogMW:   d.LogMW,
		Metrics: d.Metrics,
		Router:  d.R,
		Timeout: d.Opts.RequestTimeout,
	}).Mux()
}

// ---- Server lifecycle ----

type serverDeps struct {
	fx.In
	Opts   Options
	Logger *zap.Logger
	Router httpx.Router
	Loader loader.Loader
	App    http.Handler `name:"app"`
}

func registerHooks(lc fx.Lifecycle, d serverDeps) {
	s := d.Opts.Settings()

	srv := &http.Server{
		Handler:      d.App,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		TLSConfig:    &tls.Config{MinVersion: tls.VersionTLS13, MaxVersion: tls.VersionTLS13},
	}
	useTLS := fileExists(s.TLSCert) && fileExists(s.TLSKey)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", s.ListenAddr)
			if err != nil {
				return err
			}

			if useTLS {
				d.Logger.Info("server starting (TLS)",
					zap.String("service", d.Opts.Service),
					zap.String("addr", ln.Addr().String()),
					zap.String("cert", s.TLSCert),
				)
				go func() {
					if err := srv.ServeTLS(ln, s.TLSCert, s.TLSKey); err != nil && !errors.Is(err, http.ErrServerClosed) {
						d.Logger.Error("server failed", zap.Error(err))
					}
				}()
			} else {
				d.Logger.Info("server starting (PLAINTEXT)",
					zap.String("service", d.Opts.Service),
					zap.String("addr", ln.Addr().String()),
				)
				srv.TLSConfig = nil
				go func() {
					if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
						d.Logger.Error("server failed", zap.Error(err))
					}
				}()
			}

			// Routes are installed onto the running server.
			err = core.Mount(ctx,
				manifest.ParseOptions{ConfigPath: s.Manifest, BasePath: s.BasePath},
				core.InstallOptions{
					Server:      d.Router,
					BasePath:    s.BasePath,
					Prefix:      s.Prefix,
					HotReload:   s.HotReload,
					ExcludePath: s.ExcludePath,
					Loader:      d.Loader,
					Logger:      d.Logger,
				},
			)
			if err != nil {
				d.Logger.Error("manifest install failed", zap.String("path", s.Manifest), zap.Error(err))
				_ = srv.Close()
				return err
			}
			d.Logger.Info("manifest installed",
				zap.String("path", s.Manifest),
				zap.Int("routes", len(d.Router.Routes())),
				zap.Bool("hotReload", s.HotReload),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Logger.Info("server stopping", zap.String("service", d.Opts.Service))
			return srv.Shutdown(ctx)
		},
	})
}

// ---- Public Fx module ----

func Module(opts Options) fx.Option {
	return fx.Options(
		fx.Supply(opts),

		// Logger, access log, /metrics, loaders
		bundlefx.Module,
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l}
		}),

		// Router implementation
		fx.Provide(provideChi),

		// Router with middleware (named "app")
		fx.Provide(
			fx.Annotate(
				provideRouter,
				fx.ResultTags(`name:"app"`),
			),
		),

		// Starts HTTP, then installs the manifest
		fx.Invoke(registerHooks),
	)
}

// ---- helpers ----

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func envOr(k, def string) string {
	if k == "" {
		return def
	}
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func orEnv(explicit, k, def string) string {
	if explicit != "" {
		return explicit
	}
	return envOr(k, def)
}
