package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/joeydtaylor/enroute/pkg/core"
	"github.com/joeydtaylor/enroute/pkg/serverfx"
)

func serveOptions(manifestPath, listen, basePath, exclude, prefix string, hot bool) (serverfx.Options, error) {
	opts := serverfx.DefaultOptions()
	opts.ManifestPath = manifestPath
	opts.ListenAddr = listen
	opts.HotReload = hot
	opts.ExcludePath = exclude
	opts.Prefix = prefix

	// Resolve the base path up front unless the environment supplies one.
	s := opts.Settings()
	opts.BasePath = basePath
	if basePath == "" && s.BasePath == "" {
		cfg, err := core.LoadConfig(s.Manifest)
		if err != nil {
			return opts, err
		}
		opts.BasePath = basePathFor("", s.Manifest, cfg)
	}
	return opts, nil
}

func newServeCmd() *cobra.Command {
	var (
		listen   string
		basePath string
		exclude  string
		prefix   string
		hot      bool
	)
	cmd := &cobra.Command{
		Use:   "serve [manifest]",
		Short: "Serve a manifest until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var manifestPath string
			if len(args) == 1 {
				manifestPath = args[0]
			}
			opts, err := serveOptions(manifestPath, listen, basePath, exclude, prefix, hot)
			if err != nil {
				return err
			}
			app := fx.New(serverfx.Module(opts))
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&listen, "listen", "l", "", "listen address (default $SERVER_LISTEN_ADDRESS or :4000)")
	f.StringVarP(&basePath, "base-path", "b", "", "directory relative sources resolve against")
	f.BoolVar(&hot, "hot-reload", false, "reload handler sources on every request")
	f.StringVar(&exclude, "exclude", "", "path under the base path that hot reload keeps cached")
	f.StringVar(&prefix, "prefix", "", "URL prefix for every route (default $ENROUTE_PREFIX)")
	return cmd
}
