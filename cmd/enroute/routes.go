package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joeydtaylor/enroute/pkg/core"
	"github.com/joeydtaylor/enroute/pkg/manifest"
)

// basePathFor is the base path the CLI installs with: the flag, then the
// manifest's basePath, then the manifest's directory.
func basePathFor(flag, manifestPath string, cfg *manifest.Config) string {
	switch {
	case flag != "":
		return flag
	case cfg != nil && cfg.BasePath != "":
		return cfg.BasePath
	}
	return filepath.Dir(manifestPath)
}

func newRoutesCmd() *cobra.Command {
	var basePath string
	cmd := &cobra.Command{
		Use:   "routes [manifest]",
		Short: "List the routes a manifest declares",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := core.LoadConfig(args[0])
			if err != nil {
				return err
			}
			rs, err := core.Routes(cfg, basePathFor(basePath, args[0], cfg))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERB\tPATH\tSOURCE")
			for _, r := range rs {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Verb, r.Path, r.Source)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&basePath, "base-path", "b", "", "directory relative sources resolve against")
	return cmd
}
