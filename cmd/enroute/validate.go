package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joeydtaylor/enroute/pkg/manifest"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [manifest]",
		Short: "Check a manifest against its schema version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := manifest.Parse(manifest.ParseOptions{ConfigPath: args[0]})
			if err != nil {
				var ve *manifest.ValidationError
				if errors.As(err, &ve) {
					for _, v := range ve.Violations {
						fmt.Fprintf(cmd.OutOrStdout(), "%s\n", v.Error())
					}
					return fmt.Errorf("%s: %d violations", args[0], len(ve.Violations))
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d routes)\n", args[0], cfg.Count())
			return nil
		},
	}
}
