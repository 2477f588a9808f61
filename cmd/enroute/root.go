package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "enroute",
		Short:        "Serve HTTP routes declared in a manifest",
		SilenceUsage: true,
	}
	root.AddCommand(newValidateCmd(), newRoutesCmd(), newServeCmd())
	return root
}
