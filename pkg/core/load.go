package core

import (
	"context"
	"fmt"

	"github.com/joeydtaylor/enroute/pkg/manifest"
)

// LoadConfig parses and validates the manifest file at path.
func LoadConfig(path string) (*manifest.Config, error) {
	return manifest.Parse(manifest.ParseOptions{ConfigPath: path})
}

// Mount parses a manifest and installs it. The parsed Config replaces any
// Config or Raw in iopts, which must both be unset.
func Mount(ctx context.Context, popts manifest.ParseOptions, iopts InstallOptions) error {
	if iopts.Config != nil || iopts.Raw != nil {
		return fmt.Errorf("%w: Mount takes the manifest from ParseOptions", manifest.ErrUsage)
	}
	if popts.BasePath == "" {
		popts.BasePath = iopts.BasePath
	}
	cfg, err := manifest.Parse(popts)
	if err != nil {
		return err
	}
	iopts.Config = cfg
	return Install(ctx, iopts)
}
