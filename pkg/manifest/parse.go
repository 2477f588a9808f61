// Package manifest reads, version-checks and structurally validates route
// manifests, and decodes them into Config.
package manifest

import (
	"fmt"
	"math"
	"os"

	"github.com/ohler55/ojg/alt"

	"github.com/joeydtaylor/enroute/pkg/codec"
	"github.com/joeydtaylor/enroute/pkg/schema"
)

// ParseOptions selects the manifest source. Exactly one of Config and
// ConfigPath must be set.
type ParseOptions struct {
	// Config is an in-memory manifest. It is never mutated.
	Config map[string]any
	// ConfigPath is a JSON (or .toml) manifest file.
	ConfigPath string
	// BasePath, when set, replaces the manifest's basePath.
	BasePath string
}

// Parse reads the manifest, checks its schemaVersion, validates it against
// that version's schema and returns the decoded Config.
func Parse(opts ParseOptions) (*Config, error) {
	switch {
	case opts.Config == nil && opts.ConfigPath == "":
		return nil, fmt.Errorf("%w: must specify either Config or ConfigPath", ErrUsage)
	case opts.Config != nil && opts.ConfigPath != "":
		return nil, fmt.Errorf("%w: Config and ConfigPath are mutually exclusive", ErrUsage)
	}

	raw, err := read(opts)
	if err != nil {
		return nil, err
	}

	s, err := selectSchema(raw)
	if err != nil {
		return nil, err
	}
	if err := validate(s, raw); err != nil {
		return nil, err
	}
	return decode(raw, opts.BasePath)
}

// read returns a private, generic copy of the manifest document.
func read(opts ParseOptions) (map[string]any, error) {
	if opts.Config != nil {
		m, ok := alt.Decompose(opts.Config).(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: Config is not an object", ErrUsage)
		}
		return m, nil
	}

	b, err := os.ReadFile(opts.ConfigPath)
	if err != nil {
		return nil, &ReadError{Path: opts.ConfigPath, Err: err}
	}

	var doc any
	if err := codec.ForPath(opts.ConfigPath).Unmarshal(b, &doc); err != nil {
		return nil, &ParseError{Path: opts.ConfigPath, Content: string(b), Err: err}
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, &ParseError{
			Path:    opts.ConfigPath,
			Content: string(b),
			Err:     fmt.Errorf("top-level value must be an object, got %T", doc),
		}
	}
	return m, nil
}

func selectSchema(raw map[string]any) (schema.Schema, error) {
	v, ok := raw["schemaVersion"]
	if !ok {
		return schema.Schema{}, &SchemaVersionError{Supported: schema.Versions(), Reason: "input does not contain schemaVersion"}
	}
	n, ok := asNumber(v)
	if !ok {
		return schema.Schema{}, &SchemaVersionError{
			Requested: v,
			Supported: schema.Versions(),
			Reason:    fmt.Sprintf("schemaVersion must be a number, got %T", v),
		}
	}
	if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
		return schema.Schema{}, &SchemaVersionError{Requested: v, Supported: schema.Versions()}
	}
	s, ok := schema.Get(int(n))
	if !ok {
		return schema.Schema{}, &SchemaVersionError{Requested: v, Supported: schema.Versions()}
	}
	return s, nil
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func decode(raw map[string]any, basePath string) (*Config, error) {
	delete(raw, "schemaVersion")

	b, err := codec.JSONStrict.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("manifest encode: %w", err)
	}
	var cfg Config
	if err := codec.JSONStrict.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("manifest decode: %w", err)
	}
	if basePath != "" {
		cfg.BasePath = basePath
	}
	return &cfg, nil
}
