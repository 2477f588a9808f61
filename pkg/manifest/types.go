package manifest

// Config is a validated route manifest. The schemaVersion that selected the
// schema is not part of it.
type Config struct {
	BasePath      string               `json:"basePath,omitempty" toml:"basePath,omitempty"`
	HotReload     bool                 `json:"hotReload,omitempty" toml:"hotReload,omitempty"`
	CaseSensitive *bool                `json:"caseSensitive,omitempty" toml:"caseSensitive,omitempty"`
	Routes        map[string]MethodMap `json:"routes" toml:"routes"`
}

// MethodMap binds HTTP method names (any case) of one route to handlers.
type MethodMap map[string]MethodSpec

// MethodSpec points at the handler artifact serving one route and method.
type MethodSpec struct {
	Source string `json:"source" toml:"source"`
}
