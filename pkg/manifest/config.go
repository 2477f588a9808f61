package manifest

import "sort"

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := &Config{BasePath: c.BasePath, HotReload: c.HotReload}
	if c.CaseSensitive != nil {
		v := *c.CaseSensitive
		out.CaseSensitive = &v
	}
	if c.Routes != nil {
		out.Routes = make(map[string]MethodMap, len(c.Routes))
		for name, methods := range c.Routes {
			mm := make(MethodMap, len(methods))
			for m, spec := range methods {
				mm[m] = spec
			}
			out.Routes[name] = mm
		}
	}
	return out
}

// RouteNames returns the route names in sorted order.
func (c *Config) RouteNames() []string {
	names := make([]string, 0, len(c.Routes))
	for n := range c.Routes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Methods returns the method keys of mm in sorted order.
func (mm MethodMap) Methods() []string {
	out := make([]string, 0, len(mm))
	for m := range mm {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Count is the number of (route, method) bindings.
func (c *Config) Count() int {
	n := 0
	for _, mm := range c.Routes {
		n += len(mm)
	}
	return n
}
