package manifest

import (
	"fmt"
	"path"
	"strings"
)

// Methods are the HTTP method names a manifest may bind, lower-cased.
var Methods = []string{"head", "get", "put", "post", "delete", "patch", "options"}

// NormalizePath turns a route name into a request path: a single leading
// slash and no redundant elements.
func NormalizePath(name string) string {
	p := strings.TrimSpace(name)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if p != "/" {
		p = path.Clean(p)
	}
	return p
}

// NormalizeMethod lower-cases m and checks it is a supported method.
func NormalizeMethod(m string) (string, error) {
	lm := strings.ToLower(strings.TrimSpace(m))
	for _, x := range Methods {
		if lm == x {
			return lm, nil
		}
	}
	return "", fmt.Errorf("unsupported method %q", m)
}
