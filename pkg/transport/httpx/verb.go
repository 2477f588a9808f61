package httpx

import (
	"fmt"
	"net/http"
	"strings"
)

// Verb is the server's name for an HTTP method.
type Verb string

const (
	Head  Verb = "head"
	Get   Verb = "get"
	Put   Verb = "put"
	Post  Verb = "post"
	Del   Verb = "del"
	Patch Verb = "patch"
	Opts  Verb = "opts"
)

var methods = map[Verb]string{
	Head:  http.MethodHead,
	Get:   http.MethodGet,
	Put:   http.MethodPut,
	Post:  http.MethodPost,
	Del:   http.MethodDelete,
	Patch: http.MethodPatch,
	Opts:  http.MethodOptions,
}

// VerbFor maps a method name in any case (delete, OPTIONS, Get) to its Verb.
func VerbFor(method string) (Verb, error) {
	m := strings.ToLower(strings.TrimSpace(method))
	switch m {
	case "delete":
		return Del, nil
	case "options":
		return Opts, nil
	}
	v := Verb(m)
	if !v.Valid() {
		return "", fmt.Errorf("unsupported method %q", method)
	}
	return v, nil
}

func (v Verb) Valid() bool {
	_, ok := methods[v]
	return ok
}

// HTTPMethod returns the wire method, e.g. DELETE for Del.
func (v Verb) HTTPMethod() string { return methods[v] }

// CaseSensitivityConfigurer is implemented by servers whose path matching
// can be switched between case-sensitive and case-insensitive.
type CaseSensitivityConfigurer interface {
	SetCaseSensitive(on bool) error
}
