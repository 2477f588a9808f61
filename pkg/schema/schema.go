// Package schema holds the structural descriptions of every supported
// manifest version. It is pure data: lookups have no side effects.
package schema

import (
	"embed"
	"fmt"
	"sort"
)

//go:embed schemas/*.json
var files embed.FS

// Schema is one JSON Schema (draft-04) document selected by version number.
type Schema struct {
	Version  int
	Document []byte
}

// URL is the resource name the document is compiled under.
func (s Schema) URL() string {
	return fmt.Sprintf("enroute://schemas/v%d.json", s.Version)
}

var registry = map[int]Schema{
	1: mustLoad(1),
	2: mustLoad(2),
}

func mustLoad(version int) Schema {
	b, err := files.ReadFile(fmt.Sprintf("schemas/v%d.json", version))
	if err != nil {
		panic("schema: missing embedded document: " + err.Error())
	}
	return Schema{Version: version, Document: b}
}

// Get returns the schema registered for version.
func Get(version int) (Schema, bool) {
	s, ok := registry[version]
	if !ok {
		return Schema{}, false
	}
	doc := make([]byte, len(s.Document))
	copy(doc, s.Document)
	return Schema{Version: s.Version, Document: doc}, true
}

// Versions lists the supported versions in ascending order.
func Versions() []int {
	out := make([]int, 0, len(registry))
	for v := range registry {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
