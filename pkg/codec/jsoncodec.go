// pkg/codec/jsoncodec.go
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ohler55/ojg/oj"
)

// Codec is the (de)serialization contract manifests are read and written with.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	ContentType() string
}

type jsonStrict struct{}

// JSONStrict rejects unknown fields and trailing content.
var JSONStrict Codec = jsonStrict{}

func (jsonStrict) Marshal(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (jsonStrict) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("json decode: %w", err)
	}
	// trailing data must be EOF
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		return fmt.Errorf("json trailing content")
	}
	return nil
}

func (jsonStrict) ContentType() string { return "application/json" }

type jsonDoc struct{}

// JSON reads untyped documents with ojg. Integers stay int64. Unmarshal
// only accepts *any.
var JSON Codec = jsonDoc{}

func (jsonDoc) Marshal(v any) ([]byte, error) { return []byte(oj.JSON(v)), nil }

func (jsonDoc) Unmarshal(data []byte, v any) error {
	dst, ok := v.(*any)
	if !ok {
		return fmt.Errorf("json decode: want *any, got %T", v)
	}
	doc, err := oj.Parse(data)
	if err != nil {
		return fmt.Errorf("json decode: %w", err)
	}
	*dst = doc
	return nil
}

func (jsonDoc) ContentType() string { return "application/json" }

// ForPath picks the codec a manifest file is read with.
// Anything that is not .toml is treated as JSON.
func ForPath(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOML
	default:
		return JSON
	}
}

// Generic round-trips v through JSON into plain maps, slices, float64s,
// strings and bools, the shape JSON Schema validators expect.
func Generic(v any) (any, error) {
	b, err := JSONStrict.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}
	return out, nil
}
