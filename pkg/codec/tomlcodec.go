package codec

import (
	"bytes"
	"fmt"

	toml "github.com/pelletier/go-toml/v2"
)

type tomlCodec struct{}

// TOML decodes manifests written as TOML documents.
var TOML Codec = tomlCodec{}

func (tomlCodec) Marshal(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := toml.NewEncoder(buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (tomlCodec) Unmarshal(data []byte, v any) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("toml decode: %w", err)
	}
	return nil
}

func (tomlCodec) ContentType() string { return "application/toml" }
