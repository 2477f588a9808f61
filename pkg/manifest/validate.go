package manifest

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/ohler55/ojg/jp"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joeydtaylor/enroute/pkg/codec"
	"github.com/joeydtaylor/enroute/pkg/schema"
)

var compiled sync.Map // version -> *jsonschema.Schema

func compile(s schema.Schema) (*jsonschema.Schema, error) {
	if v, ok := compiled.Load(s.Version); ok {
		return v.(*jsonschema.Schema), nil
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft4
	if err := c.AddResource(s.URL(), bytes.NewReader(s.Document)); err != nil {
		return nil, fmt.Errorf("schema v%d: %w", s.Version, err)
	}
	sch, err := c.Compile(s.URL())
	if err != nil {
		return nil, fmt.Errorf("schema v%d: %w", s.Version, err)
	}
	v, _ := compiled.LoadOrStore(s.Version, sch)
	return v.(*jsonschema.Schema), nil
}

// validate checks raw against s and reports every violation at once.
func validate(s schema.Schema, raw map[string]any) error {
	sch, err := compile(s)
	if err != nil {
		return err
	}
	doc, err := codec.Generic(raw)
	if err != nil {
		return fmt.Errorf("manifest encode: %w", err)
	}

	err = sch.Validate(doc)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err
	}

	var vs []Violation
	for _, leaf := range leaves(ve, nil) {
		vs = append(vs, Violation{
			InstanceLocation: leaf.InstanceLocation,
			KeywordLocation:  leaf.KeywordLocation,
			Message:          leaf.Message,
			Value:            valueAt(doc, leaf.InstanceLocation),
		})
	}
	return newValidationError(vs)
}

func leaves(ve *jsonschema.ValidationError, out []*jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return append(out, ve)
	}
	for _, c := range ve.Causes {
		out = leaves(c, out)
	}
	return out
}

// valueAt resolves a JSON pointer against doc.
func valueAt(doc any, pointer string) any {
	x := jp.R()
	for _, seg := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		if seg == "" {
			continue
		}
		seg = strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
		x = x.C(seg)
	}
	return x.First(doc)
}
