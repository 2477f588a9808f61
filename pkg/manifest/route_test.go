package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"foo":         "/foo",
		"/foo":        "/foo",
		"/foo/":       "/foo",
		" foo//bar ":  "/foo/bar",
		"/a/./b/../c": "/a/c",
		"":            "/",
		"/":           "/",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePath(in), "input %q", in)
	}
}

func TestNormalizeMethod(t *testing.T) {
	m, err := NormalizeMethod("DELETE")
	require.NoError(t, err)
	assert.Equal(t, "delete", m)

	m, err = NormalizeMethod(" Options ")
	require.NoError(t, err)
	assert.Equal(t, "options", m)

	_, err = NormalizeMethod("fetch")
	assert.Error(t, err)
}

func TestClone(t *testing.T) {
	cs := true
	c := &Config{
		BasePath:      "/srv",
		CaseSensitive: &cs,
		Routes:        map[string]MethodMap{"foo": {"get": {Source: "a.go"}}},
	}
	d := c.Clone()
	d.Routes["foo"]["get"] = MethodSpec{Source: "b.go"}
	*d.CaseSensitive = false

	assert.Equal(t, "a.go", c.Routes["foo"]["get"].Source)
	assert.True(t, *c.CaseSensitive)
	assert.Nil(t, (*Config)(nil).Clone())
}
