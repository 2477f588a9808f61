package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersions(t *testing.T) {
	assert.Equal(t, []int{1, 2}, Versions())
}

func TestGet(t *testing.T) {
	for _, v := range Versions() {
		s, ok := Get(v)
		require.True(t, ok, "version %d", v)
		assert.Equal(t, v, s.Version)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(s.Document, &doc))
		assert.Equal(t, "object", doc["type"])
		assert.Equal(t, false, doc["additionalProperties"])
		assert.ElementsMatch(t, []any{"schemaVersion", "routes"}, doc["required"])
	}

	_, ok := Get(0)
	assert.False(t, ok)
	_, ok = Get(99)
	assert.False(t, ok)
}

func TestOnlyV2AllowsCaseSensitive(t *testing.T) {
	props := func(v int) map[string]any {
		s, ok := Get(v)
		require.True(t, ok)
		var doc map[string]any
		require.NoError(t, json.Unmarshal(s.Document, &doc))
		return doc["properties"].(map[string]any)
	}
	assert.NotContains(t, props(1), "caseSensitive")
	assert.Contains(t, props(2), "caseSensitive")
	assert.Contains(t, props(1), "hotReload")
}

func TestGetReturnsCopy(t *testing.T) {
	s, ok := Get(1)
	require.True(t, ok)
	s.Document[0] = 'x'

	again, _ := Get(1)
	assert.Equal(t, byte('{'), again.Document[0])
}

func TestURL(t *testing.T) {
	s, _ := Get(2)
	assert.Equal(t, "enroute://schemas/v2.json", s.URL())
}
