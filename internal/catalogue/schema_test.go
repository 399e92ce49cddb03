package catalogue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaEmitsCanonicalDocument(t *testing.T) {
	out, err := Schema()
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &doc))

	assert.Equal(t, SchemaID, doc["$id"])
	assert.Equal(t, "https://json-schema.org/draft/2020-12/schema", doc["$schema"])
	assert.ElementsMatch(t, []interface{}{"version", "projects"}, doc["required"])

	defs, ok := doc["$defs"].(map[string]interface{})
	require.True(t, ok)
	slug, ok := defs["slug"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$", slug["pattern"])
}

func TestSchemaIsDeterministic(t *testing.T) {
	first, err := Schema()
	require.NoError(t, err)
	second, err := Schema()
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}
