package catalogue

import (
	"encoding/json"
	"fmt"
)

// SchemaID is the canonical identifier of the catalogue JSON Schema
const SchemaID = "https://ghillie.example/schemas/catalogue.json"

// Schema emits the canonical JSON Schema for catalogue documents so external
// tooling can validate files before they ever reach the importer. The Go
// validator in this package remains authoritative; the schema covers shape
// and slug rules, not cross-entity references.
func Schema() ([]byte, error) {
	slugRef := map[string]interface{}{"$ref": "#/$defs/slug"}
	stringList := map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "string"},
	}
	edgeList := map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"$ref": "#/$defs/edge"},
	}

	schema := map[string]interface{}{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"$id":                  SchemaID,
		"title":                "Ghillie estate catalogue",
		"type":                 "object",
		"required":             []string{"version", "projects"},
		"additionalProperties": false,
		"properties": map[string]interface{}{
			"version": map[string]interface{}{"type": "integer", "minimum": 1},
			"programmes": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":                 "object",
					"required":             []string{"key", "name"},
					"additionalProperties": false,
					"properties": map[string]interface{}{
						"key":         slugRef,
						"name":        map[string]interface{}{"type": "string", "minLength": 1},
						"description": map[string]interface{}{"type": "string"},
						"projects":    stringList,
					},
				},
			},
			"projects": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":                 "object",
					"required":             []string{"key", "name", "components"},
					"additionalProperties": false,
					"properties": map[string]interface{}{
						"key":         slugRef,
						"name":        map[string]interface{}{"type": "string", "minLength": 1},
						"description": map[string]interface{}{"type": "string"},
						"programme":   slugRef,
						"components": map[string]interface{}{
							"type":  "array",
							"items": map[string]interface{}{"$ref": "#/$defs/component"},
						},
						"noise": map[string]interface{}{
							"type":                 "object",
							"additionalProperties": false,
							"properties": map[string]interface{}{
								"exclude_paths":           stringList,
								"exclude_authors":         stringList,
								"exclude_commit_patterns": stringList,
							},
						},
						"status": map[string]interface{}{
							"type":                 "object",
							"additionalProperties": false,
							"properties": map[string]interface{}{
								"cadence":   map[string]interface{}{"type": "string"},
								"audiences": stringList,
								"verbosity": map[string]interface{}{"type": "string"},
							},
						},
						"documentation_paths": stringList,
					},
				},
			},
		},
		"$defs": map[string]interface{}{
			"slug": map[string]interface{}{
				"type":    "string",
				"pattern": "^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$",
			},
			"component": map[string]interface{}{
				"type":                 "object",
				"required":             []string{"key", "name"},
				"additionalProperties": false,
				"properties": map[string]interface{}{
					"key":         slugRef,
					"name":        map[string]interface{}{"type": "string", "minLength": 1},
					"type":        map[string]interface{}{"enum": []string{"service", "ui", "library", "data-pipeline", "job", "tooling", "other"}},
					"lifecycle":   map[string]interface{}{"enum": []string{"planned", "active", "deprecated"}},
					"description": map[string]interface{}{"type": "string"},
					"repository": map[string]interface{}{
						"type":                 "object",
						"required":             []string{"owner", "name"},
						"additionalProperties": false,
						"properties": map[string]interface{}{
							"owner":               map[string]interface{}{"type": "string", "pattern": "^[A-Za-z0-9_.-]+$"},
							"name":                map[string]interface{}{"type": "string", "pattern": "^[A-Za-z0-9_.-]+$"},
							"default_branch":      map[string]interface{}{"type": "string", "minLength": 1},
							"documentation_paths": stringList,
						},
					},
					"depends_on":      edgeList,
					"blocked_by":      edgeList,
					"emits_events_to": edgeList,
					"notes":           stringList,
				},
			},
			"edge": map[string]interface{}{
				"type":                 "object",
				"required":             []string{"component"},
				"additionalProperties": false,
				"properties": map[string]interface{}{
					"component": slugRef,
					"kind":      map[string]interface{}{"enum": []string{"runtime", "dev", "test", "ops"}},
					"rationale": map[string]interface{}{"type": "string"},
				},
			},
		},
	}

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal catalogue schema: %w", err)
	}
	return out, nil
}
