package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// configSchema describes the on-disk config file. Unknown top-level keys are rejected
// so typos surface instead of silently falling back to defaults.
const configSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"storage_path": {"type": "string"},
		"embedding": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"api_key": {"type": "string"},
				"model": {"type": "string", "minLength": 1}
			}
		},
		"search": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"limit": {"type": "integer", "minimum": 1, "maximum": 50},
				"max_tokens": {"type": "integer", "minimum": 1}
			}
		},
		"logging": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"level": {"type": "string", "enum": ["debug", "info", "warn", "error"]},
				"file": {"type": "string"},
				"max_size": {"type": "integer", "minimum": 0},
				"max_age": {"type": "integer", "minimum": 0},
				"compress": {"type": "boolean"},
				"redaction": {"type": "boolean"},
				"pretty": {"type": "boolean"},
				"audit_file": {"type": "string"}
			}
		},
		"maintenance": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"enabled": {"type": "boolean"},
				"schedule": {"type": "string"}
			}
		},
		"metrics": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"enabled": {"type": "boolean"},
				"addr": {"type": "string"}
			}
		},
		"tracing": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"endpoint": {"type": "string"},
				"insecure": {"type": "boolean"},
				"sample_ratio": {"type": "number", "minimum": 0, "maximum": 1}
			}
		}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(configSchema)

// validateSchema checks raw config file bytes against configSchema
func validateSchema(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}

	return nil
}
