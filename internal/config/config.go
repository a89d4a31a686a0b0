// Package config loads and validates spindlec.yaml: parsed with
// gopkg.in/yaml.v3, then validated against an embedded JSON Schema via
// santhosh-tekuri/jsonschema/v5, the same marshal-to-JSON-then-compile
// pattern as the teacher's core/types.Validator.compileSchema.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Cache configures the build cache of SPEC_FULL.md §5.
type Cache struct {
	Dir     string `yaml:"dir" json:"dir"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

// Config is the shape of spindlec.yaml (SPEC_FULL.md §2).
type Config struct {
	Optimize     bool  `yaml:"optimize" json:"optimize"`
	EmitGraphviz bool  `yaml:"emitGraphviz" json:"emitGraphviz"`
	Color        bool  `yaml:"color" json:"color"`
	Cache        Cache `yaml:"cache" json:"cache"`
}

// Default returns the configuration used when the config file is
// missing. Load also starts from it, so a field the file leaves out
// keeps its default value.
func Default() *Config {
	return &Config{
		Optimize:     true,
		EmitGraphviz: true,
		Color:        true,
		Cache: Cache{
			Dir:     ".spindlec-cache",
			Enabled: false,
		},
	}
}

const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "optimize": {"type": "boolean"},
    "emitGraphviz": {"type": "boolean"},
    "color": {"type": "boolean"},
    "cache": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "dir": {"type": "string", "minLength": 1},
        "enabled": {"type": "boolean"}
      }
    }
  }
}`

// compileSchema compiles the embedded config schema, the same
// NewCompiler/AddResource/Compile sequence as the teacher's
// Validator.compileSchema.
func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	const url = "schema://spindlec-config.json"
	if err := compiler.AddResource(url, bytes.NewReader([]byte(schemaJSON))); err != nil {
		return nil, fmt.Errorf("config: adding schema resource: %w", err)
	}

	return compiler.Compile(url)
}

// Load reads and validates a spindlec.yaml file at path. A missing
// file is not an error: Default() is returned instead, since
// spec.md's driver has no mandatory configuration surface.
//
// Validation runs against the raw parsed document, not the decoded
// Config struct, so that a field the schema's additionalProperties:
// false rejects is caught even though Config's own yaml.Unmarshal
// would otherwise have silently dropped it.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := validate(doc); err != nil {
		return nil, fmt.Errorf("config: %s failed schema validation: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return cfg, nil
}

func validate(doc any) error {
	schema, err := compileSchema()
	if err != nil {
		return err
	}

	// Round-trip through JSON so nested YAML maps/numbers match the
	// shapes jsonschema expects from encoding/json, the same sequence
	// the teacher's Validator.compileSchema callers use.
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling config for validation: %w", err)
	}

	var jsonDoc any
	if err := json.Unmarshal(asJSON, &jsonDoc); err != nil {
		return err
	}

	return schema.Validate(jsonDoc)
}
