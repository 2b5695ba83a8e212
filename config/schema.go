package config

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
)

// durationPattern matches the strings time.ParseDuration accepts.
const durationPattern = `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`

// Schema reflects the JSON Schema of the configuration file. Only fields
// tagged required are required. Nested sections reject unknown keys; the top
// level stays open for extensions.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		Anonymous:                  true,
		AllowAdditionalProperties:  false,
		ExpandedStruct:             true,
		FieldNameTag:               "yaml",
		RequiredFromJSONSchemaTags: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(time.Duration(0)) {
				return &jsonschema.Schema{OneOf: []*jsonschema.Schema{
					{Type: "string", Pattern: durationPattern},
					{Type: "integer"},
				}}
			}
			return nil
		},
	}

	schema := r.Reflect(&Config{})
	schema.AdditionalProperties = nil
	schema.Title = "pkgview Configuration"
	schema.Description = "Schema for pkgview.yml and pkgview.toml."
	return schema
}

// GenerateSchema returns the indented JSON encoding of Schema.
func GenerateSchema() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}
