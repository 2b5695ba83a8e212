// Package schema validates raw configuration documents against the
// reflected configuration schema.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/pkgview/config"
	pverrors "github.com/grovetools/pkgview/errors"
)

const resourceName = "pkgview.json"

// Validator validates configuration documents against config.Schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the configuration schema.
func NewValidator() (*Validator, error) {
	data, err := config.GenerateSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceName, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// ValidateFile validates the YAML or TOML file at path. Environment
// references are checked as written, before expansion.
func (v *Validator) ValidateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return pverrors.Wrap(err, pverrors.ErrCodeConfigNotFound, "failed to read config file").
			WithDetail("path", path)
	}

	var doc map[string]interface{}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return pverrors.Wrap(err, pverrors.ErrCodeConfigInvalid, "failed to parse config file").
			WithDetail("path", path)
	}
	return v.Validate(doc)
}

// Validate validates any value that marshals to a JSON object.
func (v *Validator) Validate(doc interface{}) error {
	// Round-trip through JSON so the validator sees plain JSON types.
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal config to JSON for validation: %w", err)
	}
	var data interface{}
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return fmt.Errorf("failed to unmarshal JSON for validation: %w", err)
	}
	if data == nil {
		data = map[string]interface{}{}
	}

	if err := v.schema.Validate(data); err != nil {
		var messages []string
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			collectErrors(validationErr, &messages)
		}
		if len(messages) == 0 {
			messages = append(messages, err.Error())
		}
		return pverrors.ConfigInvalid("schema validation failed:\n" + strings.Join(messages, "\n"))
	}
	return nil
}

// collectErrors flattens the leaf causes of err.
func collectErrors(err *jsonschema.ValidationError, messages *[]string) {
	if len(err.Causes) == 0 {
		location := err.InstanceLocation
		if location == "" {
			location = "/"
		}
		*messages = append(*messages, fmt.Sprintf("- %s: %s", location, err.Message))
		return
	}
	for _, cause := range err.Causes {
		collectErrors(cause, messages)
	}
}
