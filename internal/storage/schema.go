package storage

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"unicode/utf8"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/deadcoast/vince/internal/domain"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// documentKind names one of the persisted collections
type documentKind string

const (
	kindDefaults documentKind = "defaults"
	kindOffers   documentKind = "offers"
)

func (k documentKind) fileName() string {
	return string(k) + ".json"
}

type compiledSchema struct {
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
}

// SchemaValidator applies the embedded JSON Schemas to raw documents
type SchemaValidator struct {
	schemas map[documentKind]compiledSchema
}

// NewSchemaValidator compiles the embedded schemas for every document kind
func NewSchemaValidator() (*SchemaValidator, error) {
	v := &SchemaValidator{schemas: make(map[documentKind]compiledSchema, 2)}

	for _, kind := range []documentKind{kindDefaults, kindOffers} {
		data, err := schemaFS.ReadFile("schemas/" + string(kind) + ".schema.json")
		if err != nil {
			return nil, fmt.Errorf("failed to read %s schema: %w", kind, err)
		}

		schema := &jsonschema.Schema{}
		if err := json.Unmarshal(data, schema); err != nil {
			return nil, fmt.Errorf("failed to parse %s schema: %w", kind, err)
		}

		resolved, err := schema.Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s schema: %w", kind, err)
		}
		v.schemas[kind] = compiledSchema{schema: schema, resolved: resolved}
	}

	return v, nil
}

// Validate checks a raw document of the given kind against its schema. The
// error message names the first offending field in document order, so the
// same input always produces the same rejection.
func (v *SchemaValidator) Validate(kind documentKind, doc map[string]any) error {
	compiled, ok := v.schemas[kind]
	if !ok {
		return nil
	}

	err := compiled.resolved.Validate(doc)
	if err == nil {
		return nil
	}

	message := fmt.Sprintf("%s failed structural validation", kind.fileName())
	if path, reason := locate(compiled.schema, doc, ""); path != "" {
		message = fmt.Sprintf("%s failed structural validation at %s: %s", kind.fileName(), path, reason)
	}

	return domain.NewAppError(
		domain.ErrDataCorrupted,
		message,
		map[string]any{"file": kind.fileName(), "schema_error": err.Error()},
	)
}

// locate walks instance alongside schema and returns the path of the first
// violation it can explain. Object keys are visited in sorted order.
func locate(schema *jsonschema.Schema, instance any, path string) (string, string) {
	if schema == nil {
		return "", ""
	}

	if len(schema.Enum) > 0 && !slices.Contains(schema.Enum, instance) {
		return pathOrRoot(path), fmt.Sprintf("value %v is not one of %v", instance, schema.Enum)
	}

	switch schema.Type {
	case "object":
		obj, ok := instance.(map[string]any)
		if !ok {
			return pathOrRoot(path), "must be an object"
		}
		for _, name := range schema.Required {
			if _, present := obj[name]; !present {
				return join(path, name), "is required"
			}
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sub, known := schema.Properties[k]
			if !known {
				if forbidsExtra(schema) {
					return join(path, k), "unknown field"
				}
				continue
			}
			if p, reason := locate(sub, obj[k], join(path, k)); p != "" {
				return p, reason
			}
		}
	case "array":
		arr, ok := instance.([]any)
		if !ok {
			return pathOrRoot(path), "must be an array"
		}
		for i, item := range arr {
			if p, reason := locate(schema.Items, item, fmt.Sprintf("%s[%d]", path, i)); p != "" {
				return p, reason
			}
		}
	case "string":
		s, ok := instance.(string)
		if !ok {
			return pathOrRoot(path), "must be a string"
		}
		if schema.Pattern != "" {
			if re, err := regexp.Compile(schema.Pattern); err == nil && !re.MatchString(s) {
				return pathOrRoot(path), fmt.Sprintf("%q does not match %s", s, schema.Pattern)
			}
		}
		if schema.MinLength != nil && utf8.RuneCountInString(s) < *schema.MinLength {
			return pathOrRoot(path), fmt.Sprintf("must be at least %d characters", *schema.MinLength)
		}
		if schema.MaxLength != nil && utf8.RuneCountInString(s) > *schema.MaxLength {
			return pathOrRoot(path), fmt.Sprintf("must be at most %d characters", *schema.MaxLength)
		}
	case "boolean":
		if _, ok := instance.(bool); !ok {
			return pathOrRoot(path), "must be a boolean"
		}
	}

	return "", ""
}

// forbidsExtra reports whether additionalProperties is the false schema
func forbidsExtra(schema *jsonschema.Schema) bool {
	return schema.AdditionalProperties != nil && schema.AdditionalProperties.Not != nil
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func pathOrRoot(path string) string {
	if path == "" {
		return "(root)"
	}
	return path
}
