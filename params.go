package console

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ParameterDescriptor describes one input parameter of a tool or prompt,
// derived from its JSON-Schema-like input schema. Descriptor trees are
// produced fresh per parse and never shared or mutated afterwards.
type ParameterDescriptor struct {
	Name        string
	Type        string
	Description string
	Required    bool
	EnumValues  []string
	// Default is the declared default value. Integer-valued numbers are
	// kept as int64 so UI prefill round-trips exactly.
	Default interface{}
	// ItemsType is the element type for array parameters.
	ItemsType string
	// NestedSchema describes the properties of an object parameter or of
	// an array's object elements.
	NestedSchema []ParameterDescriptor
	// AdditionalPropertiesType is the value type of an object's open-ended
	// properties: a declared type, "any" for a boolean true or an untyped
	// schema, and empty when additional properties are absent or false.
	// It is independent of NestedSchema; both may be set.
	AdditionalPropertiesType string
}

// ParseParameters turns a schema document into a parameter descriptor tree.
// The schema is advisory metadata: blank input, malformed JSON and schemas
// without a top-level properties map all yield nil, never an error.
// Property declaration order is preserved.
func ParseParameters(schemaText string) []ParameterDescriptor {
	if strings.TrimSpace(schemaText) == "" {
		return nil
	}
	if !gjson.Valid(schemaText) {
		return nil
	}
	return parseObjectSchema(gjson.Parse(schemaText))
}

// parseObjectSchema parses the properties map of one object schema. Nesting
// depth is unbounded; each recursion step handles one object or typed-array
// level.
func parseObjectSchema(schema gjson.Result) []ParameterDescriptor {
	props := schema.Get("properties")
	if !props.IsObject() {
		return nil
	}

	required := map[string]bool{}
	schema.Get("required").ForEach(func(_, name gjson.Result) bool {
		required[name.String()] = true
		return true
	})

	var descriptors []ParameterDescriptor
	props.ForEach(func(name, prop gjson.Result) bool {
		d := ParameterDescriptor{
			Name:        name.String(),
			Type:        prop.Get("type").String(),
			Description: prop.Get("description").String(),
			Required:    required[name.String()],
		}

		if enum := prop.Get("enum"); enum.IsArray() {
			enum.ForEach(func(_, value gjson.Result) bool {
				d.EnumValues = append(d.EnumValues, value.String())
				return true
			})
		}
		if def := prop.Get("default"); def.Exists() {
			d.Default = defaultValue(def)
		}

		switch d.Type {
		case "array":
			items := prop.Get("items")
			d.ItemsType = items.Get("type").String()
			if d.ItemsType == "object" {
				d.NestedSchema = parseObjectSchema(items)
			}
		case "object":
			d.NestedSchema = parseObjectSchema(prop)
			d.AdditionalPropertiesType = additionalPropertiesType(prop.Get("additionalProperties"))
		}

		descriptors = append(descriptors, d)
		return true
	})

	return descriptors
}

// defaultValue converts a default literal, keeping integer-valued numbers
// integral.
func defaultValue(v gjson.Result) interface{} {
	if v.Type == gjson.Number && !strings.ContainsAny(v.Raw, ".eE") {
		return v.Int()
	}
	return v.Value()
}

// additionalPropertiesType interprets an additionalProperties clause.
func additionalPropertiesType(v gjson.Result) string {
	switch {
	case !v.Exists():
		return ""
	case v.Type == gjson.True:
		return "any"
	case v.IsObject():
		if t := v.Get("type"); t.Exists() {
			return t.String()
		}
		return "any"
	default:
		return ""
	}
}
