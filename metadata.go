package console

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/yosida95/uritemplate/v3"
)

// Tool describes one invocable tool as delivered by a metadata retrieval
// result.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Parameters parses the tool's input schema into a descriptor tree. Nil
// when the tool declares no usable schema.
func (t Tool) Parameters() []ParameterDescriptor {
	return ParseParameters(string(t.InputSchema))
}

// ValidateArguments checks an argument map against the tool's input schema
// before submission. The schema is advisory: a missing or unparsable schema
// validates everything.
func (t Tool) ValidateArguments(arguments map[string]interface{}) error {
	return validateAgainstSchema(t.InputSchema, arguments)
}

// Prompt describes one prompt as delivered by a metadata retrieval result.
type Prompt struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Parameters parses the prompt's input schema into a descriptor tree.
func (p Prompt) Parameters() []ParameterDescriptor {
	return ParseParameters(string(p.InputSchema))
}

// ValidateArguments checks an argument map against the prompt's input
// schema.
func (p Prompt) ValidateArguments(arguments map[string]interface{}) error {
	return validateAgainstSchema(p.InputSchema, arguments)
}

// Resource describes one readable resource.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceTemplate describes a family of resources addressed through an
// RFC 6570 URI template.
type ResourceTemplate struct {
	URITemplate *URITemplate `json:"uriTemplate"`
	Name        string       `json:"name,omitempty"`
	Description string       `json:"description,omitempty"`
	MimeType    string       `json:"mimeType,omitempty"`
}

// NewResourceTemplate parses the raw template string.
func NewResourceTemplate(raw, name string) (*ResourceTemplate, error) {
	tmpl, err := uritemplate.New(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURITemplate, err)
	}
	return &ResourceTemplate{
		URITemplate: &URITemplate{Template: tmpl},
		Name:        name,
	}, nil
}

// Expand substitutes the variables and returns the concrete resource URI,
// ready for a ResourceRead action.
func (t *ResourceTemplate) Expand(vars map[string]string) (string, error) {
	if t.URITemplate == nil || t.URITemplate.Template == nil {
		return "", fmt.Errorf("%w: template is empty", ErrInvalidURITemplate)
	}
	values := uritemplate.Values{}
	for name, value := range vars {
		values.Set(name, uritemplate.String(value))
	}
	uri, err := t.URITemplate.Template.Expand(values)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURITemplate, err)
	}
	return uri, nil
}

// URITemplate wraps uritemplate.Template for JSON round-tripping of the raw
// template string.
type URITemplate struct {
	*uritemplate.Template
}

func (t *URITemplate) MarshalJSON() ([]byte, error) {
	if t.Template == nil {
		return json.Marshal("")
	}
	return json.Marshal(t.Template.Raw())
}

func (t *URITemplate) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	tmpl, err := uritemplate.New(raw)
	if err != nil {
		return err
	}
	t.Template = tmpl
	return nil
}

// validateAgainstSchema validates a value against a raw JSON schema using
// the openapi3 schema machinery. Schema problems never fail validation;
// only an argument mismatch does.
func validateAgainstSchema(rawSchema json.RawMessage, arguments map[string]interface{}) error {
	if len(rawSchema) == 0 {
		return nil
	}

	var schema openapi3.Schema
	if err := schema.UnmarshalJSON(rawSchema); err != nil {
		return nil
	}

	value := arguments
	if value == nil {
		value = map[string]interface{}{}
	}

	if err := schema.VisitJSON(value); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}
