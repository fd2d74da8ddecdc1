package tools

import "github.com/getkin/kin-openapi/openapi3"

// Args are the decoded arguments of one tool call.
type Args map[string]any

// String returns the named string argument, or "" when absent.
func (a Args) String(name string) string {
	if v, ok := a[name].(string); ok {
		return v
	}
	return ""
}

// Int returns the named numeric argument, or def when absent.
func (a Args) Int(name string, def int) int {
	switch v := a[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// -- Schema helpers --

func stringProp(description string) *openapi3.Schema {
	s := openapi3.NewStringSchema()
	s.Description = description
	return s
}

func intProp(description string, min float64) *openapi3.Schema {
	s := openapi3.NewIntegerSchema().WithMin(min)
	s.Description = description
	return s
}

func objectSchema(required []string, props map[string]*openapi3.Schema) *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	for name, prop := range props {
		s.WithProperty(name, prop)
	}
	if len(required) > 0 {
		s.WithRequired(required)
	}
	return s
}
