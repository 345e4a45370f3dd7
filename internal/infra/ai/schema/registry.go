// Package schema holds the structured-output definitions the analyser
// validates model responses against. Definitions are reflected from Go types
// once, compiled, and looked up by a fixed Name.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"

	"github.com/bryanwahyu/aml-analyser/internal/domain/ai"
	"github.com/bryanwahyu/aml-analyser/internal/domain/analysis"
)

// ErrUnknownSchema is returned by Lookup for names that are not registered.
var ErrUnknownSchema = errors.New("unknown output schema")

// Name identifies a registered output schema.
type Name string

const TransactionHistoryAnalysis Name = "transaction_history_analysis"

// Schema is a compiled output definition.
type Schema struct {
	name     Name
	document map[string]any
	compiled *gojsonschema.Schema
}

func (s *Schema) Name() Name { return s.name }

// Document returns the JSON Schema as a generic map (for providers that accept
// a response schema, or for display).
func (s *Schema) Document() map[string]any { return s.document }

// Validate checks a JSON document against the schema. Any failure is an
// *ai.ValidationError.
func (s *Schema) Validate(doc string) error {
	result, err := s.compiled.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return &ai.ValidationError{
			Schema:     string(s.name),
			Violations: []string{"malformed JSON: " + err.Error()},
			Raw:        doc,
			Err:        err,
		}
	}
	if result.Valid() {
		return nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, e.String())
	}
	return &ai.ValidationError{Schema: string(s.name), Violations: violations, Raw: doc}
}

// Decode validates doc and unmarshals it into v.
func (s *Schema) Decode(doc string, v any) error {
	if err := s.Validate(doc); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(doc), v); err != nil {
		return &ai.ValidationError{
			Schema:     string(s.name),
			Violations: []string{err.Error()},
			Raw:        doc,
			Err:        err,
		}
	}
	return nil
}

// Registry maps names to compiled schemas. It is read-only once built.
type Registry struct {
	schemas map[Name]*Schema
}

// NewRegistry reflects and compiles every definition. defs maps a name to a
// zero value of the Go type describing the output.
func NewRegistry(defs map[Name]any) (*Registry, error) {
	r := &Registry{schemas: make(map[Name]*Schema, len(defs))}
	for name, v := range defs {
		s, err := compile(name, v)
		if err != nil {
			return nil, err
		}
		r.schemas[name] = s
	}
	return r, nil
}

// Default is the registry of every output this service knows.
var Default = sync.OnceValues(func() (*Registry, error) {
	return NewRegistry(map[Name]any{
		TransactionHistoryAnalysis: analysis.Output{},
	})
})

func (r *Registry) Lookup(name Name) (*Schema, error) {
	s, ok := r.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownSchema, name, strings.Join(r.names(), ", "))
	}
	return s, nil
}

func (r *Registry) names() []string {
	out := make([]string, 0, len(r.schemas))
	for n := range r.schemas {
		out = append(out, string(n))
	}
	sort.Strings(out)
	return out
}

func compile(name Name, v any) (*Schema, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct:             true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
		AllowAdditionalProperties:  true,
	}
	b, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("marshal schema %q: %w", name, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema %q: %w", name, err)
	}
	// gojsonschema understands up to draft-07; the reflected keywords we use
	// are the same there.
	delete(doc, "$schema")
	delete(doc, "$id")

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("compile schema %q: %w", name, err)
	}
	return &Schema{name: name, document: doc, compiled: compiled}, nil
}
