package story

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// ErrSchemaMismatch reports a suggestion response that is not valid JSON or
// does not match SuggestionSchema. Validator logs it and returns no
// suggestions instead.
var ErrSchemaMismatch = errors.New("story: suggestions do not match schema")

type Kind string

const (
	KindPlot      Kind = "PLOT"
	KindCharacter Kind = "CHARACTER"
	KindSetting   Kind = "SETTING"
)

// Suggestion is one continuation idea ("spark").
type Suggestion struct {
	Kind Kind   `json:"kind" yaml:"kind"`
	Text string `json:"text" yaml:"text"`
}

// SuggestionSchema returns the schema of a suggestion response: an array of
// objects with a required kind (PLOT, CHARACTER or SETTING) and a required
// text. Each call returns a new schema the caller may modify.
func SuggestionSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "array",
		Items: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"kind": {
					Type:        "string",
					Description: "What the idea develops.",
					Enum:        []any{string(KindPlot), string(KindCharacter), string(KindSetting)},
				},
				"text": {
					Type:        "string",
					Description: "The idea in one sentence.",
				},
			},
			Required: []string{"kind", "text"},
		},
	}
}

var resolvedSuggestionSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	return SuggestionSchema().Resolve(nil)
})

// Validator turns a raw suggestion response into suggestions.
type Validator struct {
	// Lenient repairs syntactically broken JSON (trailing commas, missing
	// brackets, single quotes) before validation. Well-formed input is
	// never rewritten.
	Lenient bool
}

// Parse returns the suggestions in raw in their original order. Any parse
// or schema failure yields an empty, non-nil slice.
func (v Validator) Parse(raw string) []Suggestion {
	out, err := v.parse(raw)
	if err != nil {
		slog.Debug("story: discard suggestions", "error", err, "lenient", v.Lenient)
		return []Suggestion{}
	}
	return out
}

func (v Validator) parse(raw string) ([]Suggestion, error) {
	data := []byte(raw)
	if v.Lenient && !json.Valid(data) {
		fixed, err := jsonrepair.JSONRepair(raw)
		if err == nil {
			data = []byte(fixed)
		}
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	rs, err := resolvedSuggestionSchema()
	if err != nil {
		return nil, err
	}
	if err := rs.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	var out []Suggestion
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if out == nil {
		out = []Suggestion{}
	}
	return out, nil
}

// ParseSuggestions parses raw with a strict Validator.
func ParseSuggestions(raw string) []Suggestion {
	return Validator{}.Parse(raw)
}
