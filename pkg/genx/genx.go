package genx

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/google/jsonschema-go/jsonschema"
)

// Mode selects the shape of a generation result.
type Mode int

const (
	// ModeFreeText asks for unstructured text.
	ModeFreeText Mode = iota
	// ModeSchemaJSON asks for JSON text constrained by Request.Schema.
	ModeSchemaJSON
	// ModeAudio asks for synthesized speech as raw audio bytes.
	ModeAudio
)

func (m Mode) String() string {
	switch m {
	case ModeFreeText:
		return "free_text"
	case ModeSchemaJSON:
		return "schema_json"
	case ModeAudio:
		return "audio"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

type ModelParams struct {
	MaxTokens   int     `json:"max_tokens,omitzero" yaml:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitzero" yaml:"temperature,omitempty"`
	TopP        float32 `json:"top_p,omitzero" yaml:"top_p,omitempty"`
	TopK        float32 `json:"top_k,omitzero" yaml:"top_k,omitempty"`
}

// Request is one call to a generative service. Messages are sent in order
// and are never merged.
type Request struct {
	Mode Mode `json:"mode"`

	// System is an optional system instruction.
	System string `json:"system,omitempty"`

	Messages []*Message `json:"messages"`

	// Schema constrains the response in ModeSchemaJSON.
	Schema *jsonschema.Schema `json:"schema,omitempty"`

	// Voice names the speaker in ModeAudio. Empty selects the backend default.
	Voice string `json:"voice,omitempty"`

	Params *ModelParams `json:"params,omitempty"`
}

// Validate checks that the request is well formed for its mode.
func (r *Request) Validate() error {
	if len(r.Messages) == 0 {
		return errors.New("genx: request has no messages")
	}
	for i, m := range r.Messages {
		if m == nil || len(m.Parts) == 0 {
			return fmt.Errorf("genx: message %d is empty", i)
		}
		switch m.Role {
		case RoleUser, RoleModel:
		default:
			return fmt.Errorf("genx: message %d has unexpected role %q", i, m.Role)
		}
	}
	switch r.Mode {
	case ModeFreeText, ModeAudio:
	case ModeSchemaJSON:
		if r.Schema == nil {
			return errors.New("genx: schema_json request without schema")
		}
	default:
		return fmt.Errorf("genx: unknown mode %v", r.Mode)
	}
	return nil
}

// Response is the tagged union of generation results. The concrete type
// always matches the request mode: *TextResponse for ModeFreeText,
// *JSONResponse for ModeSchemaJSON and *AudioResponse for ModeAudio.
type Response interface {
	Mode() Mode
}

type TextResponse struct {
	Text  string
	Usage Usage
}

func (*TextResponse) Mode() Mode { return ModeFreeText }

type JSONResponse struct {
	// Raw is the JSON text as returned; it is not guaranteed to honor the
	// requested schema.
	Raw   string
	Usage Usage
}

func (*JSONResponse) Mode() Mode { return ModeSchemaJSON }

type AudioResponse struct {
	Data       []byte
	MIMEType   string
	SampleRate int
	Channels   int
	Usage      Usage
}

func (*AudioResponse) Mode() Mode { return ModeAudio }

// Service is a generative content backend.
type Service interface {
	Generate(ctx context.Context, req *Request) (Response, error)
}

var _ Service = ServiceFunc(nil)

// ServiceFunc adapts a function to the Service interface.
type ServiceFunc func(ctx context.Context, req *Request) (Response, error)

func (f ServiceFunc) Generate(ctx context.Context, req *Request) (Response, error) {
	return f(ctx, req)
}

// Expect resolves a Response into the concrete type T. A result of another
// type is reported as a mismatch GenerationError.
func Expect[T Response](resp Response, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	v, ok := resp.(T)
	if !ok || any(v) == nil {
		return zero, &GenerationError{
			Mode:   zero.Mode(),
			Status: StatusMismatch,
			Err:    fmt.Errorf("unexpected response type %T", resp),
		}
	}
	return v, nil
}

type Usage struct {
	// Number of tokens in the prompt, including any inline media.
	PromptTokenCount int64

	// Number of tokens generated.
	GeneratedTokenCount int64
}

func (u Usage) String() string {
	b, _ := yaml.Marshal(map[string]map[string]any{
		"Usage": {
			"Prompt":    u.PromptTokenCount,
			"Generated": u.GeneratedTokenCount,
		},
	})
	return string(b)
}
