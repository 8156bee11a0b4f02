package genx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/haivivi/storyspark/pkg/audio/pcm"
	"github.com/haivivi/storyspark/pkg/encoding"
)

var _ Service = (*OpenAIService)(nil)

const (
	oaiProvider = "openai"

	oaiFinishReasonStop          string = "stop"
	oaiFinishReasonLength        string = "length"
	oaiFinishReasonContentFilter string = "content_filter"

	oaiDefaultVoice       = "alloy"
	oaiWrappedSchemaField = "items"
)

// OpenAIChat is the chat completion API used by OpenAIService.
// *openai.ChatCompletionService satisfies it.
type OpenAIChat interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAISpeech is the text-to-speech API used by OpenAIService.
// *openai.AudioSpeechService satisfies it.
type OpenAISpeech interface {
	New(ctx context.Context, body openai.AudioSpeechNewParams, opts ...option.RequestOption) (*http.Response, error)
}

// OpenAISchemaFormatter formats a JSON schema for OpenAI structured outputs.
type OpenAISchemaFormatter func(m *jsonschema.Schema) *jsonschema.Schema

// OpenAIService implements Service using the OpenAI API.
//
// Audio requests are answered with 16-bit mono PCM at 24kHz, the only raw
// format the speech endpoint produces. Only the text of the last message is
// spoken; the system instruction is not sent.
type OpenAIService struct {
	Chat   OpenAIChat   `json:"-"`
	Speech OpenAISpeech `json:"-"`

	Model       string `json:"model"`
	SpeechModel string `json:"speech_model"`
	Voice       string `json:"voice,omitempty"`

	Params *ModelParams `json:"params,omitzero"`

	SchemaFormatter OpenAISchemaFormatter `json:"-"`
}

// NewOpenAIService returns an OpenAIService backed by client.
func NewOpenAIService(client *openai.Client, model, speechModel, voice string) *OpenAIService {
	return &OpenAIService{
		Chat:        &client.Chat.Completions,
		Speech:      &client.Audio.Speech,
		Model:       model,
		SpeechModel: speechModel,
		Voice:       voice,
	}
}

func (g *OpenAIService) Generate(ctx context.Context, req *Request) (Response, error) {
	if err := req.Validate(); err != nil {
		return nil, Failed(oaiProvider, req.Mode, err)
	}
	if req.Mode == ModeAudio {
		return g.speak(ctx, req)
	}
	params, wrapped, err := g.chatCompletion(req)
	if err != nil {
		return nil, Failed(oaiProvider, req.Mode, err)
	}
	resp, err := g.Chat.New(ctx, params)
	if err != nil {
		return nil, Failed(oaiProvider, req.Mode, err)
	}
	if len(resp.Choices) == 0 {
		return nil, Empty(oaiProvider, req.Mode)
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, Blocked(oaiProvider, req.Mode, choice.Message.Refusal)
	}
	switch choice.FinishReason {
	case oaiFinishReasonStop:
	case oaiFinishReasonLength:
		return nil, Truncated(oaiProvider, req.Mode)
	case oaiFinishReasonContentFilter:
		return nil, Blocked(oaiProvider, req.Mode, "content filter")
	default:
		return nil, Failed(oaiProvider, req.Mode, fmt.Errorf("unexpected finish reason: %s", choice.FinishReason))
	}
	text := choice.Message.Content
	if text == "" {
		return nil, Empty(oaiProvider, req.Mode)
	}
	usage := oaiConvUsage(&resp.Usage)
	if req.Mode == ModeSchemaJSON {
		if wrapped {
			text = oaiUnwrapJSON(text)
		}
		return &JSONResponse{Raw: text, Usage: usage}, nil
	}
	return &TextResponse{Text: text, Usage: usage}, nil
}

func (g *OpenAIService) speak(ctx context.Context, req *Request) (Response, error) {
	input := req.Messages[len(req.Messages)-1].Text()
	if input == "" {
		return nil, Failed(oaiProvider, req.Mode, errors.New("speech input must contain text"))
	}
	voice := req.Voice
	if voice == "" {
		voice = g.Voice
	}
	if voice == "" {
		voice = oaiDefaultVoice
	}
	resp, err := g.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          input,
		Model:          openai.SpeechModel(g.SpeechModel),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat("pcm"),
	})
	if err != nil {
		return nil, Failed(oaiProvider, req.Mode, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Failed(oaiProvider, req.Mode, err)
	}
	if len(data) == 0 {
		return nil, Empty(oaiProvider, req.Mode)
	}
	return &AudioResponse{
		Data:       data,
		MIMEType:   pcm.L16Mono24K.String(),
		SampleRate: pcm.L16Mono24K.SampleRate,
		Channels:   pcm.L16Mono24K.Channels,
	}, nil
}

// chatCompletion builds the request parameters. The returned flag reports
// whether a non-object schema was wrapped into an object, which structured
// outputs require at the root.
func (g *OpenAIService) chatCompletion(req *Request) (openai.ChatCompletionNewParams, bool, error) {
	msgs, err := g.convRequest(req)
	if err != nil {
		return openai.ChatCompletionNewParams{}, false, err
	}
	params := openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    g.Model,
	}
	mp := g.Params
	if req.Params != nil {
		mp = req.Params
	}
	if mp != nil {
		if mp.MaxTokens > 0 {
			params.MaxCompletionTokens = param.NewOpt(int64(mp.MaxTokens))
		}
		if mp.Temperature > 0 {
			params.Temperature = param.NewOpt(float64(mp.Temperature))
		}
		if mp.TopP > 0 {
			params.TopP = param.NewOpt(float64(mp.TopP))
		}
	}
	var wrapped bool
	if req.Mode == ModeSchemaJSON {
		schema := req.Schema
		if schema.Type != "object" {
			schema = &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{oaiWrappedSchemaField: schema},
				Required:   []string{oaiWrappedSchemaField},
			}
			wrapped = true
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "response",
					Schema: g.patchSchema(schema),
					Strict: param.NewOpt(true),
				},
			},
		}
	}
	return params, wrapped, nil
}

// oaiUnwrapJSON extracts the wrapped field. Text that does not have the
// wrapper shape is returned unchanged for the caller to reject.
func oaiUnwrapJSON(text string) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return text
	}
	if v, ok := obj[oaiWrappedSchemaField]; ok {
		return string(v)
	}
	return text
}

func (g *OpenAIService) convRequest(req *Request) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: param.NewOpt(req.System),
				},
			},
		})
	}
	for _, msg := range req.Messages {
		var (
			mp  openai.ChatCompletionMessageParamUnion
			err error
		)
		switch msg.Role {
		case RoleUser:
			mp, err = g.convUserMessage(msg)
		case RoleModel:
			mp, err = g.convModelMessage(msg)
		default:
			err = fmt.Errorf("unexpected role: %s", msg.Role)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, mp)
	}
	return out, nil
}

func (g *OpenAIService) convModelMessage(msg *Message) (openai.ChatCompletionMessageParamUnion, error) {
	var text bytes.Buffer
	for _, c := range msg.Parts {
		switch v := c.(type) {
		case Text:
			text.WriteString(string(v))
		case *Blob:
			return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("model message must contain text only")
		}
	}
	if text.Len() == 0 {
		return openai.ChatCompletionMessageParamUnion{}, errors.New("model message must contain text")
	}
	return openai.ChatCompletionMessageParamUnion{
		OfAssistant: &openai.ChatCompletionAssistantMessageParam{
			Content: openai.ChatCompletionAssistantMessageParamContentUnion{
				OfString: param.NewOpt(text.String()),
			},
		},
	}, nil
}

func (g *OpenAIService) convUserMessage(msg *Message) (openai.ChatCompletionMessageParamUnion, error) {
	var contents []openai.ChatCompletionContentPartUnionParam
	for _, c := range msg.Parts {
		switch v := c.(type) {
		case Text:
			contents = append(contents, openai.TextContentPart(string(v)))
		case *Blob:
			switch {
			case strings.HasPrefix(v.MIMEType, "image/"):
				contents = append(contents, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: encoding.DataURL(v.MIMEType, v.Data),
				}))
			case v.MIMEType == "audio/mp3", v.MIMEType == "audio/mpeg":
				contents = append(contents, openai.InputAudioContentPart(openai.ChatCompletionContentPartInputAudioInputAudioParam{
					Data:   encoding.Encode(v.Data),
					Format: "mp3",
				}))
			case v.MIMEType == "audio/wav":
				contents = append(contents, openai.InputAudioContentPart(openai.ChatCompletionContentPartInputAudioInputAudioParam{
					Data:   encoding.Encode(v.Data),
					Format: "wav",
				}))
			default:
				return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unsupported media type: %s", v.MIMEType)
			}
		}
	}
	if len(contents) == 0 {
		return openai.ChatCompletionMessageParamUnion{}, errors.New("user message must contain text or media")
	}
	if len(contents) == 1 && contents[0].OfText != nil {
		return openai.ChatCompletionMessageParamUnion{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: param.NewOpt(contents[0].OfText.Text),
				},
			},
		}, nil
	}
	return openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfArrayOfContentParts: contents,
			},
		},
	}, nil
}

// FormatOpenAISchema formats a schema for OpenAI structured outputs.
//
// OpenAI strict mode requires:
//   - All objects must have additionalProperties: false
//   - All properties must be listed in required
//
// See https://platform.openai.com/docs/guides/structured-outputs
func FormatOpenAISchema(m *jsonschema.Schema) *jsonschema.Schema {
	if m == nil {
		return nil
	}

	// Merge Type into Types if both are set (jsonschema library may set
	// Types: ["null", "array"] with Type: "" for nullable fields). We need
	// to consolidate into a single representation for OpenAI.
	if m.Type != "" && len(m.Types) > 0 {
		m.Types = append(m.Types, m.Type)
		m.Type = ""
	}

	typ := m.Type
	if typ == "" && len(m.Types) > 0 {
		// Determine effective type for switch dispatch.
		for _, t := range m.Types {
			if t != "null" && t != "" {
				typ = t
				break
			}
		}
	}

	switch typ {
	case "array":
		m.Items = FormatOpenAISchema(m.Items)
	case "object":
		// additionalProperties: false must always be set in objects
		// https://platform.openai.com/docs/guides/structured-outputs#additionalproperties-false-must-always-be-set-in-objects
		m.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}} // false schema

		requires := make(map[string]struct{})
		for _, v := range m.Required {
			requires[v] = struct{}{}
		}
		for k, v := range m.Properties {
			if _, ok := requires[k]; !ok {
				requires[k] = struct{}{}
				// Add "null" only if not already present.
				if !slices.Contains(v.Types, "null") {
					v.Types = append(v.Types, "null")
				}
			}
			m.Properties[k] = FormatOpenAISchema(v)
		}

		// All fields must be required
		// https://platform.openai.com/docs/guides/structured-outputs#all-fields-must-be-required
		m.Required = slices.Collect(maps.Keys(requires))
	}
	return m
}

func (g *OpenAIService) patchSchema(m *jsonschema.Schema) *jsonschema.Schema {
	if m == nil {
		return nil
	}
	s := m.CloneSchemas()
	if g.SchemaFormatter != nil {
		return g.SchemaFormatter(s)
	}
	return FormatOpenAISchema(s)
}

func oaiConvUsage(usage *openai.CompletionUsage) Usage {
	return Usage{
		PromptTokenCount:    usage.PromptTokens,
		GeneratedTokenCount: usage.CompletionTokens,
	}
}
