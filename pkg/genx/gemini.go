package genx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"

	"github.com/haivivi/storyspark/pkg/audio/pcm"
)

var _ Service = (*GeminiService)(nil)

const (
	geminiProvider     = "gemini"
	geminiDefaultVoice = "Kore"
)

// GeminiModels is the subset of the genai Models API used by GeminiService.
// *genai.Models satisfies it.
type GeminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiService implements Service using the Google Gemini API.
type GeminiService struct {
	Models GeminiModels `json:"-"`

	// Model serves free text and JSON requests. It should not start with
	// "models/".
	Model string `json:"model"`

	// SpeechModel serves audio requests.
	SpeechModel string `json:"speech_model"`

	// Voice is the prebuilt voice used when a request names none.
	Voice string `json:"voice,omitempty"`

	Params *ModelParams `json:"params,omitzero"`
}

// NewGeminiService returns a GeminiService backed by client.
func NewGeminiService(client *genai.Client, model, speechModel, voice string) *GeminiService {
	return &GeminiService{
		Models:      client.Models,
		Model:       model,
		SpeechModel: speechModel,
		Voice:       voice,
	}
}

func (g *GeminiService) Generate(ctx context.Context, req *Request) (Response, error) {
	if err := req.Validate(); err != nil {
		return nil, Failed(geminiProvider, req.Mode, err)
	}
	cfg, contents, err := g.convRequest(req)
	if err != nil {
		return nil, Failed(geminiProvider, req.Mode, err)
	}
	model := g.Model
	if req.Mode == ModeAudio {
		model = g.SpeechModel
	}
	resp, err := g.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		if e, ok := err.(*apierror.APIError); ok {
			err = e.Unwrap()
		}
		return nil, Failed(geminiProvider, req.Mode, err)
	}
	return geminiConvResponse(req.Mode, resp)
}

func geminiConvResponse(mode Mode, resp *genai.GenerateContentResponse) (Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, Blocked(geminiProvider, mode, string(resp.PromptFeedback.BlockReason))
		}
		return nil, Empty(geminiProvider, mode)
	}
	t := resp.Candidates[0]
	switch t.FinishReason {
	case genai.FinishReasonStop, genai.FinishReasonUnspecified, "":
	case genai.FinishReasonMaxTokens:
		return nil, Truncated(geminiProvider, mode)
	case genai.FinishReasonSafety:
		var cats []string
		for _, sr := range t.SafetyRatings {
			if sr.Blocked {
				cats = append(cats, string(sr.Category))
			}
		}
		return nil, Blocked(geminiProvider, mode, "blocked by "+strings.Join(cats, ", "))
	default:
		return nil, Failed(geminiProvider, mode, fmt.Errorf("unexpected finish reason: %s", t.FinishReason))
	}
	if t.Content == nil {
		return nil, Empty(geminiProvider, mode)
	}

	var (
		sb    strings.Builder
		audio bytes.Buffer
		mime  string
	)
	for _, p := range t.Content.Parts {
		switch {
		case p.Text != "":
			sb.WriteString(p.Text)
		case p.InlineData != nil:
			if mime == "" {
				mime = p.InlineData.MIMEType
			}
			if p.InlineData.MIMEType == mime {
				audio.Write(p.InlineData.Data)
			}
		}
	}
	usage := geminiConvUsage(resp.UsageMetadata)

	switch mode {
	case ModeAudio:
		if audio.Len() == 0 {
			return nil, Empty(geminiProvider, mode)
		}
		rate, channels, ok := pcm.ParseL16MIME(mime)
		if !ok {
			rate, channels = pcm.L16Mono24K.SampleRate, pcm.L16Mono24K.Channels
		}
		return &AudioResponse{
			Data:       audio.Bytes(),
			MIMEType:   mime,
			SampleRate: rate,
			Channels:   channels,
			Usage:      usage,
		}, nil
	case ModeSchemaJSON:
		if sb.Len() == 0 {
			return nil, Empty(geminiProvider, mode)
		}
		return &JSONResponse{Raw: sb.String(), Usage: usage}, nil
	default:
		if sb.Len() == 0 {
			return nil, Empty(geminiProvider, mode)
		}
		return &TextResponse{Text: sb.String(), Usage: usage}, nil
	}
}

func geminiConvMessage(msg *Message) (*genai.Content, error) {
	var role string
	switch msg.Role {
	case RoleUser:
		role = "user"
	case RoleModel:
		role = "model"
	default:
		return nil, fmt.Errorf("unexpected role: %s", msg.Role)
	}
	parts := make([]*genai.Part, 0, len(msg.Parts))
	for _, c := range msg.Parts {
		switch v := c.(type) {
		case Text:
			parts = append(parts, genai.NewPartFromText(string(v)))
		case *Blob:
			parts = append(parts, genai.NewPartFromBytes(v.Data, v.MIMEType))
		default:
			return nil, fmt.Errorf("unexpected part type: %T", c)
		}
	}
	return &genai.Content{Role: role, Parts: parts}, nil
}

func (g *GeminiService) convRequest(req *Request) (*genai.GenerateContentConfig, []*genai.Content, error) {
	cfg := genai.GenerateContentConfig{}

	switch req.Mode {
	case ModeAudio:
		voice := req.Voice
		if voice == "" {
			voice = g.Voice
		}
		if voice == "" {
			voice = geminiDefaultVoice
		}
		cfg.ResponseModalities = []string{"AUDIO"}
		cfg.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		}
	default:
		cfg.SafetySettings = []*genai.SafetySetting{
			{
				Category:  genai.HarmCategoryHateSpeech,
				Threshold: genai.HarmBlockThresholdOff,
			},
			{
				Category:  genai.HarmCategoryHarassment,
				Threshold: genai.HarmBlockThresholdOff,
			},
			{
				Category:  genai.HarmCategoryDangerousContent,
				Threshold: genai.HarmBlockThresholdOff,
			},
		}
		if req.System != "" {
			cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(req.System)}}
		}
		if req.Mode == ModeSchemaJSON {
			cfg.ResponseMIMEType = "application/json"
			cfg.ResponseSchema = geminiConvSchema(req.Schema)
		}
	}

	mp := g.Params
	if req.Params != nil {
		mp = req.Params
	}
	if mp != nil {
		if mp.MaxTokens > 0 {
			cfg.MaxOutputTokens = int32(mp.MaxTokens)
		}
		if mp.Temperature > 0 {
			cfg.Temperature = &mp.Temperature
		}
		if mp.TopP > 0 {
			cfg.TopP = &mp.TopP
		}
		if mp.TopK > 0 {
			cfg.TopK = &mp.TopK
		}
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		c, err := geminiConvMessage(msg)
		if err != nil {
			return nil, nil, err
		}
		contents = append(contents, c)
	}
	if len(contents) == 0 {
		return nil, nil, errors.New("no contents")
	}
	// Speech models take no system instruction, so the direction leads the
	// last turn.
	if req.Mode == ModeAudio && req.System != "" {
		last := contents[len(contents)-1]
		last.Parts = append([]*genai.Part{genai.NewPartFromText(req.System + "\n\n")}, last.Parts...)
	}
	return &cfg, contents, nil
}

func geminiConvSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}

	enums := make([]string, 0, len(schema.Enum))
	for _, v := range schema.Enum {
		enums = append(enums, fmt.Sprintf("%v", v))
	}

	gs := genai.Schema{
		Format:      schema.Format,
		Description: schema.Description,
		Items:       geminiConvSchema(schema.Items),
		Required:    schema.Required,
	}
	if len(enums) > 0 {
		gs.Enum = enums
	}

	if n := len(schema.Properties); n > 0 {
		gs.Properties = make(map[string]*genai.Schema, n)
		for k, prop := range schema.Properties {
			gs.Properties[k] = geminiConvSchema(prop)
		}
	}
	switch schema.Type {
	case "object":
		gs.Type = genai.TypeObject
	case "array":
		gs.Type = genai.TypeArray
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	}
	return &gs
}

func geminiConvUsage(usage *genai.GenerateContentResponseUsageMetadata) Usage {
	if usage == nil {
		return Usage{}
	}
	return Usage{
		PromptTokenCount:    int64(usage.PromptTokenCount),
		GeneratedTokenCount: int64(usage.CandidatesTokenCount),
	}
}
