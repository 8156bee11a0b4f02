// Package genx is a provider-neutral request/response layer over generative
// models.
//
// # Core Types
//
// A Request carries a Mode, an optional system instruction and an ordered
// list of Messages. Each Message is one turn with a Role and ordered Parts
// (Text or Blob). Turns are never merged, so consecutive user turns reach the
// backend as separate contents.
//
// Response is a tagged union whose concrete type matches the request mode:
//
//	ModeFreeText   -> *TextResponse
//	ModeSchemaJSON -> *JSONResponse
//	ModeAudio      -> *AudioResponse
//
// Callers resolve it once with Expect:
//
//	text, err := genx.Expect[*genx.TextResponse](svc.Generate(ctx, req))
//
// Every failure is a *GenerationError matching ErrGenerationFailed.
//
// # Backends
//
//   - GeminiService: Google Gemini via google.golang.org/genai
//   - OpenAIService: OpenAI chat completions and speech
//
// WithRateLimit and Instrument wrap any Service.
package genx
