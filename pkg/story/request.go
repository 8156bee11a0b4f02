package story

import (
	"embed"
	"strings"
	"text/template"

	"github.com/haivivi/storyspark/pkg/genx"
)

//go:embed prompts/*.gotmpl
var promptFS embed.FS

var prompts = template.Must(template.New("prompts").ParseFS(promptFS, "prompts/*.gotmpl"))

// DefaultLanguage is the narrative language used when none is set.
const DefaultLanguage = "English"

// render executes one of the embedded prompt templates. The templates are
// compiled into the binary, so a failure is a programming error.
func render(name string, data any) string {
	var sb strings.Builder
	if err := prompts.ExecuteTemplate(&sb, name, data); err != nil {
		panic("story: render " + name + ": " + err.Error())
	}
	return strings.TrimSpace(sb.String())
}

// NarrativeRequest asks for the opening paragraph of a story inspired by
// media, written in language. The video flag only changes the phrasing.
func NarrativeRequest(media Media, language string) *genx.Request {
	if language == "" {
		language = DefaultLanguage
	}
	instruction := render("narrative.gotmpl", map[string]any{
		"Video":    media.IsVideo(),
		"Language": language,
	})
	return &genx.Request{
		Mode:     genx.ModeFreeText,
		Messages: []*genx.Message{genx.UserMessage(media.Blob(), genx.Text(instruction))},
	}
}

// SuggestionRequest asks for three continuation ideas for paragraph as
// schema-constrained JSON. media is attached when present.
func SuggestionRequest(media *Media, paragraph string) *genx.Request {
	hasMedia := media != nil && !media.IsZero()
	instruction := render("suggestions.gotmpl", map[string]any{
		"Paragraph": paragraph,
		"HasMedia":  hasMedia,
		"Video":     hasMedia && media.IsVideo(),
	})
	var parts []genx.Part
	if hasMedia {
		parts = append(parts, media.Blob())
	}
	parts = append(parts, genx.Text(instruction))
	return &genx.Request{
		Mode:     genx.ModeSchemaJSON,
		Schema:   SuggestionSchema(),
		Messages: []*genx.Message{genx.UserMessage(parts...)},
	}
}

// ChatRequest replays history turn by turn and appends text as the new user
// turn. media, when present, is attached to the new turn only.
func ChatRequest(history []Turn, media *Media, text, paragraph string) *genx.Request {
	msgs := make([]*genx.Message, 0, len(history)+1)
	for _, t := range history {
		switch t.Speaker {
		case SpeakerUser:
			msgs = append(msgs, genx.UserMessage(genx.Text(t.Text)))
		case SpeakerModel:
			msgs = append(msgs, genx.ModelMessage(genx.Text(t.Text)))
		}
	}
	var parts []genx.Part
	if media != nil && !media.IsZero() {
		parts = append(parts, media.Blob())
	}
	parts = append(parts, genx.Text(text))
	msgs = append(msgs, genx.UserMessage(parts...))

	return &genx.Request{
		Mode:     genx.ModeFreeText,
		System:   render("chat_system.gotmpl", map[string]any{"Paragraph": paragraph}),
		Messages: msgs,
	}
}

// SpeechRequest asks for text read aloud by voice. The delivery direction
// travels as the system instruction so the message holds only the words to
// speak.
func SpeechRequest(text, voice string) *genx.Request {
	return &genx.Request{
		Mode:     genx.ModeAudio,
		System:   render("speech.gotmpl", nil),
		Voice:    voice,
		Messages: []*genx.Message{genx.UserMessage(genx.Text(text))},
	}
}
