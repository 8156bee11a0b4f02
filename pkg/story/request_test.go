package story

import (
	"bytes"
	"strings"
	"testing"

	"github.com/haivivi/storyspark/pkg/genx"
)

func mustMedia(t *testing.T, data []byte, mimeType string) Media {
	t.Helper()
	m, err := NewMedia(data, mimeType)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestNarrativeRequest(t *testing.T) {
	img := mustMedia(t, pngHeader, "image/png")
	req := NarrativeRequest(img, "Japanese")

	if req.Mode != genx.ModeFreeText {
		t.Fatalf("Mode = %v", req.Mode)
	}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != genx.RoleUser {
		t.Fatalf("messages = %+v", req.Messages)
	}
	parts := req.Messages[0].Parts
	if len(parts) != 2 {
		t.Fatalf("len(parts) = %d, want 2", len(parts))
	}
	blob, ok := parts[0].(*genx.Blob)
	if !ok || blob.MIMEType != "image/png" || !bytes.Equal(blob.Data, pngHeader) {
		t.Fatalf("parts[0] = %#v", parts[0])
	}
	text := string(parts[1].(genx.Text))
	if !strings.Contains(text, "Japanese") || !strings.Contains(text, "image") {
		t.Errorf("instruction = %q", text)
	}

	video := NarrativeRequest(mustMedia(t, []byte{1}, "video/mp4"), "")
	vtext := string(video.Messages[0].Parts[1].(genx.Text))
	if !strings.Contains(vtext, "video") || !strings.Contains(vtext, DefaultLanguage) {
		t.Errorf("video instruction = %q", vtext)
	}
}

func TestSuggestionRequest(t *testing.T) {
	paragraph := "The tide came in \"sideways\" that night."

	req := SuggestionRequest(nil, paragraph)
	if req.Mode != genx.ModeSchemaJSON || req.Schema == nil || req.Schema.Type != "array" {
		t.Fatalf("req = %+v", req)
	}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}
	parts := req.Messages[0].Parts
	if len(parts) != 1 {
		t.Fatalf("without media: len(parts) = %d, want 1", len(parts))
	}
	text := string(parts[0].(genx.Text))
	if !strings.Contains(text, paragraph) {
		t.Errorf("instruction does not embed the paragraph verbatim: %q", text)
	}
	for _, want := range []string{"exactly 3", "PLOT", "CHARACTER", "SETTING"} {
		if !strings.Contains(text, want) {
			t.Errorf("instruction missing %q", want)
		}
	}

	img := mustMedia(t, pngHeader, "image/png")
	req = SuggestionRequest(&img, paragraph)
	parts = req.Messages[0].Parts
	if len(parts) != 2 {
		t.Fatalf("with media: len(parts) = %d, want 2", len(parts))
	}
	if _, ok := parts[0].(*genx.Blob); !ok {
		t.Errorf("parts[0] = %T, want *genx.Blob", parts[0])
	}

	empty := Media{}
	if n := len(SuggestionRequest(&empty, paragraph).Messages[0].Parts); n != 1 {
		t.Errorf("zero media attached: %d parts", n)
	}
}

func TestChatRequest(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUser("a")
	tr.AppendModel("b")
	tr.AppendUser("c")
	history := tr.Snapshot()
	img := mustMedia(t, pngHeader, "image/png")

	req := ChatRequest(history, &img, "make it darker", "It was a calm night.")

	if tr.Len() != 4 {
		t.Fatalf("builder changed the transcript: Len = %d", tr.Len())
	}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}
	wantRoles := []genx.Role{genx.RoleModel, genx.RoleUser, genx.RoleModel, genx.RoleUser, genx.RoleUser}
	if len(req.Messages) != len(wantRoles) {
		t.Fatalf("len(messages) = %d, want %d", len(req.Messages), len(wantRoles))
	}
	for i, m := range req.Messages {
		if m.Role != wantRoles[i] {
			t.Errorf("messages[%d].Role = %s, want %s", i, m.Role, wantRoles[i])
		}
	}
	for i, m := range req.Messages[:4] {
		if len(m.Parts) != 1 {
			t.Fatalf("messages[%d] has %d parts, want 1", i, len(m.Parts))
		}
		if m.Text() != history[i].Text {
			t.Errorf("messages[%d] = %q, want %q", i, m.Text(), history[i].Text)
		}
	}
	last := req.Messages[4]
	if len(last.Parts) != 2 {
		t.Fatalf("new turn has %d parts, want 2", len(last.Parts))
	}
	if _, ok := last.Parts[0].(*genx.Blob); !ok {
		t.Errorf("new turn parts[0] = %T, want *genx.Blob", last.Parts[0])
	}
	if last.Text() != "make it darker" {
		t.Errorf("new turn text = %q", last.Text())
	}
	if !strings.Contains(req.System, "It was a calm night.") {
		t.Errorf("system = %q", req.System)
	}

	plain := ChatRequest(history, nil, "hi", "")
	if n := len(plain.Messages[4].Parts); n != 1 {
		t.Errorf("without media the new turn has %d parts", n)
	}
}

func TestSpeechRequest(t *testing.T) {
	req := SpeechRequest("Once upon a time.", "Kore")
	if req.Mode != genx.ModeAudio || req.Voice != "Kore" {
		t.Fatalf("req = %+v", req)
	}
	if req.System == "" {
		t.Error("missing delivery direction")
	}
	if len(req.Messages) != 1 || req.Messages[0].Text() != "Once upon a time." {
		t.Fatalf("messages = %+v", req.Messages)
	}
}
