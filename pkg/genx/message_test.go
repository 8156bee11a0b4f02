package genx

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestRole_String(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleUser, "user"},
		{RoleModel, "model"},
		{Role("custom"), "custom"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.role.String(); got != tt.want {
				t.Errorf("Role.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessage_Clone(t *testing.T) {
	original := UserMessage(Text("look"), &Blob{MIMEType: "image/png", Data: []byte{1, 2, 3}})
	cloned := original.Clone()

	if cloned.Role != RoleUser {
		t.Errorf("Role = %q, want user", cloned.Role)
	}
	if len(cloned.Parts) != 2 {
		t.Fatalf("len(Parts) = %d, want 2", len(cloned.Parts))
	}
	blob := cloned.Parts[1].(*Blob)
	blob.Data[0] = 99
	if original.Parts[1].(*Blob).Data[0] != 1 {
		t.Error("Clone shares blob data with the original")
	}
	cloned.Parts[0] = Text("changed")
	if original.Parts[0] != Text("look") {
		t.Error("Clone shares the parts slice with the original")
	}
}

func TestMessage_Text(t *testing.T) {
	msg := ModelMessage(Text("once "), &Blob{MIMEType: "image/png"}, Text("upon"))
	if got := msg.Text(); got != "once upon" {
		t.Errorf("Text() = %q, want %q", got, "once upon")
	}
	if got := UserMessage(&Blob{MIMEType: "video/mp4"}).Text(); got != "" {
		t.Errorf("Text() = %q, want empty", got)
	}
}

func TestMessage_JSON(t *testing.T) {
	msg := UserMessage(Text("hi"), &Blob{MIMEType: "image/png", Data: []byte{0x89, 0x50}})
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	want := `{"role":"user","parts":[{"text":"hi"},{"mime_type":"image/png","data":"iVA="}]}`
	if string(b) != want {
		t.Errorf("Marshal = %s, want %s", b, want)
	}

	var got Message
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if got.Role != RoleUser || len(got.Parts) != 2 {
		t.Fatalf("Unmarshal = %+v", got)
	}
	if got.Parts[0] != Text("hi") {
		t.Errorf("Parts[0] = %v, want hi", got.Parts[0])
	}
	blob, ok := got.Parts[1].(*Blob)
	if !ok {
		t.Fatalf("Parts[1] type = %T, want *Blob", got.Parts[1])
	}
	if blob.MIMEType != "image/png" || !bytes.Equal(blob.Data, []byte{0x89, 0x50}) {
		t.Errorf("Parts[1] = %+v", blob)
	}
}

func TestMessage_JSON_EmptyText(t *testing.T) {
	b, err := json.Marshal(ModelMessage(Text("")))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var got Message
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if len(got.Parts) != 1 || got.Parts[0] != Text("") {
		t.Errorf("Parts = %v, want one empty text part", got.Parts)
	}
}

func TestMessage_UnmarshalJSON_Invalid(t *testing.T) {
	tests := []string{
		`{"role":"user","parts":[{}]}`,
		`{"role":"user","parts":[{"mime_type":"image/png","data":"!!"}]}`,
		`[]`,
	}
	for _, in := range tests {
		var m Message
		if err := json.Unmarshal([]byte(in), &m); err == nil {
			t.Errorf("Unmarshal(%s) should fail", in)
		}
	}
}
