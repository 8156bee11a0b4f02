package genx

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/haivivi/storyspark/pkg/encoding"
)

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

var (
	_ Part = (*Blob)(nil)
	_ Part = (*Text)(nil)
)

type Role string

func (r Role) String() string {
	return string(r)
}

// Message is one conversational turn: a role and its ordered parts.
type Message struct {
	Role  Role
	Parts Contents
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	parts := make(Contents, len(m.Parts))
	for i, p := range m.Parts {
		parts[i] = p.clone()
	}
	return &Message{Role: m.Role, Parts: parts}
}

// Text returns the concatenation of all text parts.
func (m *Message) Text() string {
	var s string
	for _, p := range m.Parts {
		if t, ok := p.(Text); ok {
			s += string(t)
		}
	}
	return s
}

// UserMessage returns a user turn carrying parts in order.
func UserMessage(parts ...Part) *Message {
	return &Message{Role: RoleUser, Parts: parts}
}

// ModelMessage returns a model turn carrying parts in order.
func ModelMessage(parts ...Part) *Message {
	return &Message{Role: RoleModel, Parts: parts}
}

type Contents []Part

type Part interface {
	isPart()
	clone() Part
}

// Blob is an inline binary part such as an image, a video or audio.
type Blob struct {
	MIMEType string
	Data     []byte
}

func (b *Blob) clone() Part {
	return &Blob{
		MIMEType: b.MIMEType,
		Data:     slices.Clone(b.Data),
	}
}

func (*Blob) isPart() {}

type Text string

func (t Text) clone() Part {
	return t
}

func (Text) isPart() {}

type partJSON struct {
	Text     *string                `json:"text,omitempty"`
	MIMEType string                 `json:"mime_type,omitempty"`
	Data     encoding.StdBase64Data `json:"data,omitempty"`
}

type messageJSON struct {
	Role  Role       `json:"role"`
	Parts []partJSON `json:"parts"`
}

// MarshalJSON renders the message with blobs as base64 text.
func (m *Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{Role: m.Role, Parts: make([]partJSON, 0, len(m.Parts))}
	for _, p := range m.Parts {
		switch v := p.(type) {
		case Text:
			s := string(v)
			out.Parts = append(out.Parts, partJSON{Text: &s})
		case *Blob:
			out.Parts = append(out.Parts, partJSON{MIMEType: v.MIMEType, Data: v.Data})
		default:
			return nil, fmt.Errorf("genx: unexpected part type: %T", p)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (m *Message) UnmarshalJSON(b []byte) error {
	var in messageJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	m.Role = in.Role
	m.Parts = make(Contents, 0, len(in.Parts))
	for _, p := range in.Parts {
		switch {
		case p.Text != nil:
			m.Parts = append(m.Parts, Text(*p.Text))
		case p.MIMEType != "":
			m.Parts = append(m.Parts, &Blob{MIMEType: p.MIMEType, Data: p.Data})
		default:
			return fmt.Errorf("genx: part has neither text nor mime_type")
		}
	}
	return nil
}
