package story

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the mutable state of one storytelling session. Its setters are
// safe for concurrent use; generated state is written by Engine only.
type Session struct {
	id        uuid.UUID
	createdAt time.Time
	history   *Transcript

	mu          sync.Mutex
	media       Media
	title       string
	language    string
	paragraph   string
	failed      bool
	suggestions []Suggestion
}

func NewSession() *Session {
	return &Session{
		id:          uuid.Must(uuid.NewV7()),
		createdAt:   time.Now(),
		history:     NewTranscript(),
		language:    DefaultLanguage,
		suggestions: []Suggestion{},
	}
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) Transcript() *Transcript { return s.history }

// SetMedia replaces the current attachment.
func (s *Session) SetMedia(m Media) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media = m
}

// Media returns the current attachment, or nil when none was set.
func (s *Session) Media() *Media {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.media.IsZero() {
		return nil
	}
	m := s.media
	return &m
}

func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
}

func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// SetLanguage sets the narrative language. An empty language restores
// DefaultLanguage.
func (s *Session) SetLanguage(language string) {
	if language == "" {
		language = DefaultLanguage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = language
}

func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

func (s *Session) Paragraph() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paragraph
}

// SetParagraph replaces the paragraph with one written elsewhere, such as a
// previous export, and clears the suggestions made for the old one.
func (s *Session) SetParagraph(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paragraph = p
	s.failed = false
	s.suggestions = []Suggestion{}
}

// Suggestions returns a copy of the current suggestions.
func (s *Session) Suggestions() []Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.suggestions)
}

// setPlaceholder shows PlaceholderParagraph after a failed narrative. The
// placeholder is not a story: storyParagraph reports it as empty.
func (s *Session) setPlaceholder() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paragraph = PlaceholderParagraph
	s.failed = true
	s.suggestions = []Suggestion{}
}

// storyParagraph returns the paragraph, or "" while the placeholder is
// shown.
func (s *Session) storyParagraph() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return ""
	}
	return s.paragraph
}

// setSuggestions stores list if paragraph is still the current paragraph
// and reports whether it did.
func (s *Session) setSuggestions(paragraph string, list []Suggestion) bool {
	if list == nil {
		list = []Suggestion{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed || s.paragraph != paragraph {
		return false
	}
	s.suggestions = slices.Clone(list)
	return true
}

// MediaInfo describes an attachment without its bytes.
type MediaInfo struct {
	MIMEType string `json:"mime_type" yaml:"mime_type"`
	Size     int    `json:"size" yaml:"size"`
}

// State is a point-in-time copy of a session for display.
type State struct {
	ID          string       `json:"id" yaml:"id"`
	CreatedAt   time.Time    `json:"created_at" yaml:"created_at"`
	Title       string       `json:"title,omitempty" yaml:"title,omitempty"`
	Language    string       `json:"language" yaml:"language"`
	Media       *MediaInfo   `json:"media,omitempty" yaml:"media,omitempty"`
	Paragraph   string       `json:"paragraph,omitempty" yaml:"paragraph,omitempty"`
	Suggestions []Suggestion `json:"suggestions" yaml:"suggestions"`
	Transcript  []Turn       `json:"transcript" yaml:"transcript"`
}

// State returns a copy of the session.
func (s *Session) State() State {
	s.mu.Lock()
	st := State{
		ID:          s.id.String(),
		CreatedAt:   s.createdAt,
		Title:       s.title,
		Language:    s.language,
		Paragraph:   s.paragraph,
		Suggestions: slices.Clone(s.suggestions),
	}
	if !s.media.IsZero() {
		st.Media = &MediaInfo{MIMEType: s.media.MIMEType(), Size: s.media.Size()}
	}
	s.mu.Unlock()
	st.Transcript = s.history.Snapshot()
	return st
}
