package story

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/haivivi/storyspark/pkg/audio/pcm"
	"github.com/haivivi/storyspark/pkg/audio/playback"
	"github.com/haivivi/storyspark/pkg/genx"
	"github.com/haivivi/storyspark/pkg/storage"
)

var (
	// ErrActionInFlight is returned when an action is triggered while its
	// previous call is still outstanding. The service is not called.
	ErrActionInFlight = errors.New("story: action already in flight")

	ErrNoMedia      = errors.New("story: no media attached")
	ErrNoParagraph  = errors.New("story: no paragraph yet")
	ErrEmptyMessage = errors.New("story: empty chat message")
	ErrNoSink       = errors.New("story: no export destination")
)

// PlaceholderParagraph replaces the paragraph when narrative generation
// fails.
const PlaceholderParagraph = "The story could not be written this time. Please try again."

// Action identifies an independent in-flight slot of an Engine.
type Action int

const (
	ActionNarrative Action = iota
	ActionSuggestions
	ActionChat
	ActionNarration

	numActions
)

func (a Action) String() string {
	switch a {
	case ActionNarrative:
		return "narrative"
	case ActionSuggestions:
		return "suggestions"
	case ActionChat:
		return "chat"
	case ActionNarration:
		return "narration"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Player starts playback of decoded audio. *playback.Controller satisfies
// it.
type Player interface {
	Play(buf *pcm.Buffer) (*playback.Handle, error)
}

// ClipCache stores narrated audio by voice and text.
type ClipCache interface {
	Get(ctx context.Context, voice, text string) (*pcm.Buffer, bool, error)
	Put(ctx context.Context, voice, text string, buf *pcm.Buffer) error
}

type Option func(*Engine)

// WithValidator sets how suggestion responses are parsed. The default is a
// strict Validator.
func WithValidator(v Validator) Option {
	return func(e *Engine) { e.validator = v }
}

// WithVoice sets the narration voice. Empty selects the service default.
func WithVoice(voice string) Option {
	return func(e *Engine) { e.voice = voice }
}

func WithPlayer(p Player) Option {
	return func(e *Engine) { e.player = p }
}

func WithClipCache(c ClipCache) Option {
	return func(e *Engine) { e.clips = c }
}

// WithSink sets where Export writes stories.
func WithSink(s storage.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine runs the actions of a Session against a generative service. Each
// action admits one outstanding call at a time; different actions run
// concurrently.
type Engine struct {
	svc     genx.Service
	session *Session

	validator Validator
	voice     string
	player    Player
	clips     ClipCache
	sink      storage.Sink
	now       func() time.Time

	slots [numActions]*semaphore.Weighted
	busy  [numActions]atomic.Bool
}

func NewEngine(svc genx.Service, session *Session, opts ...Option) *Engine {
	e := &Engine{
		svc:     svc,
		session: session,
		now:     time.Now,
	}
	for i := range e.slots {
		e.slots[i] = semaphore.NewWeighted(1)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Session() *Session {
	return e.session
}

// Busy reports whether a call for a is outstanding. It never takes the
// slot itself.
func (e *Engine) Busy(a Action) bool {
	return e.busy[a].Load()
}

func (e *Engine) acquire(a Action) (func(), error) {
	if !e.slots[a].TryAcquire(1) {
		return nil, fmt.Errorf("%w: %s", ErrActionInFlight, a)
	}
	e.busy[a].Store(true)
	return func() {
		e.busy[a].Store(false)
		e.slots[a].Release(1)
	}, nil
}

// GenerateNarrative writes the opening paragraph for the session media. On
// failure the paragraph becomes PlaceholderParagraph, the suggestions are
// cleared and the error is returned. The transcript is not touched.
func (e *Engine) GenerateNarrative(ctx context.Context) (string, error) {
	release, err := e.acquire(ActionNarrative)
	if err != nil {
		return "", err
	}
	defer release()

	media := e.session.Media()
	if media == nil {
		return "", ErrNoMedia
	}
	req := NarrativeRequest(*media, e.session.Language())
	resp, err := genx.Expect[*genx.TextResponse](e.svc.Generate(ctx, req))
	if err != nil {
		slog.Warn("story: narrative generation failed", "session", e.session.ID(), "error", err)
		e.session.setPlaceholder()
		return "", fmt.Errorf("story: generate narrative: %w", err)
	}
	paragraph := strings.TrimSpace(resp.Text)
	e.session.SetParagraph(paragraph)
	return paragraph, nil
}

// GenerateSuggestions replaces the session suggestions with new ideas for
// the current paragraph. A response that does not match the schema yields
// an empty list and no error; a failed call clears the list and returns the
// error. When the paragraph changes while the call is outstanding, the
// result is returned but not stored.
func (e *Engine) GenerateSuggestions(ctx context.Context) ([]Suggestion, error) {
	release, err := e.acquire(ActionSuggestions)
	if err != nil {
		return nil, err
	}
	defer release()

	paragraph := e.session.storyParagraph()
	if paragraph == "" {
		return nil, ErrNoParagraph
	}
	req := SuggestionRequest(e.session.Media(), paragraph)
	resp, err := genx.Expect[*genx.JSONResponse](e.svc.Generate(ctx, req))
	if err != nil {
		e.session.setSuggestions(paragraph, nil)
		return []Suggestion{}, fmt.Errorf("story: generate suggestions: %w", err)
	}
	list := e.validator.Parse(resp.Raw)
	if !e.session.setSuggestions(paragraph, list) {
		slog.Debug("story: paragraph changed, suggestions not stored", "session", e.session.ID())
	}
	return list, nil
}

// Chat sends text as the next user turn and returns the reply. The turn and
// the reply are appended to the transcript only when the call succeeds.
func (e *Engine) Chat(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}
	release, err := e.acquire(ActionChat)
	if err != nil {
		return "", err
	}
	defer release()

	history := e.session.Transcript()
	req := ChatRequest(history.Snapshot(), e.session.Media(), text, e.session.storyParagraph())
	resp, err := genx.Expect[*genx.TextResponse](e.svc.Generate(ctx, req))
	if err != nil {
		return "", fmt.Errorf("story: chat: %w", err)
	}
	reply := strings.TrimSpace(resp.Text)
	history.appendExchange(text, reply)
	return reply, nil
}

// Narration is the result of a narration action.
type Narration struct {
	Audio *pcm.Buffer

	// Handle is the playback handle, nil when the engine has no player.
	Handle *playback.Handle

	// Cached reports whether the audio came from the clip cache.
	Cached bool
}

// Narrate reads the current paragraph aloud.
func (e *Engine) Narrate(ctx context.Context) (*Narration, error) {
	paragraph := e.session.storyParagraph()
	if paragraph == "" {
		return nil, ErrNoParagraph
	}
	return e.NarrateText(ctx, paragraph)
}

// NarrateText reads text aloud, playing it when the engine has a player.
// Starting playback preempts any clip still playing.
func (e *Engine) NarrateText(ctx context.Context, text string) (*Narration, error) {
	release, err := e.acquire(ActionNarration)
	if err != nil {
		return nil, err
	}
	defer release()

	n := &Narration{}
	if e.clips != nil {
		buf, ok, err := e.clips.Get(ctx, e.voice, text)
		if err != nil {
			slog.Warn("story: read narration cache", "error", err)
		}
		if ok {
			n.Audio, n.Cached = buf, true
		}
	}
	if n.Audio == nil {
		resp, err := genx.Expect[*genx.AudioResponse](e.svc.Generate(ctx, SpeechRequest(text, e.voice)))
		if err != nil {
			return nil, fmt.Errorf("story: narrate: %w", err)
		}
		buf, err := pcm.Decode(resp.Data, resp.SampleRate, resp.Channels)
		if err != nil {
			return nil, fmt.Errorf("story: narrate: %w", err)
		}
		n.Audio = buf
		if e.clips != nil {
			if err := e.clips.Put(ctx, e.voice, text, buf); err != nil {
				slog.Warn("story: write narration cache", "error", err)
			}
		}
	}
	if e.player != nil {
		h, err := e.player.Play(n.Audio)
		if err != nil {
			return n, fmt.Errorf("story: play narration: %w", err)
		}
		n.Handle = h
	}
	return n, nil
}

// Export writes the title and paragraph to the sink and returns the file
// name.
func (e *Engine) Export(ctx context.Context) (string, error) {
	if e.sink == nil {
		return "", ErrNoSink
	}
	paragraph := e.session.storyParagraph()
	if paragraph == "" {
		return "", ErrNoParagraph
	}
	title := e.session.Title()
	name := ExportName(title, e.session.Language(), e.now())
	if err := e.sink.Put(ctx, name, []byte(ExportContent(title, paragraph)), "text/plain; charset=utf-8"); err != nil {
		return "", fmt.Errorf("story: export: %w", err)
	}
	slog.Info("story: exported", "name", name)
	return name, nil
}
