package story

import (
	"slices"
	"sync"
)

type Speaker string

const (
	SpeakerUser  Speaker = "USER"
	SpeakerModel Speaker = "MODEL"
)

// Greeting seeds every transcript so the first exchange has context.
const Greeting = "Hi! I'm your story partner. Ask me to change the tone, add a twist, or continue the tale."

// Turn is one entry of a Transcript.
type Turn struct {
	Speaker Speaker `json:"speaker" yaml:"speaker"`
	Text    string  `json:"text" yaml:"text"`
}

// Transcript is the append-only chat history of a session. It is safe for
// concurrent use.
type Transcript struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewTranscript returns a transcript holding the model greeting.
func NewTranscript() *Transcript {
	return &Transcript{turns: []Turn{{Speaker: SpeakerModel, Text: Greeting}}}
}

func (t *Transcript) AppendUser(text string) {
	t.append(Turn{Speaker: SpeakerUser, Text: text})
}

func (t *Transcript) AppendModel(text string) {
	t.append(Turn{Speaker: SpeakerModel, Text: text})
}

// appendExchange adds a user turn and its reply without letting another
// writer interleave.
func (t *Transcript) appendExchange(user, model string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, Turn{Speaker: SpeakerUser, Text: user}, Turn{Speaker: SpeakerModel, Text: model})
}

func (t *Transcript) append(turn Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, turn)
}

// Snapshot returns a copy of the turns in order.
func (t *Transcript) Snapshot() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.turns)
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}
