// Package playback owns the single active narration clip.
//
// A Controller starts clips on an Output. Starting a clip stops the
// previous one first, so two clips never overlap. Only a clip that ends on
// its own while it is still current reports completion.
package playback

import (
	"errors"
	"fmt"
	"sync"

	"github.com/haivivi/storyspark/pkg/audio/pcm"
)

// Source is a clip started by an Output.
type Source interface {
	// Stop halts the clip and returns once it is silent. Stop is
	// idempotent.
	Stop()

	// Done is closed when the clip has ended, naturally or by Stop.
	Done() <-chan struct{}
}

// Output is the audio output primitive.
type Output interface {
	Start(buf *pcm.Buffer) (Source, error)
}

type State int

const (
	StateIdle State = iota
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePlaying:
		return "PLAYING"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Handle identifies one Play call.
type Handle struct {
	id        uint64
	buf       *pcm.Buffer
	src       Source
	completed chan struct{}
}

func (h *Handle) ID() uint64 { return h.id }

func (h *Handle) Audio() *pcm.Buffer { return h.buf }

// Completed is closed when the clip finished on its own. It is never closed
// for a clip that was stopped or preempted.
func (h *Handle) Completed() <-chan struct{} { return h.completed }

// Done is closed when the clip is no longer audible for any reason.
func (h *Handle) Done() <-chan struct{} { return h.src.Done() }

type Option func(*Controller)

// WithOnComplete registers fn to run after a handle completes. fn runs on
// its own goroutine and may call back into the Controller.
func WithOnComplete(fn func(*Handle)) Option {
	return func(c *Controller) { c.onComplete = fn }
}

// Controller plays at most one clip at a time. It is safe for concurrent
// use.
type Controller struct {
	out        Output
	onComplete func(*Handle)

	mu  sync.Mutex
	seq uint64
	cur *Handle
}

func NewController(out Output, opts ...Option) *Controller {
	c := &Controller{out: out}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Play stops the current clip, waits for it to go silent and starts buf.
func (c *Controller) Play(buf *pcm.Buffer) (*Handle, error) {
	if buf == nil {
		return nil, errors.New("playback: nil buffer")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur != nil {
		c.cur.src.Stop()
		c.cur = nil
	}
	src, err := c.out.Start(buf)
	if err != nil {
		return nil, fmt.Errorf("playback: start: %w", err)
	}
	c.seq++
	h := &Handle{
		id:        c.seq,
		buf:       buf,
		src:       src,
		completed: make(chan struct{}),
	}
	c.cur = h
	go c.watch(h)
	return h, nil
}

func (c *Controller) watch(h *Handle) {
	<-h.src.Done()

	c.mu.Lock()
	if c.cur != h {
		c.mu.Unlock()
		return
	}
	c.cur = nil
	close(h.completed)
	fn := c.onComplete
	c.mu.Unlock()

	if fn != nil {
		fn(h)
	}
}

// Stop silences the current clip. It is a no-op when idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return
	}
	c.cur.src.Stop()
	c.cur = nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return StateIdle
	}
	return StatePlaying
}

// Current returns the playing handle, or nil when idle.
func (c *Controller) Current() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}
