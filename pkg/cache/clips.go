package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/storyspark/pkg/audio/pcm"
)

// Clips caches decoded narration audio keyed by namespace, voice and text.
// The namespace names the speech backend and model so clips from different
// models sharing one store never collide.
type Clips struct {
	store     Store
	namespace string
}

func NewClips(store Store, namespace string) *Clips {
	return &Clips{store: store, namespace: namespace}
}

type clipEntry struct {
	SampleRate int    `msgpack:"rate"`
	Channels   int    `msgpack:"channels"`
	PCM        []byte `msgpack:"pcm"`
}

func (c *Clips) key(voice, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "clip:" + c.namespace + ":" + voice + ":" + hex.EncodeToString(sum[:])
}

// Get returns the cached clip. The boolean is false on a miss.
func (c *Clips) Get(ctx context.Context, voice, text string) (*pcm.Buffer, bool, error) {
	b, err := c.store.Get(ctx, c.key(voice, text))
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var e clipEntry
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return nil, false, fmt.Errorf("cache: decode clip: %w", err)
	}
	buf, err := pcm.Decode(e.PCM, e.SampleRate, e.Channels)
	if err != nil {
		return nil, false, fmt.Errorf("cache: decode clip: %w", err)
	}
	return buf, true, nil
}

func (c *Clips) Put(ctx context.Context, voice, text string, buf *pcm.Buffer) error {
	b, err := msgpack.Marshal(&clipEntry{
		SampleRate: buf.SampleRate(),
		Channels:   buf.Channels(),
		PCM:        buf.Interleaved(),
	})
	if err != nil {
		return fmt.Errorf("cache: encode clip: %w", err)
	}
	return c.store.Set(ctx, c.key(voice, text), b)
}
