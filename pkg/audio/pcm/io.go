package pcm

import (
	"io"
	"time"
)

// Writer consumes chunks of audio data.
type Writer interface {
	Write(Chunk) error
}

var _ Writer = WriteFunc(nil)

// WriteFunc adapts a function to Writer.
type WriteFunc func(Chunk) error

func (f WriteFunc) Write(c Chunk) error {
	return f(c)
}

// ChunkWriter returns a Writer that copies chunk bytes to w. Chunks that
// split a frame are rejected with ErrInvalidAudioBuffer before anything is
// written.
func ChunkWriter(w io.Writer) Writer {
	return &chunkWriter{w: w}
}

type chunkWriter struct {
	w io.Writer
}

func (w *chunkWriter) Write(c Chunk) error {
	if err := CheckFraming(int(c.Len()), c.Format().Channels); err != nil {
		return err
	}
	_, err := c.WriteTo(w.w)
	return err
}

// ChunkBytes returns the size of a chunk holding d of audio, rounded down
// to whole frames and never less than one frame.
func (f Format) ChunkBytes(d time.Duration) int {
	fb := f.FrameBytes()
	n := int(f.BytesInDuration(d))
	n -= n % fb
	return max(n, fb)
}
