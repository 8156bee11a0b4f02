package pcm

import (
	"fmt"
	"io"
	"time"
)

var (
	// L16Mono16K represents audio/L16; rate=16000; channels=1
	L16Mono16K = Format{SampleRate: 16000, Channels: 1}
	// L16Mono24K represents audio/L16; rate=24000; channels=1
	L16Mono24K = Format{SampleRate: 24000, Channels: 1}
	// L16Mono48K represents audio/L16; rate=48000; channels=1
	L16Mono48K = Format{SampleRate: 48000, Channels: 1}
	// L16Stereo48K represents audio/L16; rate=48000; channels=2
	L16Stereo48K = Format{SampleRate: 48000, Channels: 2}
)

// Chunk is a chunk of audio data.
type Chunk interface {
	Len() int64
	Format() Format
	WriteTo(w io.Writer) (int64, error)
}

// Format describes signed 16-bit little-endian PCM with an arbitrary sample
// rate and channel count.
type Format struct {
	SampleRate int
	Channels   int
}

// NewFormat returns the 16-bit PCM format for the given rate and channel
// count. It returns ErrInvalidAudioBuffer if either value is not positive.
func NewFormat(sampleRate, channels int) (Format, error) {
	if sampleRate <= 0 {
		return Format{}, fmt.Errorf("%w: sample rate %d", ErrInvalidAudioBuffer, sampleRate)
	}
	if channels <= 0 {
		return Format{}, fmt.Errorf("%w: channel count %d", ErrInvalidAudioBuffer, channels)
	}
	return Format{SampleRate: sampleRate, Channels: channels}, nil
}

// Depth returns the bit depth for this format.
func (f Format) Depth() int {
	return 16
}

// FrameBytes returns the size of one interleaved frame in bytes.
func (f Format) FrameBytes() int {
	return f.Channels * f.Depth() / 8
}

// Samples returns the number of frames in the given number of bytes.
func (f Format) Samples(bytes int64) int64 {
	return bytes * 8 / int64(f.Channels) / int64(f.Depth())
}

// SamplesInDuration returns the number of frames in the given duration.
func (f Format) SamplesInDuration(d time.Duration) int64 {
	return int64(time.Duration(f.SampleRate) * d / time.Second)
}

// BytesInDuration returns the number of bytes in the given duration.
func (f Format) BytesInDuration(d time.Duration) int64 {
	return f.SamplesInDuration(d) * int64(f.FrameBytes())
}

// Duration returns the duration of the given number of bytes.
func (f Format) Duration(bytes int64) time.Duration {
	return time.Duration(f.Samples(bytes)) * time.Second / time.Duration(f.SampleRate)
}

// BytesRate returns the byte rate of the audio data.
func (f Format) BytesRate() int {
	return f.SampleRate * f.FrameBytes()
}

// DataChunk returns a chunk of audio data.
func (f Format) DataChunk(data []byte) Chunk {
	return &DataChunk{
		Data: data,
		fmt:  f,
	}
}

// String returns the MIME-style description of the format.
func (f Format) String() string {
	return fmt.Sprintf("audio/L16; rate=%d; channels=%d", f.SampleRate, f.Channels)
}

// DataChunk is a chunk of audio data.
type DataChunk struct {
	Data []byte
	fmt  Format
}

// Len returns the length of the audio data in bytes.
func (c *DataChunk) Len() int64 {
	return int64(len(c.Data))
}

// Format returns the audio format of this chunk.
func (c *DataChunk) Format() Format {
	return c.fmt
}

// WriteTo writes the audio data to the writer.
func (c *DataChunk) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(c.Data)
	return int64(n), err
}
