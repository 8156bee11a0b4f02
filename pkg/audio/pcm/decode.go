package pcm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"mime"
	"slices"
	"strconv"
	"time"
)

// ErrInvalidAudioBuffer reports a PCM payload or format that cannot be
// framed: a non-positive rate or channel count, or a byte length that is not
// a whole number of frames.
var ErrInvalidAudioBuffer = errors.New("pcm: invalid audio buffer")

// normalizeDivisor maps int16 onto [-1, 1): -32768 becomes exactly -1.
const normalizeDivisor = 32768.0

// Buffer is decoded multi-channel audio with samples normalized to [-1, 1].
// A Buffer is never mutated after Decode returns it.
type Buffer struct {
	format  Format
	frames  int
	samples [][]float32
}

// SampleRate returns the sample rate in Hz.
func (b *Buffer) SampleRate() int { return b.format.SampleRate }

// Channels returns the channel count.
func (b *Buffer) Channels() int { return b.format.Channels }

// Format returns the 16-bit format the buffer was decoded from.
func (b *Buffer) Format() Format { return b.format }

// Frames returns the number of frames (samples per channel).
func (b *Buffer) Frames() int { return b.frames }

// Duration returns the playback duration of the buffer.
func (b *Buffer) Duration() time.Duration {
	return time.Duration(b.frames) * time.Second / time.Duration(b.format.SampleRate)
}

// Channel returns a copy of the samples of channel c in frame order.
func (b *Buffer) Channel(c int) []float32 {
	return slices.Clone(b.samples[c])
}

// Interleaved re-encodes the buffer as interleaved 16-bit little-endian PCM.
// For a buffer produced by Decode the result equals the decoded bytes.
func (b *Buffer) Interleaved() []byte {
	ch := b.format.Channels
	out := make([]byte, b.frames*ch*2)
	for i := range b.frames {
		for c := range ch {
			v := math.Round(float64(b.samples[c][i]) * normalizeDivisor)
			v = max(math.MinInt16, min(math.MaxInt16, v))
			binary.LittleEndian.PutUint16(out[(i*ch+c)*2:], uint16(int16(v)))
		}
	}
	return out
}

// CheckFraming reports whether n bytes hold a whole number of 16-bit frames
// of the given channel count.
func CheckFraming(n, channels int) error {
	if channels <= 0 {
		return fmt.Errorf("%w: channel count %d", ErrInvalidAudioBuffer, channels)
	}
	if n%(2*channels) != 0 {
		return fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrInvalidAudioBuffer, n, 2*channels)
	}
	return nil
}

// Decode converts interleaved 16-bit little-endian PCM into a Buffer.
//
// Sample (frame i, channel c) is int16 at index i*channels+c divided by
// 32768. A trailing partial frame is discarded: the result always holds
// floor((len(data)/2)/channels) frames. Only a non-positive sampleRate or
// channels value is an error.
func Decode(data []byte, sampleRate, channels int) (*Buffer, error) {
	f, err := NewFormat(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	if err := CheckFraming(len(data), channels); err != nil {
		slog.Warn("pcm: truncating trailing partial frame",
			"bytes", len(data),
			"channels", channels,
			"dropped", len(data)%(2*channels),
		)
	}

	frames := len(data) / 2 / channels
	samples := make([][]float32, channels)
	for c := range samples {
		samples[c] = make([]float32, frames)
	}
	for i := range frames {
		for c := range channels {
			off := (i*channels + c) * 2
			s := int16(binary.LittleEndian.Uint16(data[off:]))
			samples[c][i] = float32(s) / normalizeDivisor
		}
	}
	return &Buffer{format: f, frames: frames, samples: samples}, nil
}

// ParseL16MIME extracts the sample rate and channel count from a raw PCM
// MIME type such as "audio/L16;codec=pcm;rate=24000" or
// "audio/pcm;rate=16000;channels=2". Channels default to 1. ok is false
// for any other media type or a missing/invalid rate.
func ParseL16MIME(mimeType string) (rate, channels int, ok bool) {
	mt, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return 0, 0, false
	}
	switch mt {
	case "audio/l16", "audio/pcm":
	default:
		return 0, 0, false
	}
	rate, err = strconv.Atoi(params["rate"])
	if err != nil || rate <= 0 {
		return 0, 0, false
	}
	channels = 1
	if v, found := params["channels"]; found {
		channels, err = strconv.Atoi(v)
		if err != nil || channels <= 0 {
			return 0, 0, false
		}
	}
	return rate, channels, true
}
