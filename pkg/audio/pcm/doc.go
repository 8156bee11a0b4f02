// Package pcm provides types and utilities for working with PCM (Pulse Code
// Modulation) audio data.
//
// All PCM handled here is signed 16-bit little-endian, interleaved across
// channels. Decode turns such a byte payload into a Buffer of normalized
// per-channel float32 samples; Buffer.Interleaved is the exact inverse.
//
// Key types:
//   - Format: sample rate and channel count of a 16-bit stream
//   - Buffer: decoded, de-interleaved audio; immutable once created
//   - Chunk, DataChunk: raw byte chunks for streaming writers
//   - Writer: interface for writing audio chunks
//
// Example usage:
//
//	buf, err := pcm.Decode(payload, 24000, 1)
//	if err != nil {
//		return err
//	}
//	left := buf.Channel(0)
//	err = pcm.WriteWAV(f, buf)
package pcm
