// Package audio groups the audio sub-packages:
//
//   - pcm: 16-bit PCM formats, decoding into sample buffers, WAV output
//   - playback: single-clip playback control over pluggable outputs
package audio
