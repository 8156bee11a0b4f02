package playback

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/haivivi/storyspark/pkg/audio/pcm"
)

var (
	_ Output = (*StreamOutput)(nil)
	_ Output = (*CommandOutput)(nil)
	_ Output = Silent{}
)

// source is the Source shared by the outputs of this package: the playing
// goroutine watches stop and closes done on exit.
type source struct {
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newSource() *source {
	return &source{stop: make(chan struct{}), done: make(chan struct{})}
}

func (s *source) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *source) Done() <-chan struct{} {
	return s.done
}

const defaultChunkDuration = 20 * time.Millisecond

// StreamOutput writes clips as 16-bit little-endian PCM chunks to W.
type StreamOutput struct {
	W pcm.Writer

	// Realtime paces chunks at the clip sample rate instead of writing as
	// fast as W accepts them.
	Realtime bool

	// ChunkDuration is the audio length of one chunk, 20ms when zero.
	ChunkDuration time.Duration
}

// NewStreamOutput returns a StreamOutput writing raw PCM to w.
func NewStreamOutput(w io.Writer, realtime bool) *StreamOutput {
	return &StreamOutput{W: pcm.ChunkWriter(w), Realtime: realtime}
}

func (o *StreamOutput) Start(buf *pcm.Buffer) (Source, error) {
	d := o.ChunkDuration
	if d <= 0 {
		d = defaultChunkDuration
	}
	f := buf.Format()
	step := f.ChunkBytes(d)
	data := buf.Interleaved()

	s := newSource()
	go func() {
		defer close(s.done)
		var tick *time.Ticker
		if o.Realtime {
			tick = time.NewTicker(d)
			defer tick.Stop()
		}
		for off := 0; off < len(data); off += step {
			select {
			case <-s.stop:
				return
			default:
			}
			if err := o.W.Write(f.DataChunk(data[off:min(off+step, len(data))])); err != nil {
				slog.Warn("playback: write chunk", "error", err)
				return
			}
			if tick != nil {
				select {
				case <-s.stop:
					return
				case <-tick.C:
				}
			}
		}
	}()
	return s, nil
}

// CommandOutput plays each clip by piping raw 16-bit little-endian PCM to
// the standard input of a new player process, for example
//
//	aplay -q -t raw -f S16_LE -r {rate} -c {channels}
//
// "{rate}" and "{channels}" in Args are replaced with the clip format.
// Stopping a clip kills its process.
type CommandOutput struct {
	Name string
	Args []string
}

// ParseCommand splits a player command line on spaces.
func ParseCommand(line string) (*CommandOutput, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errors.New("playback: empty player command")
	}
	return &CommandOutput{Name: fields[0], Args: fields[1:]}, nil
}

func (o *CommandOutput) Start(buf *pcm.Buffer) (Source, error) {
	r := strings.NewReplacer(
		"{rate}", strconv.Itoa(buf.SampleRate()),
		"{channels}", strconv.Itoa(buf.Channels()),
	)
	args := make([]string, len(o.Args))
	for i, a := range o.Args {
		args[i] = r.Replace(a)
	}
	cmd := exec.Command(o.Name, args...)
	cmd.Stdin = bytes.NewReader(buf.Interleaved())
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	s := newSource()
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()
	go func() {
		defer close(s.done)
		select {
		case <-s.stop:
			cmd.Process.Kill()
			<-exited
		case err := <-exited:
			if err != nil {
				slog.Warn("playback: player exited", "command", o.Name, "error", err)
			}
		}
	}()
	return s, nil
}

// Silent plays nothing. Each clip lasts its duration divided by Speed, or
// its full duration when Speed is not positive.
type Silent struct {
	Speed float64
}

func (o Silent) Start(buf *pcm.Buffer) (Source, error) {
	d := buf.Duration()
	if o.Speed > 0 {
		d = time.Duration(float64(d) / o.Speed)
	}
	s := newSource()
	go func() {
		defer close(s.done)
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-s.stop:
		case <-t.C:
		}
	}()
	return s, nil
}
