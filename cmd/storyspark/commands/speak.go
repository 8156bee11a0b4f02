package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/storyspark/pkg/audio/pcm"
	"github.com/haivivi/storyspark/pkg/cli"
	"github.com/haivivi/storyspark/pkg/story"
)

var (
	speakWAV   string
	speakVoice string
	speakPlay  bool
)

type speakResult struct {
	SampleRate int    `json:"sample_rate" yaml:"sample_rate"`
	Channels   int    `json:"channels" yaml:"channels"`
	Frames     int    `json:"frames" yaml:"frames"`
	Duration   string `json:"duration" yaml:"duration"`
	Cached     bool   `json:"cached" yaml:"cached"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	Played     bool   `json:"played" yaml:"played"`
}

var speakCmd = &cobra.Command{
	Use:   "speak <text>... | -",
	Short: "Narrate text aloud or to a WAV file",
	Long: `Narrate text with the configured speech model.

The audio is written to a WAV file with --wav and played through
playback.command with --play. With playback.command set to "-", --play
writes raw 16-bit PCM to stdout and the result goes to stderr.

Examples:
  storyspark speak "Once upon a time." --wav story.wav
  storyspark narrate beach.jpg -q .paragraph -o raw | storyspark speak - --play`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		text, err := readTextArg(args)
		if err != nil {
			return err
		}
		if text == "" {
			return errors.New("nothing to speak")
		}
		if speakWAV == "" && !speakPlay {
			return errors.New("choose --wav, --play, or both")
		}

		o := appOptions{player: speakPlay}
		if speakVoice != "" {
			o.engineOpts = append(o.engineOpts, story.WithVoice(speakVoice))
		}
		a, err := newApp(ctx, o)
		if err != nil {
			return err
		}
		defer a.Close()
		if speakPlay && a.player == nil {
			return errors.New("--play needs playback.command in the config")
		}

		n, err := a.engine.NarrateText(ctx, text)
		if err != nil {
			return err
		}
		res := &speakResult{
			SampleRate: n.Audio.SampleRate(),
			Channels:   n.Audio.Channels(),
			Frames:     n.Audio.Frames(),
			Duration:   cli.FormatDuration(n.Audio.Duration()),
			Cached:     n.Cached,
		}
		if speakWAV != "" {
			if err := writeWAVFile(speakWAV, n.Audio); err != nil {
				return err
			}
			res.File = speakWAV
		}
		if n.Handle != nil {
			select {
			case <-n.Handle.Done():
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(n.Audio.Duration() + 10*time.Second):
				return errors.New("playback did not finish")
			}
			res.Played = true
		}
		if speakPlay && a.cfg.Playback.Command == streamToStdout {
			return outputResultTo(cmd.ErrOrStderr(), res)
		}
		return outputResult(res)
	},
}

func writeWAVFile(path string, buf *pcm.Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := pcm.WriteWAV(f, buf); err != nil {
		f.Close()
		return fmt.Errorf("failed to write wav: %w", err)
	}
	return f.Close()
}

func init() {
	speakCmd.Flags().StringVarP(&speakWAV, "wav", "w", "", "write the narration to a WAV file")
	speakCmd.Flags().StringVar(&speakVoice, "voice", "", "voice name (default from config)")
	speakCmd.Flags().BoolVar(&speakPlay, "play", false, "play through playback.command")
	rootCmd.AddCommand(speakCmd)
}
