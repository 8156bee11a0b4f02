package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/storyspark/pkg/audio/pcm"
	"github.com/haivivi/storyspark/pkg/cli"
	"github.com/haivivi/storyspark/pkg/encoding"
)

var (
	pcmRate     int
	pcmChannels int
	pcmMIME     string
	pcmBase64   bool
	pcmWAV      string
)

var pcmCmd = &cobra.Command{
	Use:   "pcm",
	Short: "Raw PCM tools",
}

type pcmResult struct {
	SampleRate int    `json:"sample_rate" yaml:"sample_rate"`
	Channels   int    `json:"channels" yaml:"channels"`
	Frames     int    `json:"frames" yaml:"frames"`
	Duration   string `json:"duration" yaml:"duration"`
	Bytes      string `json:"bytes" yaml:"bytes"`
	Dropped    int    `json:"dropped_bytes,omitempty" yaml:"dropped_bytes,omitempty"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
}

var pcmDecodeCmd = &cobra.Command{
	Use:   "decode <input|->",
	Short: "Decode 16-bit little-endian PCM into a WAV file",
	Long: `Decode interleaved signed 16-bit little-endian PCM.

The input is raw bytes, or base64 text with --base64. The sample rate and
channel count come from --rate/--channels or from an audio/L16 MIME type
given with --mime. A trailing partial frame is dropped.

Examples:
  storyspark pcm decode speech.pcm --rate 24000 --wav speech.wav
  storyspark pcm decode payload.b64 --base64 --mime "audio/L16;codec=pcm;rate=24000" --wav out.wav`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		if pcmBase64 {
			if data, err = encoding.Decode(strings.Join(strings.Fields(string(data)), "")); err != nil {
				return err
			}
		}
		rate, channels := pcmRate, pcmChannels
		if pcmMIME != "" {
			var ok bool
			if rate, channels, ok = pcm.ParseL16MIME(pcmMIME); !ok {
				return fmt.Errorf("not a raw PCM MIME type: %s", pcmMIME)
			}
		}

		buf, err := pcm.Decode(data, rate, channels)
		if err != nil {
			return err
		}
		res := &pcmResult{
			SampleRate: buf.SampleRate(),
			Channels:   buf.Channels(),
			Frames:     buf.Frames(),
			Duration:   cli.FormatDuration(buf.Duration()),
			Bytes:      cli.FormatBytes(int64(len(data))),
			Dropped:    len(data) - buf.Frames()*buf.Format().FrameBytes(),
		}
		if pcmWAV != "" {
			if err := writeWAVFile(pcmWAV, buf); err != nil {
				return err
			}
			res.File = pcmWAV
		}
		return outputResult(res)
	},
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(rootCmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("input is empty")
	}
	return data, nil
}

func init() {
	pcmDecodeCmd.Flags().IntVarP(&pcmRate, "rate", "r", 24000, "sample rate in Hz")
	pcmDecodeCmd.Flags().IntVarP(&pcmChannels, "channels", "c", 1, "channel count")
	pcmDecodeCmd.Flags().StringVar(&pcmMIME, "mime", "", "raw PCM MIME type carrying rate and channels")
	pcmDecodeCmd.Flags().BoolVar(&pcmBase64, "base64", false, "input is base64 text")
	pcmDecodeCmd.Flags().StringVarP(&pcmWAV, "wav", "w", "", "write a WAV file")
	pcmCmd.AddCommand(pcmDecodeCmd)
	rootCmd.AddCommand(pcmCmd)
}
