package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/storyspark/pkg/story"
)

var (
	narrateLanguage string
	narrateTitle    string
	narrateExport   bool
)

// storyResult is the printed form of a one-shot command.
type storyResult struct {
	Session     string             `json:"session" yaml:"session"`
	Title       string             `json:"title,omitempty" yaml:"title,omitempty"`
	Language    string             `json:"language" yaml:"language"`
	Media       *story.MediaInfo   `json:"media,omitempty" yaml:"media,omitempty"`
	Paragraph   string             `json:"paragraph,omitempty" yaml:"paragraph,omitempty"`
	Suggestions []story.Suggestion `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
	Reply       string             `json:"reply,omitempty" yaml:"reply,omitempty"`
	Exported    string             `json:"exported,omitempty" yaml:"exported,omitempty"`
}

func newStoryResult(s *story.Session) *storyResult {
	st := s.State()
	return &storyResult{
		Session:     st.ID,
		Title:       st.Title,
		Language:    st.Language,
		Media:       st.Media,
		Paragraph:   st.Paragraph,
		Suggestions: st.Suggestions,
	}
}

var narrateCmd = &cobra.Command{
	Use:   "narrate <media>...",
	Short: "Write an opening paragraph for an image or video",
	Long: `Write a short literary opening paragraph inspired by an image or video.

When several files are given, the first image or video is used. A base64
data: URL may stand in for a file.

Examples:
  storyspark narrate beach.jpg
  storyspark narrate harbor.mp4 --language Japanese --query .paragraph -o raw
  storyspark narrate beach.jpg --title "Night Tide" --export`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := newApp(ctx, appOptions{
			mediaPaths: args,
			title:      narrateTitle,
			language:   narrateLanguage,
		})
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.engine.GenerateNarrative(ctx); err != nil {
			return err
		}
		res := newStoryResult(a.session)
		if narrateExport {
			name, err := a.engine.Export(ctx)
			if err != nil {
				return err
			}
			res.Exported = name
		}
		return outputResult(res)
	},
}

// paragraphFlag resolves --paragraph and --paragraph-file.
func paragraphFlag(text, file string) (string, error) {
	if file == "" {
		return strings.TrimSpace(text), nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read paragraph: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func init() {
	narrateCmd.Flags().StringVarP(&narrateLanguage, "language", "l", "", "narrative language (default from config)")
	narrateCmd.Flags().StringVarP(&narrateTitle, "title", "t", "", "story title used for export")
	narrateCmd.Flags().BoolVar(&narrateExport, "export", false, "export the story after writing it")
	rootCmd.AddCommand(narrateCmd)
}
