package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	sparkParagraph     string
	sparkParagraphFile string
	sparkLanguage      string
)

var sparkCmd = &cobra.Command{
	Use:   "spark [media]...",
	Short: "Suggest plot, character, and setting continuations",
	Long: `Suggest three continuations (PLOT, CHARACTER, SETTING) for a paragraph.

Without --paragraph or --paragraph-file the paragraph is first written from
the media. Media is optional when a paragraph is given.

A response that does not match the expected shape yields an empty list.

Examples:
  storyspark spark beach.jpg
  storyspark spark --paragraph-file story.txt -o json
  storyspark spark beach.jpg --query '.suggestions[] | select(.kind == "PLOT") | .text' -o raw`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		paragraph, err := paragraphFlag(sparkParagraph, sparkParagraphFile)
		if err != nil {
			return err
		}
		if paragraph == "" && len(args) == 0 {
			return cmd.Usage()
		}

		a, err := newApp(ctx, appOptions{mediaPaths: args, language: sparkLanguage})
		if err != nil {
			return err
		}
		defer a.Close()

		if paragraph != "" {
			a.session.SetParagraph(paragraph)
		} else if _, err := a.engine.GenerateNarrative(ctx); err != nil {
			return err
		}
		if _, err := a.engine.GenerateSuggestions(ctx); err != nil {
			return err
		}
		return outputResult(newStoryResult(a.session))
	},
}

func init() {
	sparkCmd.Flags().StringVarP(&sparkParagraph, "paragraph", "p", "", "paragraph to continue")
	sparkCmd.Flags().StringVar(&sparkParagraphFile, "paragraph-file", "", "read the paragraph from a file")
	sparkCmd.Flags().StringVarP(&sparkLanguage, "language", "l", "", "narrative language when writing the paragraph")
	rootCmd.AddCommand(sparkCmd)
}
