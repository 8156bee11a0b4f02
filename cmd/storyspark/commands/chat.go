package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

var (
	chatMessage       string
	chatParagraph     string
	chatParagraphFile string
)

var chatCmd = &cobra.Command{
	Use:   "chat [media]... -m <message>",
	Short: "Ask the writing assistant about a paragraph",
	Long: `Send one message to the writing assistant.

The assistant sees the paragraph and, when given, the media. Use 'session'
for a multi-turn conversation.

Examples:
  storyspark chat beach.jpg -p "The tide came in sideways." -m "make it darker"
  echo "what happens next?" | storyspark chat --paragraph-file story.txt -m -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		message := chatMessage
		if message == "-" {
			var err error
			if message, err = readTextArg([]string{"-"}); err != nil {
				return err
			}
		}
		if message == "" {
			return errors.New("a message is required (-m)")
		}
		paragraph, err := paragraphFlag(chatParagraph, chatParagraphFile)
		if err != nil {
			return err
		}

		a, err := newApp(ctx, appOptions{mediaPaths: args})
		if err != nil {
			return err
		}
		defer a.Close()

		if paragraph != "" {
			a.session.SetParagraph(paragraph)
		}
		reply, err := a.engine.Chat(ctx, message)
		if err != nil {
			return err
		}
		res := newStoryResult(a.session)
		res.Reply = reply
		return outputResult(res)
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "message to send (- reads stdin)")
	chatCmd.Flags().StringVarP(&chatParagraph, "paragraph", "p", "", "paragraph under discussion")
	chatCmd.Flags().StringVar(&chatParagraphFile, "paragraph-file", "", "read the paragraph from a file")
	rootCmd.AddCommand(chatCmd)
}
