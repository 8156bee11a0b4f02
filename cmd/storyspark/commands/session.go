package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/haivivi/storyspark/pkg/audio/playback"
	"github.com/haivivi/storyspark/pkg/cli"
	"github.com/haivivi/storyspark/pkg/story"
)

var (
	sessionLanguage string
	sessionTitle    string
)

const sessionHelp = `Commands:
  /narrate          write the paragraph from the media
  /spark            suggest continuations
  /speak            narrate the paragraph
  /stop             stop playback
  /media <file>...  replace the media
  /title <text>     set the title
  /lang <language>  set the narrative language
  /export           export the story
  /show             show the session card
  /state            print the session state
  /wait             wait for running actions
  /help             show this help
  /quit             leave
Anything else is sent to the writing assistant.`

var sessionCmd = &cobra.Command{
	Use:   "session [media]...",
	Short: "Interactive storytelling session",
	Long: `Start an interactive session on stdin.

Actions run in the background; each action runs at most once at a time,
and different actions may overlap. End input or type /quit to leave.

` + sessionHelp,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		r := &repl{
			ctx:    ctx,
			out:    &syncWriter{w: cmd.OutOrStdout()},
			styles: cli.NewStyles(cli.DefaultTheme),
		}
		a, err := newApp(ctx, appOptions{
			player:     true,
			playerOpts: []playback.Option{playback.WithOnComplete(r.onPlaybackComplete)},
			mediaPaths: args,
			title:      sessionTitle,
			language:   sessionLanguage,
		})
		if err != nil {
			return err
		}
		defer a.Close()
		r.app = a
		return r.loop(cmd.InOrStdin())
	},
}

func init() {
	sessionCmd.Flags().StringVarP(&sessionLanguage, "language", "l", "", "narrative language (default from config)")
	sessionCmd.Flags().StringVarP(&sessionTitle, "title", "t", "", "story title")
	rootCmd.AddCommand(sessionCmd)
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}

type repl struct {
	ctx    context.Context
	app    *app
	out    *syncWriter
	styles cli.Styles
	wg     sync.WaitGroup
}

func (r *repl) loop(in io.Reader) error {
	r.out.Printf("%s\n", r.styles.Help.Render("Session "+r.app.session.ID().String()+". /help for commands."))
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if quit := r.handle(line); quit {
			break
		}
	}
	r.wg.Wait()
	return sc.Err()
}

func (r *repl) handle(line string) (quit bool) {
	if !strings.HasPrefix(line, "/") {
		r.chat(line)
		return false
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	e, s := r.app.engine, r.app.session

	switch name {
	case "quit", "exit":
		return true
	case "help":
		r.out.Printf("%s\n", sessionHelp)
	case "narrate":
		r.async("narrative", func() error {
			p, err := e.GenerateNarrative(r.ctx)
			if err != nil {
				return err
			}
			r.out.Printf("%s\n%s\n", r.styles.Label.Render("Story"), p)
			return nil
		})
	case "spark":
		r.async("suggestions", func() error {
			list, err := e.GenerateSuggestions(r.ctx)
			if err != nil {
				return err
			}
			r.out.Printf("%s\n%s", r.styles.Label.Render("Sparks"), formatSuggestions(list))
			return nil
		})
	case "speak":
		r.async("narration", func() error {
			n, err := e.Narrate(r.ctx)
			if err != nil {
				return err
			}
			msg := "narrating " + cli.FormatDuration(n.Audio.Duration())
			if n.Cached {
				msg += " (cached)"
			}
			if n.Handle == nil {
				msg += "; set playback.command to hear it"
			}
			r.out.Printf("♪ %s\n", msg)
			return nil
		})
	case "stop":
		if r.app.player != nil {
			r.app.player.Stop()
		}
	case "media":
		m, err := loadMedia(strings.Fields(arg))
		if err != nil {
			r.printErr("media", err)
			break
		}
		s.SetMedia(m)
		r.out.Printf("media: %s, %s\n", m.MIMEType(), cli.FormatBytes(int64(m.Size())))
	case "title":
		s.SetTitle(arg)
	case "lang", "language":
		s.SetLanguage(arg)
		r.out.Printf("language: %s\n", s.Language())
	case "export":
		name, err := e.Export(r.ctx)
		if err != nil {
			r.printErr("export", err)
			break
		}
		r.out.Printf("✓ Exported %s\n", name)
	case "show":
		r.out.Printf("%s\n", r.card(80))
	case "state":
		var b strings.Builder
		format, err := cli.ParseFormat(formatOutput)
		if err == nil {
			err = cli.Output(s.State(), cli.OutputOptions{Format: format, Query: queryOutput, Writer: &b})
		}
		if err != nil {
			r.printErr("state", err)
			break
		}
		r.out.Printf("%s", b.String())
	case "wait":
		r.wg.Wait()
	default:
		r.out.Printf("unknown command /%s; /help lists commands\n", name)
	}
	return false
}

func (r *repl) chat(text string) {
	r.async("chat", func() error {
		reply, err := r.app.engine.Chat(r.ctx, text)
		if err != nil {
			return err
		}
		r.out.Printf("%s %s\n", r.styles.Label.Render("MODEL:"), reply)
		return nil
	})
}

func (r *repl) async(action string, fn func() error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := fn(); err != nil {
			r.printErr(action, err)
		}
	}()
}

func (r *repl) printErr(action string, err error) {
	switch {
	case errors.Is(err, story.ErrActionInFlight):
		r.out.Printf("%s\n", r.styles.Help.Render(action+" is still running"))
	default:
		r.out.Printf("%s failed: %v\n", action, err)
	}
}

func (r *repl) onPlaybackComplete(*playback.Handle) {
	r.out.Printf("%s\n", r.styles.Help.Render("♪ finished"))
}

func (r *repl) card(width int) string {
	st := r.app.session.State()
	media := "none"
	if st.Media != nil {
		media = st.Media.MIMEType + ", " + cli.FormatBytes(int64(st.Media.Size))
	}
	var turns []string
	for _, t := range st.Transcript {
		turns = append(turns, string(t.Speaker)+": "+t.Text)
	}
	title := st.Title
	if title == "" {
		title = "Untitled Story"
	}
	status := st.Language
	if r.app.player != nil {
		status += " · " + strings.ToLower(r.app.player.State().String())
	}
	return cli.Frame{
		Styles: r.styles,
		Title:  title,
		Status: status,
		Sections: []cli.Section{
			{Label: "Media", Text: media},
			{Label: "Story", Text: st.Paragraph},
			{Label: "Sparks", Text: strings.TrimRight(formatSuggestions(st.Suggestions), "\n")},
			{Label: "Chat", Text: strings.Join(turns, "\n"), MaxLines: 8},
		},
		Help: "/help for commands",
	}.Render(width)
}

func formatSuggestions(list []story.Suggestion) string {
	if len(list) == 0 {
		return "(none)\n"
	}
	var b strings.Builder
	for _, s := range list {
		fmt.Fprintf(&b, "%-9s %s\n", s.Kind, s.Text)
	}
	return b.String()
}
