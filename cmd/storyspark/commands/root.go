package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/storyspark/cmd/storyspark/internal/config"
	"github.com/haivivi/storyspark/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	verbose      bool
	providerName string
	formatOutput string
	queryOutput  string
	outputFile   string

	// Global configuration (loaded on first use)
	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "storyspark",
	Short: "Turn images and videos into short stories",
	Long: `storyspark - write, refine, and narrate stories from media.

Give it an image or a video and it writes a literary opening paragraph,
suggests plot, character, and setting sparks, chats about revisions, and
reads the result aloud.

Configuration is read from the OS config directory:
  macOS:   ~/Library/Application Support/storyspark/config.yaml
  Linux:   ~/.config/storyspark/config.yaml
  Windows: %AppData%/storyspark/config.yaml

Environment variables (GEMINI_API_KEY, OPENAI_API_KEY, STORYSPARK_PROVIDER,
STORYSPARK_LANGUAGE, ...) override the file.

Examples:
  # Write a paragraph and pull out just the text
  storyspark narrate beach.jpg --query .paragraph -o raw

  # Suggestions for a clip, as JSON
  storyspark spark harbor.mp4 -o json

  # Interactive session
  storyspark session beach.jpg`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(slog.LevelInfo)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <config dir>/storyspark/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&providerName, "provider", "", "generative backend: gemini or openai (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&formatOutput, "output", "o", "yaml", "output format: yaml, json, or raw")
	rootCmd.PersistentFlags().StringVarP(&queryOutput, "query", "q", "", "jq expression applied to the result")
	rootCmd.PersistentFlags().StringVar(&outputFile, "output-file", "", "write the result to a file instead of stdout")
}

func setupLogging(level slog.Level) {
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// getConfig loads and validates the configuration on first use. Commands
// that do not call a service never need it.
func getConfig() (*config.Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("config not available: %w", err)
	}
	if providerName != "" {
		cfg.Provider = providerName
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if lvl, err := cfg.LogLevel(); err == nil {
		setupLogging(lvl)
	}
	globalConfig = cfg
	return cfg, nil
}

// outputResult writes result in the format selected by --output and
// --query, to --output-file when set.
func outputResult(result any) error {
	return outputResultTo(rootCmd.OutOrStdout(), result)
}

// outputResultTo writes result to w unless --output-file is set.
func outputResultTo(w io.Writer, result any) error {
	format, err := cli.ParseFormat(formatOutput)
	if err != nil {
		return err
	}
	opts := cli.OutputOptions{
		Format: format,
		Query:  queryOutput,
		File:   outputFile,
	}
	if outputFile == "" {
		opts.Writer = w
	}
	return cli.Output(result, opts)
}

func printVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}
