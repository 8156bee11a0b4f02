// Package main is the entry point for the storyspark CLI.
//
// Usage:
//
//	storyspark [flags] <command> [args]
//
// Commands:
//
//	narrate    - Write an opening paragraph for an image or video
//	spark      - Suggest plot, character, and setting continuations
//	chat       - Ask the writing assistant about a paragraph
//	speak      - Narrate text aloud or to a WAV file
//	session    - Interactive storytelling session
//	exports    - List and show exported stories
//	pcm        - Raw PCM tools
//	config     - Show and initialize configuration
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/storyspark/cmd/storyspark/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
