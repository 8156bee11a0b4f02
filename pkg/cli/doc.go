// Package cli provides output and terminal helpers for the storyspark
// command-line tool.
//
// Results are written as YAML (the default), JSON, or raw text, optionally
// filtered through a jq expression first:
//
//	cli.Output(session.State(), cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    Query:  ".suggestions[].text",
//	})
//
// Frame renders a bordered, sectioned card for interactive sessions.
package cli
