package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/haivivi/storyspark/pkg/storage"
)

var exportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "List and show exported stories",
	Long: `List and show stories written by 'narrate --export' or '/export'.

Stories are read from export.s3 when a bucket is configured and from
export.dir otherwise.`,
}

func openSink() (storage.Sink, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	return newSink(cfg)
}

var exportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List exported stories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sink, err := openSink()
		if err != nil {
			return err
		}
		names, err := sink.List(context.Background())
		if err != nil {
			return err
		}
		if names == nil {
			names = []string{}
		}
		return outputResult(names)
	},
}

var exportsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print an exported story",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sink, err := openSink()
		if err != nil {
			return err
		}
		data, err := sink.Get(context.Background(), args[0])
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	exportsCmd.AddCommand(exportsListCmd)
	exportsCmd.AddCommand(exportsShowCmd)
	rootCmd.AddCommand(exportsCmd)
}
