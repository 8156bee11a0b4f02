package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/haivivi/storyspark/cmd/storyspark/internal/config"
	"github.com/haivivi/storyspark/pkg/cli"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and initialize configuration",
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := config.DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, config.FileName), nil
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Loaded without validation so an incomplete config can be inspected.
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if providerName != "" {
			cfg.Provider = providerName
		}
		return outputResult(cfg.Redacted())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		cfg := &config.Config{
			Provider: config.ProviderGemini,
			Language: "English",
			Cache:    config.Cache{Backend: config.CacheMemory},
			Log:      config.Log{Level: "info"},
		}
		if err := cfg.Save(path); err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "Wrote %s", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
