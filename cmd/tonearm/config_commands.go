package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tonearm/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand())
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				path = ""
			}
			cfg, resolvedPath, exists, err := config.Load(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !exists {
				fmt.Fprintf(out, "no configuration file at %s; defaults are in effect\n", resolvedPath)
			} else {
				fmt.Fprintf(out, "configuration at %s is valid\n", resolvedPath)
			}
			fmt.Fprintf(out, "data directory: %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "log directory:  %s\n", cfg.Paths.LogDir)
			return nil
		},
	}
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Print the resolved configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				path = ""
			}
			cfg, resolvedPath, exists, err := config.Load(path)
			if err != nil {
				return err
			}

			source := resolvedPath
			if !exists {
				source += " (defaults)"
			}
			rows := [][]string{
				{"Config file", source},
				{"Data directory", cfg.Paths.DataDir},
				{"Log directory", cfg.Paths.LogDir},
				{"Log format", cfg.Logging.Format},
				{"Log level", cfg.Logging.Level},
				{"Cache max age (days)", fmt.Sprintf("%d", cfg.Cache.MaxAgeDays)},
				{"Cache retain count", fmt.Sprintf("%d", cfg.Cache.RetainAccessCount)},
				{"Queue poll interval (s)", fmt.Sprintf("%d", cfg.Verification.QueuePollInterval)},
				{"Error retry interval (s)", fmt.Sprintf("%d", cfg.Verification.ErrorRetryInterval)},
				{"Item timeout (s)", fmt.Sprintf("%d", cfg.Verification.ItemTimeout)},
				{"Max retries", fmt.Sprintf("%d", cfg.Verification.MaxRetries)},
				{"Default priority", fmt.Sprintf("%d", cfg.Verification.DefaultPriority)},
				{"Telemetry capacity", fmt.Sprintf("%d", cfg.Telemetry.EventCapacity)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Setting", "Value"}, rows,
				[]columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}
}
