package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"msgport/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand())
	configCmd.AddCommand(newConfigInitCommand())

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

			if _, err := os.Stat(target); err == nil {
				if !overwrite {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				}
				if err := os.Remove(target); err != nil {
					return fmt.Errorf("remove existing config: %w", err)
				}
			} else if !os.IsNotExist(err) {
				return fmt.Errorf("check config path: %w", err)
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
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			var flagPath string
			if flag := cmd.Flags().Lookup("config"); flag != nil {
				flagPath = flag.Value.String()
			} else if root := cmd.Root(); root != nil {
				if rootFlag := root.PersistentFlags().Lookup("config"); rootFlag != nil {
					flagPath = rootFlag.Value.String()
				}
			}

			cfg, resolvedPath, usedDefaults, err := config.Load(strings.TrimSpace(flagPath))
			if err != nil {
				return err
			}

			if usedDefaults {
				fmt.Fprintln(stdout, "No configuration file found; defaults are valid")
			} else {
				fmt.Fprintf(stdout, "Configuration at %s is valid\n", resolvedPath)
			}
			fmt.Fprintf(stdout, "  runtime dir: %s\n", cfg.Paths.RuntimeDir)
			fmt.Fprintf(stdout, "  log dir:     %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(stdout, "  journal:     %s\n", yesNo(cfg.Journal.Enabled))
			fmt.Fprintf(stdout, "  devices:     %s\n", yesNo(cfg.Devices.Enabled))
			return nil
		},
	}
}
