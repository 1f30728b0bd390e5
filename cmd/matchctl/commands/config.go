package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/hostmatch/internal/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage matchctl profiles in ~/.hostmatch/config.yaml.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long: `Create a default configuration file at ~/.hostmatch/config.yaml

Example:
  matchctl config init`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cli.InitConfig(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		configPath, _ := cli.GetConfigPath()
		fmt.Fprintf(stdout, "Configuration file created at: %s\n", configPath)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		fmt.Fprintf(stdout, "Default Profile: %s\n\n", cfg.DefaultProfile)
		fmt.Fprintln(stdout, "Profiles:")
		names := make([]string, 0, len(cfg.Profiles))
		for name := range cfg.Profiles {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			p := cfg.Profiles[name]
			fmt.Fprintf(stdout, "  %s:\n", name)
			if p.BaseURL != "" {
				fmt.Fprintf(stdout, "    base_url: %s\n", p.BaseURL)
			}
			if p.Fixture != "" {
				fmt.Fprintf(stdout, "    fixture: %s\n", p.Fixture)
			}
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <profile.key> <value>",
	Short: "Set a configuration value",
	Long: `Set a profile value, or the default profile.

Examples:
  matchctl config set staging.base_url https://hostmatch.staging.example.com
  matchctl config set local.fixture ./catalog.yaml
  matchctl config set default_profile staging`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if args[0] == "default_profile" {
			cfg.DefaultProfile = args[1]
		} else {
			name, key, ok := strings.Cut(args[0], ".")
			if !ok {
				return fmt.Errorf("invalid key format, expected 'profile.key' (e.g., 'local.base_url')")
			}
			p := cfg.Profiles[name]
			switch key {
			case "base_url":
				p.BaseURL = args[1]
			case "fixture":
				p.Fixture = args[1]
			default:
				return fmt.Errorf("unknown key '%s', valid keys: base_url, fixture", key)
			}
			cfg.Profiles[name] = p
		}

		if err := cli.SaveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Fprintf(stdout, "Successfully set %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configSetCmd)
}
