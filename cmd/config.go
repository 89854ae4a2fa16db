package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/equiptrack/maintsync/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  "View and update maintsync configuration settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long:  "Display the current effective configuration including environment variable overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		cmd.Printf("Server:\n")
		cmd.Printf("  URL: %s\n", cfg.Server.URL)
		cmd.Printf("  Sheet ID: %s\n", valueOrNone(cfg.Server.SheetID))
		cmd.Printf("  Timeout: %s\n", cfg.Server.Timeout)
		cmd.Printf("\n")
		cmd.Printf("Storage:\n")
		cmd.Printf("  Path: %s\n", cfg.Storage.Path)
		cmd.Printf("  Secure backend: %s\n", cfg.Storage.SecureBackend)
		cmd.Printf("\n")
		cmd.Printf("Logging:\n")
		cmd.Printf("  Level: %s\n", cfg.Logging.Level)

		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:               "set <key> <value>",
	Short:             "Update configuration value",
	Long:              "Update a configuration value in the config file. Example: maintsync config set server.url https://script.google.com/macros/s/<id>/exec",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: configKeyCompletion,
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		value := args[1]

		// Load current config
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Update the appropriate field
		parts := strings.Split(key, ".")
		if len(parts) != 2 {
			return fmt.Errorf("invalid key format. Expected format: section.field (e.g., server.url)")
		}

		section := parts[0]
		field := parts[1]

		switch section {
		case "server":
			switch field {
			case "url":
				cfg.Server.URL = value
			case "sheet_id":
				cfg.Server.SheetID = value
			case "timeout":
				d, err := time.ParseDuration(value)
				if err != nil {
					return fmt.Errorf("invalid timeout %q: %w", value, err)
				}
				cfg.Server.Timeout = d
			default:
				return fmt.Errorf("unknown server field: %s", field)
			}
		case "storage":
			switch field {
			case "path":
				cfg.Storage.Path = value
			case "secure_backend":
				cfg.Storage.SecureBackend = value
			default:
				return fmt.Errorf("unknown storage field: %s", field)
			}
		case "logging":
			switch field {
			case "level":
				cfg.Logging.Level = value
			default:
				return fmt.Errorf("unknown logging field: %s", field)
			}
		default:
			return fmt.Errorf("unknown config section: %s", section)
		}

		// Validate the updated config
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		// Save the config
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		cmd.Printf("Updated %s to: %s\n", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

// configKeyCompletion provides tab completion for config keys
func configKeyCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	// If we already have the key argument, don't provide more completions
	if len(args) >= 1 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	// Provide list of valid config keys
	validKeys := []string{
		"server.url\tBackend endpoint URL",
		"server.sheet_id\tSpreadsheet id",
		"server.timeout\tRequest timeout (e.g. 30s)",
		"storage.path\tLocal database file",
		"storage.secure_backend\tkeyring or encrypted",
		"logging.level\tdebug, info, warn or error",
	}

	return validKeys, cobra.ShellCompDirectiveNoFileComp
}

func valueOrNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
