package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/equiptrack/maintsync/internal/config"
)

var (
	initAPIBase string
	initSheetID string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long:  "Create the configuration file and the local data directory for maintsync",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer func() {
			initAPIBase = ""
			initSheetID = ""
		}()

		configDir := config.GetConfigDir()
		configPath := config.GetConfigPath()

		// Check if config already exists
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("configuration already exists at %s\n\nTo reconfigure, either:\n  1. Edit the file directly, or\n  2. Delete it and run 'maintsync init' again, or\n  3. Use 'maintsync config set <key> <value>' to update specific values", configPath)
		}

		// Create config directory
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}

		// Create default config with any flag values
		cfg := config.Default()
		if initAPIBase != "" {
			cfg.Server.URL = initAPIBase
		}
		cfg.Server.SheetID = initSheetID
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		// Save the config
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		cmd.Printf("Configuration initialized at %s\n", configDir)
		if cfg.IsInsecure() {
			cmd.Printf("Warning: %s uses plain HTTP\n", cfg.Server.URL)
		}
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initAPIBase, "api-base", "", "Backend endpoint URL")
	initCmd.Flags().StringVar(&initSheetID, "sheet-id", "", "Spreadsheet id sent with data requests")
	rootCmd.AddCommand(initCmd)
}
