package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/equiptrack/maintsync/internal/analytics"
	"github.com/equiptrack/maintsync/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change device settings",
	Long:  "Show or change settings stored on this device. Device settings override the configuration file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		theme, err := a.settings.Theme()
		if err != nil {
			return err
		}
		deviceID, err := a.settings.DeviceID()
		if err != nil {
			return err
		}

		cmd.Printf("API base: %s (%s)\n", a.endpoint.APIBase, a.endpoint.APIBaseSource)
		cmd.Printf("Sheet ID: %s (%s)\n", valueOrNone(a.endpoint.SheetID), a.endpoint.SheetSource)
		cmd.Printf("Theme: %s\n", theme)
		cmd.Printf("Device ID: %s\n", deviceID)
		return nil
	},
}

var settingsAPIBaseCmd = &cobra.Command{
	Use:   "api-base [url]",
	Short: "Override the backend endpoint on this device",
	Long:  "Override the backend endpoint on this device. Without an argument the override is removed.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		value := firstArg(args)
		if err := a.settings.SetAPIBase(value); err != nil {
			return err
		}
		if value == "" {
			cmd.Println("API base override removed")
			return nil
		}
		cmd.Printf("API base set to: %s\n", value)
		return nil
	},
}

var settingsSheetIDCmd = &cobra.Command{
	Use:   "sheet-id [id]",
	Short: "Override the spreadsheet id on this device",
	Long:  "Override the spreadsheet id on this device. Without an argument the override is removed.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		value := firstArg(args)
		if err := a.settings.SetSheetID(value); err != nil {
			return err
		}
		if value == "" {
			cmd.Println("Sheet ID override removed")
			return nil
		}
		cmd.Printf("Sheet ID set to: %s\n", value)
		return nil
	},
}

var settingsThemeCmd = &cobra.Command{
	Use:       "theme <light|dark|system>",
	Short:     "Set the colour theme",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(settings.ThemeLight), string(settings.ThemeDark), string(settings.ThemeSystem)},
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := settings.ParseTheme(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.settings.SetTheme(mode); err != nil {
			return err
		}
		cmd.Printf("Theme set to: %s\n", mode)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage counters recorded on this device",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		for _, event := range analytics.Events {
			n, err := a.analytics.Count(event)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", event, err)
			}
			cmd.Printf("%-16s %d\n", event, n)
		}
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsAPIBaseCmd)
	settingsCmd.AddCommand(settingsSheetIDCmd)
	settingsCmd.AddCommand(settingsThemeCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(statsCmd)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
