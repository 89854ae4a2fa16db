package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/equiptrack/maintsync/internal/analytics"
	"github.com/equiptrack/maintsync/internal/dateutil"
	"github.com/equiptrack/maintsync/internal/model"
)

var (
	appendDate    string
	appendContent string
)

var appendCmd = &cobra.Command{
	Use:   "append <device-name>",
	Short: "Record a maintenance entry",
	Long:  "Append a maintenance entry for a device. The date is dd-MM-yy and defaults to today.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer func() {
			appendDate = ""
			appendContent = ""
		}()

		if appendContent == "" {
			return errors.New("--content is required")
		}
		date := appendDate
		if date == "" {
			date = dateutil.TodayDdMmYy(time.Now())
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.requireSession(cmd.Context()); err != nil {
			return err
		}
		if err := a.cache.Boot(cmd.Context()); err != nil {
			return err
		}

		entry := model.HistoryRow{DeviceName: args[0], Date: date, Content: appendContent}
		if err := a.cache.AppendHistory(cmd.Context(), entry); err != nil {
			return err
		}
		a.track(analytics.EventAppend)

		cmd.Printf("Recorded %s for %s\n", date, args[0])
		return nil
	},
}

func init() {
	appendCmd.Flags().StringVar(&appendDate, "date", "", "Entry date in dd-MM-yy (default today)")
	appendCmd.Flags().StringVar(&appendContent, "content", "", "What was done")
	rootCmd.AddCommand(appendCmd)
}
