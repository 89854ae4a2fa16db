package main

import (
	"github.com/spf13/cobra"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List table names on the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.requireSession(cmd.Context()); err != nil {
			return err
		}

		tables, err := a.cache.ListTables(cmd.Context())
		if err != nil {
			return err
		}
		if len(tables) == 0 {
			cmd.Println("No tables")
			return nil
		}
		for _, t := range tables {
			cmd.Println(t)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}
