package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	passwordOld string
	passwordNew string
)

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Change the signed-in account's password",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer func() {
			passwordOld = ""
			passwordNew = ""
		}()

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.requireSession(cmd.Context()); err != nil {
			return err
		}

		oldPw, err := promptSecret(cmd, "Current password: ", passwordOld)
		if err != nil {
			return err
		}
		newPw, err := promptSecret(cmd, "New password: ", passwordNew)
		if err != nil {
			return err
		}

		if err := a.auth.ChangePassword(cmd.Context(), oldPw, newPw); err != nil {
			return err
		}
		cmd.Println("Password changed.")
		return nil
	},
}

func init() {
	passwordCmd.Flags().StringVar(&passwordOld, "old", "", "Current password (will prompt if not provided)")
	passwordCmd.Flags().StringVar(&passwordNew, "new", "", "New password (will prompt if not provided)")
	rootCmd.AddCommand(passwordCmd)
}

// promptSecret returns value, or reads one without echo when it is empty.
func promptSecret(cmd *cobra.Command, label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprint(cmd.OutOrStdout(), label)
	b, err := passwordReader()
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
