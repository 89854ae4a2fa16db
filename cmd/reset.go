package main

import (
	"github.com/spf13/cobra"
)

var (
	resetUsername string
	resetCode     string
	resetPassword string
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset a forgotten password",
	Long:  "Verify the employee code of an account, then set a new password for it.",
}

var resetVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a username and employee code",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer resetFlags()

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		msg, err := a.auth.VerifyReset(cmd.Context(), resetUsername, resetCode)
		if err != nil {
			return err
		}
		if msg == "" {
			msg = "Code verified. Run 'maintsync reset set' to choose a new password."
		}
		cmd.Println(msg)
		return nil
	},
}

var resetSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set a new password",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer resetFlags()

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		password, err := promptSecret(cmd, "New password: ", resetPassword)
		if err != nil {
			return err
		}

		msg, err := a.auth.ResetPassword(cmd.Context(), resetUsername, resetCode, password)
		if err != nil {
			return err
		}
		if msg == "" {
			msg = "Password reset. Sign in with the new password."
		}
		cmd.Println(msg)
		return nil
	},
}

func resetFlags() {
	resetUsername = ""
	resetCode = ""
	resetPassword = ""
}

func init() {
	for _, c := range []*cobra.Command{resetVerifyCmd, resetSetCmd} {
		c.Flags().StringVar(&resetUsername, "username", "", "Username")
		c.Flags().StringVar(&resetCode, "code", "", "Employee code")
	}
	resetSetCmd.Flags().StringVar(&resetPassword, "password", "", "New password (will prompt if not provided)")
	resetCmd.AddCommand(resetVerifyCmd)
	resetCmd.AddCommand(resetSetCmd)
	rootCmd.AddCommand(resetCmd)
}
