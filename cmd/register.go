package main

import (
	"github.com/spf13/cobra"

	"github.com/equiptrack/maintsync/internal/auth"
)

var (
	registerUsername string
	registerPassword string
	registerFullName string
	registerCode     string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Request a new account",
	Long:  "Request a new account. The account can sign in once an administrator approves it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer func() {
			registerUsername = ""
			registerPassword = ""
			registerFullName = ""
			registerCode = ""
		}()

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		password, err := promptSecret(cmd, "Password: ", registerPassword)
		if err != nil {
			return err
		}

		msg, err := a.auth.Register(cmd.Context(), auth.Registration{
			Username: registerUsername,
			Password: password,
			FullName: registerFullName,
			Code:     registerCode,
		})
		if err != nil {
			return err
		}
		if msg == "" {
			msg = "Registration submitted. Wait for an administrator to approve the account."
		}
		cmd.Println(msg)
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerUsername, "username", "", "Username")
	registerCmd.Flags().StringVar(&registerPassword, "password", "", "Password (will prompt if not provided)")
	registerCmd.Flags().StringVar(&registerFullName, "full-name", "", "Full name")
	registerCmd.Flags().StringVar(&registerCode, "code", "", "Employee code, used for password resets")
	rootCmd.AddCommand(registerCmd)
}
