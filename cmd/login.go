package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/equiptrack/maintsync/internal/analytics"
)

// passwordReader reads a password without echo. Tests replace it.
var passwordReader = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

var (
	loginUsername string
	loginPassword string
	loginRemember bool
	loginForget   bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the maintenance backend",
	Long:  "Sign in to the maintenance backend and store the session token securely.",
	RunE:  runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginUsername, "username", "", "Username")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (will prompt if not provided)")
	loginCmd.Flags().BoolVar(&loginRemember, "remember", false, "Remember the credentials on this device")
	loginCmd.Flags().BoolVar(&loginForget, "forget", false, "Forget remembered credentials")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	// Reset flags for reuse in tests
	defer func() {
		loginUsername = ""
		loginPassword = ""
		loginRemember = false
		loginForget = false
	}()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if loginForget {
		if err := a.auth.ForgetCredentials(); err != nil {
			return fmt.Errorf("failed to forget credentials: %w", err)
		}
		cmd.Println("Remembered credentials removed.")
		return nil
	}

	username, password := loginUsername, loginPassword
	if username == "" || password == "" {
		if u, p, ok, err := a.auth.RememberedCredentials(); err == nil && ok {
			if username == "" {
				username = u
			}
			if password == "" && username == u {
				password = p
			}
		}
	}

	// Prompt for username if not provided
	if username == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Username: ")
		if _, err := fmt.Fscanln(cmd.InOrStdin(), &username); err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
	}

	// Prompt for password if not provided
	if password == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		passwordBytes, err := passwordReader()
		fmt.Fprintln(cmd.OutOrStdout()) // newline after password
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(passwordBytes)
	}

	deviceID, err := a.settings.DeviceID()
	if err != nil {
		return fmt.Errorf("failed to resolve device id: %w", err)
	}

	res, err := a.auth.Login(cmd.Context(), username, password, deviceID)
	if err != nil {
		return err
	}

	if res.Pending() {
		a.track(analytics.EventLoginPending)
		cmd.Printf("Account '%s' is waiting for administrator approval.\n", username)
		if res.Message != "" {
			cmd.Println(res.Message)
		}
		return nil
	}

	if loginRemember {
		if err := a.auth.RememberCredentials(username, password); err != nil {
			cmd.PrintErrf("Warning: failed to remember credentials: %v\n", err)
		}
	}

	a.track(analytics.EventLogin)
	name := res.User.FullName
	if name == "" {
		name = res.User.Username
	}
	cmd.Printf("Login successful! Welcome, %s.\n", name)
	return nil
}
