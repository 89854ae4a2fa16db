package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

// maxAvatarSize matches what the backend accepts in one request body.
const maxAvatarSize = 2 << 20

var avatarCmd = &cobra.Command{
	Use:   "avatar <image-file>",
	Short: "Upload a profile picture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		if len(data) > maxAvatarSize {
			return fmt.Errorf("image is %d bytes, the limit is %d", len(data), maxAvatarSize)
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.requireSession(cmd.Context()); err != nil {
			return err
		}

		url, err := a.auth.UploadAvatar(cmd.Context(), http.DetectContentType(data), data)
		if err != nil {
			return err
		}
		cmd.Printf("Avatar updated: %s\n", valueOrNone(url))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(avatarCmd)
}
