package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/equiptrack/maintsync/internal/backendsim"
)

var (
	simulateAddr    string
	simulateOrigins []string
	simulateEmpty   bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a local backend for development",
	Long: `Serve a local stand-in for the maintenance backend with demo accounts and devices.
Point the client at it with:

  maintsync settings api-base http://localhost:8080/macros/s/sim/exec

The signing secret is read from MAINTSYNC_SIM_SECRET. Outside development mode
(ENVIRONMENT=development) it must be at least 32 characters.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging("info")

		secret := os.Getenv("MAINTSYNC_SIM_SECRET")
		isDev := backendsim.IsDevelopmentMode()
		if secret == "" && isDev {
			secret = "maintsync-simulator-secret"
		}
		if err := backendsim.ValidateSecret(secret, isDev); err != nil {
			return fmt.Errorf("signing secret validation failed: %w", err)
		}

		sim := backendsim.New(
			backendsim.WithSecret([]byte(secret)),
			backendsim.WithAllowedOrigins(simulateOrigins...),
			backendsim.WithLogger(log.Logger),
		)
		defer sim.Close()
		if !simulateEmpty {
			if err := sim.SeedDemo(); err != nil {
				return fmt.Errorf("failed to seed demo data: %w", err)
			}
		}

		srv := &http.Server{
			Addr:              simulateAddr,
			Handler:           sim.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			// TLS is out of scope for a local development backend.
			errCh <- srv.ListenAndServe()
		}()

		log.Info().Str("addr", simulateAddr).Str("path", sim.Path()).Bool("demo", !simulateEmpty).Msg("simulator listening")
		if !simulateEmpty {
			cmd.Printf("Demo accounts: %s/%s (admin), %s/%s, %s (pending)\n",
				backendsim.DemoAdminUser, backendsim.DemoAdminPassword,
				backendsim.DemoTechUser, backendsim.DemoTechPassword,
				backendsim.DemoPendingUser)
		}

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateAddr, "addr", ":8080", "Listen address")
	simulateCmd.Flags().StringSliceVar(&simulateOrigins, "allow-origin", nil, "Origins allowed to call the simulator from a browser")
	simulateCmd.Flags().BoolVar(&simulateEmpty, "empty", false, "Start without demo data")
	rootCmd.AddCommand(simulateCmd)
}
