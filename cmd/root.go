package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/equiptrack/maintsync/internal/analytics"
	"github.com/equiptrack/maintsync/internal/api"
	"github.com/equiptrack/maintsync/internal/auth"
	"github.com/equiptrack/maintsync/internal/config"
	"github.com/equiptrack/maintsync/internal/devicegroup"
	"github.com/equiptrack/maintsync/internal/kvstore"
	"github.com/equiptrack/maintsync/internal/settings"
)

var (
	verbose   bool
	ephemeral bool
)

var rootCmd = &cobra.Command{
	Use:           "maintsync",
	Short:         "Equipment maintenance tracking client",
	Long:          "maintsync signs in to the maintenance backend, keeps a local copy of the device groups and records maintenance history.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "Keep all state in memory for this run")
}

// storeFactory opens the plain store. Tests replace it with an in-memory store.
var storeFactory = func(cfg *config.Config) (kvstore.Store, func() error, error) {
	s, err := kvstore.OpenSQLite(cfg.Storage.Path, log.Logger)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

// secureStoreFactory opens the store for the token and remembered password.
var secureStoreFactory = func(cfg *config.Config, plain kvstore.Store) (kvstore.Store, error) {
	if cfg.Storage.SecureBackend == config.SecureBackendEncrypted {
		return kvstore.NewEncryptedStore(plain, cfg.EncryptionKey)
	}
	return kvstore.NewKeyringStore(), nil
}

// httpClientFactory allows tests to inject a transport.
var httpClientFactory = func(cfg *config.Config) *http.Client {
	return &http.Client{Timeout: cfg.Server.Timeout}
}

func openStores(cfg *config.Config) (kvstore.Store, kvstore.Store, func() error, error) {
	if ephemeral {
		return kvstore.NewMemoryStore(), kvstore.NewMemoryStore(), func() error { return nil }, nil
	}

	store, closeFn, err := storeFactory(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open local store: %w", err)
	}
	secure, err := secureStoreFactory(cfg, store)
	if err != nil {
		_ = closeFn()
		return nil, nil, nil, fmt.Errorf("failed to open secure store: %w", err)
	}
	return store, secure, closeFn, nil
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
}

// app is the wiring shared by every command that talks to the backend.
type app struct {
	cfg       *config.Config
	store     kvstore.Store
	secure    kvstore.Store
	settings  *settings.Settings
	endpoint  settings.Endpoint
	client    *api.Client
	auth      *auth.Manager
	cache     *devicegroup.Cache
	analytics *analytics.Tracker
	closeFn   func() error
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\n\nRun 'maintsync init' to create the configuration file", err)
	}
	setupLogging(cfg.Logging.Level)

	store, secure, closeFn, err := openStores(cfg)
	if err != nil {
		return nil, err
	}

	st := settings.New(store, cfg)
	ep, err := st.Endpoint()
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	if config.IsInsecureURL(ep.APIBase) {
		log.Warn().Str("url", ep.APIBase).Msg("endpoint uses plain HTTP, credentials are sent unencrypted")
	}

	policy := auth.DefaultPolicy()
	client := api.NewClient(ep.APIBase,
		api.WithHTTPClient(httpClientFactory(cfg)),
		api.WithClassifier(policy),
		api.WithLogger(log.Logger),
	)
	mgr := auth.NewManager(client, store, secure, auth.WithPolicy(policy), auth.WithLogger(log.Logger))
	tracker := analytics.New(store)

	errOut := cmd.ErrOrStderr()
	mgr.OnSessionExpired(func(n auth.Notice) {
		fmt.Fprintln(errOut, "Your session has expired. Please run 'maintsync login' again.")
		_, _ = tracker.Track(analytics.EventSessionLost)
	})

	cache := devicegroup.New(client, mgr, store,
		devicegroup.WithSheetID(ep.SheetID),
		devicegroup.WithLogger(log.Logger),
	)

	return &app{
		cfg:       cfg,
		store:     store,
		secure:    secure,
		settings:  st,
		endpoint:  ep,
		client:    client,
		auth:      mgr,
		cache:     cache,
		analytics: tracker,
		closeFn:   closeFn,
	}, nil
}

func (a *app) Close() {
	if a.closeFn != nil {
		if err := a.closeFn(); err != nil {
			log.Debug().Err(err).Msg("failed to close store")
		}
	}
}

// requireSession restores the session and fails when nobody is signed in.
func (a *app) requireSession(ctx context.Context) error {
	if err := a.auth.Hydrate(ctx); err != nil {
		return err
	}
	if !a.auth.IsAuthed() {
		return auth.ErrNotAuthenticated
	}
	return nil
}

func (a *app) track(event string) {
	if _, err := a.analytics.Track(event); err != nil {
		log.Debug().Err(err).Str("event", event).Msg("failed to record event")
	}
}

// userError turns err into what the terminal shows.
func userError(err error) string {
	if api.KindOf(err) != 0 || errors.Is(err, api.ErrSessionExpired) || errors.Is(err, context.DeadlineExceeded) {
		return api.UserMessage(err)
	}
	return err.Error()
}
