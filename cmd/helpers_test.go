package main

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/equiptrack/maintsync/internal/backendsim"
	"github.com/equiptrack/maintsync/internal/config"
	"github.com/equiptrack/maintsync/internal/kvstore"
)

// cliEnv runs commands against an in-process simulator with in-memory
// stores, so state carries from one command to the next like it would on
// disk.
type cliEnv struct {
	sim      *backendsim.Server
	endpoint string
	store    *kvstore.MemoryStore
	secure   *kvstore.MemoryStore
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()

	sim := backendsim.New(backendsim.WithBcryptCost(bcrypt.MinCost))
	if err := sim.SeedDemo(); err != nil {
		t.Fatalf("failed to seed simulator: %v", err)
	}
	srv := httptest.NewServer(sim.Handler())
	t.Cleanup(func() {
		srv.Close()
		sim.Close()
	})

	env := &cliEnv{
		sim:      sim,
		endpoint: srv.URL + sim.Path(),
		store:    kvstore.NewMemoryStore(),
		secure:   kvstore.NewMemoryStore(),
	}

	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvAPIBase, env.endpoint)
	t.Setenv(config.EnvSheetID, "")
	t.Setenv(config.EnvLogLevel, "error")

	origStore, origSecure, origPassword := storeFactory, secureStoreFactory, passwordReader
	storeFactory = func(*config.Config) (kvstore.Store, func() error, error) {
		return env.store, func() error { return nil }, nil
	}
	secureStoreFactory = func(*config.Config, kvstore.Store) (kvstore.Store, error) {
		return env.secure, nil
	}
	passwordReader = func() ([]byte, error) {
		return nil, errors.New("no terminal in tests")
	}
	t.Cleanup(func() {
		storeFactory, secureStoreFactory, passwordReader = origStore, origSecure, origPassword
	})

	return env
}

// run executes one command line and returns stdout and stderr.
func (e *cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCommand(t, args...)
}

func (e *cliEnv) login(t *testing.T, username, password string) {
	t.Helper()
	if out, _, err := e.run(t, "login", "--username", username, "--password", password); err != nil {
		t.Fatalf("login failed: %v (output %q)", err, out)
	}
}

func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := &cobra.Command{Use: "maintsync", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(
		versionCmd, initCmd, configCmd,
		loginCmd, logoutCmd, whoamiCmd,
		syncCmd, groupsCmd, tablesCmd, scanCmd, historyCmd, appendCmd,
		usersCmd, passwordCmd, registerCmd, resetCmd, avatarCmd,
		settingsCmd, statsCmd,
	)

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(&bytes.Buffer{})
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
