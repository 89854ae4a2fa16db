package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/equiptrack/maintsync/internal/api"
	"github.com/equiptrack/maintsync/internal/auth"
	"github.com/equiptrack/maintsync/internal/backendsim"
	"github.com/equiptrack/maintsync/internal/devicegroup"
	"github.com/equiptrack/maintsync/internal/kvstore"
)

func TestSyncCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t, "tech", "tech123")

	out, _, err := env.run(t, "sync")
	if err != nil {
		t.Fatalf("sync command failed: %v", err)
	}
	want := "Synced 1 group(s), 2 device(s)\n"
	if out != want {
		t.Errorf("sync command output:\ngot:  %q\nwant: %q", out, want)
	}
	if _, err := env.store.GetString(kvstore.KeyAllData); err != nil {
		t.Errorf("expected groups to be persisted: %v", err)
	}
}

func TestSyncCommand_RequiresLogin(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(t, "sync")
	if !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if env.sim.Calls(api.ActionGetAllData) != 0 {
		t.Error("sync must not fetch without a session")
	}
}

func TestSyncCommand_ServerError(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t, "tech", "tech123")
	env.sim.InjectFault(api.ActionGetAllData, backendsim.Fault{Status: 500, Body: "boom"})

	_, _, err := env.run(t, "sync")
	if api.KindOf(err) != api.KindHTTP {
		t.Fatalf("expected HTTP error, got %v", err)
	}
	if got := userError(err); got != "Server error (500). Try again later." {
		t.Errorf("unexpected user error %q", got)
	}
}

func TestGroupsCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t, "tech", "tech123")

	// First run has no cached copy and fetches
	out, _, err := env.run(t, "groups")
	if err != nil {
		t.Fatalf("groups command failed: %v", err)
	}
	if !strings.Contains(out, "Line A") || strings.Contains(out, "cached copy") {
		t.Errorf("unexpected first groups output:\n%s", out)
	}

	// Second run boots from the stored copy without fetching
	out, _, err = env.run(t, "groups")
	if err != nil {
		t.Fatalf("groups command failed: %v", err)
	}
	if !strings.Contains(out, "cached copy") {
		t.Errorf("expected cached marker:\n%s", out)
	}
	if n := env.sim.Calls(api.ActionGetAllData); n != 1 {
		t.Errorf("expected one fetch, got %d", n)
	}

	if _, _, err := env.run(t, "groups", "--refresh"); err != nil {
		t.Fatalf("groups --refresh failed: %v", err)
	}
	if n := env.sim.Calls(api.ActionGetAllData); n != 2 {
		t.Errorf("expected refresh to fetch, got %d calls", n)
	}
}

func TestTablesCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t, "tech", "tech123")

	out, _, err := env.run(t, "tables")
	if err != nil {
		t.Fatalf("tables command failed: %v", err)
	}
	if out != "Line A\n" {
		t.Errorf("unexpected tables output %q", out)
	}
}

func TestScanCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t, "tech", "tech123")

	tests := []struct {
		name     string
		device   string
		wantErr  string
		wantOuts []string
	}{
		{
			name:     "known device",
			device:   "la-pump-01",
			wantOuts: []string{"Group: Line A", "Device: LA-PUMP-01", "History (2):", "25-02-26  Thay dây curoa"},
		},
		{
			name:    "unknown device",
			device:  "LA-PUMP-99",
			wantErr: "not found",
		},
		{
			name:    "not a device code",
			device:  "garbage",
			wantErr: "GROUP-KIND-SERIAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := env.run(t, "scan", tt.device)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("scan command failed: %v", err)
			}
			for _, want := range tt.wantOuts {
				if !strings.Contains(out, want) {
					t.Errorf("scan output missing %q:\n%s", want, out)
				}
			}
			// Newest entry is printed first
			if strings.Index(out, "25-02-26") > strings.Index(out, "10-02-26") {
				t.Errorf("history not in descending order:\n%s", out)
			}
		})
	}
}

func TestHistoryCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t, "tech", "tech123")

	out, _, err := env.run(t, "history", "LA-FAN-02")
	if err != nil {
		t.Fatalf("history command failed: %v", err)
	}
	if !strings.Contains(out, "History (1):") || !strings.Contains(out, "Vệ sinh cánh quạt") {
		t.Errorf("unexpected history output:\n%s", out)
	}
}

func TestAppendCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t, "tech", "tech123")

	out, _, err := env.run(t, "append", "LA-FAN-02", "--date", "01-03-26", "--content", "Thay bạc đạn")
	if err != nil {
		t.Fatalf("append command failed: %v", err)
	}
	if out != "Recorded 01-03-26 for LA-FAN-02\n" {
		t.Errorf("unexpected append output %q", out)
	}

	// The stored copy already has the entry, no refresh needed
	out, _, err = env.run(t, "scan", "LA-FAN-02")
	if err != nil {
		t.Fatalf("scan command failed: %v", err)
	}
	if !strings.Contains(out, "01-03-26  Thay bạc đạn") {
		t.Errorf("appended entry missing from scan:\n%s", out)
	}
	if n := env.sim.Calls(api.ActionGetAllData); n != 1 {
		t.Errorf("expected a single data fetch, got %d", n)
	}
}

func TestAppendCommand_Validation(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t, "tech", "tech123")

	tests := []struct {
		name    string
		args    []string
		wantErr error
		wantMsg string
	}{
		{"missing content", []string{"append", "LA-FAN-02"}, nil, "--content is required"},
		{"bad date", []string{"append", "LA-FAN-02", "--date", "31-02-26", "--content", "x"}, devicegroup.ErrInvalidEntry, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.run(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected message %q, got %v", tt.wantMsg, err)
			}
		})
	}
	if env.sim.Calls(api.ActionAppendHistory) != 0 {
		t.Error("invalid entries must not reach the server")
	}
}

func TestAppendCommand_SessionExpiredShowsNotice(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t, "tech", "tech123")
	if _, _, err := env.run(t, "sync"); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	env.sim.InjectFault(api.ActionAppendHistory, backendsim.Fault{
		Status: 200,
		Body:   `{"ok":false,"message":"Token đã hết hạn"}`,
	})

	_, stderr, err := env.run(t, "append", "LA-FAN-02", "--date", "01-03-26", "--content", "x")
	if !errors.Is(err, auth.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if !strings.Contains(stderr, "Your session has expired") {
		t.Errorf("expected session notice on stderr, got %q", stderr)
	}
	if v, _ := env.store.GetString(kvstore.AnalyticsPrefix + "session_expired"); v != "1" {
		t.Errorf("expected session_expired counter 1, got %q", v)
	}
	if _, err := env.secure.GetString(kvstore.KeyAuthToken); !errors.Is(err, kvstore.ErrNotFound) {
		t.Error("session should be cleared")
	}
}
