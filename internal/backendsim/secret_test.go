package backendsim

import (
	"strings"
	"testing"
)

func TestValidateSecret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		isDev   bool
		wantErr string
	}{
		{"empty", "", false, "required"},
		{"empty in dev", "", true, "required"},
		{"too short", "1234567890", false, "32 characters"},
		{"31 chars", "1234567890123456789012345678901", false, "32 characters"},
		{"exactly 32 chars", "12345678901234567890123456789012", false, ""},
		{"weak in production", "changeme", false, "weak"},
		{"default in production", "maintsync-simulator-secret", false, "weak"},
		{"weak in dev", "changeme", true, ""},
		{"short non-weak in dev", "abc", true, "32 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSecret(tt.secret, tt.isDev)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateSecret() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateSecret(%q) error = nil, want error containing %q", tt.secret, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateSecret() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestIsDevelopmentMode(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		goEnv       string
		want        bool
	}{
		{"unset", "", "", false},
		{"ENVIRONMENT development", "development", "", true},
		{"ENVIRONMENT dev", "dev", "", true},
		{"GO_ENV dev", "", "dev", true},
		{"production", "production", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENVIRONMENT", tt.environment)
			t.Setenv("GO_ENV", tt.goEnv)
			if got := IsDevelopmentMode(); got != tt.want {
				t.Errorf("IsDevelopmentMode() = %v, want %v", got, tt.want)
			}
		})
	}
}
