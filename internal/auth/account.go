package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/equiptrack/maintsync/internal/api"
	"github.com/equiptrack/maintsync/internal/model"
)

// MinPasswordLength is the shortest password accepted locally.
const MinPasswordLength = 6

// ValidationError is a local field check that failed before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func validateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return &ValidationError{Field: "username", Reason: "must not be empty"}
	}
	return validatePassword("password", password)
}

func validatePassword(field, password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must be at least %d characters", MinPasswordLength)}
	}
	return nil
}

// Registration is a new account request.
type Registration struct {
	Username string
	Password string
	FullName string
	Code     string
}

// Register creates an account. New accounts usually await admin approval, so
// the returned message should be shown to the user.
func (m *Manager) Register(ctx context.Context, r Registration) (string, error) {
	if err := validateCredentials(r.Username, r.Password); err != nil {
		return "", err
	}
	env, err := m.client.PostAction(ctx, api.ActionRegister, map[string]any{
		"username": strings.TrimSpace(r.Username),
		"password": r.Password,
		"fullName": r.FullName,
		"code":     r.Code,
	})
	if err != nil {
		return "", fmt.Errorf("registration failed: %w", err)
	}
	return env.Message, nil
}

// VerifyReset checks that username and employee code identify the same account
// before a password reset.
func (m *Manager) VerifyReset(ctx context.Context, username, code string) (string, error) {
	if strings.TrimSpace(username) == "" {
		return "", &ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if strings.TrimSpace(code) == "" {
		return "", &ValidationError{Field: "code", Reason: "must not be empty"}
	}
	env, err := m.client.PostAction(ctx, api.ActionVerifyReset, map[string]any{
		"username": strings.TrimSpace(username),
		"code":     strings.TrimSpace(code),
	})
	if err != nil {
		return "", fmt.Errorf("reset verification failed: %w", err)
	}
	return env.Message, nil
}

// ResetPassword sets a new password for a verified username and code.
func (m *Manager) ResetPassword(ctx context.Context, username, code, newPassword string) (string, error) {
	if strings.TrimSpace(username) == "" {
		return "", &ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if err := validatePassword("new password", newPassword); err != nil {
		return "", err
	}
	env, err := m.client.PostAction(ctx, api.ActionResetPassword, map[string]any{
		"username":    strings.TrimSpace(username),
		"code":        strings.TrimSpace(code),
		"newPassword": newPassword,
	})
	if err != nil {
		return "", fmt.Errorf("password reset failed: %w", err)
	}
	return env.Message, nil
}

// ChangePassword changes the signed-in user's password.
func (m *Manager) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if oldPassword == "" {
		return &ValidationError{Field: "current password", Reason: "must not be empty"}
	}
	if err := validatePassword("new password", newPassword); err != nil {
		return err
	}
	return m.AuthedFetchJSON(ctx, api.ActionChangePassword, map[string]any{
		"oldPassword": oldPassword,
		"newPassword": newPassword,
	}, ModeModal, nil)
}

// UploadAvatar sends image bytes as base64 and stores the returned avatar URL
// on the session user.
func (m *Manager) UploadAvatar(ctx context.Context, mimeType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", &ValidationError{Field: "avatar", Reason: "image is empty"}
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return "", &ValidationError{Field: "avatar", Reason: fmt.Sprintf("unsupported type %q", mimeType)}
	}

	var resp struct {
		Avatar string `json:"avatar"`
	}
	err := m.AuthedFetchJSON(ctx, api.ActionUploadAvatar, map[string]any{
		"mimeType": mimeType,
		"base64":   base64.StdEncoding.EncodeToString(data),
	}, ModeModal, &resp)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	if m.session.User != nil && resp.Avatar != "" {
		u := *m.session.User
		u.Avatar = resp.Avatar
		m.session.User = &u
		if err := m.persist(m.session); err != nil {
			m.logger.Warn().Err(err).Msg("failed to persist avatar")
		}
	}
	m.mu.Unlock()
	m.broadcast()
	return resp.Avatar, nil
}

// ListUsers returns every account. Requires an admin session.
func (m *Manager) ListUsers(ctx context.Context) ([]model.User, error) {
	var resp struct {
		Users []model.User `json:"users"`
	}
	if err := m.AuthedFetchJSON(ctx, api.ActionAdminListUsers, nil, ModeModal, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// SetUserRole changes the role of the account identified by userID.
func (m *Manager) SetUserRole(ctx context.Context, userID, role string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if role != "admin" && role != "user" {
		return &ValidationError{Field: "role", Reason: "must be admin or user"}
	}
	return m.AuthedFetchJSON(ctx, api.ActionAdminSetUserRole, map[string]any{
		"userId": userID,
		"role":   role,
	}, ModeModal, nil)
}

// SetUserActive approves or locks an account.
func (m *Manager) SetUserActive(ctx context.Context, userID string, active bool) error {
	return m.AuthedFetchJSON(ctx, api.ActionAdminSetActive, map[string]any{
		"userId": userID,
		"active": active,
	}, ModeModal, nil)
}
