package auth

import (
	"time"

	"github.com/equiptrack/maintsync/internal/model"
)

// State is the session lifecycle state.
type State int

const (
	StateHydrating State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateHydrating:
		return "hydrating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Session is the token, its expiry and the account it belongs to.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// IsAuthed is true iff token and user are present and ExpiresAt is strictly
// after now.
func (s Session) IsAuthed(now time.Time) bool {
	return s.Token != "" && s.User != nil && s.ExpiresAt.After(now)
}

func (s Session) empty() bool {
	return s.Token == "" && s.User == nil && s.ExpiresAt.IsZero()
}

// Snapshot is what subscribers receive on every change.
type Snapshot struct {
	State   State
	Session Session
}

// ExpiredMode selects how a detected session expiry is surfaced.
type ExpiredMode int

const (
	// ModeSilent clears the session quietly.
	ModeSilent ExpiredMode = iota
	// ModeModal also raises a Notice to OnSessionExpired handlers.
	ModeModal
)

// Notice describes a forced logout for user-visible reporting.
type Notice struct {
	Action string
	Reason string
	At     time.Time
}

// LoginOutcome distinguishes the non-error login results.
type LoginOutcome int

const (
	LoginSuccess LoginOutcome = iota + 1
	// LoginPending means the account exists but awaits admin approval.
	LoginPending
)

// LoginResult is the outcome of Login when it did not fail outright.
type LoginResult struct {
	Outcome LoginOutcome
	User    *model.User
	Message string
}

// Pending reports whether the account awaits approval.
func (r LoginResult) Pending() bool {
	return r.Outcome == LoginPending
}

// RefreshResult is the outcome of RefreshMe.
type RefreshResult struct {
	User *model.User
	// Verified is false when the server could not be reached and the cached
	// session was kept.
	Verified bool
}
