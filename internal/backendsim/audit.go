package backendsim

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuditEvent names an account event.
type AuditEvent string

const (
	AuditLoginSuccess  AuditEvent = "auth.login.success"
	AuditLoginFailure  AuditEvent = "auth.login.failure"
	AuditLoginPending  AuditEvent = "auth.login.pending"
	AuditLogout        AuditEvent = "auth.logout"
	AuditPasswordReset AuditEvent = "auth.password.reset"

	AuditUserRegistered  AuditEvent = "user.registered"
	AuditUserRoleChanged AuditEvent = "user.role.changed"
	AuditUserActivated   AuditEvent = "user.activated"
	AuditUserLocked      AuditEvent = "user.locked"
)

// AuditLog is one recorded event.
type AuditLog struct {
	ID        uuid.UUID
	Event     AuditEvent
	ActorID   string
	TargetID  string
	Details   map[string]any
	ClientIP  string
	CreatedAt time.Time
}

// auditTrail keeps events in memory and mirrors them to the logger.
type auditTrail struct {
	mu     sync.Mutex
	logs   []AuditLog
	logger zerolog.Logger
	now    func() time.Time
}

func (a *auditTrail) record(entry AuditLog) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = a.now()
	}

	a.mu.Lock()
	a.logs = append(a.logs, entry)
	a.mu.Unlock()

	a.logger.Info().
		Str("event", string(entry.Event)).
		Str("actor", entry.ActorID).
		Str("target", entry.TargetID).
		Fields(entry.Details).
		Msg("audit")
}

func (a *auditTrail) entries() []AuditLog {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]AuditLog(nil), a.logs...)
}

// AuditLogs returns every recorded event, oldest first.
func (s *Server) AuditLogs() []AuditLog {
	return s.audit.entries()
}
