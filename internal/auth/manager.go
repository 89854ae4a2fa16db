// Package auth owns the session lifecycle: hydration from the device stores,
// login, logout, re-validation and the authenticated call path that turns
// session-invalid failures into a forced logout.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/equiptrack/maintsync/internal/api"
	"github.com/equiptrack/maintsync/internal/kvstore"
	"github.com/equiptrack/maintsync/internal/model"
)

// ErrSessionExpired is returned by authenticated calls when the session is no
// longer usable. Callers must handle it apart from ordinary failures.
var ErrSessionExpired = api.ErrSessionExpired

// ErrNotAuthenticated is returned when no session exists at all
var ErrNotAuthenticated = errors.New("not authenticated: please run 'maintsync login' first")

const codePendingApproval = "PENDING_APPROVAL"

// ActionPoster is the subset of api.Client the manager needs.
type ActionPoster interface {
	PostAction(ctx context.Context, action string, fields map[string]any) (*api.Envelope, error)
}

// Manager owns the process-wide session. It is safe for concurrent use.
type Manager struct {
	client ActionPoster
	store  kvstore.Store // expiry and user
	secure kvstore.Store // token and remembered password
	policy *SessionPolicy
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	session  Session
	hydrated bool

	subMu       sync.Mutex
	nextID      int
	subscribers map[int]func(Snapshot)
	onExpired   map[int]func(Notice)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l.With().Str("component", "auth").Logger() }
}

// WithPolicy replaces the session-invalid policy.
func WithPolicy(p *SessionPolicy) Option {
	return func(m *Manager) { m.policy = p }
}

// NewManager creates a manager. store holds expiry and user; secure holds the
// token.
func NewManager(client ActionPoster, store, secure kvstore.Store, opts ...Option) *Manager {
	m := &Manager{
		client:      client,
		store:       store,
		secure:      secure,
		policy:      DefaultPolicy(),
		logger:      zerolog.Nop(),
		now:         time.Now,
		subscribers: make(map[int]func(Snapshot)),
		onExpired:   make(map[int]func(Notice)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the session policy in use.
func (m *Manager) Policy() *SessionPolicy {
	return m.policy
}

// Session returns a copy of the current session.
func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// IsAuthed evaluates the session invariant at the current time.
func (m *Manager) IsAuthed() bool {
	return m.Session().IsAuthed(m.now())
}

// State reports the lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	if !m.hydrated {
		return StateHydrating
	}
	if m.session.IsAuthed(m.now()) {
		return StateAuthenticated
	}
	return StateUnauthenticated
}

// Subscribe registers fn for every session change and returns a function that
// removes it.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextID
	m.nextID++
	m.subscribers[id] = fn
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subscribers, id)
	}
}

// OnSessionExpired registers fn for modal expiry notices.
func (m *Manager) OnSessionExpired(fn func(Notice)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextID
	m.nextID++
	m.onExpired[id] = fn
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.onExpired, id)
	}
}

func (m *Manager) broadcast() {
	m.mu.RLock()
	snap := Snapshot{State: m.stateLocked(), Session: m.session}
	m.mu.RUnlock()

	m.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (m *Manager) notifyExpired(n Notice) {
	m.subMu.Lock()
	fns := make([]func(Notice), 0, len(m.onExpired))
	for _, fn := range m.onExpired {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(n)
	}
}

// Hydrate restores the session from the device stores. A locally expired or
// incomplete session is cleared. Otherwise the token is re-validated with
// auth_me; when the server cannot be reached the cached session is kept.
func (m *Manager) Hydrate(ctx context.Context) error {
	defer m.broadcast()

	cached, err := m.loadPersisted()
	if err != nil {
		m.logger.Debug().Err(err).Msg("no usable persisted session")
		m.clear()
		m.markHydrated()
		return nil
	}

	if !cached.IsAuthed(m.now()) {
		m.logger.Info().Time("expires_at", cached.ExpiresAt).Msg("persisted session expired locally")
		m.clear()
		m.markHydrated()
		return nil
	}

	m.mu.Lock()
	m.session = cached
	m.mu.Unlock()

	refreshed, err := m.whoami(ctx, cached)
	switch {
	case err == nil:
		if err := m.replaceSession(cached.Token, refreshed); err != nil {
			m.logger.Warn().Err(err).Msg("refreshed session not stored")
		}
	case m.isSessionInvalid(err):
		m.logger.Info().Err(err).Msg("server rejected persisted session")
		if _, err := m.clearIf(cached.Token); err != nil && !errors.Is(err, errSessionReplaced) {
			m.logger.Warn().Err(err).Msg("failed to clear persisted session")
		}
	default:
		m.logger.Warn().Err(err).Msg("could not verify session, continuing with cached session")
	}

	m.markHydrated()
	return nil
}

func (m *Manager) markHydrated() {
	m.mu.Lock()
	m.hydrated = true
	m.mu.Unlock()
}

// Login posts credentials. Pending approval is a result, not an error; every
// other rejection is returned as an error and leaves the session untouched.
func (m *Manager) Login(ctx context.Context, username, password, deviceID string) (LoginResult, error) {
	if err := validateCredentials(username, password); err != nil {
		return LoginResult{}, err
	}

	env, err := m.client.PostAction(ctx, api.ActionLogin, map[string]any{
		"username": username,
		"password": password,
		"deviceId": deviceID,
	})
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Kind == api.KindLogical {
			if apiErr.ServerCode == codePendingApproval {
				m.logger.Info().Str("username", username).Msg("login pending approval")
				return LoginResult{Outcome: LoginPending, Message: apiErr.Message}, nil
			}
			// There is no session to expire yet; a locked account is an ordinary
			// login failure here.
			if apiErr.SessionExpired {
				plain := *apiErr
				plain.SessionExpired = false
				plain.Code = plain.ServerCode
				err = &plain
			}
		}
		return LoginResult{}, fmt.Errorf("login failed: %w", err)
	}

	var resp struct {
		Token     string      `json:"token"`
		ExpiresAt string      `json:"expiresAt"`
		User      *model.User `json:"user"`
	}
	if err := env.Decode(&resp); err != nil {
		return LoginResult{}, fmt.Errorf("login failed: %w", err)
	}

	expiresAt, err := parseExpiry(resp.ExpiresAt)
	if err != nil {
		return LoginResult{}, fmt.Errorf("login failed: %w", err)
	}
	if resp.Token == "" || resp.User == nil {
		return LoginResult{}, errors.New("login failed: response is missing token or user")
	}

	sess := Session{Token: resp.Token, ExpiresAt: expiresAt, User: resp.User}
	m.mu.Lock()
	if err := m.persist(sess); err != nil {
		m.mu.Unlock()
		return LoginResult{}, fmt.Errorf("failed to store session: %w", err)
	}
	m.session = sess
	m.hydrated = true
	m.mu.Unlock()
	m.broadcast()

	m.logger.Info().Str("username", resp.User.Username).Time("expires_at", expiresAt).Msg("logged in")
	return LoginResult{Outcome: LoginSuccess, User: resp.User, Message: env.Message}, nil
}

// Logout clears the local session first, then tells the server when
// callServer is set. Server failures are logged and ignored.
func (m *Manager) Logout(ctx context.Context, reason string, callServer bool) error {
	token := m.Session().Token
	clearErr := m.clear()
	m.broadcast()

	if callServer && token != "" {
		_, err := m.client.PostAction(ctx, api.ActionLogout, map[string]any{
			"token":  token,
			"reason": reason,
		})
		if err != nil {
			m.logger.Debug().Err(err).Msg("server logout failed")
		}
	}

	m.logger.Info().Str("reason", reason).Msg("logged out")
	return clearErr
}

// RefreshMe re-validates the token. Server-declared invalidity goes through
// session-expired handling; an unreachable server keeps the session.
func (m *Manager) RefreshMe(ctx context.Context) (RefreshResult, error) {
	current := m.Session()
	if current.Token == "" {
		return RefreshResult{}, ErrNotAuthenticated
	}
	if !current.IsAuthed(m.now()) {
		m.expire(current.Token, api.ActionMe, "session expired locally", ModeSilent)
		return RefreshResult{}, localExpiredError(api.ActionMe)
	}

	refreshed, err := m.whoami(ctx, current)
	switch {
	case err == nil:
		if err := m.replaceSession(current.Token, refreshed); err != nil {
			m.logger.Warn().Err(err).Msg("refreshed session not stored")
		}
		return RefreshResult{User: refreshed.User, Verified: true}, nil
	case m.isSessionInvalid(err):
		m.expire(current.Token, api.ActionMe, api.UserMessage(err), ModeSilent)
		return RefreshResult{}, asSessionExpired(err)
	case api.KindOf(err) == api.KindLogical:
		return RefreshResult{}, err
	default:
		m.logger.Warn().Err(err).Msg("refresh failed, keeping cached session")
		return RefreshResult{User: current.User, Verified: false}, nil
	}
}

// AuthedFetchJSON calls action with the session token added to payload and
// decodes the response into out (which may be nil). A locally invalid session
// or a server-declared invalid one triggers session-expired handling in the
// given mode, and the returned error matches ErrSessionExpired.
func (m *Manager) AuthedFetchJSON(ctx context.Context, action string, payload map[string]any, mode ExpiredMode, out any) error {
	current := m.Session()
	if !current.IsAuthed(m.now()) {
		m.expire(current.Token, action, "session expired locally", mode)
		return localExpiredError(action)
	}

	fields := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		fields[k] = v
	}
	fields["token"] = current.Token

	env, err := m.client.PostAction(ctx, action, fields)
	if err != nil {
		if m.isSessionInvalid(err) {
			m.expire(current.Token, action, api.UserMessage(err), mode)
			return asSessionExpired(err)
		}
		return err
	}

	if out == nil {
		return nil
	}
	return env.Decode(out)
}

func (m *Manager) whoami(ctx context.Context, current Session) (Session, error) {
	env, err := m.client.PostAction(ctx, api.ActionMe, map[string]any{"token": current.Token})
	if err != nil {
		return Session{}, err
	}

	var resp struct {
		User      *model.User `json:"user"`
		Token     string      `json:"token"`
		ExpiresAt string      `json:"expiresAt"`
	}
	if err := env.Decode(&resp); err != nil {
		return Session{}, err
	}

	next := current
	if resp.User != nil {
		next.User = resp.User
	}
	if resp.Token != "" {
		next.Token = resp.Token
	}
	if resp.ExpiresAt != "" {
		if t, err := parseExpiry(resp.ExpiresAt); err == nil {
			next.ExpiresAt = t
		}
	}
	return next, nil
}

func (m *Manager) isSessionInvalid(err error) bool {
	if errors.Is(err, api.ErrSessionExpired) {
		return true
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Kind == api.KindLogical {
		return m.policy.IsSessionInvalid(apiErr.ServerCode, apiErr.Message)
	}
	return false
}

// expire clears the session the failed call was made with and, in modal mode,
// raises a notice once per session. A reply that arrives after the session was
// replaced by a new login leaves the new session alone.
func (m *Manager) expire(token, action, reason string, mode ExpiredMode) {
	hadSession, err := m.clearIf(token)
	if errors.Is(err, errSessionReplaced) {
		m.logger.Debug().Str("action", action).Msg("dropping session-invalid reply for a replaced session")
		return
	}
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to clear persisted session")
	}
	m.broadcast()

	m.logger.Info().Str("action", action).Str("reason", reason).Msg("session expired")
	if mode == ModeModal && hadSession {
		m.notifyExpired(Notice{Action: action, Reason: reason, At: m.now()})
	}
}

var errSessionReplaced = errors.New("session was replaced")

// replaceSession persists next and makes it current, provided the current
// token is still prev.
func (m *Manager) replaceSession(prev string, next Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.Token != prev {
		return errSessionReplaced
	}
	if err := m.persist(next); err != nil {
		return err
	}
	m.session = next
	return nil
}

// clearIf drops the session only while its token is still token. It reports
// whether a non-empty session was dropped.
func (m *Manager) clearIf(token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.Token != token {
		return false, errSessionReplaced
	}
	hadSession := !m.session.empty()
	m.session = Session{}
	return hadSession, m.removePersisted()
}

// clear drops the in-memory session and the persisted copies.
func (m *Manager) clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = Session{}
	return m.removePersisted()
}

func (m *Manager) removePersisted() error {
	return errors.Join(
		m.secure.Remove(kvstore.KeyAuthToken),
		m.store.Remove(kvstore.KeyAuthExpiresAt),
		m.store.Remove(kvstore.KeyAuthUser),
	)
}

func (m *Manager) persist(s Session) error {
	userJSON, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := m.secure.Set(kvstore.KeyAuthToken, s.Token); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	if err := m.store.Set(kvstore.KeyAuthExpiresAt, s.ExpiresAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to store expiry: %w", err)
	}
	if err := m.store.Set(kvstore.KeyAuthUser, string(userJSON)); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	return nil
}

func (m *Manager) loadPersisted() (Session, error) {
	token, err := m.secure.GetString(kvstore.KeyAuthToken)
	if err != nil {
		return Session{}, fmt.Errorf("token: %w", err)
	}
	rawExpiry, err := m.store.GetString(kvstore.KeyAuthExpiresAt)
	if err != nil {
		return Session{}, fmt.Errorf("expiry: %w", err)
	}
	expiresAt, err := parseExpiry(rawExpiry)
	if err != nil {
		return Session{}, err
	}
	rawUser, err := m.store.GetString(kvstore.KeyAuthUser)
	if err != nil {
		return Session{}, fmt.Errorf("user: %w", err)
	}
	var user model.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return Session{}, fmt.Errorf("failed to parse stored user: %w", err)
	}
	return Session{Token: token, ExpiresAt: expiresAt, User: &user}, nil
}

func parseExpiry(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("missing expiresAt")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiresAt %q: %w", s, err)
	}
	return t, nil
}

func localExpiredError(action string) error {
	return &api.Error{
		Kind:           api.KindLogical,
		Action:         action,
		Code:           api.CodeSessionExpired,
		Message:        "session expired",
		SessionExpired: true,
	}
}

// asSessionExpired makes sure err matches ErrSessionExpired even when only the
// manager's policy, not the client's classifier, recognised it.
func asSessionExpired(err error) error {
	if errors.Is(err, api.ErrSessionExpired) {
		return err
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		tagged := *apiErr
		tagged.SessionExpired = true
		tagged.Code = api.CodeSessionExpired
		return &tagged
	}
	return fmt.Errorf("%v: %w", err, api.ErrSessionExpired)
}
