// Package backendsim is an in-process stand-in for the Apps Script backend. It
// speaks the same action envelope over HTTP so the client stack can be
// exercised end to end without the real deployment.
package backendsim

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/equiptrack/maintsync/internal/model"
)

const (
	// DefaultDeployment is the deployment id in the default endpoint path.
	DefaultDeployment = "sim"

	defaultTokenTTL    = 12 * time.Hour
	defaultMaxBodySize = 2 << 20
	loginMaxAttempts   = 5
	loginWindow        = time.Minute
)

type accountStatus int

const (
	statusPending accountStatus = iota
	statusActive
	statusLocked
)

type account struct {
	id           string
	username     string
	fullName     string
	code         string
	role         string
	avatar       string
	hash         string
	status       accountStatus
	tokenVersion int
}

func (a *account) user() model.User {
	active := a.status == statusActive
	return model.User{
		UserID:   model.Text(a.id),
		Username: a.username,
		FullName: a.fullName,
		Code:     a.code,
		Role:     a.role,
		Active:   &active,
		Avatar:   a.avatar,
	}
}

// Fault is a canned response served once for an action.
type Fault struct {
	Status int
	Body   string
}

// SeedUser describes an account created before the simulator serves traffic.
type SeedUser struct {
	Username string
	Password string
	FullName string
	Code     string
	Role     string
	Pending  bool
	Locked   bool
}

// Server is the simulated backend. It is safe for concurrent use.
type Server struct {
	tokens     *tokenService
	limiter    *RateLimiter
	audit      *auditTrail
	logger     zerolog.Logger
	deployment string
	sheetID    string
	maxBody    int64
	origins    map[string]bool

	mu      sync.Mutex
	nextID  int
	users   map[string]*account // keyed by lower-case username
	revoked map[string]bool     // token ids
	groups  []model.DeviceGroup
	faults  map[string][]Fault
	calls   map[string]int
}

// Option configures a Server.
type Option func(*Server)

// WithSecret sets the HS256 signing key.
func WithSecret(secret []byte) Option {
	return func(s *Server) { s.tokens.secretKey = secret }
}

// WithTokenTTL sets how long issued tokens live.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.tokens.ttl = d }
}

// WithClock overrides time.Now for token issue and validation.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.tokens.now = now }
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) { s.tokens.bcryptCost = cost }
}

// WithDeployment sets the deployment id of the endpoint path.
func WithDeployment(id string) Option {
	return func(s *Server) { s.deployment = id }
}

// WithSheetID makes data actions reject any other sheetId.
func WithSheetID(id string) Option {
	return func(s *Server) { s.sheetID = id }
}

// WithAllowedOrigins lets browsers on the given origins call the endpoint.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		for _, o := range origins {
			s.origins[o] = true
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l.With().Str("component", "backendsim").Logger() }
}

// New creates a simulator with no users and no device groups. Call Close to
// stop the rate limiter.
func New(opts ...Option) *Server {
	s := &Server{
		tokens: &tokenService{
			secretKey:  []byte("maintsync-simulator-secret"),
			ttl:        defaultTokenTTL,
			bcryptCost: bcrypt.DefaultCost,
			now:        time.Now,
		},
		limiter:    NewRateLimiter(time.Minute, loginWindow, 10000),
		audit:      &auditTrail{logger: zerolog.Nop()},
		logger:     zerolog.Nop(),
		deployment: DefaultDeployment,
		maxBody:    defaultMaxBodySize,
		origins:    make(map[string]bool),
		nextID:     1,
		users:      make(map[string]*account),
		revoked:    make(map[string]bool),
		faults:     make(map[string][]Fault),
		calls:      make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.audit.logger = s.logger
	s.audit.now = s.tokens.now
	return s
}

// Close releases background resources.
func (s *Server) Close() {
	s.limiter.Stop()
}

// Path is the endpoint path, to be appended to the listener's base URL.
func (s *Server) Path() string {
	return "/macros/s/" + s.deployment + "/exec"
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors(s.origins))
	r.Use(maxBodySize(s.maxBody))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "service": "maintsync-backendsim"})
	})
	r.Route("/macros/s/{deployment}", func(r chi.Router) {
		r.Post("/exec", s.handlePost)
		r.Get("/exec", s.handleGet)
	})
	return r
}

// AddUser creates an account and returns its id.
func (s *Server) AddUser(u SeedUser) (string, error) {
	hash, err := s.tokens.hashPassword(u.Password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(u.Username))
	if key == "" {
		return "", errors.New("username is empty")
	}
	if _, exists := s.users[key]; exists {
		return "", fmt.Errorf("user %q already exists", u.Username)
	}

	role := strings.ToLower(u.Role)
	if role == "" {
		role = "user"
	}
	status := statusActive
	switch {
	case u.Locked:
		status = statusLocked
	case u.Pending:
		status = statusPending
	}

	a := &account{
		id:       strconv.Itoa(s.nextID),
		username: strings.TrimSpace(u.Username),
		fullName: u.FullName,
		code:     u.Code,
		role:     role,
		hash:     hash,
		status:   status,
	}
	s.nextID++
	s.users[key] = a
	return a.id, nil
}

// SetGroups replaces the device groups served by getAllData.
func (s *Server) SetGroups(groups []model.DeviceGroup) {
	data, _ := json.Marshal(groups)
	var cp []model.DeviceGroup
	_ = json.Unmarshal(data, &cp)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = cp
}

// Groups returns a copy of the served device groups.
func (s *Server) Groups() []model.DeviceGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, _ := json.Marshal(s.groups)
	var cp []model.DeviceGroup
	_ = json.Unmarshal(data, &cp)
	return cp
}

// InjectFault makes the next call of action return f instead of being served.
func (s *Server) InjectFault(action string, f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[action] = append(s.faults[action], f)
}

// Calls reports how many times action was requested.
func (s *Server) Calls(action string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[action]
}

func (s *Server) record(action string) (Fault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[action]++
	queue := s.faults[action]
	if len(queue) == 0 {
		return Fault{}, false
	}
	s.faults[action] = queue[1:]
	return queue[0], true
}

func (s *Server) usersSorted() []model.User {
	out := make([]model.User, 0, len(s.users))
	for _, a := range s.users {
		out = append(out, a.user())
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(string(out[i].UserID))
		b, _ := strconv.Atoi(string(out[j].UserID))
		return a < b
	})
	return out
}

func (s *Server) findByID(id string) *account {
	for _, a := range s.users {
		if a.id == id {
			return a
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeFault(w http.ResponseWriter, f Fault) {
	status := f.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(f.Body))
}

// cors sets CORS headers for allowed origins. With no origins configured no
// headers are set.
func cors(allowed map[string]bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")

			origin := r.Header.Get("Origin")
			if origin == "" || !allowed[origin] {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)

			// Preflight
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// maxBodySize limits request bodies.
func maxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the caller address: X-Forwarded-For (first IP), X-Real-IP,
// then RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
