// Package api speaks the action-RPC protocol of the maintenance backend: one
// URL, an "action" field selecting the operation, and a {ok, message} JSON
// envelope whose ok flag, not the HTTP status, decides success.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// MaxResponseSize caps how much of a response body is read.
const MaxResponseSize int64 = 8 << 20

// ErrResponseTooLarge is returned when a body exceeds MaxResponseSize.
var ErrResponseTooLarge = errors.New("response exceeds maximum size")

// Classifier decides whether a failed envelope means the session is no longer
// usable. code is the structured error field (may be empty).
type Classifier interface {
	IsSessionInvalid(code, message string) bool
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(code, message string) bool

// IsSessionInvalid implements Classifier.
func (f ClassifierFunc) IsSessionInvalid(code, message string) bool { return f(code, message) }

// Client handles communication with the action endpoint
type Client struct {
	endpoint   string
	httpClient *http.Client
	classifier Classifier
	logger     zerolog.Logger
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets a per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithClassifier sets the session-invalid classifier used to tag logical
// errors.
func WithClassifier(cl Classifier) Option {
	return func(c *Client) { c.classifier = cl }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l.With().Str("component", "api").Logger() }
}

// NewClient creates a new API client for endpoint
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimSpace(endpoint),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		classifier: ClassifierFunc(func(string, string) bool { return false }),
		logger:     zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the action URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Envelope is a decoded {ok, message, ...} response.
type Envelope struct {
	OK        bool
	Message   string
	ErrorCode string
	raw       json.RawMessage
}

// Decode unmarshals the full response body into v.
func (e *Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.raw, v); err != nil {
		return &Error{Kind: KindInvalidJSON, Code: CodeServerInvalidJSON, Err: err}
	}
	return nil
}

// Raw returns the response body.
func (e *Envelope) Raw() json.RawMessage {
	return e.raw
}

type envelopeProbe struct {
	OK      *bool  `json:"ok"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func (p envelopeProbe) errorCode() string {
	if p.Error != "" {
		return p.Error
	}
	return p.Code
}

// PostAction POSTs {action, ...fields} and interprets the envelope. A body that
// is not JSON is always ErrInvalidJSON, whatever the status. ok:false yields a
// KindLogical error, tagged as session-expired when the classifier says so.
func (c *Client) PostAction(ctx context.Context, action string, fields map[string]any) (*Envelope, error) {
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["action"] = action

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := c.now()
	status, body, err := c.do(req)
	if err != nil {
		return nil, c.finish(action, start, transportError(action, status, err))
	}

	var probe envelopeProbe
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, c.finish(action, start, &Error{
			Kind:   KindInvalidJSON,
			Action: action,
			Status: status,
			Code:   CodeServerInvalidJSON,
			Err:    err,
		})
	}

	if probe.OK == nil && !isSuccess(status) {
		return nil, c.finish(action, start, httpError(action, status, body))
	}

	if probe.OK != nil && !*probe.OK {
		return nil, c.finish(action, start, c.logicalError(action, status, probe))
	}

	env := &Envelope{OK: true, Message: probe.Message, ErrorCode: probe.errorCode(), raw: body}
	return env, c.finish(action, start, nil)
}

// GetAction performs GET ?action=... for the data family of actions and
// decodes the body into out. The HTTP status is checked before the body is
// parsed; an object body with ok:false is a logical error.
func (c *Client) GetAction(ctx context.Context, action string, params url.Values, out any) error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("action", action)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	start := c.now()
	status, body, err := c.do(req)
	if err != nil {
		return c.finish(action, start, transportError(action, status, err))
	}

	if !isSuccess(status) {
		return c.finish(action, start, httpError(action, status, body))
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var probe envelopeProbe
		if err := json.Unmarshal(trimmed, &probe); err == nil && probe.OK != nil && !*probe.OK {
			return c.finish(action, start, c.logicalError(action, status, probe))
		}
	}

	if err := json.Unmarshal(trimmed, out); err != nil {
		return c.finish(action, start, &Error{
			Kind:   KindInvalidJSON,
			Action: action,
			Status: status,
			Code:   CodeInvalidJSONResponse,
			Err:    err,
		})
	}

	return c.finish(action, start, nil)
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := readLimitedResponse(resp.Body, MaxResponseSize)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// transportError wraps a failure from do. An oversized body did arrive, so it
// is a protocol error rather than a network one.
func transportError(action string, status int, err error) *Error {
	if errors.Is(err, ErrResponseTooLarge) {
		return &Error{Kind: KindInvalidJSON, Action: action, Status: status, Code: CodeResponseTooLarge, Err: err}
	}
	return &Error{Kind: KindNetwork, Action: action, Code: CodeNetwork, Err: err}
}

func (c *Client) logicalError(action string, status int, probe envelopeProbe) *Error {
	e := &Error{
		Kind:       KindLogical,
		Action:     action,
		Status:     status,
		Code:       probe.errorCode(),
		ServerCode: probe.errorCode(),
		Message:    probe.Message,
	}
	if e.Message == "" {
		e.Message = probe.errorCode()
	}
	if c.classifier.IsSessionInvalid(probe.errorCode(), probe.Message) {
		e.SessionExpired = true
		e.Code = CodeSessionExpired
	}
	return e
}

func (c *Client) finish(action string, start time.Time, err error) error {
	elapsed := c.now().Sub(start)
	outcome := outcomeOf(err)
	observe(action, outcome, elapsed)

	evt := c.logger.Debug()
	if err != nil && outcome != outcomeLogical {
		evt = c.logger.Warn().Err(err)
	}
	evt.Str("action", action).Str("outcome", outcome).Dur("elapsed", elapsed).Msg("rpc")
	return err
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// readLimitedResponse reads at most maxSize bytes and fails if there is more.
func readLimitedResponse(r io.Reader, maxSize int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, ErrResponseTooLarge
	}
	return data, nil
}
