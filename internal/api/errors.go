package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// ErrSessionExpired matches any error raised because the session is no longer
// usable, whether detected locally or declared by the server.
var ErrSessionExpired = errors.New("SESSION_EXPIRED")

// Error codes carried by Error.Code.
const (
	CodeSessionExpired      = "SESSION_EXPIRED"
	CodeServerInvalidJSON   = "SERVER_INVALID_JSON"
	CodeInvalidJSONResponse = "INVALID_JSON_RESPONSE"
	CodeNetwork             = "NETWORK_ERROR"
	CodeResponseTooLarge    = "RESPONSE_TOO_LARGE"
)

// maxHTTPErrorMessage caps the body excerpt kept on an HTTP error.
const maxHTTPErrorMessage = 200

// Kind is the failure category of an Error.
type Kind int

const (
	// KindNetwork is a transport failure: unreachable host, reset, timeout.
	KindNetwork Kind = iota + 1
	// KindInvalidJSON is a body that could not be parsed.
	KindInvalidJSON
	// KindHTTP is a non-2xx status without a usable envelope.
	KindHTTP
	// KindLogical is an envelope with ok:false.
	KindLogical
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindInvalidJSON:
		return "invalid_json"
	case KindHTTP:
		return "http"
	case KindLogical:
		return "logical"
	default:
		return "unknown"
	}
}

// Error is a failed action call.
type Error struct {
	Kind   Kind
	Action string
	Status int
	// Code is SESSION_EXPIRED for session-invalid failures, otherwise one of
	// the Code* constants, HTTP_<status>, or the server's error field.
	Code string
	// ServerCode is the raw "error"/"code" field of the envelope.
	ServerCode     string
	Message        string
	SessionExpired bool
	Err            error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Action != "" {
		b.WriteString(e.Action)
		b.WriteString(": ")
	}
	switch e.Kind {
	case KindLogical:
		b.WriteString(e.Message)
		if e.Code != "" && e.Code != e.Message {
			fmt.Fprintf(&b, " (%s)", e.Code)
		}
	case KindHTTP:
		fmt.Fprintf(&b, "server returned status %d", e.Status)
		if e.Message != "" {
			b.WriteString(": ")
			b.WriteString(e.Message)
		}
	default:
		b.WriteString(e.Code)
		if e.Err != nil {
			b.WriteString(": ")
			b.WriteString(e.Err.Error())
		}
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports session-expired errors as ErrSessionExpired.
func (e *Error) Is(target error) bool {
	return target == ErrSessionExpired && e.SessionExpired
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func httpError(action string, status int, body []byte) *Error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxHTTPErrorMessage {
		cut := maxHTTPErrorMessage
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return &Error{
		Kind:    KindHTTP,
		Action:  action,
		Status:  status,
		Code:    fmt.Sprintf("HTTP_%d", status),
		Message: msg,
	}
}

// UserMessage converts err into the text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrSessionExpired) {
		return "Your session has expired. Please log in again."
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The request timed out. Check your connection and try again."
	}

	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}

	switch e.Kind {
	case KindNetwork:
		return "Network error. Check your connection and try again."
	case KindInvalidJSON:
		return "The server returned an invalid response (" + e.Code + ")."
	case KindHTTP:
		switch e.Status {
		case http.StatusUnauthorized:
			return "Invalid authentication configuration for the data endpoint (401)."
		case http.StatusForbidden:
			return "You do not have access to this data (403)."
		case http.StatusNotFound:
			return "The data endpoint was not found (404). Check the API address."
		default:
			return fmt.Sprintf("Server error (%d). Try again later.", e.Status)
		}
	case KindLogical:
		if e.Message != "" {
			return e.Message
		}
		return "The request was rejected by the server."
	}
	return err.Error()
}
