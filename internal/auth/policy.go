package auth

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Verdict is how a failed call bears on the session.
type Verdict int

const (
	// VerdictOrdinary leaves the session alone; the error is shown to the caller.
	VerdictOrdinary Verdict = iota
	// VerdictSessionInvalid means the token can no longer be used.
	VerdictSessionInvalid
	// VerdictInsufficientPrivilege is a valid session lacking a permission.
	VerdictInsufficientPrivilege
)

func (v Verdict) String() string {
	switch v {
	case VerdictSessionInvalid:
		return "session_invalid"
	case VerdictInsufficientPrivilege:
		return "insufficient_privilege"
	default:
		return "ordinary"
	}
}

// Server messages that mean the token is unusable. Matched as substrings after
// normalisation.
var defaultInvalidMessages = []string{
	"thiếu token",
	"token không hợp lệ",
	"token đã đăng xuất",
	"token đã hết hạn",
	"phiên đăng nhập đã hết hạn",
	"không tìm thấy user",
	"user không tồn tại",
	"tài khoản đã bị khóa",
	"tài khoản bị khóa",
	"user đã bị khóa",
	"missing token",
	"token missing",
	"invalid token",
	"token invalid",
	"token expired",
	"session expired",
	"token logged out",
	"user not found",
	"user locked",
	"account locked",
}

// Messages that look like auth failures but only mean the caller is not an
// admin. They are checked first.
var defaultPrivilegeMessages = []string{
	"không có quyền admin",
	"no admin permission",
	"admin permission required",
}

// Structured error codes. A code in either map decides the verdict without
// looking at the message.
var defaultInvalidCodes = map[string]bool{
	"SESSION_EXPIRED": true,
	"TOKEN_EXPIRED":   true,
	"TOKEN_INVALID":   true,
	"TOKEN_MISSING":   true,
	"TOKEN_REVOKED":   true,
	"USER_NOT_FOUND":  true,
	"USER_LOCKED":     true,
}

var defaultPrivilegeCodes = map[string]bool{
	"FORBIDDEN":           true,
	"NOT_ADMIN":           true,
	"NO_ADMIN_PERMISSION": true,
}

// SessionPolicy classifies failed envelopes into session-invalid versus
// everything else. It is the single place the backend message vocabulary lives.
type SessionPolicy struct {
	invalid        []string
	privilege      []string
	invalidCodes   map[string]bool
	privilegeCodes map[string]bool
}

// DefaultPolicy returns the policy for the production backend vocabulary.
func DefaultPolicy() *SessionPolicy {
	return NewSessionPolicy(defaultInvalidMessages, defaultPrivilegeMessages)
}

// NewSessionPolicy builds a policy from message fragments. Structured codes
// use the built-in tables.
func NewSessionPolicy(invalid, privilege []string) *SessionPolicy {
	p := &SessionPolicy{
		invalidCodes:   defaultInvalidCodes,
		privilegeCodes: defaultPrivilegeCodes,
	}
	for _, m := range invalid {
		p.invalid = append(p.invalid, normalizeMessage(m))
	}
	for _, m := range privilege {
		p.privilege = append(p.privilege, normalizeMessage(m))
	}
	return p
}

// Classify returns the verdict for a failed envelope.
func (p *SessionPolicy) Classify(code, message string) Verdict {
	code = strings.ToUpper(strings.TrimSpace(code))
	if p.invalidCodes[code] {
		return VerdictSessionInvalid
	}
	if p.privilegeCodes[code] {
		return VerdictInsufficientPrivilege
	}

	msg := normalizeMessage(message)
	if msg == "" {
		return VerdictOrdinary
	}
	for _, frag := range p.privilege {
		if strings.Contains(msg, frag) {
			return VerdictInsufficientPrivilege
		}
	}
	for _, frag := range p.invalid {
		if strings.Contains(msg, frag) {
			return VerdictSessionInvalid
		}
	}
	return VerdictOrdinary
}

// IsSessionInvalid implements api.Classifier.
func (p *SessionPolicy) IsSessionInvalid(code, message string) bool {
	return p.Classify(code, message) == VerdictSessionInvalid
}

// normalizeMessage composes to NFC and case-folds, so decomposed Vietnamese
// diacritics and capitalisation do not defeat matching.
func normalizeMessage(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}
