package backendsim

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/equiptrack/maintsync/internal/api"
	"github.com/equiptrack/maintsync/internal/dateutil"
	"github.com/equiptrack/maintsync/internal/model"
)

// Backend messages. Session-invalid ones are what clients match on.
const (
	msgTokenMissing     = "Thiếu token"
	msgTokenInvalid     = "Token không hợp lệ"
	msgTokenExpired     = "Token đã hết hạn"
	msgTokenLoggedOut   = "Token đã đăng xuất"
	msgUserNotFound     = "Không tìm thấy user"
	msgTargetNotFound   = "Không tìm thấy tài khoản cần cập nhật"
	msgAccountLocked    = "Tài khoản đã bị khóa"
	msgNoAdmin          = "Không có quyền admin"
	msgPending          = "Tài khoản đang chờ admin duyệt"
	msgBadCredentials   = "Sai tên đăng nhập hoặc mật khẩu"
	msgTooManyAttempts  = "Quá nhiều lần đăng nhập, vui lòng thử lại sau"
	msgUsernameTaken    = "Tên đăng nhập đã tồn tại"
	msgPasswordTooShort = "Mật khẩu phải có ít nhất 6 ký tự"
	msgResetMismatch    = "Tên đăng nhập hoặc mã nhân viên không đúng"
	msgWrongOldPassword = "Mật khẩu hiện tại không đúng"
	msgDeviceNotFound   = "Không tìm thấy thiết bị"
	msgInvalidDate      = "Ngày không hợp lệ (dd-MM-yy)"
	msgSheetNotFound    = "Không tìm thấy sheet"
	msgUnknownAction    = "Action không hợp lệ"
)

type request map[string]any

func (r request) str(key string) string {
	switch v := r[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (r request) boolean(key string) (bool, bool) {
	switch v := r[key].(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	}
	return false, false
}

func ok(extra map[string]any) map[string]any {
	body := map[string]any{"ok": true}
	for k, v := range extra {
		body[k] = v
	}
	return body
}

func fail(message string) map[string]any {
	return map[string]any{"ok": false, "message": message}
}

func failCode(code, message string) map[string]any {
	return map[string]any{"ok": false, "error": code, "message": message}
}

func (s *Server) knownDeployment(w http.ResponseWriter, r *http.Request) bool {
	if chi.URLParam(r, "deployment") == s.deployment {
		return true
	}
	writeFault(w, Fault{Status: http.StatusNotFound, Body: "<html><body>Sorry, unable to open the file at this time.</body></html>"})
	return false
}

// handlePost serves the POST family. Logical failures are HTTP 200 with
// ok:false, as the real deployment does.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	if !s.knownDeployment(w, r) {
		return
	}

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var req request
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, fail("Invalid JSON body"))
		return
	}

	action := req.str("action")
	if f, injected := s.record(action); injected {
		writeFault(w, f)
		return
	}

	var resp map[string]any
	switch action {
	case api.ActionLogin:
		resp = s.login(r, req)
	case api.ActionLogout:
		resp = s.logout(req)
	case api.ActionMe:
		resp = s.me(req)
	case api.ActionRegister:
		resp = s.register(req)
	case api.ActionVerifyReset:
		resp = s.verifyReset(req)
	case api.ActionResetPassword:
		resp = s.resetPassword(req)
	case api.ActionChangePassword:
		resp = s.changePassword(req)
	case api.ActionUploadAvatar:
		resp = s.uploadAvatar(req)
	case api.ActionAdminListUsers:
		resp = s.listUsers(req)
	case api.ActionAdminSetUserRole:
		resp = s.setUserRole(req)
	case api.ActionAdminSetActive:
		resp = s.setUserActive(req)
	case api.ActionAppendHistory:
		resp = s.appendHistory(req)
	default:
		resp = fail(msgUnknownAction)
	}

	s.logger.Debug().Str("action", action).Interface("ok", resp["ok"]).Msg("post")
	writeJSON(w, http.StatusOK, resp)
}

// handleGet serves the data family.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if !s.knownDeployment(w, r) {
		return
	}

	q := r.URL.Query()
	action := q.Get("action")
	if f, injected := s.record(action); injected {
		writeFault(w, f)
		return
	}

	if s.sheetID != "" && q.Get("sheetId") != s.sheetID {
		writeJSON(w, http.StatusOK, fail(msgSheetNotFound))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch action {
	case api.ActionGetAllData:
		groups := s.groups
		if groups == nil {
			groups = []model.DeviceGroup{}
		}
		writeJSON(w, http.StatusOK, groups)
	case api.ActionGetAllTables:
		tables := make([]string, 0, len(s.groups))
		for _, g := range s.groups {
			tables = append(tables, g.Table)
		}
		writeJSON(w, http.StatusOK, ok(map[string]any{"tables": tables}))
	case api.ActionGetHistory:
		name := strings.TrimSpace(q.Get("deviceName"))
		rows := []model.HistoryRow{}
		for i := range s.groups {
			for _, h := range s.groups[i].History.Rows {
				if strings.EqualFold(h.DeviceName, name) {
					rows = append(rows, h)
				}
			}
		}
		writeJSON(w, http.StatusOK, ok(map[string]any{"history": rows}))
	default:
		writeJSON(w, http.StatusOK, fail(msgUnknownAction))
	}
}

func (s *Server) login(r *http.Request, req request) map[string]any {
	username := req.str("username")
	limitKey := clientIP(r) + "|" + strings.ToLower(username)
	if err := s.limiter.CheckLimit(limitKey, loginMaxAttempts, loginWindow); err != nil {
		return failCode("RATE_LIMITED", msgTooManyAttempts)
	}

	s.mu.Lock()
	a := s.users[strings.ToLower(username)]
	var hash string
	if a != nil {
		hash = a.hash
	}
	s.mu.Unlock()

	ip := clientIP(r)
	if a == nil || s.tokens.verifyPassword(hash, req.str("password")) != nil {
		s.audit.record(AuditLog{
			Event:    AuditLoginFailure,
			Details:  map[string]any{"username": username, "reason": "invalid_credentials"},
			ClientIP: ip,
		})
		return fail(msgBadCredentials)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch a.status {
	case statusPending:
		s.audit.record(AuditLog{Event: AuditLoginPending, ActorID: a.id, ClientIP: ip})
		return failCode("PENDING_APPROVAL", msgPending)
	case statusLocked:
		s.audit.record(AuditLog{
			Event:    AuditLoginFailure,
			ActorID:  a.id,
			Details:  map[string]any{"username": username, "reason": "locked"},
			ClientIP: ip,
		})
		return fail(msgAccountLocked)
	}

	token, exp, err := s.tokens.issue(a)
	if err != nil {
		return fail("Không tạo được token")
	}
	s.limiter.ResetLimit(limitKey)
	s.audit.record(AuditLog{
		Event:    AuditLoginSuccess,
		ActorID:  a.id,
		Details:  map[string]any{"device_id": req.str("deviceId")},
		ClientIP: ip,
	})
	return ok(map[string]any{
		"token":     token,
		"expiresAt": exp.Format(time.RFC3339),
		"user":      a.user(),
	})
}

// authenticate resolves the token of req to an account. The caller must hold
// s.mu.
func (s *Server) authenticate(req request) (*account, map[string]any) {
	c, err := s.tokens.validate(req.str("token"))
	switch {
	case errors.Is(err, errTokenMissing):
		return nil, fail(msgTokenMissing)
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fail(msgTokenExpired)
	case err != nil:
		return nil, fail(msgTokenInvalid)
	}

	if s.revoked[c.ID] {
		return nil, fail(msgTokenLoggedOut)
	}
	a := s.findByID(c.UserID)
	if a == nil {
		return nil, fail(msgUserNotFound)
	}
	if c.Version != a.tokenVersion {
		return nil, fail(msgTokenInvalid)
	}
	if a.status != statusActive {
		return nil, fail(msgAccountLocked)
	}
	return a, nil
}

func (s *Server) authenticateAdmin(req request) (*account, map[string]any) {
	a, resp := s.authenticate(req)
	if resp != nil {
		return nil, resp
	}
	if a.role != "admin" {
		return nil, fail(msgNoAdmin)
	}
	return a, nil
}

func (s *Server) logout(req request) map[string]any {
	c, err := s.tokens.validate(req.str("token"))
	if err == nil {
		s.mu.Lock()
		s.revoked[c.ID] = true
		s.mu.Unlock()
		s.audit.record(AuditLog{Event: AuditLogout, ActorID: c.UserID, Details: map[string]any{"reason": req.str("reason")}})
	}
	return ok(nil)
}

func (s *Server) me(req request) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, resp := s.authenticate(req)
	if resp != nil {
		return resp
	}
	return ok(map[string]any{"user": a.user()})
}

func (s *Server) register(req request) map[string]any {
	username := req.str("username")
	password, _ := req["password"].(string)
	if username == "" {
		return fail(msgBadCredentials)
	}
	if len([]rune(password)) < 6 {
		return fail(msgPasswordTooShort)
	}

	id, err := s.AddUser(SeedUser{
		Username: username,
		Password: password,
		FullName: req.str("fullName"),
		Code:     req.str("code"),
		Pending:  true,
	})
	if err != nil {
		return fail(msgUsernameTaken)
	}
	s.audit.record(AuditLog{Event: AuditUserRegistered, ActorID: id, TargetID: id})
	return ok(map[string]any{"message": "Đăng ký thành công, vui lòng chờ admin duyệt"})
}

func (s *Server) matchReset(req request) *account {
	a := s.users[strings.ToLower(req.str("username"))]
	if a == nil || a.code == "" || !strings.EqualFold(a.code, req.str("code")) {
		return nil
	}
	return a
}

func (s *Server) verifyReset(req request) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.matchReset(req) == nil {
		return fail(msgResetMismatch)
	}
	return ok(map[string]any{"message": "Xác minh thành công"})
}

func (s *Server) resetPassword(req request) map[string]any {
	password, _ := req["newPassword"].(string)
	if len([]rune(password)) < 6 {
		return fail(msgPasswordTooShort)
	}
	hash, err := s.tokens.hashPassword(password)
	if err != nil {
		return fail("Không đặt được mật khẩu")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.matchReset(req)
	if a == nil {
		return fail(msgResetMismatch)
	}
	a.hash = hash
	a.tokenVersion++
	s.audit.record(AuditLog{Event: AuditPasswordReset, ActorID: a.id, TargetID: a.id})
	return ok(map[string]any{"message": "Đặt lại mật khẩu thành công"})
}

func (s *Server) changePassword(req request) map[string]any {
	oldPassword, _ := req["oldPassword"].(string)
	newPassword, _ := req["newPassword"].(string)
	if len([]rune(newPassword)) < 6 {
		return fail(msgPasswordTooShort)
	}
	newHash, err := s.tokens.hashPassword(newPassword)
	if err != nil {
		return fail("Không đặt được mật khẩu")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, resp := s.authenticate(req)
	if resp != nil {
		return resp
	}
	if s.tokens.verifyPassword(a.hash, oldPassword) != nil {
		return fail(msgWrongOldPassword)
	}
	a.hash = newHash
	return ok(map[string]any{"message": "Đổi mật khẩu thành công"})
}

func (s *Server) uploadAvatar(req request) map[string]any {
	data, err := base64.StdEncoding.DecodeString(req.str("base64"))
	if err != nil || len(data) == 0 {
		return fail("Ảnh không hợp lệ")
	}
	mimeType := req.str("mimeType")
	ext := strings.TrimPrefix(mimeType, "image/")
	if ext == mimeType || ext == "" {
		return fail("Ảnh không hợp lệ")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, resp := s.authenticate(req)
	if resp != nil {
		return resp
	}
	a.avatar = fmt.Sprintf("https://avatars.maintsync.invalid/%s.%s", a.id, ext)
	return ok(map[string]any{"avatar": a.avatar})
}

func (s *Server) listUsers(req request) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, resp := s.authenticateAdmin(req); resp != nil {
		return resp
	}
	return ok(map[string]any{"users": s.usersSorted()})
}

func (s *Server) setUserRole(req request) map[string]any {
	role := strings.ToLower(req.str("role"))
	if role != "admin" && role != "user" {
		return fail("Role không hợp lệ")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	admin, resp := s.authenticateAdmin(req)
	if resp != nil {
		return resp
	}
	target := s.findByID(req.str("userId"))
	if target == nil {
		return fail(msgTargetNotFound)
	}
	target.role = role
	s.audit.record(AuditLog{
		Event:    AuditUserRoleChanged,
		ActorID:  admin.id,
		TargetID: target.id,
		Details:  map[string]any{"role": role},
	})
	return ok(map[string]any{"user": target.user()})
}

func (s *Server) setUserActive(req request) map[string]any {
	active, valid := req.boolean("active")
	if !valid {
		return fail("Giá trị active không hợp lệ")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	admin, resp := s.authenticateAdmin(req)
	if resp != nil {
		return resp
	}
	target := s.findByID(req.str("userId"))
	if target == nil {
		return fail(msgTargetNotFound)
	}
	event := AuditUserActivated
	if active {
		target.status = statusActive
	} else {
		target.status = statusLocked
		event = AuditUserLocked
	}
	s.audit.record(AuditLog{Event: event, ActorID: admin.id, TargetID: target.id})
	return ok(map[string]any{"user": target.user()})
}

func (s *Server) appendHistory(req request) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, resp := s.authenticate(req); resp != nil {
		return resp
	}
	if s.sheetID != "" && req.str("sheetId") != s.sheetID {
		return fail(msgSheetNotFound)
	}

	row := model.HistoryRow{
		DeviceName: req.str("deviceName"),
		Date:       req.str("date"),
		Content:    req.str("content"),
	}
	if !dateutil.IsValidDdMmYy(row.Date) {
		return fail(msgInvalidDate)
	}
	for i := range s.groups {
		if d, found := s.groups[i].FindDevice(row.DeviceName); found {
			row.DeviceName = d.Name
			s.groups[i].History.Rows = append(s.groups[i].History.Rows, row)
			return ok(map[string]any{"message": "Đã lưu lịch sử bảo trì"})
		}
	}
	return fail(msgDeviceNotFound)
}
