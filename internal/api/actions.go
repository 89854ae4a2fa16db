package api

// Actions understood by the backend.
const (
	ActionLogin            = "auth_login"
	ActionLogout           = "auth_logout"
	ActionMe               = "auth_me"
	ActionRegister         = "auth_register"
	ActionVerifyReset      = "auth_verify_reset"
	ActionResetPassword    = "auth_reset_password"
	ActionChangePassword   = "auth_change_password"
	ActionUploadAvatar     = "auth_upload_avatar"
	ActionAdminListUsers   = "admin_list_users"
	ActionAdminSetUserRole = "admin_set_user_role"
	ActionAdminSetActive   = "admin_set_user_active"
	ActionGetAllData       = "getAllData"
	ActionGetAllTables     = "getalltables"
	ActionGetHistory       = "getMaintenanceHistory"
	ActionAppendHistory    = "appendHistory"
)
