package auth_models

// RoleAdmin may access every device regardless of ownership.
const RoleAdmin = "admin"

// Principal is the authenticated caller a request acts for.
type Principal struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// IsAdmin reports whether the principal bypasses ownership checks.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// SystemPrincipal is used by in-process jobs such as scheduled forecasts.
func SystemPrincipal() Principal {
	return Principal{UserID: "system", Role: RoleAdmin}
}
