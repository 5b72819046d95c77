package utils

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Session identifies the caller of a service operation. Controllers build it
// from the verified token and pass it down explicitly.
type Session struct {
	UserID uint
	Role   string
	Email  string
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

func (s Session) IsAuthenticated() bool {
	return s.UserID != 0
}

// RequireAdmin returns an authorization error unless the session is an admin.
func (s Session) RequireAdmin() error {
	if !s.IsAuthenticated() {
		return NewUnauthorizedError("Authentication required")
	}
	if !s.IsAdmin() {
		return NewForbiddenError("Administrator role required")
	}
	return nil
}
