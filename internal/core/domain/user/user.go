package user

// UserRole is the directory role of a principal. Accounts are owned by the identity
// service; this module only reads the role.
type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleInstructor UserRole = "instructor"
	RoleStudent    UserRole = "student"
	RoleGuest      UserRole = "guest"
	// RoleUnknown is reported when the directory cannot classify a principal.
	RoleUnknown UserRole = ""
)

func (r UserRole) String() string {
	return string(r)
}

func (r UserRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleInstructor, RoleStudent, RoleGuest:
		return true
	default:
		return false
	}
}
