package domain

// Role is the authorization role carried by a principal.
type Role string

const (
	RoleUser      Role = "user"
	RoleDeveloper Role = "developer"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleDeveloper, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Privileged reports whether the role may moderate any ticket.
func (r Role) Privileged() bool {
	return r == RoleModerator || r == RoleAdmin
}

// Principal is the authenticated actor of a request. A nil *Principal is a guest.
type Principal struct {
	ID   string
	Role Role
}

// IsPrivileged is nil-safe.
func (p *Principal) IsPrivileged() bool {
	return p != nil && p.Role.Privileged()
}
