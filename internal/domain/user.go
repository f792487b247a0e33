package domain

// IdentityStatus distinguishes a resolved identity from the degraded variants.
type IdentityStatus string

const (
	IdentityResolved IdentityStatus = "resolved"
	// IdentityUnavailable means the directory could not be reached.
	IdentityUnavailable IdentityStatus = "unavailable"
	// IdentityMissing means the directory answered that the user does not exist.
	IdentityMissing IdentityStatus = "missing"
)

// UnavailableEmail is the placeholder address of a degraded identity.
const UnavailableEmail = "service.unavailable@example.com"

// Identity is a display snapshot of a user fetched from the user directory.
type Identity struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Surname string         `json:"surname"`
	Email   string         `json:"email"`
	Role    string         `json:"role,omitempty"`
	Status  IdentityStatus `json:"status"`
}

// Degraded reports whether the snapshot is a placeholder.
func (i Identity) Degraded() bool {
	return i.Status != IdentityResolved
}

// UnavailableIdentity is served when the directory is down or slow.
func UnavailableIdentity(id string) Identity {
	return Identity{ID: id, Name: "Unknown", Surname: "Unknown", Email: UnavailableEmail, Status: IdentityUnavailable}
}

// MissingIdentity is served when the directory no longer knows the user.
func MissingIdentity(id string) Identity {
	return Identity{ID: id, Name: "Deleted", Surname: "User", Status: IdentityMissing}
}
