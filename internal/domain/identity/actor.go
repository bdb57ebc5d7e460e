package identity

import "github.com/google/uuid"

// Actor is the caller identity extracted from a verified access token. It
// carries just enough to make authorization decisions without loading the
// user row on every request.
type Actor struct {
	UserID   uuid.UUID
	Username string
	Role     Role
	SchoolID *uuid.UUID
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanAccessSchool reports whether the actor may read or write rows scoped
// to the given school.
func (a Actor) CanAccessSchool(schoolID uuid.UUID) bool {
	if a.IsAdmin() {
		return true
	}
	return a.SchoolID != nil && *a.SchoolID == schoolID
}
