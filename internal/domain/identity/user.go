package identity

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/schoolbill/backend/internal/domain/shared"
)

// Password cost for bcrypt
const bcryptCost = 12

// Role determines row visibility. Admins see every school's data; school
// staff only see rows belonging to their own school.
type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleSchoolStaff Role = "SCHOOL_STAFF"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleSchoolStaff
}

// User is an authenticated principal. SchoolID is nil for admins and set
// for school staff.
type User struct {
	shared.BaseEntity
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	SchoolID     *uuid.UUID `json:"school_id,omitempty"`
	IsActive     bool       `json:"is_active"`
}

func NewUser(username, email, password string, role Role, schoolID *uuid.UUID) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, shared.NewDomainError("INVALID_USERNAME", "username cannot be empty")
	}
	if len(password) < 8 {
		return nil, shared.NewDomainError("INVALID_PASSWORD", "password must be at least 8 characters")
	}
	if !role.IsValid() {
		return nil, shared.NewDomainError("INVALID_ROLE", "invalid user role: "+string(role))
	}
	if role == RoleSchoolStaff && (schoolID == nil || *schoolID == uuid.Nil) {
		return nil, shared.NewDomainError("INVALID_SCHOOL_ID", "school staff must be assigned to a school")
	}
	if role == RoleAdmin {
		schoolID = nil
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	return &User{
		BaseEntity:   shared.NewBaseEntity(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		SchoolID:     schoolID,
		IsActive:     true,
	}, nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanAccessSchool reports whether the user may read or write rows scoped
// to the given school.
func (u *User) CanAccessSchool(schoolID uuid.UUID) bool {
	if u.IsAdmin() {
		return true
	}
	return u.SchoolID != nil && *u.SchoolID == schoolID
}

func (u *User) Deactivate() {
	u.IsActive = false
	u.Touch()
}

func (u *User) Activate() {
	u.IsActive = true
	u.Touch()
}

// VerifyPassword verifies if the provided password matches
func (u *User) VerifyPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

func (u *User) ChangePassword(password string) error {
	if len(password) < 8 {
		return shared.NewDomainError("INVALID_PASSWORD", "password must be at least 8 characters")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.Touch()
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
