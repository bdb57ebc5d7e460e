package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/schoolbill/backend/internal/domain/identity"
	"github.com/schoolbill/backend/internal/domain/school"
	"github.com/schoolbill/backend/internal/domain/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// UserService provides application-level user management. All operations
// are admin-only except GetByID of the caller's own account.
type UserService struct {
	users   identity.UserRepository
	schools school.SchoolRepository
}

// NewUserService creates a new UserService
func NewUserService(users identity.UserRepository, schools school.SchoolRepository) *UserService {
	return &UserService{users: users, schools: schools}
}

// UserResponse represents a user in API responses. The password hash is
// never serialized.
type UserResponse struct {
	ID        uuid.UUID  `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	Role      string     `json:"role"`
	SchoolID  *uuid.UUID `json:"school_id,omitempty"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CreateUserRequest is the payload for creating a user
type CreateUserRequest struct {
	Username string     `json:"username" binding:"required"`
	Email    string     `json:"email" binding:"omitempty,email"`
	Password string     `json:"password" binding:"required,min=8"`
	Role     string     `json:"role" binding:"required"`
	SchoolID *uuid.UUID `json:"school_id"`
}

// UpdateUserRequest is the payload for updating a user. Nil fields are left
// unchanged.
type UpdateUserRequest struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=8"`
	IsActive *bool   `json:"is_active"`
}

// UserListFilter defines pagination for user list queries
type UserListFilter struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

// Create registers a new user. Admin only. Staff users must reference an
// existing school.
func (s *UserService) Create(ctx context.Context, actor identity.Actor, req CreateUserRequest) (*UserResponse, error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}

	exists, err := s.users.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError("ALREADY_EXISTS", "Username is already taken")
	}

	role := identity.Role(req.Role)
	if role == identity.RoleSchoolStaff && req.SchoolID != nil {
		if _, err := s.schools.FindByID(ctx, *req.SchoolID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewDomainError("NOT_FOUND", "School not found")
			}
			return nil, err
		}
	}

	user, err := identity.NewUser(req.Username, req.Email, req.Password, role, req.SchoolID)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

// GetByID gets a user. Admins may read anyone; other callers only
// themselves.
func (s *UserService) GetByID(ctx context.Context, actor identity.Actor, id uuid.UUID) (*UserResponse, error) {
	if !actor.IsAdmin() && actor.UserID != id {
		return nil, shared.ErrForbidden
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "User not found")
		}
		return nil, err
	}
	return toUserResponse(user), nil
}

// List returns a page of users. Admin only.
func (s *UserService) List(ctx context.Context, actor identity.Actor, filter UserListFilter) ([]UserResponse, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, shared.ErrForbidden
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	users, total, err := s.users.List(ctx, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	responses := make([]UserResponse, len(users))
	for i := range users {
		responses[i] = *toUserResponse(&users[i])
	}
	return responses, total, nil
}

// Update mutates a user account. Admin only.
func (s *UserService) Update(ctx context.Context, actor identity.Actor, id uuid.UUID, req UpdateUserRequest) (*UserResponse, error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "User not found")
		}
		return nil, err
	}

	if req.Email != nil {
		user.Email = *req.Email
		user.Touch()
	}
	if req.Password != nil {
		if err := user.ChangePassword(*req.Password); err != nil {
			return nil, err
		}
	}
	if req.IsActive != nil {
		if *req.IsActive {
			user.Activate()
		} else {
			user.Deactivate()
		}
	}

	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

// Delete removes a user account. Admin only; admins cannot delete
// themselves.
func (s *UserService) Delete(ctx context.Context, actor identity.Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return shared.ErrForbidden
	}
	if actor.UserID == id {
		return shared.NewDomainError("INVALID_INPUT", "Cannot delete your own account")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewDomainError("NOT_FOUND", "User not found")
		}
		return err
	}
	return nil
}

func toUserResponse(user *identity.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      string(user.Role),
		SchoolID:  user.SchoolID,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
