package school

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/schoolbill/backend/internal/domain/identity"
	"github.com/schoolbill/backend/internal/domain/school"
	"github.com/schoolbill/backend/internal/domain/shared"
)

// SchoolService provides application-level school operations. Creating and
// deleting schools is admin-only; school staff can read and update their
// own school.
type SchoolService struct {
	schools school.SchoolRepository
}

// NewSchoolService creates a new SchoolService
func NewSchoolService(schools school.SchoolRepository) *SchoolService {
	return &SchoolService{schools: schools}
}

// SchoolResponse represents a school in API responses
type SchoolResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateSchoolRequest is the payload for creating a school
type CreateSchoolRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
	Email   string `json:"email" binding:"omitempty,email"`
	Phone   string `json:"phone"`
}

// UpdateSchoolRequest is the payload for updating a school. Nil fields are
// left unchanged.
type UpdateSchoolRequest struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
	Email   *string `json:"email" binding:"omitempty,email"`
	Phone   *string `json:"phone"`
}

// SchoolListFilter defines pagination for school list queries
type SchoolListFilter struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

// Create registers a new school. Admin only.
func (s *SchoolService) Create(ctx context.Context, actor identity.Actor, req CreateSchoolRequest) (*SchoolResponse, error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}

	sch, err := school.NewSchool(req.Name, req.Address, req.Email, req.Phone)
	if err != nil {
		return nil, err
	}
	if err := s.schools.Create(ctx, sch); err != nil {
		return nil, err
	}
	return toSchoolResponse(sch), nil
}

// GetByID gets a school. School staff may only read their own.
func (s *SchoolService) GetByID(ctx context.Context, actor identity.Actor, id uuid.UUID) (*SchoolResponse, error) {
	if !actor.CanAccessSchool(id) {
		return nil, shared.NewDomainError("NOT_FOUND", "School not found")
	}
	sch, err := s.schools.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "School not found")
		}
		return nil, err
	}
	return toSchoolResponse(sch), nil
}

// List returns a page of schools. Admins see all; school staff see a
// single-element page holding their own school.
func (s *SchoolService) List(ctx context.Context, actor identity.Actor, filter SchoolListFilter) ([]SchoolResponse, int64, error) {
	if !actor.IsAdmin() {
		if actor.SchoolID == nil {
			return nil, 0, shared.ErrForbidden
		}
		sch, err := s.schools.FindByID(ctx, *actor.SchoolID)
		if err != nil {
			return nil, 0, err
		}
		return []SchoolResponse{*toSchoolResponse(sch)}, 1, nil
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	schools, total, err := s.schools.List(ctx, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]SchoolResponse, len(schools))
	for i := range schools {
		responses[i] = *toSchoolResponse(&schools[i])
	}
	return responses, total, nil
}

// Update mutates school fields. School staff may only update their own
// school.
func (s *SchoolService) Update(ctx context.Context, actor identity.Actor, id uuid.UUID, req UpdateSchoolRequest) (*SchoolResponse, error) {
	if !actor.CanAccessSchool(id) {
		return nil, shared.NewDomainError("NOT_FOUND", "School not found")
	}
	sch, err := s.schools.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "School not found")
		}
		return nil, err
	}

	if req.Name != nil {
		if err := sch.UpdateName(*req.Name); err != nil {
			return nil, err
		}
	}
	address, email, phone := sch.Address, sch.Email, sch.Phone
	if req.Address != nil {
		address = *req.Address
	}
	if req.Email != nil {
		email = *req.Email
	}
	if req.Phone != nil {
		phone = *req.Phone
	}
	sch.UpdateContact(address, email, phone)

	if err := s.schools.Save(ctx, sch); err != nil {
		return nil, err
	}
	return toSchoolResponse(sch), nil
}

// Delete removes a school. Admin only; the database cascades to students
// and their billing rows, except allocations, which restrict.
func (s *SchoolService) Delete(ctx context.Context, actor identity.Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return shared.ErrForbidden
	}
	if err := s.schools.Delete(ctx, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewDomainError("NOT_FOUND", "School not found")
		}
		return err
	}
	return nil
}

func toSchoolResponse(sch *school.School) *SchoolResponse {
	return &SchoolResponse{
		ID:        sch.ID,
		Name:      sch.Name,
		Address:   sch.Address,
		Email:     sch.Email,
		Phone:     sch.Phone,
		CreatedAt: sch.CreatedAt,
		UpdatedAt: sch.UpdatedAt,
	}
}
