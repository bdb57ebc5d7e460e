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

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// StudentService provides application-level student operations, confined to
// the actor's school for non-admin callers.
type StudentService struct {
	students school.StudentRepository
	schools  school.SchoolRepository
}

// NewStudentService creates a new StudentService
func NewStudentService(students school.StudentRepository, schools school.SchoolRepository) *StudentService {
	return &StudentService{students: students, schools: schools}
}

// StudentResponse represents a student in API responses
type StudentResponse struct {
	ID             uuid.UUID  `json:"id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email,omitempty"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	EnrollmentDate time.Time  `json:"enrollment_date"`
	SchoolID       uuid.UUID  `json:"school_id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CreateStudentRequest is the payload for enrolling a student
type CreateStudentRequest struct {
	FirstName      string     `json:"first_name" binding:"required"`
	LastName       string     `json:"last_name" binding:"required"`
	Email          string     `json:"email" binding:"omitempty,email"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
	EnrollmentDate *time.Time `json:"enrollment_date"`
	SchoolID       uuid.UUID  `json:"school_id" binding:"required"`
}

// UpdateStudentRequest is the payload for updating a student. Nil fields
// are left unchanged.
type UpdateStudentRequest struct {
	FirstName   *string    `json:"first_name"`
	LastName    *string    `json:"last_name"`
	Email       *string    `json:"email" binding:"omitempty,email"`
	DateOfBirth *time.Time `json:"date_of_birth"`
}

// StudentListFilter defines filtering options for student list queries
type StudentListFilter struct {
	SchoolID *uuid.UUID `form:"school_id"`
	Page     int        `form:"page"`
	PageSize int        `form:"page_size"`
}

// Create enrolls a student. School staff may only enroll into their own
// school.
func (s *StudentService) Create(ctx context.Context, actor identity.Actor, req CreateStudentRequest) (*StudentResponse, error) {
	if !actor.CanAccessSchool(req.SchoolID) {
		return nil, shared.NewDomainError("NOT_FOUND", "School not found")
	}
	if _, err := s.schools.FindByID(ctx, req.SchoolID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "School not found")
		}
		return nil, err
	}

	enrollment := time.Now()
	if req.EnrollmentDate != nil {
		enrollment = *req.EnrollmentDate
	}
	student, err := school.NewStudent(req.FirstName, req.LastName, req.Email, req.DateOfBirth, enrollment, req.SchoolID)
	if err != nil {
		return nil, err
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, err
	}
	return toStudentResponse(student), nil
}

// GetByID gets a student visible to the actor.
func (s *StudentService) GetByID(ctx context.Context, actor identity.Actor, id uuid.UUID) (*StudentResponse, error) {
	student, err := s.findStudent(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return toStudentResponse(student), nil
}

// List returns a page of students visible to the actor.
func (s *StudentService) List(ctx context.Context, actor identity.Actor, filter StudentListFilter) ([]StudentResponse, int64, error) {
	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	scope := filter.SchoolID
	if !actor.IsAdmin() {
		if actor.SchoolID == nil {
			return nil, 0, shared.ErrForbidden
		}
		if scope != nil && *scope != *actor.SchoolID {
			return nil, 0, shared.NewDomainError("NOT_FOUND", "School not found")
		}
		scope = actor.SchoolID
	}

	var (
		students []school.Student
		total    int64
		err      error
	)
	if scope != nil {
		students, total, err = s.students.ListForSchool(ctx, *scope, page, pageSize)
	} else {
		students, total, err = s.students.List(ctx, page, pageSize)
	}
	if err != nil {
		return nil, 0, err
	}

	responses := make([]StudentResponse, len(students))
	for i := range students {
		responses[i] = *toStudentResponse(&students[i])
	}
	return responses, total, nil
}

// Update mutates a student's profile.
func (s *StudentService) Update(ctx context.Context, actor identity.Actor, id uuid.UUID, req UpdateStudentRequest) (*StudentResponse, error) {
	student, err := s.findStudent(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	firstName, lastName, email := student.FirstName, student.LastName, student.Email
	dateOfBirth := student.DateOfBirth
	if req.FirstName != nil {
		firstName = *req.FirstName
	}
	if req.LastName != nil {
		lastName = *req.LastName
	}
	if req.Email != nil {
		email = *req.Email
	}
	if req.DateOfBirth != nil {
		dateOfBirth = req.DateOfBirth
	}
	if err := student.UpdateProfile(firstName, lastName, email, dateOfBirth); err != nil {
		return nil, err
	}

	if err := s.students.Save(ctx, student); err != nil {
		return nil, err
	}
	return toStudentResponse(student), nil
}

// Delete removes a student. The database cascades to the student's invoices
// and payments unless allocations restrict the cascade.
func (s *StudentService) Delete(ctx context.Context, actor identity.Actor, id uuid.UUID) error {
	if _, err := s.findStudent(ctx, actor, id); err != nil {
		return err
	}
	return s.students.Delete(ctx, id)
}

func (s *StudentService) findStudent(ctx context.Context, actor identity.Actor, id uuid.UUID) (*school.Student, error) {
	var (
		student *school.Student
		err     error
	)
	if actor.IsAdmin() {
		student, err = s.students.FindByID(ctx, id)
	} else if actor.SchoolID == nil {
		return nil, shared.ErrForbidden
	} else {
		student, err = s.students.FindByIDForSchool(ctx, id, *actor.SchoolID)
	}
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Student not found")
		}
		return nil, err
	}
	return student, nil
}

func toStudentResponse(student *school.Student) *StudentResponse {
	return &StudentResponse{
		ID:             student.ID,
		FirstName:      student.FirstName,
		LastName:       student.LastName,
		Email:          student.Email,
		DateOfBirth:    student.DateOfBirth,
		EnrollmentDate: student.EnrollmentDate,
		SchoolID:       student.SchoolID,
		CreatedAt:      student.CreatedAt,
		UpdatedAt:      student.UpdatedAt,
	}
}
