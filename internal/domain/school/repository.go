package school

import (
	"context"

	"github.com/google/uuid"
)

// SchoolRepository defines persistence operations for schools
type SchoolRepository interface {
	Create(ctx context.Context, school *School) error
	FindByID(ctx context.Context, id uuid.UUID) (*School, error)
	List(ctx context.Context, page, pageSize int) ([]School, int64, error)
	Save(ctx context.Context, school *School) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// StudentRepository defines persistence operations for students
type StudentRepository interface {
	Create(ctx context.Context, student *Student) error
	FindByID(ctx context.Context, id uuid.UUID) (*Student, error)
	FindByIDForSchool(ctx context.Context, id, schoolID uuid.UUID) (*Student, error)
	List(ctx context.Context, page, pageSize int) ([]Student, int64, error)
	ListForSchool(ctx context.Context, schoolID uuid.UUID, page, pageSize int) ([]Student, int64, error)
	Save(ctx context.Context, student *Student) error
	Delete(ctx context.Context, id uuid.UUID) error
}
