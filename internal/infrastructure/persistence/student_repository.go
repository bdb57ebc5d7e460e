package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schoolbill/backend/internal/domain/school"
	"github.com/schoolbill/backend/internal/domain/shared"
	"github.com/schoolbill/backend/internal/infrastructure/persistence/models"
)

// GormStudentRepository implements school.StudentRepository using GORM
type GormStudentRepository struct {
	db *gorm.DB
}

// NewGormStudentRepository creates a new GormStudentRepository
func NewGormStudentRepository(db *gorm.DB) *GormStudentRepository {
	return &GormStudentRepository{db: db}
}

// Create persists a new student
func (r *GormStudentRepository) Create(ctx context.Context, s *school.Student) error {
	var model models.StudentModel
	model.FromDomain(s)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindByID finds a student by its ID
func (r *GormStudentRepository) FindByID(ctx context.Context, id uuid.UUID) (*school.Student, error) {
	var model models.StudentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForSchool finds a student by ID limited to one school
func (r *GormStudentRepository) FindByIDForSchool(ctx context.Context, id, schoolID uuid.UUID) (*school.Student, error) {
	var model models.StudentModel
	if err := r.db.WithContext(ctx).
		Where("id = ? AND school_id = ?", id, schoolID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns a page of students across all schools
func (r *GormStudentRepository) List(ctx context.Context, page, pageSize int) ([]school.Student, int64, error) {
	return r.list(r.db.WithContext(ctx).Model(&models.StudentModel{}), page, pageSize)
}

// ListForSchool returns a page of one school's students
func (r *GormStudentRepository) ListForSchool(ctx context.Context, schoolID uuid.UUID, page, pageSize int) ([]school.Student, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.StudentModel{}).Where("school_id = ?", schoolID)
	return r.list(query, page, pageSize)
}

func (r *GormStudentRepository) list(query *gorm.DB, page, pageSize int) ([]school.Student, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var studentModels []models.StudentModel
	if err := query.
		Order("last_name ASC, first_name ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&studentModels).Error; err != nil {
		return nil, 0, err
	}

	students := make([]school.Student, len(studentModels))
	for i, model := range studentModels {
		students[i] = *model.ToDomain()
	}
	return students, total, nil
}

// Save updates an existing student
func (r *GormStudentRepository) Save(ctx context.Context, s *school.Student) error {
	var model models.StudentModel
	model.FromDomain(s)
	return r.db.WithContext(ctx).Save(&model).Error
}

// Delete removes a student by ID
func (r *GormStudentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.StudentModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ school.StudentRepository = (*GormStudentRepository)(nil)
