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

// GormSchoolRepository implements school.SchoolRepository using GORM
type GormSchoolRepository struct {
	db *gorm.DB
}

// NewGormSchoolRepository creates a new GormSchoolRepository
func NewGormSchoolRepository(db *gorm.DB) *GormSchoolRepository {
	return &GormSchoolRepository{db: db}
}

// Create persists a new school
func (r *GormSchoolRepository) Create(ctx context.Context, s *school.School) error {
	var model models.SchoolModel
	model.FromDomain(s)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindByID finds a school by its ID
func (r *GormSchoolRepository) FindByID(ctx context.Context, id uuid.UUID) (*school.School, error) {
	var model models.SchoolModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns a page of schools ordered by name, plus the total count
func (r *GormSchoolRepository) List(ctx context.Context, page, pageSize int) ([]school.School, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.SchoolModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var schoolModels []models.SchoolModel
	if err := r.db.WithContext(ctx).
		Order("name ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&schoolModels).Error; err != nil {
		return nil, 0, err
	}

	schools := make([]school.School, len(schoolModels))
	for i, model := range schoolModels {
		schools[i] = *model.ToDomain()
	}
	return schools, total, nil
}

// Save updates an existing school
func (r *GormSchoolRepository) Save(ctx context.Context, s *school.School) error {
	var model models.SchoolModel
	model.FromDomain(s)
	return r.db.WithContext(ctx).Save(&model).Error
}

// Delete removes a school by ID
func (r *GormSchoolRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.SchoolModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ school.SchoolRepository = (*GormSchoolRepository)(nil)
