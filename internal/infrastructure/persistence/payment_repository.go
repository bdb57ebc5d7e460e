package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/schoolbill/backend/internal/domain/billing"
	"github.com/schoolbill/backend/internal/domain/shared"
	"github.com/schoolbill/backend/internal/infrastructure/persistence/models"
)

// GormPaymentRepository implements billing.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Create persists a new payment
func (r *GormPaymentRepository) Create(ctx context.Context, payment *billing.Payment) error {
	var model models.PaymentModel
	model.FromDomain(payment)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindByID finds a payment by its ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForSchool finds a payment by ID whose student belongs to the school
func (r *GormPaymentRepository) FindByIDForSchool(ctx context.Context, id, schoolID uuid.UUID) (*billing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Joins("JOIN students ON students.id = payments.student_id").
		Where("payments.id = ? AND students.school_id = ?", id, schoolID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDLocked loads the payment row with SELECT ... FOR UPDATE. It must
// run inside a transaction; the lock serializes concurrent allocators
// competing for the same payment balance.
func (r *GormPaymentRepository) FindByIDLocked(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns a page of payments across all schools
func (r *GormPaymentRepository) List(ctx context.Context, page, pageSize int) ([]billing.Payment, int64, error) {
	return r.list(r.db.WithContext(ctx).Model(&models.PaymentModel{}), page, pageSize)
}

// ListForSchool returns a page of payments whose students belong to the school
func (r *GormPaymentRepository) ListForSchool(ctx context.Context, schoolID uuid.UUID, page, pageSize int) ([]billing.Payment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{}).
		Joins("JOIN students ON students.id = payments.student_id").
		Where("students.school_id = ?", schoolID)
	return r.list(query, page, pageSize)
}

func (r *GormPaymentRepository) list(query *gorm.DB, page, pageSize int) ([]billing.Payment, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var paymentModels []models.PaymentModel
	if err := query.
		Order("payments.created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&paymentModels).Error; err != nil {
		return nil, 0, err
	}

	payments := make([]billing.Payment, len(paymentModels))
	for i, model := range paymentModels {
		payments[i] = *model.ToDomain()
	}
	return payments, total, nil
}

// ListForStudent returns all of one student's payments
func (r *GormPaymentRepository) ListForStudent(ctx context.Context, studentID uuid.UUID) ([]billing.Payment, error) {
	var paymentModels []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&paymentModels).Error; err != nil {
		return nil, err
	}

	payments := make([]billing.Payment, len(paymentModels))
	for i, model := range paymentModels {
		payments[i] = *model.ToDomain()
	}
	return payments, nil
}

// Save updates an existing payment
func (r *GormPaymentRepository) Save(ctx context.Context, payment *billing.Payment) error {
	var model models.PaymentModel
	model.FromDomain(payment)
	return r.db.WithContext(ctx).Save(&model).Error
}

// Delete removes a payment by ID. The database restricts deletion while
// allocation rows still reference the payment.
func (r *GormPaymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.PaymentModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ billing.PaymentRepository = (*GormPaymentRepository)(nil)
