package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schoolbill/backend/internal/domain/billing"
	"github.com/schoolbill/backend/internal/domain/shared"
	"github.com/schoolbill/backend/internal/infrastructure/persistence/models"
)

// GormAllocationRepository implements billing.AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// Create persists a new allocation
func (r *GormAllocationRepository) Create(ctx context.Context, allocation *billing.Allocation) error {
	var model models.AllocationModel
	model.FromDomain(allocation)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindByID finds an allocation by its ID
func (r *GormAllocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Allocation, error) {
	var model models.AllocationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForSchool finds an allocation by ID whose invoice's student
// belongs to the school
func (r *GormAllocationRepository) FindByIDForSchool(ctx context.Context, id, schoolID uuid.UUID) (*billing.Allocation, error) {
	var model models.AllocationModel
	if err := r.db.WithContext(ctx).
		Joins("JOIN invoices ON invoices.id = payment_allocations.invoice_id").
		Joins("JOIN students ON students.id = invoices.student_id").
		Where("payment_allocations.id = ? AND students.school_id = ?", id, schoolID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns a page of allocations across all schools
func (r *GormAllocationRepository) List(ctx context.Context, page, pageSize int) ([]billing.Allocation, int64, error) {
	return r.list(r.db.WithContext(ctx).Model(&models.AllocationModel{}), page, pageSize)
}

// ListForSchool returns a page of allocations whose invoices belong to the
// school's students
func (r *GormAllocationRepository) ListForSchool(ctx context.Context, schoolID uuid.UUID, page, pageSize int) ([]billing.Allocation, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.AllocationModel{}).
		Joins("JOIN invoices ON invoices.id = payment_allocations.invoice_id").
		Joins("JOIN students ON students.id = invoices.student_id").
		Where("students.school_id = ?", schoolID)
	return r.list(query, page, pageSize)
}

func (r *GormAllocationRepository) list(query *gorm.DB, page, pageSize int) ([]billing.Allocation, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var allocationModels []models.AllocationModel
	if err := query.
		Order("payment_allocations.created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&allocationModels).Error; err != nil {
		return nil, 0, err
	}

	allocations := make([]billing.Allocation, len(allocationModels))
	for i, model := range allocationModels {
		allocations[i] = *model.ToDomain()
	}
	return allocations, total, nil
}

// Save updates an existing allocation
func (r *GormAllocationRepository) Save(ctx context.Context, allocation *billing.Allocation) error {
	var model models.AllocationModel
	model.FromDomain(allocation)
	return r.db.WithContext(ctx).Save(&model).Error
}

// Delete removes an allocation by ID
func (r *GormAllocationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.AllocationModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SumForPayment returns the total already allocated from a payment. Runs as
// a single aggregate query so rows written earlier in the same transaction
// are counted.
func (r *GormAllocationRepository) SumForPayment(ctx context.Context, paymentID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.AllocationModel{}).
		Where("payment_id = ?", paymentID).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// SumCompletedForInvoice returns the invoice's recognized paid amount. Only
// allocations whose payment is COMPLETED count; PENDING or FAILED payments
// contribute nothing regardless of their allocation rows.
func (r *GormAllocationRepository) SumCompletedForInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.AllocationModel{}).
		Joins("JOIN payments ON payments.id = payment_allocations.payment_id").
		Where("payment_allocations.invoice_id = ? AND payments.status = ?", invoiceID, billing.PaymentStatusCompleted).
		Select("COALESCE(SUM(payment_allocations.amount_cents), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ListForPayment returns every allocation funded by the payment, oldest first
func (r *GormAllocationRepository) ListForPayment(ctx context.Context, paymentID uuid.UUID) ([]billing.Allocation, error) {
	var allocationModels []models.AllocationModel
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&allocationModels).Error; err != nil {
		return nil, err
	}

	allocations := make([]billing.Allocation, len(allocationModels))
	for i, model := range allocationModels {
		allocations[i] = *model.ToDomain()
	}
	return allocations, nil
}

// SumCompletedForStudent returns the recognized paid total across the
// student's billable invoices
func (r *GormAllocationRepository) SumCompletedForStudent(ctx context.Context, studentID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.AllocationModel{}).
		Joins("JOIN payments ON payments.id = payment_allocations.payment_id").
		Joins("JOIN invoices ON invoices.id = payment_allocations.invoice_id").
		Where("invoices.student_id = ? AND payments.status = ? AND invoices.status NOT IN ?",
			studentID, billing.PaymentStatusCompleted, billing.NonBillableInvoiceStatuses).
		Select("COALESCE(SUM(payment_allocations.amount_cents), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// SumCompletedForSchool returns the recognized paid total across the
// billable invoices of a school's students
func (r *GormAllocationRepository) SumCompletedForSchool(ctx context.Context, schoolID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.AllocationModel{}).
		Joins("JOIN payments ON payments.id = payment_allocations.payment_id").
		Joins("JOIN invoices ON invoices.id = payment_allocations.invoice_id").
		Joins("JOIN students ON students.id = invoices.student_id").
		Where("students.school_id = ? AND payments.status = ? AND invoices.status NOT IN ?",
			schoolID, billing.PaymentStatusCompleted, billing.NonBillableInvoiceStatuses).
		Select("COALESCE(SUM(payment_allocations.amount_cents), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// HasAllocationsForPayment reports whether any allocation references the payment
func (r *GormAllocationRepository) HasAllocationsForPayment(ctx context.Context, paymentID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AllocationModel{}).
		Where("payment_id = ?", paymentID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasAllocationsForInvoice reports whether any allocation references the invoice
func (r *GormAllocationRepository) HasAllocationsForInvoice(ctx context.Context, invoiceID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AllocationModel{}).
		Where("invoice_id = ?", invoiceID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

var _ billing.AllocationRepository = (*GormAllocationRepository)(nil)
