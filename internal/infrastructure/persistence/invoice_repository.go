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

// GormInvoiceRepository implements billing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// Create persists a new invoice
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *billing.Invoice) error {
	var model models.InvoiceModel
	model.FromDomain(invoice)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindByID finds an invoice by its ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForSchool finds an invoice by ID whose student belongs to the school
func (r *GormInvoiceRepository) FindByIDForSchool(ctx context.Context, id, schoolID uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Joins("JOIN students ON students.id = invoices.student_id").
		Where("invoices.id = ? AND students.school_id = ?", id, schoolID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds an invoice by its unique invoice number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, invoiceNumber string) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("invoice_number = ?", invoiceNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns a page of invoices across all schools
func (r *GormInvoiceRepository) List(ctx context.Context, page, pageSize int) ([]billing.Invoice, int64, error) {
	return r.list(r.db.WithContext(ctx).Model(&models.InvoiceModel{}), page, pageSize)
}

// ListForSchool returns a page of invoices whose students belong to the school
func (r *GormInvoiceRepository) ListForSchool(ctx context.Context, schoolID uuid.UUID, page, pageSize int) ([]billing.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Joins("JOIN students ON students.id = invoices.student_id").
		Where("students.school_id = ?", schoolID)
	return r.list(query, page, pageSize)
}

func (r *GormInvoiceRepository) list(query *gorm.DB, page, pageSize int) ([]billing.Invoice, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invoiceModels []models.InvoiceModel
	if err := query.
		Order("invoices.issue_date DESC, invoices.created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&invoiceModels).Error; err != nil {
		return nil, 0, err
	}

	invoices := make([]billing.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, total, nil
}

// ListForStudent returns all of one student's invoices
func (r *GormInvoiceRepository) ListForStudent(ctx context.Context, studentID uuid.UUID) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("issue_date DESC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}

	invoices := make([]billing.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, nil
}

// SumBilledForStudent returns the total invoiced amount across the
// student's billable invoices
func (r *GormInvoiceRepository) SumBilledForStudent(ctx context.Context, studentID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("student_id = ? AND status NOT IN ?", studentID, billing.NonBillableInvoiceStatuses).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// SumBilledForSchool returns the total invoiced amount across the billable
// invoices of a school's students
func (r *GormInvoiceRepository) SumBilledForSchool(ctx context.Context, schoolID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Joins("JOIN students ON students.id = invoices.student_id").
		Where("students.school_id = ? AND invoices.status NOT IN ?", schoolID, billing.NonBillableInvoiceStatuses).
		Select("COALESCE(SUM(invoices.amount_cents), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Save updates an existing invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	var model models.InvoiceModel
	model.FromDomain(invoice)
	return r.db.WithContext(ctx).Save(&model).Error
}

// Delete removes an invoice by ID. The database restricts deletion while
// allocation rows still reference the invoice.
func (r *GormInvoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.InvoiceModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)
