package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolbill/backend/internal/domain/billing"
	"github.com/schoolbill/backend/internal/domain/identity"
	"github.com/schoolbill/backend/internal/domain/school"
	"github.com/schoolbill/backend/internal/domain/shared"
)

// InvoiceService provides application-level invoice operations
type InvoiceService struct {
	ledger   billing.LedgerStore
	students school.StudentRepository
	logger   *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(ledger billing.LedgerStore, students school.StudentRepository, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{ledger: ledger, students: students, logger: logger}
}

// InvoiceResponse represents an invoice in API responses. PaidCents is the
// recognized paid amount (allocations funded by completed payments only).
type InvoiceResponse struct {
	ID               uuid.UUID `json:"id"`
	InvoiceNumber    string    `json:"invoice_number"`
	StudentID        uuid.UUID `json:"student_id"`
	AmountCents      int64     `json:"amount_cents"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	IssueDate        time.Time `json:"issue_date"`
	DueDate          time.Time `json:"due_date"`
	Description      string    `json:"description,omitempty"`
	PaidCents        int64     `json:"paid_cents"`
	OutstandingCents int64     `json:"outstanding_cents"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CreateInvoiceRequest is the payload for creating an invoice
type CreateInvoiceRequest struct {
	InvoiceNumber string     `json:"invoice_number" binding:"required"`
	StudentID     uuid.UUID  `json:"student_id" binding:"required"`
	AmountCents   int64      `json:"amount_cents" binding:"required,gt=0"`
	Currency      string     `json:"currency" binding:"required,currencycode"`
	Status        string     `json:"status"`
	IssueDate     *time.Time `json:"issue_date"`
	DueDate       *time.Time `json:"due_date"`
	Description   string     `json:"description"`
}

// UpdateInvoiceRequest is the payload for updating an invoice. Nil fields
// are left unchanged.
type UpdateInvoiceRequest struct {
	AmountCents *int64     `json:"amount_cents"`
	Status      *string    `json:"status"`
	DueDate     *time.Time `json:"due_date"`
	Description *string    `json:"description"`
}

// InvoiceListFilter defines filtering options for invoice list queries
type InvoiceListFilter struct {
	StudentID *uuid.UUID `form:"student_id"`
	Page      int        `form:"page"`
	PageSize  int        `form:"page_size"`
}

// Create issues a new invoice for a student visible to the actor.
func (s *InvoiceService) Create(ctx context.Context, actor identity.Actor, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	if _, err := resolveStudent(ctx, s.students, actor, req.StudentID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Student not found")
		}
		return nil, err
	}

	if _, err := s.ledger.Invoices().FindByNumber(ctx, req.InvoiceNumber); err == nil {
		return nil, shared.NewDomainError("ALREADY_EXISTS",
			fmt.Sprintf("Invoice number %s is already in use", req.InvoiceNumber))
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	issueDate := time.Now()
	if req.IssueDate != nil {
		issueDate = *req.IssueDate
	}
	dueDate := issueDate.AddDate(0, 1, 0)
	if req.DueDate != nil {
		dueDate = *req.DueDate
	}

	invoice, err := billing.NewInvoice(
		req.InvoiceNumber,
		req.AmountCents,
		req.Currency,
		billing.InvoiceStatus(req.Status),
		issueDate,
		dueDate,
		req.Description,
		req.StudentID,
	)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.Invoices().Create(ctx, invoice); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	s.logger.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.Int64("amount_cents", invoice.AmountCents),
		zap.String("actor_id", actor.UserID.String()))
	return toInvoiceResponse(invoice, 0), nil
}

// GetByID gets an invoice visible to the actor, with its recognized paid
// amount.
func (s *InvoiceService) GetByID(ctx context.Context, actor identity.Actor, id uuid.UUID) (*InvoiceResponse, error) {
	invoice, err := findInvoice(ctx, s.ledger, actor, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Invoice not found")
		}
		return nil, err
	}
	paid, err := s.ledger.Allocations().SumCompletedForInvoice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("sum recognized paid: %w", err)
	}
	return toInvoiceResponse(invoice, paid), nil
}

// List returns a page of invoices visible to the actor.
func (s *InvoiceService) List(ctx context.Context, actor identity.Actor, filter InvoiceListFilter) ([]InvoiceResponse, int64, error) {
	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	var (
		invoices []billing.Invoice
		total    int64
		err      error
	)
	switch {
	case filter.StudentID != nil:
		if _, err := resolveStudent(ctx, s.students, actor, *filter.StudentID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, 0, shared.NewDomainError("NOT_FOUND", "Student not found")
			}
			return nil, 0, err
		}
		invoices, err = s.ledger.Invoices().ListForStudent(ctx, *filter.StudentID)
		total = int64(len(invoices))
	case actor.IsAdmin():
		invoices, total, err = s.ledger.Invoices().List(ctx, page, pageSize)
	case actor.SchoolID == nil:
		return nil, 0, shared.ErrForbidden
	default:
		invoices, total, err = s.ledger.Invoices().ListForSchool(ctx, *actor.SchoolID, page, pageSize)
	}
	if err != nil {
		return nil, 0, err
	}

	responses := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		paid, err := s.ledger.Allocations().SumCompletedForInvoice(ctx, invoices[i].ID)
		if err != nil {
			return nil, 0, fmt.Errorf("sum recognized paid: %w", err)
		}
		responses[i] = *toInvoiceResponse(&invoices[i], paid)
	}
	return responses, total, nil
}

// Update mutates invoice fields. When the amount changes and no explicit
// status is supplied, the status is re-derived from the recognized paid
// amount in the same transaction as the field update.
func (s *InvoiceService) Update(ctx context.Context, actor identity.Actor, id uuid.UUID, req UpdateInvoiceRequest) (*InvoiceResponse, error) {
	var response *InvoiceResponse
	err := s.ledger.InTx(ctx, func(tx billing.LedgerTx) error {
		invoice, err := findInvoice(ctx, tx, actor, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NewDomainError("NOT_FOUND", "Invoice not found")
			}
			return err
		}

		if req.Status != nil {
			status := billing.InvoiceStatus(*req.Status)
			if !status.IsValid() {
				return shared.NewDomainError("INVALID_STATUS", "Invoice status is not valid")
			}
			invoice.Status = status
		}
		amountChanged := false
		if req.AmountCents != nil {
			if *req.AmountCents <= 0 {
				return shared.NewDomainError("INVALID_AMOUNT", "Invoice amount must be positive")
			}
			amountChanged = *req.AmountCents != invoice.AmountCents
			invoice.AmountCents = *req.AmountCents
		}
		if req.DueDate != nil {
			invoice.DueDate = *req.DueDate
		}
		if req.Description != nil {
			invoice.Description = *req.Description
		}
		invoice.Touch()

		paid, err := tx.Allocations().SumCompletedForInvoice(ctx, id)
		if err != nil {
			return fmt.Errorf("sum recognized paid: %w", err)
		}
		if amountChanged && req.Status == nil {
			invoice.ApplyRecognizedPaid(paid)
		}

		if err := tx.Invoices().Save(ctx, invoice); err != nil {
			return fmt.Errorf("save invoice: %w", err)
		}
		response = toInvoiceResponse(invoice, paid)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("invoice updated",
		zap.String("invoice_id", id.String()),
		zap.String("actor_id", actor.UserID.String()))
	return response, nil
}

// Delete removes an invoice. Invoices still referenced by allocations are
// rejected; the database RESTRICT foreign key backs this check up.
func (s *InvoiceService) Delete(ctx context.Context, actor identity.Actor, id uuid.UUID) error {
	err := s.ledger.InTx(ctx, func(tx billing.LedgerTx) error {
		if _, err := findInvoice(ctx, tx, actor, id); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NewDomainError("NOT_FOUND", "Invoice not found")
			}
			return err
		}
		hasAllocations, err := tx.Allocations().HasAllocationsForInvoice(ctx, id)
		if err != nil {
			return err
		}
		if hasAllocations {
			return shared.NewDomainError("INVOICE_HAS_ALLOCATIONS",
				"Cannot delete an invoice that has allocations. Delete the allocations first")
		}
		return tx.Invoices().Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("invoice deleted",
		zap.String("invoice_id", id.String()),
		zap.String("actor_id", actor.UserID.String()))
	return nil
}

func toInvoiceResponse(invoice *billing.Invoice, paidCents int64) *InvoiceResponse {
	return &InvoiceResponse{
		ID:               invoice.ID,
		InvoiceNumber:    invoice.InvoiceNumber,
		StudentID:        invoice.StudentID,
		AmountCents:      invoice.AmountCents,
		Currency:         invoice.Currency,
		Status:           invoice.Status.String(),
		IssueDate:        invoice.IssueDate,
		DueDate:          invoice.DueDate,
		Description:      invoice.Description,
		PaidCents:        paidCents,
		OutstandingCents: invoice.OutstandingCents(paidCents),
		CreatedAt:        invoice.CreatedAt,
		UpdatedAt:        invoice.UpdatedAt,
	}
}
