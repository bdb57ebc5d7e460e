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

// PaymentService provides application-level payment operations. Updates and
// deletes run through the payment mutation guards: once allocations
// reference a payment its amount is pinned and its cleared status cannot be
// reverted.
type PaymentService struct {
	ledger   billing.LedgerStore
	students school.StudentRepository
	logger   *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(ledger billing.LedgerStore, students school.StudentRepository, logger *zap.Logger) *PaymentService {
	return &PaymentService{ledger: ledger, students: students, logger: logger}
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID             uuid.UUID `json:"id"`
	StudentID      uuid.UUID `json:"student_id"`
	AmountCents    int64     `json:"amount_cents"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	Method         string    `json:"payment_method"`
	AllocatedCents int64     `json:"allocated_cents"`
	AvailableCents int64     `json:"available_cents"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreatePaymentRequest is the payload for recording a payment
type CreatePaymentRequest struct {
	StudentID   uuid.UUID `json:"student_id" binding:"required"`
	AmountCents int64     `json:"amount_cents" binding:"required,gt=0"`
	Currency    string    `json:"currency" binding:"required,currencycode"`
	Status      string    `json:"status"`
	Method      string    `json:"payment_method" binding:"required"`
}

// UpdatePaymentRequest is the payload for updating a payment. Nil fields
// are left unchanged.
type UpdatePaymentRequest struct {
	AmountCents *int64  `json:"amount_cents"`
	Status      *string `json:"status"`
	Method      *string `json:"payment_method"`
}

// PaymentListFilter defines filtering options for payment list queries
type PaymentListFilter struct {
	StudentID *uuid.UUID `form:"student_id"`
	Page      int        `form:"page"`
	PageSize  int        `form:"page_size"`
}

// Create records a new payment for a student visible to the actor.
func (s *PaymentService) Create(ctx context.Context, actor identity.Actor, req CreatePaymentRequest) (*PaymentResponse, error) {
	if _, err := resolveStudent(ctx, s.students, actor, req.StudentID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Student not found")
		}
		return nil, err
	}

	payment, err := billing.NewPayment(
		req.AmountCents,
		req.Currency,
		billing.PaymentStatus(req.Status),
		billing.PaymentMethod(req.Method),
		req.StudentID,
	)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.Payments().Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return toPaymentResponse(payment, 0), nil
}

// GetByID gets a payment visible to the actor, with its allocated and
// available balances.
func (s *PaymentService) GetByID(ctx context.Context, actor identity.Actor, id uuid.UUID) (*PaymentResponse, error) {
	payment, err := findPayment(ctx, s.ledger, actor, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Payment not found")
		}
		return nil, err
	}
	allocated, err := s.ledger.Allocations().SumForPayment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("sum allocations: %w", err)
	}
	return toPaymentResponse(payment, allocated), nil
}

// List returns a page of payments visible to the actor.
func (s *PaymentService) List(ctx context.Context, actor identity.Actor, filter PaymentListFilter) ([]PaymentResponse, int64, error) {
	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	var (
		payments []billing.Payment
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
		payments, err = s.ledger.Payments().ListForStudent(ctx, *filter.StudentID)
		total = int64(len(payments))
	case actor.IsAdmin():
		payments, total, err = s.ledger.Payments().List(ctx, page, pageSize)
	case actor.SchoolID == nil:
		return nil, 0, shared.ErrForbidden
	default:
		payments, total, err = s.ledger.Payments().ListForSchool(ctx, *actor.SchoolID, page, pageSize)
	}
	if err != nil {
		return nil, 0, err
	}

	responses := make([]PaymentResponse, len(payments))
	for i := range payments {
		allocated, err := s.ledger.Allocations().SumForPayment(ctx, payments[i].ID)
		if err != nil {
			return nil, 0, fmt.Errorf("sum allocations: %w", err)
		}
		responses[i] = *toPaymentResponse(&payments[i], allocated)
	}
	return responses, total, nil
}

// Update mutates a payment under the mutation guards. The payment row is
// locked for the duration so the guard decision cannot race a concurrent
// allocation write. A status change re-derives the status of every invoice
// the payment funds, in the same transaction.
func (s *PaymentService) Update(ctx context.Context, actor identity.Actor, id uuid.UUID, req UpdatePaymentRequest) (*PaymentResponse, error) {
	var response *PaymentResponse
	err := s.ledger.InTx(ctx, func(tx billing.LedgerTx) error {
		if _, err := findPayment(ctx, tx, actor, id); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NewDomainError("NOT_FOUND", "Payment not found")
			}
			return err
		}
		payment, err := tx.Payments().FindByIDLocked(ctx, id)
		if err != nil {
			return err
		}

		var newStatus *billing.PaymentStatus
		if req.Status != nil {
			status := billing.PaymentStatus(*req.Status)
			if !status.IsValid() {
				return shared.NewDomainError("INVALID_STATUS", "Payment status is not valid")
			}
			newStatus = &status
		}
		if req.Method != nil && !billing.PaymentMethod(*req.Method).IsValid() {
			return shared.NewDomainError("INVALID_PAYMENT_METHOD", "Payment method is not valid")
		}
		if req.AmountCents != nil && *req.AmountCents <= 0 {
			return shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
		}

		hasAllocations, err := tx.Allocations().HasAllocationsForPayment(ctx, id)
		if err != nil {
			return err
		}
		if err := billing.ValidatePaymentUpdate(payment, newStatus, req.AmountCents, hasAllocations); err != nil {
			return err
		}

		statusChanged := false
		if newStatus != nil {
			statusChanged = *newStatus != payment.Status
			payment.Status = *newStatus
		}
		if req.AmountCents != nil {
			payment.AmountCents = *req.AmountCents
		}
		if req.Method != nil {
			payment.Method = billing.PaymentMethod(*req.Method)
		}
		payment.Touch()

		if err := tx.Payments().Save(ctx, payment); err != nil {
			return fmt.Errorf("save payment: %w", err)
		}

		if statusChanged {
			if err := reconcileInvoicesForPayment(ctx, tx, id); err != nil {
				return err
			}
		}

		allocated, err := tx.Allocations().SumForPayment(ctx, id)
		if err != nil {
			return fmt.Errorf("sum allocations: %w", err)
		}
		response = toPaymentResponse(payment, allocated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("payment updated",
		zap.String("payment_id", id.String()),
		zap.String("actor_id", actor.UserID.String()))
	return response, nil
}

// Delete removes a payment that owns zero allocations.
func (s *PaymentService) Delete(ctx context.Context, actor identity.Actor, id uuid.UUID) error {
	err := s.ledger.InTx(ctx, func(tx billing.LedgerTx) error {
		if _, err := findPayment(ctx, tx, actor, id); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NewDomainError("NOT_FOUND", "Payment not found")
			}
			return err
		}
		payment, err := tx.Payments().FindByIDLocked(ctx, id)
		if err != nil {
			return err
		}
		hasAllocations, err := tx.Allocations().HasAllocationsForPayment(ctx, id)
		if err != nil {
			return err
		}
		if err := billing.ValidatePaymentDelete(payment, hasAllocations); err != nil {
			return err
		}
		return tx.Payments().Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("payment deleted",
		zap.String("payment_id", id.String()),
		zap.String("actor_id", actor.UserID.String()))
	return nil
}

// reconcileInvoicesForPayment re-derives the status of every invoice the
// payment funds from its current recognized paid amount.
func reconcileInvoicesForPayment(ctx context.Context, tx billing.LedgerTx, paymentID uuid.UUID) error {
	allocations, err := tx.Allocations().ListForPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	seen := make(map[uuid.UUID]bool, len(allocations))
	for _, alloc := range allocations {
		if seen[alloc.InvoiceID] {
			continue
		}
		seen[alloc.InvoiceID] = true

		invoice, err := tx.Invoices().FindByID(ctx, alloc.InvoiceID)
		if err != nil {
			return err
		}
		paid, err := tx.Allocations().SumCompletedForInvoice(ctx, alloc.InvoiceID)
		if err != nil {
			return err
		}
		invoice.ApplyRecognizedPaid(paid)
		if err := tx.Invoices().Save(ctx, invoice); err != nil {
			return fmt.Errorf("save invoice: %w", err)
		}
	}
	return nil
}

func toPaymentResponse(payment *billing.Payment, allocatedCents int64) *PaymentResponse {
	return &PaymentResponse{
		ID:             payment.ID,
		StudentID:      payment.StudentID,
		AmountCents:    payment.AmountCents,
		Currency:       payment.Currency,
		Status:         payment.Status.String(),
		Method:         string(payment.Method),
		AllocatedCents: allocatedCents,
		AvailableCents: payment.AvailableCents(allocatedCents),
		CreatedAt:      payment.CreatedAt,
		UpdatedAt:      payment.UpdatedAt,
	}
}
