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
	"github.com/schoolbill/backend/internal/domain/shared"
)

// AllocationService is the allocation transaction coordinator. Every
// mutation runs as one atomic unit: lock the payment row, validate against
// the allocated sum observed under the lock, write the allocation, recompute
// the invoice's recognized paid amount from the same transaction, and save
// the derived status. Any error rolls the whole unit back, so an allocation
// write and its invoice status change are never observable separately.
type AllocationService struct {
	ledger billing.LedgerStore
	logger *zap.Logger
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(ledger billing.LedgerStore, logger *zap.Logger) *AllocationService {
	return &AllocationService{ledger: ledger, logger: logger}
}

// AllocationResponse represents an allocation in API responses.
// InvoiceStatus is the status the owning invoice holds after the mutation.
type AllocationResponse struct {
	ID            uuid.UUID `json:"id"`
	PaymentID     uuid.UUID `json:"payment_id"`
	InvoiceID     uuid.UUID `json:"invoice_id"`
	AmountCents   int64     `json:"amount_cents"`
	InvoiceStatus string    `json:"invoice_status,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateAllocationRequest is the payload for allocating payment funds to an
// invoice
type CreateAllocationRequest struct {
	PaymentID   uuid.UUID `json:"payment_id" binding:"required"`
	InvoiceID   uuid.UUID `json:"invoice_id" binding:"required"`
	AmountCents int64     `json:"amount_cents" binding:"required,gt=0"`
}

// UpdateAllocationRequest is the payload for changing an allocation's
// amount. A nil amount is a no-op.
type UpdateAllocationRequest struct {
	AmountCents *int64 `json:"amount_cents"`
}

// AllocationListFilter defines filtering options for allocation list queries
type AllocationListFilter struct {
	PaymentID *uuid.UUID `form:"payment_id"`
	Page      int        `form:"page"`
	PageSize  int        `form:"page_size"`
}

// CreateWithStatusUpdate allocates part of a payment's funds to an invoice
// and re-derives the invoice status, atomically.
func (s *AllocationService) CreateWithStatusUpdate(ctx context.Context, actor identity.Actor, req CreateAllocationRequest) (*AllocationResponse, error) {
	var response *AllocationResponse
	err := s.ledger.InTx(ctx, func(tx billing.LedgerTx) error {
		if _, err := findPayment(ctx, tx, actor, req.PaymentID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NewDomainError("NOT_FOUND", "Payment not found")
			}
			return err
		}
		payment, err := tx.Payments().FindByIDLocked(ctx, req.PaymentID)
		if err != nil {
			return err
		}
		invoice, err := findInvoice(ctx, tx, actor, req.InvoiceID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NewDomainError("NOT_FOUND", "Invoice not found")
			}
			return err
		}

		allocated, err := tx.Allocations().SumForPayment(ctx, req.PaymentID)
		if err != nil {
			return fmt.Errorf("sum allocations: %w", err)
		}
		if err := billing.ValidateAllocationCreate(payment, invoice, req.AmountCents, allocated); err != nil {
			return err
		}

		allocation, err := billing.NewAllocation(req.PaymentID, req.InvoiceID, req.AmountCents)
		if err != nil {
			return err
		}
		if err := tx.Allocations().Create(ctx, allocation); err != nil {
			return fmt.Errorf("create allocation: %w", err)
		}

		if err := s.reconcileInvoice(ctx, tx, invoice); err != nil {
			return err
		}
		response = toAllocationResponse(allocation, invoice)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("allocation created",
		zap.String("allocation_id", response.ID.String()),
		zap.String("payment_id", req.PaymentID.String()),
		zap.String("invoice_id", req.InvoiceID.String()),
		zap.Int64("amount_cents", req.AmountCents),
		zap.String("invoice_status", response.InvoiceStatus))
	return response, nil
}

// UpdateWithStatusUpdate changes an allocation's amount and re-derives the
// invoice status, atomically. The available balance check gives the
// allocation's current amount back before comparing the new one.
func (s *AllocationService) UpdateWithStatusUpdate(ctx context.Context, actor identity.Actor, id uuid.UUID, req UpdateAllocationRequest) (*AllocationResponse, error) {
	var response *AllocationResponse
	err := s.ledger.InTx(ctx, func(tx billing.LedgerTx) error {
		allocation, err := findAllocation(ctx, tx, actor, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NewDomainError("NOT_FOUND", "Allocation not found")
			}
			return err
		}
		payment, err := tx.Payments().FindByIDLocked(ctx, allocation.PaymentID)
		if err != nil {
			return err
		}
		// Re-read under the payment lock. The scoped read above may
		// predate a concurrent update that committed while we waited
		// for the lock; the balance check must start from the
		// allocation's committed amount, not a stale snapshot.
		allocation, err = tx.Allocations().FindByID(ctx, allocation.ID)
		if err != nil {
			return err
		}

		allocated, err := tx.Allocations().SumForPayment(ctx, allocation.PaymentID)
		if err != nil {
			return fmt.Errorf("sum allocations: %w", err)
		}
		if err := billing.ValidateAllocationUpdate(payment, allocation, req.AmountCents, allocated); err != nil {
			return err
		}

		if req.AmountCents != nil {
			allocation.AmountCents = *req.AmountCents
			if err := tx.Allocations().Save(ctx, allocation); err != nil {
				return fmt.Errorf("save allocation: %w", err)
			}
		}

		invoice, err := tx.Invoices().FindByID(ctx, allocation.InvoiceID)
		if err != nil {
			return err
		}
		if err := s.reconcileInvoice(ctx, tx, invoice); err != nil {
			return err
		}
		response = toAllocationResponse(allocation, invoice)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("allocation updated",
		zap.String("allocation_id", id.String()),
		zap.String("invoice_status", response.InvoiceStatus))
	return response, nil
}

// DeleteWithStatusUpdate removes an allocation and re-derives the invoice
// status, atomically. The recompute never downgrades: an invoice whose
// recognized paid amount drops to zero keeps its current status.
func (s *AllocationService) DeleteWithStatusUpdate(ctx context.Context, actor identity.Actor, id uuid.UUID) error {
	err := s.ledger.InTx(ctx, func(tx billing.LedgerTx) error {
		allocation, err := findAllocation(ctx, tx, actor, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NewDomainError("NOT_FOUND", "Allocation not found")
			}
			return err
		}
		if _, err := tx.Payments().FindByIDLocked(ctx, allocation.PaymentID); err != nil {
			return err
		}

		if err := tx.Allocations().Delete(ctx, allocation.ID); err != nil {
			return err
		}

		invoice, err := tx.Invoices().FindByID(ctx, allocation.InvoiceID)
		if err != nil {
			return err
		}
		return s.reconcileInvoice(ctx, tx, invoice)
	})
	if err != nil {
		return err
	}
	s.logger.Info("allocation deleted", zap.String("allocation_id", id.String()))
	return nil
}

// GetByID gets an allocation visible to the actor.
func (s *AllocationService) GetByID(ctx context.Context, actor identity.Actor, id uuid.UUID) (*AllocationResponse, error) {
	allocation, err := findAllocation(ctx, s.ledger, actor, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Allocation not found")
		}
		return nil, err
	}
	return toAllocationResponse(allocation, nil), nil
}

// List returns a page of allocations visible to the actor.
func (s *AllocationService) List(ctx context.Context, actor identity.Actor, filter AllocationListFilter) ([]AllocationResponse, int64, error) {
	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	var (
		allocations []billing.Allocation
		total       int64
		err         error
	)
	switch {
	case filter.PaymentID != nil:
		if _, err := findPayment(ctx, s.ledger, actor, *filter.PaymentID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, 0, shared.NewDomainError("NOT_FOUND", "Payment not found")
			}
			return nil, 0, err
		}
		allocations, err = s.ledger.Allocations().ListForPayment(ctx, *filter.PaymentID)
		total = int64(len(allocations))
	case actor.IsAdmin():
		allocations, total, err = s.ledger.Allocations().List(ctx, page, pageSize)
	case actor.SchoolID == nil:
		return nil, 0, shared.ErrForbidden
	default:
		allocations, total, err = s.ledger.Allocations().ListForSchool(ctx, *actor.SchoolID, page, pageSize)
	}
	if err != nil {
		return nil, 0, err
	}

	responses := make([]AllocationResponse, len(allocations))
	for i := range allocations {
		responses[i] = *toAllocationResponse(&allocations[i], nil)
	}
	return responses, total, nil
}

// reconcileInvoice recomputes the invoice's recognized paid amount on the
// transaction handle, so allocation rows written earlier in the same
// transaction are counted, and persists the derived status.
func (s *AllocationService) reconcileInvoice(ctx context.Context, tx billing.LedgerTx, invoice *billing.Invoice) error {
	paid, err := tx.Allocations().SumCompletedForInvoice(ctx, invoice.ID)
	if err != nil {
		return fmt.Errorf("sum recognized paid: %w", err)
	}
	invoice.ApplyRecognizedPaid(paid)
	if err := tx.Invoices().Save(ctx, invoice); err != nil {
		return fmt.Errorf("save invoice: %w", err)
	}
	return nil
}

func toAllocationResponse(allocation *billing.Allocation, invoice *billing.Invoice) *AllocationResponse {
	resp := &AllocationResponse{
		ID:          allocation.ID,
		PaymentID:   allocation.PaymentID,
		InvoiceID:   allocation.InvoiceID,
		AmountCents: allocation.AmountCents,
		CreatedAt:   allocation.CreatedAt,
	}
	if invoice != nil {
		resp.InvoiceStatus = invoice.Status.String()
	}
	return resp
}
