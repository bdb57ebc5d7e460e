package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/schoolbill/backend/internal/domain/shared"
)

// Allocation assigns part (or all) of one payment's funds to one invoice.
// A payment can fund multiple invoices and an invoice can be funded by
// multiple payments; allocations are the join between the two.
//
// Allocations are only ever created, updated, or deleted through the
// allocation coordinator, which recomputes the owning invoice's status in
// the same transaction as the allocation write.
type Allocation struct {
	ID          uuid.UUID `json:"id"`
	PaymentID   uuid.UUID `json:"payment_id"`
	InvoiceID   uuid.UUID `json:"invoice_id"`
	AmountCents int64     `json:"amount_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewAllocation creates a new allocation linking a payment to an invoice.
// Business validation (balance, currency, payment status) is the allocation
// validator's job; this constructor only rejects structurally broken input.
func NewAllocation(paymentID, invoiceID uuid.UUID, amountCents int64) (*Allocation, error) {
	if paymentID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PAYMENT", "Payment ID cannot be empty")
	}
	if invoiceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice ID cannot be empty")
	}
	if amountCents <= 0 {
		return nil, ErrInvalidAmount()
	}

	return &Allocation{
		ID:          uuid.New(),
		PaymentID:   paymentID,
		InvoiceID:   invoiceID,
		AmountCents: amountCents,
		CreatedAt:   time.Now(),
	}, nil
}
