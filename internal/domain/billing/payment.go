package billing

import (
	"github.com/google/uuid"

	"github.com/schoolbill/backend/internal/domain/shared"
)

// PaymentStatus represents the clearing status of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// PaymentMethod represents how a payment was made
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

// IsValid checks if the method is a valid PaymentMethod
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// Payment represents money received from (or on behalf of) a student.
// Its funds are assigned to invoices through Allocations; the sum of a
// payment's allocations may never exceed the payment amount.
type Payment struct {
	shared.BaseEntity
	AmountCents int64         `json:"amount_cents"`
	Currency    string        `json:"currency"`
	Status      PaymentStatus `json:"status"`
	Method      PaymentMethod `json:"payment_method"`
	StudentID   uuid.UUID     `json:"student_id"`
}

// NewPayment creates a new payment owned by a student
func NewPayment(
	amountCents int64,
	currency string,
	status PaymentStatus,
	method PaymentMethod,
	studentID uuid.UUID,
) (*Payment, error) {
	if amountCents <= 0 {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if len(currency) != 3 {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "Currency must be a 3-letter code")
	}
	if status == "" {
		status = PaymentStatusPending
	}
	if !status.IsValid() {
		return nil, shared.NewDomainError("INVALID_STATUS", "Payment status is not valid")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", "Payment method is not valid")
	}
	if studentID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_STUDENT", "Student ID cannot be empty")
	}

	return &Payment{
		BaseEntity:  shared.NewBaseEntity(),
		AmountCents: amountCents,
		Currency:    currency,
		Status:      status,
		Method:      method,
		StudentID:   studentID,
	}, nil
}

// IsCompleted returns true if the payment has cleared
func (p *Payment) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}

// AvailableCents returns the portion of the payment not yet assigned to any
// invoice, given the sum of its existing allocations.
func (p *Payment) AvailableCents(allocatedCents int64) int64 {
	return p.AmountCents - allocatedCents
}
