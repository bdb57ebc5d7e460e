package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/schoolbill/backend/internal/domain/shared"
)

// InvoiceStatus represents the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusPending       InvoiceStatus = "PENDING"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusPending, InvoiceStatusPaid,
		InvoiceStatusPartiallyPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// UnpaidInvoiceStatuses are the statuses that count toward a student's
// outstanding balance.
var UnpaidInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusPending,
	InvoiceStatusPartiallyPaid,
	InvoiceStatusOverdue,
}

// NonBillableInvoiceStatuses are excluded from balance and revenue totals.
// Draft invoices have not been issued; cancelled ones never collect.
var NonBillableInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusCancelled,
}

// IsBillable reports whether the invoice counts toward balance and revenue
// totals.
func (inv *Invoice) IsBillable() bool {
	return inv.Status != InvoiceStatusDraft && inv.Status != InvoiceStatusCancelled
}

// Invoice represents a bill issued to a student. All monetary amounts are
// integer minor units (cents); floating point is never used for money.
type Invoice struct {
	shared.BaseEntity
	InvoiceNumber string        `json:"invoice_number"`
	AmountCents   int64         `json:"amount_cents"`
	Currency      string        `json:"currency"`
	Status        InvoiceStatus `json:"status"`
	IssueDate     time.Time     `json:"issue_date"`
	DueDate       time.Time     `json:"due_date"`
	Description   string        `json:"description"`
	StudentID     uuid.UUID     `json:"student_id"`
}

// NewInvoice creates a new invoice owned by a student
func NewInvoice(
	invoiceNumber string,
	amountCents int64,
	currency string,
	status InvoiceStatus,
	issueDate, dueDate time.Time,
	description string,
	studentID uuid.UUID,
) (*Invoice, error) {
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if amountCents <= 0 {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Invoice amount must be positive")
	}
	if len(currency) != 3 {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "Currency must be a 3-letter code")
	}
	if status == "" {
		status = InvoiceStatusPending
	}
	if !status.IsValid() {
		return nil, shared.NewDomainError("INVALID_STATUS", "Invoice status is not valid")
	}
	if studentID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_STUDENT", "Student ID cannot be empty")
	}

	return &Invoice{
		BaseEntity:    shared.NewBaseEntity(),
		InvoiceNumber: invoiceNumber,
		AmountCents:   amountCents,
		Currency:      currency,
		Status:        status,
		IssueDate:     issueDate,
		DueDate:       dueDate,
		Description:   description,
		StudentID:     studentID,
	}, nil
}

// ApplyRecognizedPaid derives the invoice status from the recognized paid
// amount (the sum of its allocations funded by COMPLETED payments).
//
// Only PAID and PARTIALLY_PAID are ever assigned here. When the recognized
// paid amount is zero the status is left untouched: there is no downgrade
// path back to PENDING, even after allocations are deleted. Callers depend
// on this asymmetry, so it must not be "fixed" here.
//
// The derivation is idempotent and depends only on the final sum, not on the
// order in which the contributing allocations were applied.
func (inv *Invoice) ApplyRecognizedPaid(paidCents int64) {
	switch {
	case paidCents >= inv.AmountCents:
		inv.Status = InvoiceStatusPaid
	case paidCents > 0:
		inv.Status = InvoiceStatusPartiallyPaid
	}
	inv.Touch()
}

// IsCancelled returns true if the invoice is cancelled
func (inv *Invoice) IsCancelled() bool {
	return inv.Status == InvoiceStatusCancelled
}

// IsPaid returns true if the invoice is fully paid
func (inv *Invoice) IsPaid() bool {
	return inv.Status == InvoiceStatusPaid
}

// OutstandingCents returns the unpaid remainder given a recognized paid
// amount. Overpaid invoices report zero, not a negative value.
func (inv *Invoice) OutstandingCents(paidCents int64) int64 {
	if paidCents >= inv.AmountCents {
		return 0
	}
	return inv.AmountCents - paidCents
}
