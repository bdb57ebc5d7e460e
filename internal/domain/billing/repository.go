package billing

import (
	"context"

	"github.com/google/uuid"
)

// InvoiceRepository defines persistence operations for invoices
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// FindByIDForSchool restricts the lookup to invoices whose student
	// belongs to the given school.
	FindByIDForSchool(ctx context.Context, id, schoolID uuid.UUID) (*Invoice, error)
	FindByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)
	List(ctx context.Context, page, pageSize int) ([]Invoice, int64, error)
	ListForSchool(ctx context.Context, schoolID uuid.UUID, page, pageSize int) ([]Invoice, int64, error)
	ListForStudent(ctx context.Context, studentID uuid.UUID) ([]Invoice, error)
	// SumBilledForStudent returns the total invoiced amount across the
	// student's billable (non-DRAFT, non-CANCELLED) invoices.
	SumBilledForStudent(ctx context.Context, studentID uuid.UUID) (int64, error)
	// SumBilledForSchool returns the total invoiced amount across the
	// billable invoices of a school's students.
	SumBilledForSchool(ctx context.Context, schoolID uuid.UUID) (int64, error)
	Save(ctx context.Context, invoice *Invoice) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// PaymentRepository defines persistence operations for payments
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByIDForSchool(ctx context.Context, id, schoolID uuid.UUID) (*Payment, error)
	// FindByIDLocked loads the payment row with a row-level write lock
	// (SELECT ... FOR UPDATE). Only meaningful inside a transaction; the
	// allocation coordinator relies on it to serialize concurrent
	// allocations against the same payment.
	FindByIDLocked(ctx context.Context, id uuid.UUID) (*Payment, error)
	List(ctx context.Context, page, pageSize int) ([]Payment, int64, error)
	ListForSchool(ctx context.Context, schoolID uuid.UUID, page, pageSize int) ([]Payment, int64, error)
	ListForStudent(ctx context.Context, studentID uuid.UUID) ([]Payment, error)
	Save(ctx context.Context, payment *Payment) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AllocationRepository defines persistence operations for allocations.
// The Sum/Count methods are single aggregate queries against the store, so
// that rows flushed earlier in the same transaction are visible to them.
type AllocationRepository interface {
	Create(ctx context.Context, allocation *Allocation) error
	FindByID(ctx context.Context, id uuid.UUID) (*Allocation, error)
	FindByIDForSchool(ctx context.Context, id, schoolID uuid.UUID) (*Allocation, error)
	List(ctx context.Context, page, pageSize int) ([]Allocation, int64, error)
	ListForSchool(ctx context.Context, schoolID uuid.UUID, page, pageSize int) ([]Allocation, int64, error)
	Save(ctx context.Context, allocation *Allocation) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListForPayment returns every allocation funded by the payment.
	ListForPayment(ctx context.Context, paymentID uuid.UUID) ([]Allocation, error)
	// SumForPayment returns the total already allocated from a payment.
	SumForPayment(ctx context.Context, paymentID uuid.UUID) (int64, error)
	// SumCompletedForInvoice returns the invoice's recognized paid amount:
	// the sum of its allocation amounts counting only allocations whose
	// payment has status COMPLETED.
	SumCompletedForInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error)
	// SumCompletedForStudent returns the recognized paid total across the
	// student's billable (non-DRAFT, non-CANCELLED) invoices.
	SumCompletedForStudent(ctx context.Context, studentID uuid.UUID) (int64, error)
	// SumCompletedForSchool returns the recognized paid total across the
	// billable invoices of a school's students.
	SumCompletedForSchool(ctx context.Context, schoolID uuid.UUID) (int64, error)
	// HasAllocationsForPayment reports whether any allocation rows
	// reference the payment.
	HasAllocationsForPayment(ctx context.Context, paymentID uuid.UUID) (bool, error)
	// HasAllocationsForInvoice reports whether any allocation rows
	// reference the invoice.
	HasAllocationsForInvoice(ctx context.Context, invoiceID uuid.UUID) (bool, error)
}

// LedgerTx groups the billing repositories bound to a single transaction.
type LedgerTx interface {
	Invoices() InvoiceRepository
	Payments() PaymentRepository
	Allocations() AllocationRepository
}

// LedgerStore is the transactional ledger the allocation coordinator runs
// against. InTx executes fn inside one atomic unit: every repository write
// made through the LedgerTx either commits as a whole or rolls back as a
// whole when fn returns an error.
type LedgerStore interface {
	LedgerTx
	InTx(ctx context.Context, fn func(tx LedgerTx) error) error
}
