package billing

import (
	"fmt"

	"github.com/schoolbill/backend/internal/domain/shared"
)

// Allocation validation error codes. Every rejection is a business-rule
// violation the caller can correct and retry, never a system fault.
const (
	ErrCodeInvalidAmount              = "INVALID_AMOUNT"
	ErrCodePaymentNotCompleted        = "PAYMENT_NOT_COMPLETED"
	ErrCodeInvoiceCancelled           = "INVOICE_CANCELLED"
	ErrCodeCurrencyMismatch           = "CURRENCY_MISMATCH"
	ErrCodeInsufficientPaymentBalance = "INSUFFICIENT_PAYMENT_BALANCE"
)

// ErrInvalidAmount rejects non-positive allocation amounts
func ErrInvalidAmount() *shared.DomainError {
	return shared.NewDomainError(ErrCodeInvalidAmount, "Allocation amount must be positive")
}

// ErrPaymentNotCompleted rejects allocating funds that have not cleared
func ErrPaymentNotCompleted(status PaymentStatus) *shared.DomainError {
	return shared.NewDomainError(ErrCodePaymentNotCompleted,
		fmt.Sprintf("Cannot allocate from payment with status %s. Payment must be completed", status))
}

// ErrInvoiceCancelled rejects allocating to a cancelled invoice
func ErrInvoiceCancelled() *shared.DomainError {
	return shared.NewDomainError(ErrCodeInvoiceCancelled, "Cannot allocate to a cancelled invoice")
}

// ErrCurrencyMismatch carries both currency codes for diagnostics
func ErrCurrencyMismatch(paymentCurrency, invoiceCurrency string) *shared.DomainError {
	return shared.NewDomainError(ErrCodeCurrencyMismatch,
		fmt.Sprintf("Currency mismatch: payment is %s, invoice is %s", paymentCurrency, invoiceCurrency))
}

// ErrInsufficientPaymentBalance carries the requested and available amounts
// plus the payment totals for diagnostics
func ErrInsufficientPaymentBalance(requested, available, total, allocated int64) *shared.DomainError {
	return shared.NewDomainError(ErrCodeInsufficientPaymentBalance,
		fmt.Sprintf("Allocation amount (%d) exceeds available payment balance (%d). Payment total: %d, already allocated: %d",
			requested, available, total, allocated))
}

// ValidateAllocationCreate decides whether a proposed allocation is legal.
// It is a pure function of already-loaded ledger state: the payment, the
// invoice, the proposed amount, and the sum of the payment's existing
// allocations as observed inside the caller's transaction.
//
// Checks run in order and short-circuit on the first failure:
//  1. amount must be strictly positive
//  2. the payment must be COMPLETED
//  3. the invoice must not be CANCELLED
//  4. payment and invoice currencies must match
//  5. amount must not exceed the payment's available balance
//
// The invoice's own outstanding balance is intentionally NOT checked:
// overpaying an invoice is valid business behavior (a parent paying more
// than owed), and the invoice simply becomes PAID once recognized paid
// reaches its amount.
func ValidateAllocationCreate(payment *Payment, invoice *Invoice, amountCents, allocatedCents int64) error {
	if amountCents <= 0 {
		return ErrInvalidAmount()
	}
	if !payment.IsCompleted() {
		return ErrPaymentNotCompleted(payment.Status)
	}
	if invoice.IsCancelled() {
		return ErrInvoiceCancelled()
	}
	if payment.Currency != invoice.Currency {
		return ErrCurrencyMismatch(payment.Currency, invoice.Currency)
	}

	available := payment.AvailableCents(allocatedCents)
	if amountCents > available {
		return ErrInsufficientPaymentBalance(amountCents, available, payment.AmountCents, allocatedCents)
	}
	return nil
}

// ValidateAllocationUpdate decides whether an allocation's amount may change.
// A nil newAmountCents is a no-op update and passes trivially. The available
// balance excludes the allocation being updated: its current amount is given
// back before the new amount is compared. The overpayment exemption from
// ValidateAllocationCreate applies here too.
func ValidateAllocationUpdate(payment *Payment, current *Allocation, newAmountCents *int64, allocatedCents int64) error {
	if newAmountCents == nil {
		return nil
	}
	if *newAmountCents <= 0 {
		return ErrInvalidAmount()
	}

	otherAllocated := allocatedCents - current.AmountCents
	available := payment.AvailableCents(otherAllocated)
	if *newAmountCents > available {
		return ErrInsufficientPaymentBalance(*newAmountCents, available, payment.AmountCents, otherAllocated)
	}
	return nil
}
