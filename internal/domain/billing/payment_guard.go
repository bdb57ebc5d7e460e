package billing

import (
	"fmt"

	"github.com/schoolbill/backend/internal/domain/shared"
)

// Payment mutation guard error codes. These protect the payment side of the
// ledger: once allocations reference a payment, its amount and cleared
// status are pinned down.
const (
	ErrCodeAmountLockedByAllocations    = "AMOUNT_LOCKED_BY_ALLOCATIONS"
	ErrCodeCannotRevertCompletedPayment = "CANNOT_REVERT_COMPLETED_PAYMENT"
	ErrCodePaymentHasAllocations        = "PAYMENT_HAS_ALLOCATIONS"
)

// ErrAmountLockedByAllocations rejects changing the amount of an allocated payment
func ErrAmountLockedByAllocations() *shared.DomainError {
	return shared.NewDomainError(ErrCodeAmountLockedByAllocations,
		"Cannot modify amount of a payment that has allocations")
}

// ErrCannotRevertCompletedPayment rejects un-clearing an allocated payment
func ErrCannotRevertCompletedPayment(newStatus PaymentStatus) *shared.DomainError {
	return shared.NewDomainError(ErrCodeCannotRevertCompletedPayment,
		fmt.Sprintf("Cannot revert a completed payment with allocations to %s status", newStatus))
}

// ErrPaymentHasAllocations rejects deleting a payment that still owns allocations
func ErrPaymentHasAllocations() *shared.DomainError {
	return shared.NewDomainError(ErrCodePaymentHasAllocations,
		"Cannot delete a payment that has allocations. Delete the allocations first")
}

// ValidatePaymentUpdate guards amount and status mutations on a payment.
// hasAllocations reflects whether any allocation rows reference the payment,
// regardless of their amounts.
//
// With allocations present:
//   - the amount may not change (an update to the exact current amount is a
//     true no-op and passes)
//   - a COMPLETED payment may not transition back to PENDING or FAILED
//
// Any mutation on a payment with zero allocations is unrestricted by this
// guard, as is any status transition that does not revert a cleared payment.
func ValidatePaymentUpdate(payment *Payment, newStatus *PaymentStatus, newAmountCents *int64, hasAllocations bool) error {
	if !hasAllocations {
		return nil
	}

	if newAmountCents != nil && *newAmountCents != payment.AmountCents {
		return ErrAmountLockedByAllocations()
	}

	if newStatus != nil && payment.Status == PaymentStatusCompleted {
		if *newStatus == PaymentStatusPending || *newStatus == PaymentStatusFailed {
			return ErrCannotRevertCompletedPayment(*newStatus)
		}
	}
	return nil
}

// ValidatePaymentDelete guards payment deletion: a payment may only be
// deleted once it owns zero allocations. Each allocation deletion itself
// goes through the coordinator and recomputes its invoice's status.
func ValidatePaymentDelete(payment *Payment, hasAllocations bool) error {
	if hasAllocations {
		return ErrPaymentHasAllocations()
	}
	return nil
}
