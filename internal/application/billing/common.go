package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/schoolbill/backend/internal/domain/billing"
	"github.com/schoolbill/backend/internal/domain/identity"
	"github.com/schoolbill/backend/internal/domain/school"
	"github.com/schoolbill/backend/internal/domain/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// resolveStudent loads a student visible to the actor. School-scoped callers
// get NOT_FOUND for students of other schools, never FORBIDDEN, so the
// response does not leak row existence across schools.
func resolveStudent(ctx context.Context, students school.StudentRepository, actor identity.Actor, studentID uuid.UUID) (*school.Student, error) {
	if actor.IsAdmin() {
		return students.FindByID(ctx, studentID)
	}
	if actor.SchoolID == nil {
		return nil, shared.ErrForbidden
	}
	return students.FindByIDForSchool(ctx, studentID, *actor.SchoolID)
}

// findInvoice loads an invoice visible to the actor from the given ledger
// view (store or transaction).
func findInvoice(ctx context.Context, tx billing.LedgerTx, actor identity.Actor, id uuid.UUID) (*billing.Invoice, error) {
	if actor.IsAdmin() {
		return tx.Invoices().FindByID(ctx, id)
	}
	if actor.SchoolID == nil {
		return nil, shared.ErrForbidden
	}
	return tx.Invoices().FindByIDForSchool(ctx, id, *actor.SchoolID)
}

// findPayment loads a payment visible to the actor from the given ledger view.
func findPayment(ctx context.Context, tx billing.LedgerTx, actor identity.Actor, id uuid.UUID) (*billing.Payment, error) {
	if actor.IsAdmin() {
		return tx.Payments().FindByID(ctx, id)
	}
	if actor.SchoolID == nil {
		return nil, shared.ErrForbidden
	}
	return tx.Payments().FindByIDForSchool(ctx, id, *actor.SchoolID)
}

// findAllocation loads an allocation visible to the actor from the given
// ledger view.
func findAllocation(ctx context.Context, tx billing.LedgerTx, actor identity.Actor, id uuid.UUID) (*billing.Allocation, error) {
	if actor.IsAdmin() {
		return tx.Allocations().FindByID(ctx, id)
	}
	if actor.SchoolID == nil {
		return nil, shared.ErrForbidden
	}
	return tx.Allocations().FindByIDForSchool(ctx, id, *actor.SchoolID)
}
