package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/schoolbill/backend/internal/domain/billing"
	"github.com/schoolbill/backend/internal/domain/identity"
	"github.com/schoolbill/backend/internal/domain/school"
	"github.com/schoolbill/backend/internal/domain/shared"
)

// BalanceService computes financial summaries. Totals stay in int64 cents;
// decimal is used only for the collection ratio, which is a fraction.
type BalanceService struct {
	ledger   billing.LedgerStore
	schools  school.SchoolRepository
	students school.StudentRepository
}

// NewBalanceService creates a new BalanceService
func NewBalanceService(ledger billing.LedgerStore, schools school.SchoolRepository, students school.StudentRepository) *BalanceService {
	return &BalanceService{ledger: ledger, schools: schools, students: students}
}

// RevenueStatement summarizes a school's billing position. Amounts are
// cents across all currencies the school bills in.
type RevenueStatement struct {
	SchoolID         uuid.UUID `json:"school_id"`
	InvoicedCents    int64     `json:"invoiced_cents"`
	CollectedCents   int64     `json:"collected_cents"`
	OutstandingCents int64     `json:"outstanding_cents"`
	CollectionRatio  string    `json:"collection_ratio"`
}

// StudentBalance returns a student's balance statement: total billed across
// non-draft, non-cancelled invoices, the recognized paid amount over those
// invoices, and the outstanding remainder clamped at zero.
func (s *BalanceService) StudentBalance(ctx context.Context, actor identity.Actor, studentID uuid.UUID) (*school.BalanceStatement, error) {
	student, err := resolveStudent(ctx, s.students, actor, studentID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Student not found")
		}
		return nil, err
	}

	invoices, err := s.ledger.Invoices().ListForStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	var invoiced int64
	currency := ""
	mixed := false
	for i := range invoices {
		if !invoices[i].IsBillable() {
			continue
		}
		invoiced += invoices[i].AmountCents
		switch {
		case currency == "":
			currency = invoices[i].Currency
		case currency != invoices[i].Currency:
			mixed = true
		}
	}
	if mixed {
		currency = ""
	}

	paid, err := s.ledger.Allocations().SumCompletedForStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("sum recognized paid: %w", err)
	}

	outstanding := invoiced - paid
	if outstanding < 0 {
		outstanding = 0
	}

	return &school.BalanceStatement{
		StudentID:        student.ID,
		Currency:         currency,
		InvoicedCents:    invoiced,
		PaidCents:        paid,
		OutstandingCents: outstanding,
		CollectionRatio:  collectionRatio(paid, invoiced),
	}, nil
}

// SchoolRevenue returns a school's revenue statement. School staff may only
// query their own school.
func (s *BalanceService) SchoolRevenue(ctx context.Context, actor identity.Actor, schoolID uuid.UUID) (*RevenueStatement, error) {
	if !actor.CanAccessSchool(schoolID) {
		return nil, shared.NewDomainError("NOT_FOUND", "School not found")
	}
	if _, err := s.schools.FindByID(ctx, schoolID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "School not found")
		}
		return nil, err
	}

	invoiced, err := s.ledger.Invoices().SumBilledForSchool(ctx, schoolID)
	if err != nil {
		return nil, fmt.Errorf("sum billed: %w", err)
	}
	collected, err := s.ledger.Allocations().SumCompletedForSchool(ctx, schoolID)
	if err != nil {
		return nil, fmt.Errorf("sum collected: %w", err)
	}

	outstanding := invoiced - collected
	if outstanding < 0 {
		outstanding = 0
	}

	return &RevenueStatement{
		SchoolID:         schoolID,
		InvoicedCents:    invoiced,
		CollectedCents:   collected,
		OutstandingCents: outstanding,
		CollectionRatio:  collectionRatio(collected, invoiced),
	}, nil
}

// collectionRatio returns paid/invoiced rounded to four decimal places.
// Zero invoiced reports "0" rather than dividing by zero.
func collectionRatio(paidCents, invoicedCents int64) string {
	if invoicedCents <= 0 {
		return "0"
	}
	return decimal.NewFromInt(paidCents).
		Div(decimal.NewFromInt(invoicedCents)).
		Round(4).
		String()
}
