package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/schoolbill/backend/internal/domain/billing"
)

// GormLedgerStore implements billing.LedgerStore. Outside a transaction it
// hands out repositories bound to the shared connection; InTx rebinds them
// to a single transaction so the allocation coordinator's validate, write
// and recompute steps commit or roll back as one unit.
type GormLedgerStore struct {
	db *gorm.DB
	ledgerRepos
}

type ledgerRepos struct {
	invoices    billing.InvoiceRepository
	payments    billing.PaymentRepository
	allocations billing.AllocationRepository
}

func (l ledgerRepos) Invoices() billing.InvoiceRepository {
	return l.invoices
}

func (l ledgerRepos) Payments() billing.PaymentRepository {
	return l.payments
}

func (l ledgerRepos) Allocations() billing.AllocationRepository {
	return l.allocations
}

func newLedgerRepos(db *gorm.DB) ledgerRepos {
	return ledgerRepos{
		invoices:    NewGormInvoiceRepository(db),
		payments:    NewGormPaymentRepository(db),
		allocations: NewGormAllocationRepository(db),
	}
}

// NewGormLedgerStore creates a ledger store on top of a GORM connection
func NewGormLedgerStore(db *gorm.DB) *GormLedgerStore {
	return &GormLedgerStore{
		db:          db,
		ledgerRepos: newLedgerRepos(db),
	}
}

// InTx runs fn inside one database transaction. fn receives repositories
// bound to that transaction; returning an error rolls every write back.
func (s *GormLedgerStore) InTx(ctx context.Context, fn func(tx billing.LedgerTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newLedgerRepos(tx))
	})
}

var _ billing.LedgerStore = (*GormLedgerStore)(nil)
