package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/schoolbill/backend/internal/domain/billing"
	"github.com/schoolbill/backend/internal/domain/identity"
	"github.com/schoolbill/backend/internal/domain/school"
	"github.com/schoolbill/backend/internal/infrastructure/persistence"
	"github.com/schoolbill/backend/internal/infrastructure/persistence/models"
)

// lockFreePayments substitutes a plain read for the FOR UPDATE read. SQLite
// cannot parse SELECT ... FOR UPDATE; the real row lock is covered by the
// sqlmock repository test and the postgres integration test.
type lockFreePayments struct {
	billing.PaymentRepository
}

func (r lockFreePayments) FindByIDLocked(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	return r.FindByID(ctx, id)
}

type lockFreeTx struct {
	billing.LedgerTx
}

func (t lockFreeTx) Payments() billing.PaymentRepository {
	return lockFreePayments{t.LedgerTx.Payments()}
}

type lockFreeLedger struct {
	inner billing.LedgerStore
}

func (l lockFreeLedger) Invoices() billing.InvoiceRepository { return l.inner.Invoices() }
func (l lockFreeLedger) Payments() billing.PaymentRepository {
	return lockFreePayments{l.inner.Payments()}
}
func (l lockFreeLedger) Allocations() billing.AllocationRepository { return l.inner.Allocations() }

func (l lockFreeLedger) InTx(ctx context.Context, fn func(tx billing.LedgerTx) error) error {
	return l.inner.InTx(ctx, func(tx billing.LedgerTx) error {
		return fn(lockFreeTx{tx})
	})
}

// failingInvoiceSaves makes every invoice save fail, so tests can force the
// status-recompute step to error after the allocation write and inspect the
// rollback.
type failingInvoiceSaves struct {
	billing.InvoiceRepository
}

var errInvoiceSaveBroken = errors.New("invoice save broken")

func (r failingInvoiceSaves) Save(ctx context.Context, invoice *billing.Invoice) error {
	return errInvoiceSaveBroken
}

type failingSaveTx struct {
	billing.LedgerTx
}

func (t failingSaveTx) Invoices() billing.InvoiceRepository {
	return failingInvoiceSaves{t.LedgerTx.Invoices()}
}

func (t failingSaveTx) Payments() billing.PaymentRepository {
	return lockFreePayments{t.LedgerTx.Payments()}
}

type failingSaveLedger struct {
	inner billing.LedgerStore
}

func (l failingSaveLedger) Invoices() billing.InvoiceRepository {
	return failingInvoiceSaves{l.inner.Invoices()}
}
func (l failingSaveLedger) Payments() billing.PaymentRepository {
	return lockFreePayments{l.inner.Payments()}
}
func (l failingSaveLedger) Allocations() billing.AllocationRepository { return l.inner.Allocations() }

func (l failingSaveLedger) InTx(ctx context.Context, fn func(tx billing.LedgerTx) error) error {
	return l.inner.InTx(ctx, func(tx billing.LedgerTx) error {
		return fn(failingSaveTx{tx})
	})
}

// staleAllocationReads serves a stale copy of one allocation on its first
// lookup and the committed row afterwards, reproducing a reader that loaded
// the allocation before a concurrent writer's commit landed.
type staleAllocationReads struct {
	billing.AllocationRepository
	stale  *billing.Allocation
	served *bool
}

func (r staleAllocationReads) FindByID(ctx context.Context, id uuid.UUID) (*billing.Allocation, error) {
	if !*r.served && id == r.stale.ID {
		*r.served = true
		snapshot := *r.stale
		return &snapshot, nil
	}
	return r.AllocationRepository.FindByID(ctx, id)
}

type staleReadTx struct {
	billing.LedgerTx
	stale  *billing.Allocation
	served *bool
}

func (t staleReadTx) Allocations() billing.AllocationRepository {
	return staleAllocationReads{t.LedgerTx.Allocations(), t.stale, t.served}
}

func (t staleReadTx) Payments() billing.PaymentRepository {
	return lockFreePayments{t.LedgerTx.Payments()}
}

type staleReadLedger struct {
	inner  billing.LedgerStore
	stale  *billing.Allocation
	served *bool
}

func (l staleReadLedger) Invoices() billing.InvoiceRepository { return l.inner.Invoices() }
func (l staleReadLedger) Payments() billing.PaymentRepository {
	return lockFreePayments{l.inner.Payments()}
}
func (l staleReadLedger) Allocations() billing.AllocationRepository {
	return staleAllocationReads{l.inner.Allocations(), l.stale, l.served}
}

func (l staleReadLedger) InTx(ctx context.Context, fn func(tx billing.LedgerTx) error) error {
	return l.inner.InTx(ctx, func(tx billing.LedgerTx) error {
		return fn(staleReadTx{tx, l.stale, l.served})
	})
}

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.SchoolModel{},
		&models.StudentModel{},
		&models.UserModel{},
		&models.InvoiceModel{},
		&models.PaymentModel{},
		&models.AllocationModel{},
	)
	require.NoError(t, err)
	return db
}

func setupLedger(t *testing.T) (*gorm.DB, billing.LedgerStore) {
	t.Helper()
	db := setupServiceTestDB(t)
	return db, lockFreeLedger{inner: persistence.NewGormLedgerStore(db)}
}

func adminActor() identity.Actor {
	return identity.Actor{UserID: uuid.New(), Username: "root", Role: identity.RoleAdmin}
}

func staffActor(schoolID uuid.UUID) identity.Actor {
	return identity.Actor{UserID: uuid.New(), Username: "staff", Role: identity.RoleSchoolStaff, SchoolID: &schoolID}
}

func seedSchool(t *testing.T, db *gorm.DB, name string) *school.School {
	t.Helper()
	s, err := school.NewSchool(name, "", "", "")
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormSchoolRepository(db).Create(context.Background(), s))
	return s
}

func seedStudent(t *testing.T, db *gorm.DB, schoolID uuid.UUID) *school.Student {
	t.Helper()
	st, err := school.NewStudent("Grace", "Hopper", "grace@example.com", nil, time.Now(), schoolID)
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormStudentRepository(db).Create(context.Background(), st))
	return st
}

func seedInvoice(t *testing.T, db *gorm.DB, studentID uuid.UUID, number string, amountCents int64) *billing.Invoice {
	t.Helper()
	now := time.Now()
	inv, err := billing.NewInvoice(number, amountCents, "USD", "", now, now.AddDate(0, 1, 0), "", studentID)
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormInvoiceRepository(db).Create(context.Background(), inv))
	return inv
}

func seedPayment(t *testing.T, db *gorm.DB, studentID uuid.UUID, amountCents int64, status billing.PaymentStatus) *billing.Payment {
	t.Helper()
	p, err := billing.NewPayment(amountCents, "USD", status, billing.PaymentMethodCash, studentID)
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormPaymentRepository(db).Create(context.Background(), p))
	return p
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
