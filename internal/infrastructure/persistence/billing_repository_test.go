package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/schoolbill/backend/internal/domain/billing"
	"github.com/schoolbill/backend/internal/domain/school"
	"github.com/schoolbill/backend/internal/domain/shared"
	"github.com/schoolbill/backend/internal/infrastructure/persistence/models"
)

// setupBillingTestDB creates an in-memory SQLite database with the full schema
func setupBillingTestDB(t *testing.T) *gorm.DB {
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

func seedSchool(t *testing.T, db *gorm.DB, name string) *school.School {
	t.Helper()
	s, err := school.NewSchool(name, "", "", "")
	require.NoError(t, err)
	require.NoError(t, NewGormSchoolRepository(db).Create(context.Background(), s))
	return s
}

func seedStudent(t *testing.T, db *gorm.DB, schoolID uuid.UUID) *school.Student {
	t.Helper()
	st, err := school.NewStudent("Ada", "Lovelace", "ada@example.com", nil, time.Now(), schoolID)
	require.NoError(t, err)
	require.NoError(t, NewGormStudentRepository(db).Create(context.Background(), st))
	return st
}

func seedInvoice(t *testing.T, db *gorm.DB, studentID uuid.UUID, number string, amountCents int64) *billing.Invoice {
	t.Helper()
	now := time.Now()
	inv, err := billing.NewInvoice(number, amountCents, "USD", "", now, now.AddDate(0, 1, 0), "", studentID)
	require.NoError(t, err)
	require.NoError(t, NewGormInvoiceRepository(db).Create(context.Background(), inv))
	return inv
}

func seedPayment(t *testing.T, db *gorm.DB, studentID uuid.UUID, amountCents int64, status billing.PaymentStatus) *billing.Payment {
	t.Helper()
	p, err := billing.NewPayment(amountCents, "USD", status, billing.PaymentMethodCash, studentID)
	require.NoError(t, err)
	require.NoError(t, NewGormPaymentRepository(db).Create(context.Background(), p))
	return p
}

func seedAllocation(t *testing.T, db *gorm.DB, paymentID, invoiceID uuid.UUID, amountCents int64) *billing.Allocation {
	t.Helper()
	a, err := billing.NewAllocation(paymentID, invoiceID, amountCents)
	require.NoError(t, err)
	require.NoError(t, NewGormAllocationRepository(db).Create(context.Background(), a))
	return a
}

func TestGormInvoiceRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("create and find round-trip", func(t *testing.T) {
		db := setupBillingTestDB(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)
		inv := seedInvoice(t, db, st.ID, "INV-001", 50000)

		repo := NewGormInvoiceRepository(db)
		found, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, "INV-001", found.InvoiceNumber)
		assert.Equal(t, int64(50000), found.AmountCents)
		assert.Equal(t, billing.InvoiceStatusPending, found.Status)
	})

	t.Run("missing invoice returns not found", func(t *testing.T) {
		db := setupBillingTestDB(t)
		_, err := NewGormInvoiceRepository(db).FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("school scope hides other schools' invoices", func(t *testing.T) {
		db := setupBillingTestDB(t)
		schoolA := seedSchool(t, db, "A")
		schoolB := seedSchool(t, db, "B")
		studentA := seedStudent(t, db, schoolA.ID)
		inv := seedInvoice(t, db, studentA.ID, "INV-001", 50000)

		repo := NewGormInvoiceRepository(db)

		found, err := repo.FindByIDForSchool(ctx, inv.ID, schoolA.ID)
		require.NoError(t, err)
		assert.Equal(t, inv.ID, found.ID)

		_, err = repo.FindByIDForSchool(ctx, inv.ID, schoolB.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("list for school paginates with total", func(t *testing.T) {
		db := setupBillingTestDB(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)
		seedInvoice(t, db, st.ID, "INV-001", 1000)
		seedInvoice(t, db, st.ID, "INV-002", 2000)
		seedInvoice(t, db, st.ID, "INV-003", 3000)

		repo := NewGormInvoiceRepository(db)
		page, total, err := repo.ListForSchool(ctx, sch.ID, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, page, 2)
	})

	t.Run("save persists status change", func(t *testing.T) {
		db := setupBillingTestDB(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)
		inv := seedInvoice(t, db, st.ID, "INV-001", 50000)

		repo := NewGormInvoiceRepository(db)
		inv.ApplyRecognizedPaid(50000)
		require.NoError(t, repo.Save(ctx, inv))

		found, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.InvoiceStatusPaid, found.Status)
	})

	t.Run("find by number", func(t *testing.T) {
		db := setupBillingTestDB(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)
		seedInvoice(t, db, st.ID, "INV-042", 100)

		found, err := NewGormInvoiceRepository(db).FindByNumber(ctx, "INV-042")
		require.NoError(t, err)
		assert.Equal(t, "INV-042", found.InvoiceNumber)
	})
}

func TestGormPaymentRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("create and find round-trip", func(t *testing.T) {
		db := setupBillingTestDB(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)
		p := seedPayment(t, db, st.ID, 10000, billing.PaymentStatusCompleted)

		found, err := NewGormPaymentRepository(db).FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(10000), found.AmountCents)
		assert.Equal(t, billing.PaymentStatusCompleted, found.Status)
		assert.Equal(t, billing.PaymentMethodCash, found.Method)
	})

	t.Run("school scope hides other schools' payments", func(t *testing.T) {
		db := setupBillingTestDB(t)
		schoolA := seedSchool(t, db, "A")
		schoolB := seedSchool(t, db, "B")
		studentA := seedStudent(t, db, schoolA.ID)
		p := seedPayment(t, db, studentA.ID, 10000, billing.PaymentStatusCompleted)

		repo := NewGormPaymentRepository(db)
		_, err := repo.FindByIDForSchool(ctx, p.ID, schoolB.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		found, err := repo.FindByIDForSchool(ctx, p.ID, schoolA.ID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, found.ID)
	})

	t.Run("list for student", func(t *testing.T) {
		db := setupBillingTestDB(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)
		other := seedStudent(t, db, sch.ID)
		seedPayment(t, db, st.ID, 100, billing.PaymentStatusCompleted)
		seedPayment(t, db, st.ID, 200, billing.PaymentStatusPending)
		seedPayment(t, db, other.ID, 300, billing.PaymentStatusCompleted)

		payments, err := NewGormPaymentRepository(db).ListForStudent(ctx, st.ID)
		require.NoError(t, err)
		assert.Len(t, payments, 2)
	})
}

func TestGormAllocationRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("sum for payment counts all allocation rows", func(t *testing.T) {
		db := setupBillingTestDB(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)
		p := seedPayment(t, db, st.ID, 10000, billing.PaymentStatusCompleted)
		inv1 := seedInvoice(t, db, st.ID, "INV-001", 5000)
		inv2 := seedInvoice(t, db, st.ID, "INV-002", 5000)
		seedAllocation(t, db, p.ID, inv1.ID, 3000)
		seedAllocation(t, db, p.ID, inv2.ID, 2500)

		total, err := NewGormAllocationRepository(db).SumForPayment(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5500), total)
	})

	t.Run("sum for payment is zero without allocations", func(t *testing.T) {
		db := setupBillingTestDB(t)
		total, err := NewGormAllocationRepository(db).SumForPayment(ctx, uuid.New())
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("recognized paid counts completed payments only", func(t *testing.T) {
		db := setupBillingTestDB(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)
		inv := seedInvoice(t, db, st.ID, "INV-001", 10000)
		completed := seedPayment(t, db, st.ID, 10000, billing.PaymentStatusCompleted)
		pending := seedPayment(t, db, st.ID, 10000, billing.PaymentStatusPending)
		failed := seedPayment(t, db, st.ID, 10000, billing.PaymentStatusFailed)
		seedAllocation(t, db, completed.ID, inv.ID, 4000)
		seedAllocation(t, db, pending.ID, inv.ID, 3000)
		seedAllocation(t, db, failed.ID, inv.ID, 2000)

		paid, err := NewGormAllocationRepository(db).SumCompletedForInvoice(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(4000), paid)
	})

	t.Run("has allocations for payment", func(t *testing.T) {
		db := setupBillingTestDB(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)
		p := seedPayment(t, db, st.ID, 10000, billing.PaymentStatusCompleted)
		inv := seedInvoice(t, db, st.ID, "INV-001", 5000)

		repo := NewGormAllocationRepository(db)
		has, err := repo.HasAllocationsForPayment(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, has)

		seedAllocation(t, db, p.ID, inv.ID, 100)
		has, err = repo.HasAllocationsForPayment(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("school scope follows the invoice's student", func(t *testing.T) {
		db := setupBillingTestDB(t)
		schoolA := seedSchool(t, db, "A")
		schoolB := seedSchool(t, db, "B")
		studentA := seedStudent(t, db, schoolA.ID)
		p := seedPayment(t, db, studentA.ID, 10000, billing.PaymentStatusCompleted)
		inv := seedInvoice(t, db, studentA.ID, "INV-001", 5000)
		a := seedAllocation(t, db, p.ID, inv.ID, 100)

		repo := NewGormAllocationRepository(db)
		found, err := repo.FindByIDForSchool(ctx, a.ID, schoolA.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, found.ID)

		_, err = repo.FindByIDForSchool(ctx, a.ID, schoolB.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("cross-student allocation resolves on the invoice side", func(t *testing.T) {
		db := setupBillingTestDB(t)
		schoolA := seedSchool(t, db, "A")
		schoolB := seedSchool(t, db, "B")
		studentA := seedStudent(t, db, schoolA.ID)
		studentB := seedStudent(t, db, schoolB.ID)
		inv := seedInvoice(t, db, studentA.ID, "INV-001", 5000)
		p := seedPayment(t, db, studentB.ID, 10000, billing.PaymentStatusCompleted)
		a := seedAllocation(t, db, p.ID, inv.ID, 100)

		repo := NewGormAllocationRepository(db)
		found, err := repo.FindByIDForSchool(ctx, a.ID, schoolA.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, found.ID)

		_, err = repo.FindByIDForSchool(ctx, a.ID, schoolB.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		listed, total, err := repo.ListForSchool(ctx, schoolA.ID, 1, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, listed, 1)
		assert.Equal(t, a.ID, listed[0].ID)

		_, total, err = repo.ListForSchool(ctx, schoolB.ID, 1, 20)
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("delete removes the allocation", func(t *testing.T) {
		db := setupBillingTestDB(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)
		p := seedPayment(t, db, st.ID, 10000, billing.PaymentStatusCompleted)
		inv := seedInvoice(t, db, st.ID, "INV-001", 5000)
		a := seedAllocation(t, db, p.ID, inv.ID, 100)

		repo := NewGormAllocationRepository(db)
		require.NoError(t, repo.Delete(ctx, a.ID))
		_, err := repo.FindByID(ctx, a.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormLedgerStore(t *testing.T) {
	ctx := context.Background()

	t.Run("commits all writes together", func(t *testing.T) {
		db := setupBillingTestDB(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)
		p := seedPayment(t, db, st.ID, 10000, billing.PaymentStatusCompleted)
		inv := seedInvoice(t, db, st.ID, "INV-001", 5000)

		store := NewGormLedgerStore(db)
		err := store.InTx(ctx, func(tx billing.LedgerTx) error {
			a, err := billing.NewAllocation(p.ID, inv.ID, 5000)
			if err != nil {
				return err
			}
			if err := tx.Allocations().Create(ctx, a); err != nil {
				return err
			}
			loaded, err := tx.Invoices().FindByID(ctx, inv.ID)
			if err != nil {
				return err
			}
			loaded.ApplyRecognizedPaid(5000)
			return tx.Invoices().Save(ctx, loaded)
		})
		require.NoError(t, err)

		found, err := store.Invoices().FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.InvoiceStatusPaid, found.Status)

		total, err := store.Allocations().SumForPayment(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5000), total)
	})

	t.Run("rolls back every write on error", func(t *testing.T) {
		db := setupBillingTestDB(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)
		p := seedPayment(t, db, st.ID, 10000, billing.PaymentStatusCompleted)
		inv := seedInvoice(t, db, st.ID, "INV-001", 5000)

		store := NewGormLedgerStore(db)
		boom := errors.New("boom")
		err := store.InTx(ctx, func(tx billing.LedgerTx) error {
			a, err := billing.NewAllocation(p.ID, inv.ID, 5000)
			if err != nil {
				return err
			}
			if err := tx.Allocations().Create(ctx, a); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		total, err := store.Allocations().SumForPayment(ctx, p.ID)
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("writes inside the transaction are visible to aggregate queries", func(t *testing.T) {
		db := setupBillingTestDB(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)
		p := seedPayment(t, db, st.ID, 10000, billing.PaymentStatusCompleted)
		inv := seedInvoice(t, db, st.ID, "INV-001", 5000)

		store := NewGormLedgerStore(db)
		err := store.InTx(ctx, func(tx billing.LedgerTx) error {
			a, err := billing.NewAllocation(p.ID, inv.ID, 2000)
			if err != nil {
				return err
			}
			if err := tx.Allocations().Create(ctx, a); err != nil {
				return err
			}
			// the uncommitted row must already count
			total, err := tx.Allocations().SumForPayment(ctx, p.ID)
			if err != nil {
				return err
			}
			assert.Equal(t, int64(2000), total)
			return nil
		})
		require.NoError(t, err)
	})
}
