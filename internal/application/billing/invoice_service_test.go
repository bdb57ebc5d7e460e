package billing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/schoolbill/backend/internal/domain/billing"
	"github.com/schoolbill/backend/internal/domain/shared"
	"github.com/schoolbill/backend/internal/infrastructure/persistence"
)

func TestInvoiceService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("issues an invoice with defaults", func(t *testing.T) {
		db, ledger := setupLedger(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)

		svc := NewInvoiceService(ledger, persistence.NewGormStudentRepository(db), testLogger())
		resp, err := svc.Create(ctx, adminActor(), CreateInvoiceRequest{
			InvoiceNumber: "INV-001",
			StudentID:     st.ID,
			AmountCents:   50000,
			Currency:      "USD",
		})
		require.NoError(t, err)
		assert.Equal(t, "PENDING", resp.Status)
		assert.Equal(t, int64(0), resp.PaidCents)
		assert.Equal(t, int64(50000), resp.OutstandingCents)
		assert.True(t, resp.DueDate.After(resp.IssueDate))
	})

	t.Run("logs the mutation", func(t *testing.T) {
		db, ledger := setupLedger(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)

		core, logs := observer.New(zapcore.InfoLevel)
		svc := NewInvoiceService(ledger, persistence.NewGormStudentRepository(db), zap.New(core))
		_, err := svc.Create(ctx, adminActor(), CreateInvoiceRequest{
			InvoiceNumber: "INV-LOG-1",
			StudentID:     st.ID,
			AmountCents:   50000,
			Currency:      "USD",
		})
		require.NoError(t, err)
		require.Equal(t, 1, logs.FilterMessage("invoice created").Len())
	})

	t.Run("duplicate invoice number is rejected", func(t *testing.T) {
		db, ledger := setupLedger(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)
		seedInvoice(t, db, st.ID, "INV-001", 10000)

		svc := NewInvoiceService(ledger, persistence.NewGormStudentRepository(db), testLogger())
		_, err := svc.Create(ctx, adminActor(), CreateInvoiceRequest{
			InvoiceNumber: "INV-001", StudentID: st.ID, AmountCents: 100, Currency: "USD",
		})
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "ALREADY_EXISTS", domainErr.Code)
	})

	t.Run("unknown student is rejected", func(t *testing.T) {
		db, ledger := setupLedger(t)
		svc := NewInvoiceService(ledger, persistence.NewGormStudentRepository(db), testLogger())
		_, err := svc.Create(ctx, adminActor(), CreateInvoiceRequest{
			InvoiceNumber: "INV-001", StudentID: uuid.New(), AmountCents: 100, Currency: "USD",
		})
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "NOT_FOUND", domainErr.Code)
	})
}

func TestInvoiceService_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("reports recognized paid from completed payments only", func(t *testing.T) {
		db, ledger := setupLedger(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)
		inv := seedInvoice(t, db, st.ID, "INV-001", 10000)
		pay := seedPayment(t, db, st.ID, 10000, billing.PaymentStatusCompleted)

		alloc := NewAllocationService(ledger, testLogger())
		_, err := alloc.CreateWithStatusUpdate(ctx, adminActor(), CreateAllocationRequest{
			PaymentID: pay.ID, InvoiceID: inv.ID, AmountCents: 4000,
		})
		require.NoError(t, err)

		svc := NewInvoiceService(ledger, persistence.NewGormStudentRepository(db), testLogger())
		resp, err := svc.GetByID(ctx, adminActor(), inv.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(4000), resp.PaidCents)
		assert.Equal(t, int64(6000), resp.OutstandingCents)
		assert.Equal(t, "PARTIALLY_PAID", resp.Status)
	})

	t.Run("staff of another school sees not found", func(t *testing.T) {
		db, ledger := setupLedger(t)
		schoolA := seedSchool(t, db, "A")
		schoolB := seedSchool(t, db, "B")
		st := seedStudent(t, db, schoolA.ID)
		inv := seedInvoice(t, db, st.ID, "INV-001", 10000)

		svc := NewInvoiceService(ledger, persistence.NewGormStudentRepository(db), testLogger())
		_, err := svc.GetByID(ctx, staffActor(schoolB.ID), inv.ID)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "NOT_FOUND", domainErr.Code)
	})
}

func TestInvoiceService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("amount change re-derives status when none is supplied", func(t *testing.T) {
		db, ledger := setupLedger(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)
		inv := seedInvoice(t, db, st.ID, "INV-001", 10000)
		pay := seedPayment(t, db, st.ID, 10000, billing.PaymentStatusCompleted)

		alloc := NewAllocationService(ledger, testLogger())
		_, err := alloc.CreateWithStatusUpdate(ctx, adminActor(), CreateAllocationRequest{
			PaymentID: pay.ID, InvoiceID: inv.ID, AmountCents: 4000,
		})
		require.NoError(t, err)

		svc := NewInvoiceService(ledger, persistence.NewGormStudentRepository(db), testLogger())
		newAmount := int64(4000)
		resp, err := svc.Update(ctx, adminActor(), inv.ID, UpdateInvoiceRequest{AmountCents: &newAmount})
		require.NoError(t, err)
		assert.Equal(t, "PAID", resp.Status)
	})

	t.Run("explicit status wins over re-derivation", func(t *testing.T) {
		db, ledger := setupLedger(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)
		inv := seedInvoice(t, db, st.ID, "INV-001", 10000)

		svc := NewInvoiceService(ledger, persistence.NewGormStudentRepository(db), testLogger())
		overdue := "OVERDUE"
		resp, err := svc.Update(ctx, adminActor(), inv.ID, UpdateInvoiceRequest{Status: &overdue})
		require.NoError(t, err)
		assert.Equal(t, "OVERDUE", resp.Status)
	})

	t.Run("invalid status is rejected", func(t *testing.T) {
		db, ledger := setupLedger(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)
		inv := seedInvoice(t, db, st.ID, "INV-001", 10000)

		svc := NewInvoiceService(ledger, persistence.NewGormStudentRepository(db), testLogger())
		bogus := "VOID"
		_, err := svc.Update(ctx, adminActor(), inv.ID, UpdateInvoiceRequest{Status: &bogus})
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_STATUS", domainErr.Code)
	})
}

func TestInvoiceService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("unallocated invoice deletes cleanly", func(t *testing.T) {
		db, ledger := setupLedger(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)
		inv := seedInvoice(t, db, st.ID, "INV-001", 10000)

		svc := NewInvoiceService(ledger, persistence.NewGormStudentRepository(db), testLogger())
		require.NoError(t, svc.Delete(ctx, adminActor(), inv.ID))

		_, err := ledger.Invoices().FindByID(ctx, inv.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("invoice with allocations cannot be deleted", func(t *testing.T) {
		db, ledger := setupLedger(t)
		sch := seedSchool(t, db, "Northfield")
		st := seedStudent(t, db, sch.ID)
		inv := seedInvoice(t, db, st.ID, "INV-001", 10000)
		pay := seedPayment(t, db, st.ID, 10000, billing.PaymentStatusCompleted)

		alloc := NewAllocationService(ledger, testLogger())
		_, err := alloc.CreateWithStatusUpdate(ctx, adminActor(), CreateAllocationRequest{
			PaymentID: pay.ID, InvoiceID: inv.ID, AmountCents: 4000,
		})
		require.NoError(t, err)

		svc := NewInvoiceService(ledger, persistence.NewGormStudentRepository(db), testLogger())
		err = svc.Delete(ctx, adminActor(), inv.ID)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVOICE_HAS_ALLOCATIONS", domainErr.Code)
	})
}
