package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolbill/backend/internal/domain/billing"
)

func TestAllocationEndpoints(t *testing.T) {
	t.Run("create allocation settles invoice to PAID", func(t *testing.T) {
		app := newTestApp(t)
		token := app.adminToken(t)
		sch := app.seedSchool(t, "Northside High")
		student := app.seedStudent(t, sch.ID)
		invoice := app.seedInvoice(t, student.ID, "INV-1001", 10000)
		payment := app.seedPayment(t, student.ID, 10000, billing.PaymentStatusCompleted)

		w := app.request(t, http.MethodPost, "/api/v1/allocations", token, gin.H{
			"payment_id":   payment.ID,
			"invoice_id":   invoice.ID,
			"amount_cents": 10000,
		})

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		resp := decodeResponse(t, w)
		assert.True(t, resp.Success)
		assert.Equal(t, "PAID", dataField(t, resp, "invoice_status"))

		// The invoice endpoint reflects the settled state.
		w = app.request(t, http.MethodGet, "/api/v1/invoices/"+invoice.ID.String(), token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp = decodeResponse(t, w)
		assert.Equal(t, "PAID", dataField(t, resp, "status"))
		assert.Equal(t, float64(0), dataField(t, resp, "outstanding_cents"))
	})

	t.Run("over-allocation returns 400 with balance code", func(t *testing.T) {
		app := newTestApp(t)
		token := app.adminToken(t)
		sch := app.seedSchool(t, "Northside High")
		student := app.seedStudent(t, sch.ID)
		invoice := app.seedInvoice(t, student.ID, "INV-1001", 10000)
		payment := app.seedPayment(t, student.ID, 5000, billing.PaymentStatusCompleted)

		w := app.request(t, http.MethodPost, "/api/v1/allocations", token, gin.H{
			"payment_id":   payment.ID,
			"invoice_id":   invoice.ID,
			"amount_cents": 5001,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "INSUFFICIENT_PAYMENT_BALANCE", resp.Error.Code)
	})

	t.Run("pending payment cannot fund an invoice", func(t *testing.T) {
		app := newTestApp(t)
		token := app.adminToken(t)
		sch := app.seedSchool(t, "Northside High")
		student := app.seedStudent(t, sch.ID)
		invoice := app.seedInvoice(t, student.ID, "INV-1001", 10000)
		payment := app.seedPayment(t, student.ID, 10000, billing.PaymentStatusPending)

		w := app.request(t, http.MethodPost, "/api/v1/allocations", token, gin.H{
			"payment_id":   payment.ID,
			"invoice_id":   invoice.ID,
			"amount_cents": 10000,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "PAYMENT_NOT_COMPLETED", resp.Error.Code)
	})

	t.Run("staff cannot allocate another school's payment", func(t *testing.T) {
		app := newTestApp(t)
		mine := app.seedSchool(t, "Mine")
		other := app.seedSchool(t, "Other")
		student := app.seedStudent(t, other.ID)
		invoice := app.seedInvoice(t, student.ID, "INV-1001", 10000)
		payment := app.seedPayment(t, student.ID, 10000, billing.PaymentStatusCompleted)
		token := app.staffToken(t, mine.ID)

		w := app.request(t, http.MethodPost, "/api/v1/allocations", token, gin.H{
			"payment_id":   payment.ID,
			"invoice_id":   invoice.ID,
			"amount_cents": 10000,
		})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("delete keeps a paid invoice paid", func(t *testing.T) {
		app := newTestApp(t)
		token := app.adminToken(t)
		sch := app.seedSchool(t, "Northside High")
		student := app.seedStudent(t, sch.ID)
		invoice := app.seedInvoice(t, student.ID, "INV-1001", 10000)
		payment := app.seedPayment(t, student.ID, 10000, billing.PaymentStatusCompleted)

		w := app.request(t, http.MethodPost, "/api/v1/allocations", token, gin.H{
			"payment_id":   payment.ID,
			"invoice_id":   invoice.ID,
			"amount_cents": 10000,
		})
		require.Equal(t, http.StatusCreated, w.Code)
		allocationID, ok := dataField(t, decodeResponse(t, w), "id").(string)
		require.True(t, ok)

		w = app.request(t, http.MethodDelete, "/api/v1/allocations/"+allocationID, token, nil)
		require.Equal(t, http.StatusNoContent, w.Code)

		w = app.request(t, http.MethodGet, "/api/v1/invoices/"+invoice.ID.String(), token, nil)
		resp := decodeResponse(t, w)
		assert.Equal(t, "PAID", dataField(t, resp, "status"))
		assert.Equal(t, float64(0), dataField(t, resp, "paid_cents"))
	})

	t.Run("missing body fields return 400", func(t *testing.T) {
		app := newTestApp(t)
		token := app.adminToken(t)

		w := app.request(t, http.MethodPost, "/api/v1/allocations", token, gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("requests without a token are rejected", func(t *testing.T) {
		app := newTestApp(t)
		w := app.request(t, http.MethodGet, "/api/v1/allocations", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
