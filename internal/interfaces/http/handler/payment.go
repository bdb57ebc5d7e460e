package handler

import (
	"github.com/gin-gonic/gin"

	appbilling "github.com/schoolbill/backend/internal/application/billing"
)

// PaymentHandler handles payment endpoints
type PaymentHandler struct {
	BaseHandler
	payments *appbilling.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments *appbilling.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Create records a new payment.
func (h *PaymentHandler) Create(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}

	var req appbilling.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	payment, err := h.payments.Create(c.Request.Context(), actor, req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, payment)
}

// Get returns a single payment with its allocated and available amounts.
func (h *PaymentHandler) Get(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	payment, err := h.payments.GetByID(c.Request.Context(), actor, id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, payment)
}

// List returns a page of payments, optionally filtered by student.
func (h *PaymentHandler) List(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}

	var filter appbilling.PaymentListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	payments, total, err := h.payments.List(c.Request.Context(), actor, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	page, pageSize := normalizePagination(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, payments, total, page, pageSize)
}

// Update modifies a payment. Amount changes are refused once funds are
// allocated, and status changes re-derive every funded invoice.
func (h *PaymentHandler) Update(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	var req appbilling.UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	payment, err := h.payments.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, payment)
}

// Delete removes a payment that has no allocations.
func (h *PaymentHandler) Delete(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	if err := h.payments.Delete(c.Request.Context(), actor, id); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// RegisterRoutes registers payment routes
func (h *PaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	payments := rg.Group("/payments")
	{
		payments.POST("", h.Create)
		payments.GET("", h.List)
		payments.GET("/:id", h.Get)
		payments.PUT("/:id", h.Update)
		payments.DELETE("/:id", h.Delete)
	}
}
