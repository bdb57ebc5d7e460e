package handler

import (
	"github.com/gin-gonic/gin"

	appbilling "github.com/schoolbill/backend/internal/application/billing"
)

// InvoiceHandler handles invoice endpoints
type InvoiceHandler struct {
	BaseHandler
	invoices *appbilling.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoices *appbilling.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// Create issues a new invoice.
func (h *InvoiceHandler) Create(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}

	var req appbilling.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	invoice, err := h.invoices.Create(c.Request.Context(), actor, req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, invoice)
}

// Get returns a single invoice with its recognized paid amount.
func (h *InvoiceHandler) Get(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	invoice, err := h.invoices.GetByID(c.Request.Context(), actor, id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, invoice)
}

// List returns a page of invoices, optionally filtered by student.
func (h *InvoiceHandler) List(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}

	var filter appbilling.InvoiceListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	invoices, total, err := h.invoices.List(c.Request.Context(), actor, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	page, pageSize := normalizePagination(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, invoices, total, page, pageSize)
}

// Update modifies an invoice. When the amount changes and no explicit
// status is supplied, the status is re-derived from recognized payments.
func (h *InvoiceHandler) Update(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	var req appbilling.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	invoice, err := h.invoices.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, invoice)
}

// Delete removes an invoice that has no allocations.
func (h *InvoiceHandler) Delete(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	if err := h.invoices.Delete(c.Request.Context(), actor, id); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// RegisterRoutes registers invoice routes
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	invoices := rg.Group("/invoices")
	{
		invoices.POST("", h.Create)
		invoices.GET("", h.List)
		invoices.GET("/:id", h.Get)
		invoices.PUT("/:id", h.Update)
		invoices.DELETE("/:id", h.Delete)
	}
}
