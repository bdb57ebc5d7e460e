package handler

import (
	"github.com/gin-gonic/gin"

	appbilling "github.com/schoolbill/backend/internal/application/billing"
)

// AllocationHandler handles payment allocation endpoints. Every mutation
// runs through the transactional coordinator so the owning invoice's
// status stays consistent with its recognized payments.
type AllocationHandler struct {
	BaseHandler
	allocations *appbilling.AllocationService
}

// NewAllocationHandler creates a new AllocationHandler
func NewAllocationHandler(allocations *appbilling.AllocationService) *AllocationHandler {
	return &AllocationHandler{allocations: allocations}
}

// Create allocates part of a payment's funds to an invoice.
func (h *AllocationHandler) Create(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}

	var req appbilling.CreateAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	allocation, err := h.allocations.CreateWithStatusUpdate(c.Request.Context(), actor, req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, allocation)
}

// Get returns a single allocation.
func (h *AllocationHandler) Get(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	allocation, err := h.allocations.GetByID(c.Request.Context(), actor, id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, allocation)
}

// List returns a page of allocations, optionally filtered by payment.
func (h *AllocationHandler) List(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}

	var filter appbilling.AllocationListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	allocations, total, err := h.allocations.List(c.Request.Context(), actor, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	page, pageSize := normalizePagination(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, allocations, total, page, pageSize)
}

// Update changes an allocation's amount.
func (h *AllocationHandler) Update(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	var req appbilling.UpdateAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	allocation, err := h.allocations.UpdateWithStatusUpdate(c.Request.Context(), actor, id, req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, allocation)
}

// Delete removes an allocation. The owning invoice keeps its status; a
// paid invoice is not downgraded when funding is withdrawn.
func (h *AllocationHandler) Delete(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	if err := h.allocations.DeleteWithStatusUpdate(c.Request.Context(), actor, id); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// RegisterRoutes registers allocation routes
func (h *AllocationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	allocations := rg.Group("/allocations")
	{
		allocations.POST("", h.Create)
		allocations.GET("", h.List)
		allocations.GET("/:id", h.Get)
		allocations.PUT("/:id", h.Update)
		allocations.DELETE("/:id", h.Delete)
	}
}
