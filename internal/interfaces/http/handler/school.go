package handler

import (
	"github.com/gin-gonic/gin"

	appbilling "github.com/schoolbill/backend/internal/application/billing"
	appschool "github.com/schoolbill/backend/internal/application/school"
)

// SchoolHandler handles school endpoints, including the revenue statement
type SchoolHandler struct {
	BaseHandler
	schools  *appschool.SchoolService
	balances *appbilling.BalanceService
}

// NewSchoolHandler creates a new SchoolHandler
func NewSchoolHandler(schools *appschool.SchoolService, balances *appbilling.BalanceService) *SchoolHandler {
	return &SchoolHandler{schools: schools, balances: balances}
}

// Create registers a new school.
func (h *SchoolHandler) Create(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}

	var req appschool.CreateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	school, err := h.schools.Create(c.Request.Context(), actor, req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, school)
}

// Get returns a single school.
func (h *SchoolHandler) Get(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	school, err := h.schools.GetByID(c.Request.Context(), actor, id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, school)
}

// List returns a page of schools visible to the actor.
func (h *SchoolHandler) List(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}

	var filter appschool.SchoolListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	schools, total, err := h.schools.List(c.Request.Context(), actor, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	page, pageSize := normalizePagination(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, schools, total, page, pageSize)
}

// Update modifies a school's profile.
func (h *SchoolHandler) Update(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	var req appschool.UpdateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	school, err := h.schools.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, school)
}

// Delete removes a school.
func (h *SchoolHandler) Delete(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	if err := h.schools.Delete(c.Request.Context(), actor, id); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Revenue returns the school's aggregate revenue statement.
func (h *SchoolHandler) Revenue(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	statement, err := h.balances.SchoolRevenue(c.Request.Context(), actor, id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, statement)
}

// RegisterRoutes registers school routes
func (h *SchoolHandler) RegisterRoutes(rg *gin.RouterGroup) {
	schools := rg.Group("/schools")
	{
		schools.POST("", h.Create)
		schools.GET("", h.List)
		schools.GET("/:id", h.Get)
		schools.PUT("/:id", h.Update)
		schools.DELETE("/:id", h.Delete)
		schools.GET("/:id/revenue", h.Revenue)
	}
}
