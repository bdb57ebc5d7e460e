package handler

import (
	"github.com/gin-gonic/gin"

	appbilling "github.com/schoolbill/backend/internal/application/billing"
	appschool "github.com/schoolbill/backend/internal/application/school"
)

// StudentHandler handles student endpoints, including the balance statement
type StudentHandler struct {
	BaseHandler
	students *appschool.StudentService
	balances *appbilling.BalanceService
}

// NewStudentHandler creates a new StudentHandler
func NewStudentHandler(students *appschool.StudentService, balances *appbilling.BalanceService) *StudentHandler {
	return &StudentHandler{students: students, balances: balances}
}

// Create enrolls a new student.
func (h *StudentHandler) Create(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}

	var req appschool.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	student, err := h.students.Create(c.Request.Context(), actor, req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, student)
}

// Get returns a single student.
func (h *StudentHandler) Get(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	student, err := h.students.GetByID(c.Request.Context(), actor, id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, student)
}

// List returns a page of students visible to the actor.
func (h *StudentHandler) List(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}

	var filter appschool.StudentListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	students, total, err := h.students.List(c.Request.Context(), actor, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	page, pageSize := normalizePagination(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, students, total, page, pageSize)
}

// Update modifies a student's profile.
func (h *StudentHandler) Update(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	var req appschool.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	student, err := h.students.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, student)
}

// Delete removes a student.
func (h *StudentHandler) Delete(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	if err := h.students.Delete(c.Request.Context(), actor, id); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Balance returns the student's billing balance statement.
func (h *StudentHandler) Balance(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	statement, err := h.balances.StudentBalance(c.Request.Context(), actor, id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, statement)
}

// RegisterRoutes registers student routes
func (h *StudentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	students := rg.Group("/students")
	{
		students.POST("", h.Create)
		students.GET("", h.List)
		students.GET("/:id", h.Get)
		students.PUT("/:id", h.Update)
		students.DELETE("/:id", h.Delete)
		students.GET("/:id/balance", h.Balance)
	}
}
