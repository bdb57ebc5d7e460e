package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolbill/backend/internal/domain/identity"
	"github.com/schoolbill/backend/internal/domain/shared"
	"github.com/schoolbill/backend/internal/infrastructure/logger"
	"github.com/schoolbill/backend/internal/interfaces/http/dto"
	"github.com/schoolbill/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common response helpers for HTTP handlers
type BaseHandler struct{}

// Success sends a 200 response with data
func (h *BaseHandler) Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a 200 response with data and pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data interface{}, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 response with data
func (h *BaseHandler) Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends a 400 response with the given message
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.respondError(c, dto.CodeBadRequest, message)
}

// BindError sends a 400 response for a failed request binding, rendering
// field-level validation failures as readable messages.
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	h.respondError(c, dto.CodeBadRequest, "Invalid request body: "+middleware.ValidationMessage(err))
}

// Error maps an application error onto the HTTP response. Domain errors
// keep their code and message; anything else becomes an opaque 500.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.respondError(c, domainErr.Code, domainErr.Message)
		return
	}

	logger.GetGinLogger(c).Error("unhandled error",
		zap.String("path", c.FullPath()),
		zap.Error(err))
	h.respondError(c, dto.CodeInternal, "An internal error occurred")
}

func (h *BaseHandler) respondError(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(
		code, message, middleware.GetRequestID(c)))
}

// requireActor returns the authenticated actor, aborting with 401 when
// the auth middleware did not run.
func (h *BaseHandler) requireActor(c *gin.Context) (identity.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
			dto.CodeUnauthorized, "Authentication required", middleware.GetRequestID(c)))
		return identity.Actor{}, false
	}
	return actor, true
}

// parseIDParam parses the :id path parameter as a UUID, responding with
// 400 when it is malformed.
func (h *BaseHandler) parseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid ID format")
		return uuid.Nil, false
	}
	return id, true
}

// Pagination bounds mirrored from the application layer so response meta
// matches what the services actually applied.
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalizePagination(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
