package dto

import "net/http"

// Transport-level error codes used by middleware and handlers.
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeRateLimited     = "RATE_LIMITED"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeInternal        = "INTERNAL"
)

// ErrorCodeHTTPStatus maps domain error codes to HTTP status codes.
var ErrorCodeHTTPStatus = map[string]int{
	// Validation failures on allocation and payment mutations.
	"INVALID_AMOUNT":                   http.StatusBadRequest,
	"PAYMENT_NOT_COMPLETED":            http.StatusBadRequest,
	"INVOICE_CANCELLED":                http.StatusBadRequest,
	"CURRENCY_MISMATCH":                http.StatusBadRequest,
	"INSUFFICIENT_PAYMENT_BALANCE":     http.StatusBadRequest,
	"AMOUNT_LOCKED_BY_ALLOCATIONS":     http.StatusBadRequest,
	"CANNOT_REVERT_COMPLETED_PAYMENT":  http.StatusBadRequest,
	"PAYMENT_HAS_ALLOCATIONS":          http.StatusBadRequest,
	"INVALID_INPUT":                    http.StatusBadRequest,
	"INVALID_STATUS":                   http.StatusBadRequest,
	"INVALID_STATE":                    http.StatusBadRequest,

	// Conflicts with existing state.
	"ALREADY_EXISTS":          http.StatusConflict,
	"INVOICE_HAS_ALLOCATIONS": http.StatusConflict,

	CodeBadRequest:      http.StatusBadRequest,
	CodeUnauthorized:    http.StatusUnauthorized,
	CodeForbidden:       http.StatusForbidden,
	CodeNotFound:        http.StatusNotFound,
	CodeRateLimited:     http.StatusTooManyRequests,
	CodePayloadTooLarge: http.StatusRequestEntityTooLarge,
	CodeInternal:        http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status for an error code, defaulting
// to 500 for codes it does not recognize.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
