package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	kpidomain "github.com/stationops/pims/internal/kpi/domain"
	outagedomain "github.com/stationops/pims/internal/outage/domain"
	totalizerdomain "github.com/stationops/pims/internal/totalizer/domain"
)

// APIError is the wire error envelope.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *APIError) Error() string { return e.Message }

var (
	ErrUnauthorized = &APIError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "operator identity required"}
	ErrForbidden    = &APIError{Status: http.StatusForbidden, Code: "forbidden", Message: "operator role does not allow this action"}
	ErrNotFound     = &APIError{Status: http.StatusNotFound, Code: "not_found", Message: "resource not found"}
	ErrRateLimited  = &APIError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: "too many submissions, slow down"}
)

func invalidRequestError() *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "request body could not be parsed"}
}

func newValidationError(field, code, message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: code, Message: message, Field: field}
}

// AbortWithError maps domain sentinels onto HTTP statuses and writes the
// envelope. Unknown errors become opaque 500s.
func AbortWithError(c *gin.Context, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
		return
	}

	status := http.StatusInternalServerError
	code := "internal_error"
	message := "internal error"

	switch {
	case errors.Is(err, totalizerdomain.ErrInvalidDate),
		errors.Is(err, totalizerdomain.ErrInvalidScope),
		errors.Is(err, totalizerdomain.ErrUnknownTotalizer),
		errors.Is(err, totalizerdomain.ErrInvalidReading),
		errors.Is(err, totalizerdomain.ErrInvalidBaseline),
		errors.Is(err, kpidomain.ErrInvalidKPIName),
		errors.Is(err, kpidomain.ErrInvalidKPIValue),
		errors.Is(err, kpidomain.ErrInvalidPeriod),
		errors.Is(err, kpidomain.ErrInvalidScope),
		errors.Is(err, outagedomain.ErrInvalidScope),
		errors.Is(err, outagedomain.ErrInvalidType),
		errors.Is(err, outagedomain.ErrInvalidWindow),
		errors.Is(err, outagedomain.ErrInvalidEndTime):
		status = http.StatusBadRequest
		code = err.Error()
		message = err.Error()
	case errors.Is(err, kpidomain.ErrOffsetNotFound),
		errors.Is(err, outagedomain.ErrNotFound):
		status = http.StatusNotFound
		code = err.Error()
		message = err.Error()
	case errors.Is(err, outagedomain.ErrAlreadyClosed):
		status = http.StatusConflict
		code = err.Error()
		message = err.Error()
	}

	c.AbortWithStatusJSON(status, gin.H{"error": &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}})
}
