package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type APIResponse struct {
	Status      string            `json:"status"`
	Code        int               `json:"code"`
	Message     string            `json:"message,omitempty"`
	TraceID     string            `json:"trace_id,omitempty"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
	Data        interface{}       `json:"data,omitempty"`
}

func traceIDOf(c *gin.Context) string {
	return c.GetString("trace_id")
}

func RespondSuccess(c *gin.Context, data interface{}, message string) {
	RespondWithCode(c, http.StatusOK, data, message)
}

func RespondWithCode(c *gin.Context, code int, data interface{}, message string) {
	c.JSON(code, APIResponse{
		Status:  "success",
		Code:    code,
		Message: message,
		TraceID: traceIDOf(c),
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, message string) {
	c.JSON(code, APIResponse{
		Status:  "error",
		Code:    code,
		Message: message,
		TraceID: traceIDOf(c),
	})
}

// HandleServiceError maps the error taxonomy in custom_err.go onto HTTP.
// Anything unrecognised is logged and reported as a generic 500.
func HandleServiceError(c *gin.Context, err error) {
	code, message := http.StatusInternalServerError, "Internal server error"

	switch {
	case errors.Is(err, ErrValidation):
		c.JSON(http.StatusBadRequest, APIResponse{
			Status:      "error",
			Code:        http.StatusBadRequest,
			Message:     messageOr(err, "Invalid input"),
			TraceID:     traceIDOf(c),
			FieldErrors: FieldErrors(err),
		})
		return
	case errors.Is(err, ErrInvalidCredentials):
		code, message = http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, ErrEmailAlreadyExists):
		code, message = http.StatusConflict, "Email already registered"
	case errors.Is(err, ErrInvalidPage):
		code, message = http.StatusBadRequest, "Page must be greater than 0"
	case errors.Is(err, ErrInvalidPageSize):
		code, message = http.StatusBadRequest, "Page size must be between 1 and 100"
	case errors.Is(err, ErrUnauthorized):
		code, message = http.StatusUnauthorized, messageOr(err, "Unauthorized")
	case errors.Is(err, ErrForbidden):
		code, message = http.StatusForbidden, messageOr(err, "Forbidden")
	case errors.Is(err, ErrNotFound):
		code, message = http.StatusNotFound, messageOr(err, "Not found")
	case errors.Is(err, ErrConflict):
		code, message = http.StatusConflict, messageOr(err, "Conflict")
	case errors.Is(err, ErrPrecondition):
		code, message = http.StatusPreconditionFailed, messageOr(err, "Precondition failed")
	case errors.Is(err, ErrGateway):
		Logger().Error("payment gateway error", zap.String("trace_id", traceIDOf(c)), zap.Error(err))
		code, message = http.StatusBadGateway, "Payment provider is unavailable, please try again later"
	case errors.Is(err, ErrDatabaseError):
		Logger().Error("database error", zap.String("trace_id", traceIDOf(c)), zap.Error(err))
	default:
		Logger().Error("unhandled service error", zap.String("trace_id", traceIDOf(c)), zap.Error(err))
	}

	RespondError(c, code, message)
}

func messageOr(err error, fallback string) string {
	if msg := PublicMessage(err); msg != "" {
		return msg
	}
	return fallback
}
