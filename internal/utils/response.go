// internal/utils/response.go
package utils

import (
	"errors"
	"net/http"
	"strings"

	"github.com/idsee/registry-backend/internal/i18n"
	"github.com/idsee/registry-backend/internal/models"

	"github.com/gin-gonic/gin"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

func SuccessResponseWithMeta(c *gin.Context, data interface{}, meta interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

func ErrorResponse(c *gin.Context, statusCode int, code, message string, details interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func BadRequestResponse(c *gin.Context, message string, details interface{}) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyValidationInvalid, "request")
	}
	ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", message, details)
}

func UnauthorizedResponse(c *gin.Context, message string) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyAuthRequired)
	}
	ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

func ForbiddenResponse(c *gin.Context, message string) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyAdminAccessDenied)
	}
	ErrorResponse(c, http.StatusForbidden, "FORBIDDEN", message, nil)
}

func InternalErrorResponse(c *gin.Context, message string) {
	if message == "" {
		message = "Internal server error"
	}
	ErrorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", message, nil)
}

func ValidationErrorResponse(c *gin.Context, errors []ValidationError) {
	lang := GetLangFromContext(c)
	message := i18n.T(lang, i18n.KeyValidationInvalid, "input")
	ErrorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", message, errors)
}

func PaginatedResponse(c *gin.Context, result PaginationResult) {
	SetPaginationHeaders(c, result)
	SuccessResponseWithMeta(c, result.Data, gin.H{
		"pagination": gin.H{
			"page":        result.Page,
			"limit":       result.Limit,
			"total":       result.Total,
			"total_pages": result.TotalPages,
		},
	})
}

func GetLangFromContext(c *gin.Context) string {
	if lang, exists := c.Get("lang"); exists {
		if langStr, ok := lang.(string); ok {
			return langStr
		}
	}
	return "en"
}

// CodedError is implemented by domain errors that carry a stable kind and code.
type CodedError interface {
	error
	ErrorKind() string
	ErrorCode() string
}

var kindStatus = map[string]int{
	"NOT_FOUND":          http.StatusNotFound,
	"FORBIDDEN":          http.StatusForbidden,
	"INVALID_STATE":      http.StatusConflict,
	"INSUFFICIENT_FUNDS": http.StatusPaymentRequired,
	"DUPLICATE":          http.StatusConflict,
	"VALIDATION":         http.StatusBadRequest,
	"ANCHOR_UNAVAILABLE": http.StatusServiceUnavailable,
	"UNAUTHORIZED":       http.StatusUnauthorized,
	"NOT_IMPLEMENTED":    http.StatusNotImplemented,
}

// ServiceErrorResponse answers with the status and code of a domain error.
// Anything else is reported as an internal error without details.
func ServiceErrorResponse(c *gin.Context, err error) {
	var coded CodedError
	if !errors.As(err, &coded) {
		c.Error(err)
		InternalErrorResponse(c, "")
		return
	}

	status, ok := kindStatus[coded.ErrorKind()]
	if !ok {
		c.Error(err)
		InternalErrorResponse(c, "")
		return
	}

	lang := GetLangFromContext(c)
	key := "error." + strings.ToLower(coded.ErrorCode())
	message := i18n.T(lang, key)
	if message == key {
		message = coded.Error()
	}
	ErrorResponse(c, status, coded.ErrorCode(), message, nil)
}

func GetUserIDFromContext(c *gin.Context) (string, bool) {
	if userID, exists := c.Get("user_id"); exists {
		if userIDStr, ok := userID.(string); ok {
			return userIDStr, true
		}
	}
	return "", false
}

// GetActorFromContext returns the caller loaded by the auth middleware.
func GetActorFromContext(c *gin.Context) (models.Actor, bool) {
	if v, exists := c.Get("actor"); exists {
		if actor, ok := v.(models.Actor); ok {
			return actor, true
		}
	}
	return models.Actor{}, false
}
