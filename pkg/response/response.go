package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aura-live/backend/pkg/apperror"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Field   string      `json:"field,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// Accepted sends a 202 JSON response with data.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Body{Success: true, Data: data})
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: err})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: err})
}

// Conflict sends 409.
func Conflict(c *gin.Context, err string) {
	c.JSON(http.StatusConflict, Body{Success: false, Error: err})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) {
	c.JSON(http.StatusServiceUnavailable, Body{Success: false, Error: err})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err})
}

// Error maps an apperror to its HTTP status. Unknown errors become 500 with a generic message.
func Error(c *gin.Context, err error) {
	c.JSON(Status(err), bodyFor(err))
}

// Status returns the HTTP status for err.
func Status(err error) int {
	var v *apperror.ValidationError
	switch {
	case errors.As(err, &v):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrRoomInactive):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, apperror.ErrConfiguration):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func bodyFor(err error) Body {
	var v *apperror.ValidationError
	if errors.As(err, &v) {
		return Body{Success: false, Error: v.Message, Field: v.Field}
	}
	switch Status(err) {
	case http.StatusForbidden:
		return Body{Success: false, Error: "insufficient permissions"}
	case http.StatusNotFound:
		return Body{Success: false, Error: "session not found"}
	case http.StatusConflict:
		return Body{Success: false, Error: "session is not live"}
	case http.StatusBadGateway:
		return Body{Success: false, Error: "upstream transport failed"}
	case http.StatusServiceUnavailable:
		return Body{Success: false, Error: "service not configured"}
	default:
		return Body{Success: false, Error: "internal error"}
	}
}
