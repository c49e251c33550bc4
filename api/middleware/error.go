package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ufro-labs/norma-qa/api/model"
)

// Error type constants used across the API.
const (
	ErrorTypeValidation = "VALIDATION_ERROR"
	ErrorTypeNotFound   = "NOT_FOUND_ERROR"
	ErrorTypeInternal   = "INTERNAL_ERROR"
)

// AppError carries an error type and the HTTP status to report it with.
type AppError struct {
	Type    string
	Message string
	Details string
	Code    int
}

func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewValidationError builds a 400 error.
func NewValidationError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadRequest,
	}
}

// NewNotFoundError builds a 404 error.
func NewNotFoundError(message string) AppError {
	return AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

// NewInternalError builds a 500 error.
func NewInternalError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusInternalServerError,
	}
}

// ErrorMiddleware recovers panics and turns context errors into JSON
// error responses.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.WithFields(logrus.Fields{
					"error": err,
					"stack": string(debug.Stack()),
					"path":  c.Request.URL.Path,
				}).Error("Panic recovered in API request")

				errResp := model.NewErrorResponse(
					http.StatusInternalServerError,
					"An unexpected error occurred",
				)
				if gin.Mode() == gin.DebugMode {
					errResp.Message = fmt.Sprintf("Panic: %v", err)
				}
				if traceID, exists := c.Get("TraceID"); exists {
					errResp.TraceID = traceID.(string)
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, errResp)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		traceID := ""
		if traceIDValue, exists := c.Get("TraceID"); exists {
			traceID = traceIDValue.(string)
		}

		var appErr AppError
		switch e := err.(type) {
		case AppError:
			appErr = e
		case *AppError:
			appErr = *e
		default:
			appErr = NewInternalError("Internal server error")
			if gin.Mode() == gin.DebugMode {
				appErr.Message = err.Error()
			}
		}

		log.WithFields(logrus.Fields{
			"error_type": appErr.Type,
			"trace_id":   traceID,
			"path":       c.Request.URL.Path,
		}).Error(appErr.Message)

		errResp := model.NewErrorResponse(appErr.Code, appErr.Message)
		errResp.TraceID = traceID
		c.AbortWithStatusJSON(appErr.Code, errResp)
	}
}

// HandleError attaches an error to the context for ErrorMiddleware.
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
}
