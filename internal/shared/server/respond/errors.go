package respond

import (
	"github.com/gin-gonic/gin"

	"docgen-backend/internal/shared/apperr"
	"docgen-backend/internal/shared/telemetry"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if docType := c.GetString("docType"); docType != "" {
		fields["doc_type"] = docType
	}
	if status >= 500 {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// FromError maps an application error to its status and body. Untyped errors become a 500 without detail.
func FromError(c *gin.Context, err error) {
	if appErr, ok := apperr.As(err); ok {
		Error(c, appErr.Status(), appErr.Code, appErr.Message, appErr.Details)
		return
	}
	Error(c, 500, "internal", "Unexpected server error", nil)
}
