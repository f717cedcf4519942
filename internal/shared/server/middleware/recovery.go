package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"docgen-backend/internal/shared/server/respond"
	"docgen-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 error body. http.ErrAbortHandler is re-raised so the
// server drops the connection as net/http intends. Once a download has started streaming, the
// response cannot be replaced and the request is only aborted.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"panic":      fmt.Sprint(rec),
				"stack":      string(debug.Stack()),
				"path":       c.Request.URL.Path,
				"method":     c.Request.Method,
				"written":    c.Writer.Written(),
			}
			if docType := c.GetString("docType"); docType != "" {
				fields["doc_type"] = docType
			}
			telemetry.Error("panic", fields)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal", "Unexpected server error", nil)
		}()
		c.Next()
	}
}
