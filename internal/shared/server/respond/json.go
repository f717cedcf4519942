package respond

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

// JSON writes a JSON response with the given status.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// OK writes a 200 OK JSON response.
func OK(c *gin.Context, payload interface{}) {
	JSON(c, http.StatusOK, payload)
}

// Attachment streams a binary payload as a download named filename.
func Attachment(c *gin.Context, contentType, filename string, size int64, body io.Reader, extra map[string]string) {
	headers := map[string]string{
		"Content-Disposition": contentDisposition(filename),
	}
	for k, v := range extra {
		headers[k] = v
	}
	c.DataFromReader(http.StatusOK, size, contentType, body, headers)
}

func contentDisposition(filename string) string {
	for _, r := range filename {
		if r > 0x7e {
			return fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", asciiFallback(filename), url.PathEscape(filename))
		}
	}
	return fmt.Sprintf("attachment; filename=%q", filename)
}

func asciiFallback(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r < 0x20 || r > 0x7e {
			r = '_'
		}
		out = append(out, r)
	}
	return string(out)
}
