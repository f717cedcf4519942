package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgen-backend/internal/shared/apperr"
)

func serveError(t *testing.T, err error) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) { FromError(c, err) })

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/x", nil))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return resp, body
}

func TestFromErrorTyped(t *testing.T) {
	resp, body := serveError(t, apperr.Conversion("pdf_missing", "PDF generation produced no file", nil, nil))

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "pdf_missing", body.Error.Code)
	assert.Equal(t, "PDF generation produced no file", body.Error.Message)
}

func TestFromErrorUntypedHidesCause(t *testing.T) {
	resp, body := serveError(t, errors.New("secret connection string"))

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "internal", body.Error.Code)
	assert.NotContains(t, resp.Body.String(), "secret")
}

func TestFromErrorValidationDetails(t *testing.T) {
	resp, body := serveError(t, apperr.Validation("fields failed schema validation", []string{"name: is required"}))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, []any{"name: is required"}, body.Error.Details)
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, `attachment; filename="letter_0a0b0c0d.pdf"`, contentDisposition("letter_0a0b0c0d.pdf"))
	assert.Equal(t, `attachment; filename="cover letter_0a0b0c0d.docx"`, contentDisposition("cover letter_0a0b0c0d.docx"))
	assert.Equal(t, `attachment; filename="lettre_caf__0a0b0c0d.docx"; filename*=UTF-8''lettre_caf%C3%A9_0a0b0c0d.docx`,
		contentDisposition("lettre_café_0a0b0c0d.docx"))
}
