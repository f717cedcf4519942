package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCodeByKind(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("doc_type is required", nil), http.StatusBadRequest},
		{NotFound("missing"), http.StatusNotFound},
		{AIProvider("AI generation failed", errors.New("quota")), http.StatusBadGateway},
		{Render("Template rendering failed", errors.New("bad tag")), http.StatusInternalServerError},
		{Conversion("", "PDF conversion failed", nil, nil), http.StatusInternalServerError},
		{Unexpected("boom", nil), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusCode(tc.err), tc.err.Error())
	}
}

func TestAsThroughWrapping(t *testing.T) {
	cause := errors.New("zip: not a valid zip file")
	err := fmt.Errorf("generate: %w", Render("Template rendering failed", cause))

	appErr, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, KindRender, appErr.Kind)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsKind(err, KindRender))
	assert.False(t, IsKind(err, KindConversion))
}

func TestConversionDefaultCode(t *testing.T) {
	assert.Equal(t, "conversion_error", Conversion("", "x", nil, nil).Code)
	assert.Equal(t, "pdf_missing", Conversion("pdf_missing", "x", nil, nil).Code)
}
