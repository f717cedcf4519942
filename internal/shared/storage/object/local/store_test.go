package local

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgen-backend/internal/shared/storage/object"
)

func TestPutThenOpen(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	n, err := store.Put(ctx, "2026/10/resume_ab12cd34.docx", "application/octet-stream", strings.NewReader("docx-bytes"))
	require.NoError(t, err)
	assert.EqualValues(t, len("docx-bytes"), n)

	rc, err := store.Open(ctx, "2026/10/resume_ab12cd34.docx")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "docx-bytes", string(data))
}

func TestOpenMissing(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.Open(context.Background(), "nope.pdf")
	assert.ErrorIs(t, err, object.ErrNotFound)
}

func TestPutRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.Put(context.Background(), "../escape.pdf", "application/pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, object.ErrInvalidKey)
}
