package generate

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgen-backend/internal/generations"
	"docgen-backend/internal/shared/apperr"
	localstore "docgen-backend/internal/shared/storage/object/local"
)

func TestOpenArtifactSkipsLocalFileOfDeletedGeneration(t *testing.T) {
	outDir := t.TempDir()
	archive := localstore.New(t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "memo_0a0b0c0d.pdf"), []byte("local"), 0o644))
	_, err := archive.Put(context.Background(), "g1/memo_0a0b0c0d.pdf", MediaTypePDF, strings.NewReader("archived"))
	require.NoError(t, err)

	svc := &Service{OutputDir: outDir, Archive: archive}
	deleted := time.Now()
	g := generations.Generation{ID: "g1", Format: FormatPDF, PDFName: "memo_0a0b0c0d.pdf", ArchiveKey: "g1/", DeletedAt: &deleted}

	artifact, err := svc.OpenArtifact(context.Background(), g, "")
	require.NoError(t, err)
	defer artifact.Body.Close()
	body, err := io.ReadAll(artifact.Body)
	require.NoError(t, err)
	assert.Equal(t, "archived", string(body))
	assert.Equal(t, int64(-1), artifact.Size)

	g.DeletedAt = nil
	artifact, err = svc.OpenArtifact(context.Background(), g, FormatPDF)
	require.NoError(t, err)
	defer artifact.Body.Close()
	body, err = io.ReadAll(artifact.Body)
	require.NoError(t, err)
	assert.Equal(t, "local", string(body))
	assert.Equal(t, int64(5), artifact.Size)
}

func TestOpenArtifactWithoutArchive(t *testing.T) {
	svc := &Service{OutputDir: t.TempDir()}
	g := generations.Generation{ID: "g2", Format: FormatDOCX, DocxName: "memo_11111111.docx"}

	_, err := svc.OpenArtifact(context.Background(), g, "")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = svc.OpenArtifact(context.Background(), g, "html")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestGenerationsWithoutLedger(t *testing.T) {
	svc := &Service{}
	_, err := svc.Generation(context.Background(), "x")
	assert.ErrorIs(t, err, ErrLedgerDisabled)
	_, err = svc.Generations(context.Background(), generations.ListFilter{})
	assert.ErrorIs(t, err, ErrLedgerDisabled)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "not_found", outcome(apperr.NotFound("x")))
	assert.Equal(t, "error", outcome(errors.New("plain")))
}
