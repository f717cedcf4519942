package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, files map[string]string) *Store {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	s, err := NewStore(dir)
	require.NoError(t, err)
	return s
}

func TestNormalizeDocType(t *testing.T) {
	assert.Equal(t, "resume", NormalizeDocType("  Resume \n"))
	assert.Equal(t, "", NormalizeDocType("   "))
}

func TestResolve(t *testing.T) {
	s := newStore(t, map[string]string{"resume_template.docx": "x"})

	path, err := s.Resolve("resume")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "resume_template.docx"), path)

	_, err = s.Resolve("invoice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveRejectsPathLikeTypes(t *testing.T) {
	s := newStore(t, map[string]string{"resume_template.docx": "x"})
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(s.Dir()), "outside_template.docx"), []byte("x"), 0o644))
	for _, docType := range []string{"../outside", "../resume", "a/b", `a\b`, "..", ".", "re\x00sume"} {
		_, err := s.Resolve(docType)
		assert.ErrorIs(t, err, ErrNotFound, docType)
	}
}

func TestResolveAnyExistingFileName(t *testing.T) {
	s := newStore(t, map[string]string{
		"cover letter_template.docx": "x",
		"resume.v2_template.docx":    "x",
		"lettre_café_template.docx":  "x",
		"lettre_café_schema.json":    `{"type":"object"}`,
	})
	for _, docType := range []string{"cover letter", "resume.v2", "lettre_café"} {
		path, err := s.Resolve(docType)
		require.NoError(t, err, docType)
		assert.Equal(t, filepath.Join(s.Dir(), docType+"_template.docx"), path)
	}

	schema, err := s.Schema("lettre_café")
	require.NoError(t, err)
	assert.Equal(t, "object", schema["type"])

	list, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []Info{
		{DocType: "cover letter"},
		{DocType: "lettre_café", HasSchema: true},
		{DocType: "resume.v2"},
	}, list)
}

func TestListAndSchema(t *testing.T) {
	s := newStore(t, map[string]string{
		"resume_template.docx":       "x",
		"cover-letter_template.docx": "x",
		"resume_schema.json":         `{"type":"object","required":["name"]}`,
		"notes.txt":                  "ignored",
	})

	list, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []Info{
		{DocType: "cover-letter", HasSchema: false},
		{DocType: "resume", HasSchema: true},
	}, list)

	schema, err := s.Schema("resume")
	require.NoError(t, err)
	assert.Equal(t, "object", schema["type"])

	schema, err = s.Schema("cover-letter")
	require.NoError(t, err)
	assert.Nil(t, schema)
}

func TestSchemaInvalidJSON(t *testing.T) {
	s := newStore(t, map[string]string{"resume_schema.json": `{not json`})
	_, err := s.Schema("resume")
	assert.Error(t, err)
}
