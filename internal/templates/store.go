// Package templates resolves document types to template files on disk.
package templates

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	templateSuffix = "_template.docx"
	schemaSuffix   = "_schema.json"
)

// ErrNotFound means no template exists for the requested document type.
var ErrNotFound = errors.New("template not found")

// plainName reports whether docType names a file directly inside the store
// directory. Spaces, dots and non-ASCII letters are fine; separators, "..",
// and NUL are not.
func plainName(docType string) bool {
	if docType == "" || docType == "." || strings.Contains(docType, "..") {
		return false
	}
	if strings.ContainsAny(docType, "/\\\x00") {
		return false
	}
	return filepath.Base(docType) == docType
}

// Info describes one available template.
type Info struct {
	DocType   string `json:"doc_type"`
	HasSchema bool   `json:"has_schema"`
}

// Store is a directory of "<doc_type>_template.docx" files.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create templates dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// NormalizeDocType trims surrounding whitespace and lowercases.
func NormalizeDocType(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Path returns the expected location of docType's template whether or not it exists.
func (s *Store) Path(docType string) string {
	return filepath.Join(s.dir, docType+templateSuffix)
}

// Resolve returns the template path for a normalized docType, or ErrNotFound.
// Types that could not name a plain file in the directory are never found.
func (s *Store) Resolve(docType string) (string, error) {
	if !plainName(docType) {
		return "", ErrNotFound
	}
	path := s.Path(docType)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat template: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", ErrNotFound
	}
	return path, nil
}

// Schema returns the optional JSON schema for docType. A missing file yields nil, nil.
func (s *Store) Schema(docType string) (map[string]any, error) {
	if !plainName(docType) {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Join(s.dir, docType+schemaSuffix))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read schema: %w", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", docType, err)
	}
	return schema, nil
}

// List returns every template in the directory sorted by doc type.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read templates dir: %w", err)
	}
	schemas := map[string]bool{}
	var types []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, templateSuffix):
			docType := strings.TrimSuffix(name, templateSuffix)
			if plainName(docType) {
				types = append(types, docType)
			}
		case strings.HasSuffix(name, schemaSuffix):
			schemas[strings.TrimSuffix(name, schemaSuffix)] = true
		}
	}
	sort.Strings(types)
	out := make([]Info, 0, len(types))
	for _, t := range types {
		out = append(out, Info{DocType: t, HasSchema: schemas[t]})
	}
	return out, nil
}
