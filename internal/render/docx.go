package render

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flosch/pongo2/v6"
	"github.com/google/uuid"

	"docgen-backend/internal/shared/apperr"
	"docgen-backend/internal/shared/metrics"
	"docgen-backend/internal/shared/telemetry"
)

const maxReserveAttempts = 16

// templatedPart matches the package parts that may carry template tags.
var templatedPart = regexp.MustCompile(`^word/(document|header[0-9]*|footer[0-9]*)\.xml$`)

// Output describes a rendered document on disk.
type Output struct {
	Name string
	Path string
	Size int64
}

// Renderer fills DOCX templates and writes the results into a directory.
type Renderer struct {
	outDir string
	suffix func() string

	// pongo2 flags the set on every parse.
	parseMu sync.Mutex
	set     *pongo2.TemplateSet
}

// NewRenderer creates the output directory if needed. Templates may not
// pull in other files.
func NewRenderer(outDir string) (*Renderer, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	set := pongo2.NewSet("docx", pongo2.NewFSLoader(noFiles{}))
	for _, tag := range []string{"include", "extends", "import", "ssi"} {
		if err := set.BanTag(tag); err != nil {
			return nil, err
		}
	}
	return &Renderer{outDir: outDir, set: set, suffix: randomSuffix}, nil
}

// Dir returns the directory rendered documents are written to.
func (r *Renderer) Dir() string {
	return r.outDir
}

// Render fills the template at templatePath with fields and writes
// <docType>_<8 hex>.docx.
func (r *Renderer) Render(ctx context.Context, templatePath, docType string, fields map[string]any) (Output, error) {
	started := time.Now()
	defer func() { metrics.ObserveStage("render", time.Since(started)) }()

	if err := ctx.Err(); err != nil {
		return Output{}, apperr.Unexpected("Request cancelled before rendering", err)
	}

	data, skipped := templateContext(fields)
	if len(skipped) > 0 {
		sort.Strings(skipped)
		telemetry.Warn("render.fields.skipped", map[string]any{
			"doc_type": docType,
			"keys":     skipped,
		})
	}

	content, err := r.renderPackage(templatePath, data)
	if err != nil {
		return Output{}, renderFailed(err)
	}

	out, err := r.write(docType, content)
	if err != nil {
		return Output{}, renderFailed(err)
	}

	info, err := os.Stat(out.Path)
	if err != nil {
		return Output{}, apperr.Render("DOCX was not created", err)
	}
	out.Size = info.Size()

	telemetry.Info("render.complete", map[string]any{
		"doc_type": docType,
		"file":     out.Name,
		"bytes":    out.Size,
	})
	return out, nil
}

func renderFailed(err error) error {
	return apperr.Render("Template rendering failed: "+err.Error(), err)
}

func (r *Renderer) renderPackage(templatePath string, data pongo2.Context) ([]byte, error) {
	templateBytes, err := os.ReadFile(filepath.Clean(templatePath))
	if err != nil {
		return nil, err
	}
	reader, err := zip.NewReader(bytes.NewReader(templateBytes), int64(len(templateBytes)))
	if err != nil {
		return nil, fmt.Errorf("open template package: %w", err)
	}

	var output bytes.Buffer
	writer := zip.NewWriter(&output)
	for _, file := range reader.File {
		content, err := readZipFile(file)
		if err != nil {
			return nil, err
		}
		name := normalizeZipName(file.Name)
		if templatedPart.MatchString(name) {
			rendered, err := r.renderPart(string(content), data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			content = []byte(rendered)
		}
		if err := writeZipFile(writer, file, content); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return output.Bytes(), nil
}

// renderPart runs one XML part through tag preparation, template execution
// and a well-formedness check.
func (r *Renderer) renderPart(xmlText string, data pongo2.Context) (string, error) {
	if !strings.Contains(xmlText, "{{") && !strings.Contains(xmlText, "{%") && !strings.Contains(xmlText, "{#") {
		return xmlText, nil
	}

	part, err := parsePart(xmlText)
	if err != nil {
		return "", fmt.Errorf("parse xml: %w", err)
	}
	prepareTree(part.root)
	source, err := part.encode()
	if err != nil {
		return "", fmt.Errorf("encode xml: %w", err)
	}

	r.parseMu.Lock()
	tpl, err := r.set.FromString(restoreTags(source))
	r.parseMu.Unlock()
	if err != nil {
		return "", err
	}
	rendered, err := tpl.Execute(data)
	if err != nil {
		return "", err
	}
	if err := checkWellFormed(rendered); err != nil {
		return "", fmt.Errorf("rendered xml is not well-formed: %w", err)
	}
	return rendered, nil
}

// write reserves a fresh file name with O_EXCL so concurrent renders of the
// same type never share an output path.
func (r *Renderer) write(docType string, content []byte) (Output, error) {
	for range maxReserveAttempts {
		name := docType + "_" + r.suffix() + ".docx"
		path := filepath.Join(r.outDir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return Output{}, err
		}
		if _, err := f.Write(content); err != nil {
			f.Close()
			return Output{}, err
		}
		if err := f.Close(); err != nil {
			return Output{}, err
		}
		return Output{Name: name, Path: path}, nil
	}
	return Output{}, fmt.Errorf("no free output name for %q after %d attempts", docType, maxReserveAttempts)
}

func randomSuffix() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:4])
}

func readZipFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func writeZipFile(writer *zip.Writer, source *zip.File, content []byte) error {
	header := source.FileHeader
	header.Name = normalizeZipName(source.Name)
	dst, err := writer.CreateHeader(&header)
	if err != nil {
		return err
	}
	_, err = dst.Write(content)
	return err
}

func normalizeZipName(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}

type noFiles struct{}

func (noFiles) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
