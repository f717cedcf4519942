// Package generate runs the document pipeline behind POST /generate and
// serves the generation ledger.
package generate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"docgen-backend/internal/convert"
	"docgen-backend/internal/fields"
	"docgen-backend/internal/generations"
	"docgen-backend/internal/render"
	"docgen-backend/internal/shared/apperr"
	"docgen-backend/internal/shared/metrics"
	"docgen-backend/internal/shared/storage/object"
	"docgen-backend/internal/shared/telemetry"
	"docgen-backend/internal/templates"
)

const (
	FormatPDF  = "pdf"
	FormatDOCX = "docx"

	MediaTypePDF  = "application/pdf"
	MediaTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// TemplateSource finds templates by document type.
type TemplateSource interface {
	Resolve(docType string) (string, error)
	Path(docType string) string
	List() ([]templates.Info, error)
}

// FieldResolver produces the mapping a template is filled with.
type FieldResolver interface {
	Resolve(ctx context.Context, in fields.Input) (fields.Result, error)
}

// DocumentRenderer fills a template and writes the DOCX.
type DocumentRenderer interface {
	Render(ctx context.Context, templatePath, docType string, fields map[string]any) (render.Output, error)
}

// Service wires the pipeline stages together. Ledger and Archive are optional.
type Service struct {
	Templates TemplateSource
	Fields    FieldResolver
	Renderer  DocumentRenderer
	Converter convert.DocumentConverter
	OutputDir string
	Ledger    generations.Repo
	Archive   object.ArtifactStore

	Now   func() time.Time
	NewID func() string
}

// Request is one generation request after decoding.
type Request struct {
	DocType    string
	Fields     map[string]any
	UseAI      bool
	AIContext  string
	ReturnDocx bool
	RequestID  string
}

// Result points at the file to send back.
type Result struct {
	GenerationID string
	DocType      string
	Mode         string
	Format       string
	Name         string
	Path         string
	MediaType    string
	Size         int64
	Pages        int
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// Generate validates the request, resolves fields, renders the template and,
// unless a DOCX was asked for, converts it to PDF. Failures come back as
// *apperr.Error values carrying their HTTP status.
func (s *Service) Generate(ctx context.Context, req Request) (res Result, err error) {
	res.GenerationID = s.newID()
	res.DocType = templates.NormalizeDocType(req.DocType)
	res.Mode = fields.ModeManual
	if req.UseAI {
		res.Mode = fields.ModeAI
	}
	res.Format = FormatPDF
	if req.ReturnDocx {
		res.Format = FormatDOCX
	}

	stage := "validate"
	defer func() {
		if err != nil {
			metrics.IncGeneration(res.Mode, res.Format, outcome(err))
			telemetry.Error("generate.failed", map[string]any{
				"request_id":    req.RequestID,
				"generation_id": res.GenerationID,
				"doc_type":      res.DocType,
				"stage":         stage,
				"error":         err,
			})
			return
		}
		metrics.IncGeneration(res.Mode, res.Format, "success")
	}()

	if res.DocType == "" {
		return res, apperr.Validation("doc_type is required", nil)
	}

	stage = "template"
	templatePath, err := s.Templates.Resolve(res.DocType)
	if err != nil {
		if errors.Is(err, templates.ErrNotFound) {
			return res, apperr.NotFound(fmt.Sprintf("Template for '%s' not found at %s", res.DocType, s.Templates.Path(res.DocType)))
		}
		return res, apperr.Unexpected("Template lookup failed", err)
	}

	stage = "fields"
	resolved, err := s.Fields.Resolve(ctx, fields.Input{
		DocType:   res.DocType,
		Fields:    req.Fields,
		UseAI:     req.UseAI,
		AIContext: req.AIContext,
		RequestID: req.RequestID,
	})
	if err != nil {
		return res, err
	}

	stage = "render"
	docx, err := s.Renderer.Render(ctx, templatePath, res.DocType, resolved.Fields)
	if err != nil {
		return res, err
	}
	files := []string{docx.Path}

	if req.ReturnDocx {
		size, err := regularFileSize(docx.Path)
		if err != nil {
			return res, apperr.Render("DOCX was not created", err)
		}
		res.Name, res.Path, res.MediaType, res.Size = docx.Name, docx.Path, MediaTypeDOCX, size
	} else {
		stage = "convert"
		pdfPath, err := s.Converter.Convert(ctx, docx.Path)
		if err != nil {
			return res, err
		}
		size, err := regularFileSize(pdfPath)
		if err != nil {
			return res, apperr.Conversion(convert.CodePDFMissing, "PDF generation produced no file", nil, err)
		}
		res.Name, res.Path, res.MediaType, res.Size = filepath.Base(pdfPath), pdfPath, MediaTypePDF, size
		files = append(files, pdfPath)

		if pages, err := convert.PageCount(pdfPath); err != nil {
			telemetry.Warn("generate.page_count.failed", map[string]any{
				"request_id": req.RequestID,
				"pdf":        res.Name,
				"error":      err,
			})
		} else {
			res.Pages = pages
		}
	}

	stage = "record"
	s.record(ctx, req, res, docx.Name, files)

	telemetry.Info("generate.complete", map[string]any{
		"request_id":    req.RequestID,
		"generation_id": res.GenerationID,
		"doc_type":      res.DocType,
		"mode":          res.Mode,
		"format":        res.Format,
		"file":          res.Name,
		"bytes":         res.Size,
	})
	return res, nil
}

// record archives the produced files and writes the ledger entry. Neither
// step can fail a request whose document already exists.
func (s *Service) record(ctx context.Context, req Request, res Result, docxName string, files []string) {
	archivePrefix := ""
	if s.Archive != nil {
		archivePrefix = res.GenerationID + "/"
		for _, path := range files {
			if err := s.archive(ctx, archivePrefix+filepath.Base(path), path); err != nil {
				telemetry.Warn("generate.archive.failed", map[string]any{
					"request_id": req.RequestID,
					"store":      s.Archive.Name(),
					"file":       filepath.Base(path),
					"error":      err,
				})
				archivePrefix = ""
				break
			}
		}
	}

	if s.Ledger == nil {
		return
	}
	g := generations.Generation{
		ID:         res.GenerationID,
		RequestID:  req.RequestID,
		DocType:    res.DocType,
		Mode:       res.Mode,
		Format:     res.Format,
		DocxName:   docxName,
		PDFPages:   res.Pages,
		SizeBytes:  res.Size,
		ArchiveKey: archivePrefix,
		CreatedAt:  s.now(),
	}
	if res.Format == FormatPDF {
		g.PDFName = res.Name
	}
	if err := s.Ledger.Create(ctx, g); err != nil {
		telemetry.Error("generate.ledger.failed", map[string]any{
			"request_id":    req.RequestID,
			"generation_id": res.GenerationID,
			"error":         err,
		})
	}
}

func (s *Service) archive(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = s.Archive.Put(ctx, key, mediaTypeFor(path), f)
	return err
}

// ListTemplates lists the available document types.
func (s *Service) ListTemplates() ([]templates.Info, error) {
	return s.Templates.List()
}

// ErrLedgerDisabled is returned by ledger reads when no ledger is configured.
var ErrLedgerDisabled = errors.New("generation ledger is disabled")

// Generation returns one ledger entry.
func (s *Service) Generation(ctx context.Context, id string) (generations.Generation, error) {
	if s.Ledger == nil {
		return generations.Generation{}, ErrLedgerDisabled
	}
	return s.Ledger.Get(ctx, id)
}

// Generations lists ledger entries newest first.
func (s *Service) Generations(ctx context.Context, filter generations.ListFilter) ([]generations.Generation, error) {
	if s.Ledger == nil {
		return nil, ErrLedgerDisabled
	}
	return s.Ledger.List(ctx, filter)
}

// Artifact is an open generated file ready to stream. Size is -1 when unknown.
type Artifact struct {
	Name      string
	MediaType string
	Size      int64
	Body      io.ReadCloser
}

// OpenArtifact opens a previous generation's file in the given format,
// falling back to the archive once the local copy is gone.
func (s *Service) OpenArtifact(ctx context.Context, g generations.Generation, format string) (Artifact, error) {
	if format == "" {
		format = g.Format
	}
	var name string
	switch format {
	case FormatDOCX:
		name = g.DocxName
	case FormatPDF:
		name = g.PDFName
	default:
		return Artifact{}, apperr.Validation("format must be pdf or docx", nil)
	}
	if name == "" {
		return Artifact{}, apperr.NotFound(fmt.Sprintf("No %s was produced for generation %s", format, g.ID))
	}

	if !g.Deleted() {
		f, err := os.Open(filepath.Join(s.OutputDir, name))
		if err == nil {
			info, statErr := f.Stat()
			if statErr == nil && info.Mode().IsRegular() {
				return Artifact{Name: name, MediaType: mediaTypeFor(name), Size: info.Size(), Body: f}, nil
			}
			f.Close()
		}
	}

	if s.Archive != nil && g.ArchiveKey != "" {
		body, err := s.Archive.Open(ctx, g.ArchiveKey+name)
		if err == nil {
			return Artifact{Name: name, MediaType: mediaTypeFor(name), Size: -1, Body: body}, nil
		}
		if !errors.Is(err, object.ErrNotFound) {
			return Artifact{}, apperr.Unexpected("Archive read failed", err)
		}
	}
	return Artifact{}, apperr.NotFound(fmt.Sprintf("File %s is no longer available", name))
}

func mediaTypeFor(name string) string {
	if filepath.Ext(name) == ".pdf" {
		return MediaTypePDF
	}
	return MediaTypeDOCX
}

func regularFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is not a regular file", path)
	}
	return info.Size(), nil
}

func outcome(err error) string {
	if appErr, ok := apperr.As(err); ok {
		return string(appErr.Kind)
	}
	return "error"
}
