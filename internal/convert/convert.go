// Package convert turns rendered DOCX files into PDF with an external tool.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"docgen-backend/internal/shared/apperr"
	"docgen-backend/internal/shared/metrics"
	"docgen-backend/internal/shared/telemetry"
)

const (
	CodePDFMissing = "pdf_missing"

	maxStderrBytes = 4 << 10
)

// DocumentConverter writes <base>.pdf next to the given DOCX and returns its path.
type DocumentConverter interface {
	Convert(ctx context.Context, docxPath string) (string, error)
	Name() string
}

// Options configures the converter chosen by ForPlatform.
type Options struct {
	SofficeBin  string
	Docx2PDFBin string
	Timeout     time.Duration
}

// ForPlatform picks the converter for goos: docx2pdf on Windows, LibreOffice elsewhere.
func ForPlatform(goos string, opts Options) DocumentConverter {
	if goos == "windows" {
		return NewDocx2PDFConverter(opts.Docx2PDFBin, opts.Timeout)
	}
	return NewSofficeConverter(opts.SofficeBin, opts.Timeout)
}

// PDFPath is the path a converter is expected to produce for docxPath.
func PDFPath(docxPath string) string {
	return strings.TrimSuffix(docxPath, filepath.Ext(docxPath)) + ".pdf"
}

// commandRunner runs one conversion command and returns its combined output.
type commandRunner func(ctx context.Context, bin string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// tool holds what both converters share: the binary, a timeout and the
// failure message shown to clients.
type tool struct {
	name    string
	bin     string
	timeout time.Duration
	failure string
	run     commandRunner
}

func (t tool) convert(ctx context.Context, docxPath string, args []string) (string, error) {
	started := time.Now()
	defer func() { metrics.ObserveStage("convert", time.Since(started)) }()

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	output, err := t.run(ctx, t.bin, args...)
	if err != nil {
		details := map[string]any{
			"converter": t.name,
			"error":     err.Error(),
		}
		if out := trimOutput(output); out != "" {
			details["output"] = out
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			details["timeout"] = t.timeout.String()
		}
		telemetry.Error("convert.failed", map[string]any{
			"converter": t.name,
			"docx":      filepath.Base(docxPath),
			"error":     err,
			"output":    details["output"],
		})
		return "", apperr.Conversion("", t.failure, details, err)
	}

	pdfPath := PDFPath(docxPath)
	info, err := os.Stat(pdfPath)
	if err != nil || !info.Mode().IsRegular() {
		telemetry.Error("convert.pdf_missing", map[string]any{
			"converter": t.name,
			"docx":      filepath.Base(docxPath),
		})
		return "", apperr.Conversion(CodePDFMissing, "PDF generation produced no file", nil, err)
	}

	telemetry.Info("convert.complete", map[string]any{
		"converter":   t.name,
		"pdf":         filepath.Base(pdfPath),
		"duration_ms": time.Since(started).Milliseconds(),
	})
	return pdfPath, nil
}

func trimOutput(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > maxStderrBytes {
		s = s[len(s)-maxStderrBytes:]
	}
	return s
}

// SofficeConverter drives LibreOffice in headless mode.
type SofficeConverter struct {
	tool
	profileRoot string
}

// NewSofficeConverter returns a converter that runs bin, "soffice" when empty.
func NewSofficeConverter(bin string, timeout time.Duration) *SofficeConverter {
	if strings.TrimSpace(bin) == "" {
		bin = "soffice"
	}
	return &SofficeConverter{tool: tool{
		name:    "soffice",
		bin:     bin,
		timeout: timeout,
		failure: "PDF conversion failed (Ensure LibreOffice is installed in container)",
		run:     runCommand,
	}}
}

func (c *SofficeConverter) Name() string { return c.name }

// Convert runs soffice with a throwaway user profile. LibreOffice locks its
// profile, so parallel conversions sharing one would fail.
func (c *SofficeConverter) Convert(ctx context.Context, docxPath string) (string, error) {
	profile, err := os.MkdirTemp(c.profileRoot, "soffice-profile-")
	if err != nil {
		return "", apperr.Conversion("", c.failure, nil, fmt.Errorf("create profile dir: %w", err))
	}
	defer os.RemoveAll(profile)

	args := []string{
		"--headless",
		"-env:UserInstallation=" + fileURL(profile),
		"--convert-to", "pdf",
		"--outdir", filepath.Dir(docxPath),
		docxPath,
	}
	return c.convert(ctx, docxPath, args)
}

func fileURL(path string) string {
	path = filepath.ToSlash(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "file://" + path
}

// Docx2PDFConverter calls the docx2pdf command line tool, which drives Word on Windows.
type Docx2PDFConverter struct {
	tool
}

// NewDocx2PDFConverter returns a converter that runs bin, "docx2pdf" when empty.
func NewDocx2PDFConverter(bin string, timeout time.Duration) *Docx2PDFConverter {
	if strings.TrimSpace(bin) == "" {
		bin = "docx2pdf"
	}
	return &Docx2PDFConverter{tool: tool{
		name:    "docx2pdf",
		bin:     bin,
		timeout: timeout,
		failure: "PDF conversion failed (Ensure docx2pdf and Microsoft Word are installed)",
		run:     runCommand,
	}}
}

func (c *Docx2PDFConverter) Name() string { return c.name }

func (c *Docx2PDFConverter) Convert(ctx context.Context, docxPath string) (string, error) {
	return c.convert(ctx, docxPath, []string{docxPath, PDFPath(docxPath)})
}
