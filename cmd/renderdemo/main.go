package main

// Render a template locally without the HTTP server:
//   go run ./cmd/renderdemo -template app/templates/offer_letter_template.docx -fields fields.json -pdf

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"docgen-backend/internal/convert"
	"docgen-backend/internal/render"
)

func main() {
	templatePath := flag.String("template", "", "path to a <doc_type>_template.docx file")
	fieldsPath := flag.String("fields", "", "JSON file with the field mapping")
	outDir := flag.String("out", "./out", "output directory")
	toPDF := flag.Bool("pdf", false, "also convert the rendered DOCX to PDF")
	timeout := flag.Duration("timeout", 2*time.Minute, "conversion timeout")
	flag.Parse()

	if *templatePath == "" || *fieldsPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	fields, err := readFields(*fieldsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read fields failed: %v\n", err)
		os.Exit(1)
	}

	renderer, err := render.NewRenderer(*outDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "renderer setup failed: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	out, err := renderer.Render(ctx, *templatePath, docTypeOf(*templatePath), fields)
	if err != nil {
		fmt.Fprintf(os.Stderr, "render failed: %v\n", err)
		os.Exit(1)
	}
	if err := validateRenderedDocx(out.Path); err != nil {
		fmt.Fprintf(os.Stderr, "render validation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK: wrote %s (%d bytes)\n", out.Path, out.Size)

	if !*toPDF {
		return
	}
	converter := convert.ForPlatform(runtime.GOOS, convert.Options{Timeout: *timeout})
	pdfPath, err := converter.Convert(ctx, out.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s conversion failed: %v\n", converter.Name(), err)
		os.Exit(1)
	}
	pages, err := convert.PageCount(pdfPath)
	if err != nil {
		fmt.Printf("OK: wrote %s (page count unavailable: %v)\n", pdfPath, err)
		return
	}
	fmt.Printf("OK: wrote %s (%d pages)\n", pdfPath, pages)
}

func readFields(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fields, nil
}

func docTypeOf(templatePath string) string {
	name := strings.TrimSuffix(filepath.Base(templatePath), ".docx")
	return strings.ToLower(strings.TrimSuffix(name, "_template"))
}

// validateRenderedDocx fails when template markup survived rendering.
func validateRenderedDocx(path string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, file := range zr.File {
		if strings.ReplaceAll(file.Name, "\\", "/") != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return err
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return err
		}
		text := string(content)
		for _, token := range []string{"{{", "{%"} {
			if pos := strings.Index(text, token); pos != -1 {
				return fmt.Errorf("unresolved template tokens near: %s", snippetAround(text, pos, 120))
			}
		}
		return nil
	}
	return fmt.Errorf("document.xml not found in docx")
}

func snippetAround(text string, pos, radius int) string {
	start := max(pos-radius, 0)
	end := min(pos+radius, len(text))
	return text[start:end]
}
