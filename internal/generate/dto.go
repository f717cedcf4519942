package generate

import (
	"time"

	"docgen-backend/internal/generations"
	"docgen-backend/internal/templates"
)

// generateRequest is the POST /generate body.
type generateRequest struct {
	DocType    string         `json:"doc_type"`
	Fields     map[string]any `json:"fields"`
	UseGemini  bool           `json:"use_gemini"`
	AIContext  *string        `json:"ai_context"`
	ReturnDocx bool           `json:"return_docx"`
}

type templatesResponse struct {
	Templates []templates.Info `json:"templates"`
}

// GenerationResponse is the outward-facing view of a ledger entry.
type GenerationResponse struct {
	ID        string     `json:"id"`
	RequestID string     `json:"request_id,omitempty"`
	DocType   string     `json:"doc_type"`
	Mode      string     `json:"mode"`
	Format    string     `json:"format"`
	DocxName  string     `json:"docx_name"`
	PDFName   string     `json:"pdf_name,omitempty"`
	PDFPages  int        `json:"pdf_pages,omitempty"`
	SizeBytes int64      `json:"size_bytes"`
	Archived  bool       `json:"archived"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type generationsResponse struct {
	Generations []GenerationResponse `json:"generations"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

func toResponse(g generations.Generation) GenerationResponse {
	return GenerationResponse{
		ID:        g.ID,
		RequestID: g.RequestID,
		DocType:   g.DocType,
		Mode:      g.Mode,
		Format:    g.Format,
		DocxName:  g.DocxName,
		PDFName:   g.PDFName,
		PDFPages:  g.PDFPages,
		SizeBytes: g.SizeBytes,
		Archived:  g.ArchiveKey != "",
		CreatedAt: g.CreatedAt,
		DeletedAt: g.DeletedAt,
	}
}
