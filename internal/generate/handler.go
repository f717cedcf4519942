package generate

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docgen-backend/internal/generations"
	"docgen-backend/internal/shared/apperr"
	"docgen-backend/internal/shared/server/middleware"
	"docgen-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches generation routes to the router group.
func (h *Handler) RegisterRoutes(rg gin.IRoutes) {
	rg.POST("/generate", h.generate)
	rg.GET("/templates", h.templates)
	rg.GET("/generations", h.list)
	rg.GET("/generations/:id", h.get)
	rg.GET("/generations/:id/download", h.download)
}

func (h *Handler) generate(c *gin.Context) {
	var req generateRequest
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	aiContext := ""
	if req.AIContext != nil {
		aiContext = *req.AIContext
	}
	c.Set("docType", strings.ToLower(strings.TrimSpace(req.DocType)))

	res, err := h.Svc.Generate(c.Request.Context(), Request{
		DocType:    req.DocType,
		Fields:     req.Fields,
		UseAI:      req.UseGemini,
		AIContext:  aiContext,
		ReturnDocx: req.ReturnDocx,
		RequestID:  middleware.RequestIDFromContext(c),
	})
	c.Set("generationId", res.GenerationID)
	if err != nil {
		respond.FromError(c, err)
		return
	}

	f, err := os.Open(res.Path)
	if err != nil {
		respond.FromError(c, apperr.Unexpected("Generated file is missing", err))
		return
	}
	defer f.Close()

	headers := map[string]string{"X-Generation-Id": res.GenerationID}
	if res.Pages > 0 {
		headers["X-Pdf-Pages"] = strconv.Itoa(res.Pages)
	}
	respond.Attachment(c, res.MediaType, res.Name, res.Size, f, headers)
}

func (h *Handler) templates(c *gin.Context) {
	list, err := h.Svc.ListTemplates()
	if err != nil {
		respond.FromError(c, apperr.Unexpected("Unable to list templates", err))
		return
	}
	respond.OK(c, templatesResponse{Templates: list})
}

func (h *Handler) list(c *gin.Context) {
	filter := generations.ListFilter{DocType: strings.ToLower(strings.TrimSpace(c.Query("doc_type")))}
	var ok bool
	if filter.Limit, ok = queryInt(c, "limit"); !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "limit must be a non-negative integer", nil)
		return
	}
	if filter.Offset, ok = queryInt(c, "offset"); !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "offset must be a non-negative integer", nil)
		return
	}

	items, err := h.Svc.Generations(c.Request.Context(), filter)
	if err != nil {
		h.ledgerError(c, err)
		return
	}

	out := make([]GenerationResponse, 0, len(items))
	for _, g := range items {
		out = append(out, toResponse(g))
	}
	filter = filter.Normalized()
	respond.OK(c, generationsResponse{Generations: out, Limit: filter.Limit, Offset: filter.Offset})
}

func (h *Handler) get(c *gin.Context) {
	g, err := h.Svc.Generation(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.ledgerError(c, err)
		return
	}
	respond.OK(c, toResponse(g))
}

func (h *Handler) download(c *gin.Context) {
	g, err := h.Svc.Generation(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.ledgerError(c, err)
		return
	}
	c.Set("docType", g.DocType)
	c.Set("generationId", g.ID)

	artifact, err := h.Svc.OpenArtifact(c.Request.Context(), g, strings.ToLower(strings.TrimSpace(c.Query("format"))))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	defer artifact.Body.Close()

	respond.Attachment(c, artifact.MediaType, artifact.Name, artifact.Size, artifact.Body,
		map[string]string{"X-Generation-Id": g.ID})
}

func (h *Handler) ledgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, generations.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "generation not found", nil)
	case errors.Is(err, ErrLedgerDisabled):
		respond.Error(c, http.StatusServiceUnavailable, "ledger_disabled", "generation ledger is disabled", nil)
	default:
		respond.FromError(c, apperr.Unexpected("Unable to read generation ledger", err))
	}
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
