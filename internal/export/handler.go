package export

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"invoice-backend/internal/documents"
	"invoice-backend/internal/shared/server/respond"
	"invoice-backend/internal/shared/telemetry"
)

// Handler serves downloads of extracted invoice data.
type Handler struct {
	Docs *documents.Service
}

// NewHandler constructs a Handler.
func NewHandler(docs *documents.Service) *Handler {
	return &Handler{Docs: docs}
}

// RegisterRoutes attaches export routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents/:id/export", h.export)
}

func (h *Handler) export(c *gin.Context) {
	id := c.Param("id")
	c.Set("documentId", id)

	format, err := ParseFormat(c.Query("format"))
	if err != nil {
		respond.Fail(c, err)
		return
	}

	doc, err := h.Docs.Get(c.Request.Context(), id)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	if doc.Status != documents.StatusCompleted || doc.ExtractedData == nil {
		respond.Error(c, http.StatusConflict, "not_ready", "Document has not been processed yet", gin.H{"status": doc.Status})
		return
	}

	artifact, err := Render(*doc.ExtractedData, format, doc.FileName)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	telemetry.Info("document.exported", map[string]any{
		"document_id": doc.ID,
		"format":      string(format),
		"bytes":       len(artifact.Body),
	})
	respond.NoStore(c)
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": artifact.FileName}))
	c.Data(http.StatusOK, artifact.ContentType, artifact.Body)
}
