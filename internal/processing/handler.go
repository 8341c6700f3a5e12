package processing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"invoice-backend/internal/invoice"
	"invoice-backend/internal/shared/server/middleware"
	"invoice-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the processing service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches processing routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/process", h.process)
}

type processRequest struct {
	DocumentID string `json:"documentId"`
}

type processResponse struct {
	Success bool                   `json:"success"`
	Data    *invoice.ExtractedData `json:"data"`
}

func (h *Handler) process(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	documentID := strings.TrimSpace(req.DocumentID)
	if documentID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Document ID required", nil)
		return
	}
	c.Set("documentId", documentID)

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	doc, err := h.Svc.Process(ctx, documentID)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	c.Set("statusTransition", "processing->completed")
	respond.OK(c, processResponse{Success: true, Data: doc.ExtractedData})
}
