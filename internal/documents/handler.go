package documents

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"invoice-backend/internal/shared/server/middleware"
	"invoice-backend/internal/shared/server/respond"
)

// DisplayQuota is the free document allowance shown to dashboard users.
// It is informational and never enforced.
const DisplayQuota int64 = 5

// multipartSlack covers form boundaries and headers around the file part.
const multipartSlack = 1 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
// admin guards the bulk endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, admin gin.HandlerFunc) {
	rg.POST("/upload", h.upload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.get)
	rg.POST("/clear", admin, h.clear)
	rg.GET("/clear", h.quota)
}

// RegisterBlobRoutes serves locally stored blobs under /files.
func (h *Handler) RegisterBlobRoutes(r gin.IRouter) {
	r.GET("/files/*key", h.blob)
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes+multipartSlack)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			respond.Error(c, http.StatusBadRequest, "validation_error", "File too large. Max 10MB.", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "No file provided", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	doc, err := h.Svc.Upload(c.Request.Context(), UploadInput{
		UserID:       middleware.UserIDFromContext(c),
		FileName:     fileHeader.Filename,
		DeclaredType: fileHeader.Header.Get("Content-Type"),
		Size:         fileHeader.Size,
		Body:         file,
	})
	if err != nil {
		respond.Fail(c, err)
		return
	}

	c.Set("documentId", doc.ID)
	respond.JSON(c, http.StatusCreated, uploadResponse{
		Success:    true,
		DocumentID: doc.ID,
		URL:        doc.BlobURL,
	})
}

func (h *Handler) list(c *gin.Context) {
	respond.NoStore(c)

	docs, err := h.Svc.List(c.Request.Context())
	if err != nil {
		respond.Fail(c, err)
		return
	}

	out := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, ToResponse(doc))
	}
	respond.OK(c, listResponse{Documents: out, Count: len(out)})
}

func (h *Handler) get(c *gin.Context) {
	respond.NoStore(c)
	id := c.Param("id")
	c.Set("documentId", id)

	doc, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.OK(c, ToResponse(doc))
}

func (h *Handler) clear(c *gin.Context) {
	deleted, err := h.Svc.DeleteAll(c.Request.Context())
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.OK(c, clearResponse{
		Success: true,
		Message: fmt.Sprintf("Cleared %d documents", deleted),
		Deleted: deleted,
	})
}

func (h *Handler) quota(c *gin.Context) {
	respond.NoStore(c)
	count, err := h.Svc.Count(c.Request.Context())
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.OK(c, quotaResponse{
		Count:     count,
		Limit:     DisplayQuota,
		Remaining: max(0, DisplayQuota-count),
	})
}

func (h *Handler) blob(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	rc, err := h.Svc.OpenBlob(c.Request.Context(), key)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("X-Content-Type-Options", "nosniff")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, rc)
}
