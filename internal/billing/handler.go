package billing

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"invoice-backend/internal/shared/server/middleware"
	"invoice-backend/internal/shared/server/respond"
)

const maxWebhookBytes = 1 << 20

// Handler wires billing endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches billing routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/stripe/webhook", h.webhook)
	rg.GET("/me", h.me)
}

func (h *Handler) webhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read webhook body", nil)
		return
	}
	if c.GetHeader("Stripe-Signature") == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "No signature", nil)
		return
	}

	if _, err := h.Svc.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		respond.Fail(c, err)
		return
	}
	respond.OK(c, gin.H{"received": true})
}

func (h *Handler) me(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}

	plan, err := h.Svc.PlanFor(c.Request.Context(), userID)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	response := gin.H{
		"userId":  userID,
		"plan":    plan,
		"isGuest": middleware.IsGuest(c),
	}
	if email := middleware.UserEmailFromContext(c); email != "" {
		response["email"] = email
	}
	if name := middleware.UserNameFromContext(c); name != "" {
		response["name"] = name
	}
	respond.JSON(c, http.StatusOK, response)
}
