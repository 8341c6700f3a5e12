package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"invoice-backend/internal/billing"
	"invoice-backend/internal/documents"
	"invoice-backend/internal/export"
	"invoice-backend/internal/processing"
	"invoice-backend/internal/services/health"
	"invoice-backend/internal/shared/auth"
	"invoice-backend/internal/shared/config"
	"invoice-backend/internal/shared/metrics"
	"invoice-backend/internal/shared/server/middleware"
	"invoice-backend/internal/shared/server/respond"
)

// Rate limit groups.
const (
	GroupDefault = "DEFAULT"
	GroupUpload  = "UPLOAD"
	GroupProcess = "PROCESS"
	GroupPolling = "POLLING"
)

// RouterDeps carries the handlers mounted by NewRouter.
type RouterDeps struct {
	Config          config.Config
	Signer          *auth.Signer
	Limiter         *middleware.RateLimiter
	Health          *health.Service
	DocumentHandler *documents.Handler
	ProcessHandler  *processing.Handler
	ExportHandler   *export.Handler
	BillingHandler  *billing.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		metrics.Middleware(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Signer),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        RateLimitRules(deps.Config.RateLimits),
			DefaultGroup: GroupDefault,
			GroupFor:     RateLimitGroup,
			Limiter:      deps.Limiter,
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		status := deps.Health.Status(c.Request.Context())
		code := http.StatusOK
		if ok, _ := status["ok"].(bool); !ok {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, status)
	})

	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(api, middleware.AdminToken(deps.Config.AdminToken))
		deps.DocumentHandler.RegisterBlobRoutes(r)
	}
	if deps.ProcessHandler != nil {
		deps.ProcessHandler.RegisterRoutes(api)
	}
	if deps.ExportHandler != nil {
		deps.ExportHandler.RegisterRoutes(api)
	}
	if deps.BillingHandler != nil {
		deps.BillingHandler.RegisterRoutes(api)
	}

	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "not_found", "route not found", nil)
	})

	return r
}

// RateLimitRules maps configured rates onto limiter groups.
func RateLimitRules(cfg config.RateLimits) map[string]middleware.RateLimitRule {
	return map[string]middleware.RateLimitRule{
		GroupDefault: {Rate: cfg.DefaultRate, Burst: cfg.DefaultBurst},
		GroupUpload:  {Rate: cfg.UploadRate, Burst: cfg.UploadBurst},
		GroupProcess: {Rate: cfg.ProcessRate, Burst: cfg.ProcessBurst},
		GroupPolling: {Rate: cfg.PollingRate, Burst: cfg.PollingBurst},
	}
}

// RateLimitGroup picks the limiter group for a matched route.
func RateLimitGroup(c *gin.Context) string {
	path := c.FullPath()
	switch {
	case path == "/api/v1/upload":
		return GroupUpload
	case path == "/api/v1/process":
		return GroupProcess
	case c.Request.Method == http.MethodGet && (path == "/api/v1/documents" || path == "/api/v1/clear" || strings.HasPrefix(path, "/api/v1/documents/")):
		return GroupPolling
	default:
		return GroupDefault
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
