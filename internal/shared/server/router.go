package server

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"docgen-backend/internal/generate"
	"docgen-backend/internal/services/health"
	"docgen-backend/internal/shared/config"
	"docgen-backend/internal/shared/metrics"
	"docgen-backend/internal/shared/server/middleware"
	"docgen-backend/internal/shared/server/respond"
	"docgen-backend/internal/shared/telemetry"
)

const (
	rateLimitDefault  = "DEFAULT"
	rateLimitGenerate = "GENERATE"
)

// RouterDeps holds the handlers and shared services the router mounts.
type RouterDeps struct {
	Config   config.Config
	Generate *generate.Handler
	Health   *health.Service
	Limiter  middleware.Limiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg.Env == "dev" || cfg.Env == "local" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.BodyLimit(cfg.MaxBodyBytes),
		middleware.RateLimit(rateLimitConfig(cfg, deps.Limiter)),
	)

	r.GET("/healthz", func(c *gin.Context) {
		respond.OK(c, deps.Health.Status())
	})
	r.GET("/metrics", metrics.Handler())

	if deps.Generate != nil {
		deps.Generate.RegisterRoutes(r)
	}
	mountFrontend(r, cfg.FrontendDir)

	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "not_found", "route not found", nil)
	})
	return r
}

// rateLimitConfig gives POST /generate its own bucket at the configured rate
// and leaves everything else at four times that.
func rateLimitConfig(cfg config.Config, limiter middleware.Limiter) middleware.RateLimitConfig {
	rules := map[string]middleware.RateLimitRule{}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst > 0 {
		rules[rateLimitGenerate] = middleware.RateLimitRule{Rate: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst}
		rules[rateLimitDefault] = middleware.RateLimitRule{Rate: cfg.RateLimitRPS * 4, Burst: cfg.RateLimitBurst * 4}
	}
	return middleware.RateLimitConfig{
		Rules:        rules,
		DefaultGroup: rateLimitDefault,
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodPost && c.FullPath() == "/generate" {
				return rateLimitGenerate
			}
			return rateLimitDefault
		},
		Limiter: limiter,
	}
}

func mountFrontend(r *gin.Engine, dir string) {
	if dir == "" {
		return
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		telemetry.Warn("frontend.missing", map[string]any{"dir": dir})
		return
	}
	index := filepath.Join(dir, "index.html")
	r.GET("/", func(c *gin.Context) {
		c.File(index)
	})
	r.Static("/static", dir)
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8000"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
