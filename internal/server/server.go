// Package server exposes the loan and branch computations over HTTP.
package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/majnioui/calc/internal/assistant"
	"github.com/majnioui/calc/internal/config"
	"github.com/majnioui/calc/internal/jobs"
	"github.com/majnioui/calc/internal/logger"
	"github.com/majnioui/calc/internal/places"
)

const sessionName = "loancalc"

type Server struct {
	cfg     *config.Config
	finder  places.Finder
	jobs    *jobs.Manager
	widget  assistant.WidgetConfig
	limiter *RateLimiter
	logger  logger.Logger
	started time.Time
}

func New(cfg *config.Config, finder places.Finder, jobManager *jobs.Manager, log logger.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		finder: finder,
		jobs:   jobManager,
		widget: assistant.NewWidgetConfig(
			cfg.Assistant.IntegrationID,
			cfg.Assistant.Region,
			cfg.Assistant.ServiceInstanceID,
			cfg.Assistant.ClientVersion,
		),
		logger:  log.WithFields(map[string]interface{}{"component": "http"}),
		started: time.Now(),
	}
	if cfg.Server.RateLimit > 0 {
		s.limiter = NewRateLimiter(cfg.Server.RateLimit, config.GetDuration(cfg.Server.RateWindow))
	}
	return s
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(s.logger), cors(s.cfg.Server.AllowedOrigins))

	store := cookie.NewStore([]byte(s.cfg.Server.SessionSecret))
	store.Options(sessions.Options{Path: "/", MaxAge: 86400, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/health", s.health)
	r.GET("/server-info", s.serverInfo)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/calculate-payment", s.limited(s.calculatePayment)...)
	r.POST("/find-branches", s.limited(s.findBranches)...)

	api := r.Group("/api", s.limited()...)
	{
		api.POST("/calculate-payment", s.calculatePayment)
		api.GET("/loan/schedule", s.loanSchedule)

		api.POST("/find-branches", s.findBranches)
		api.GET("/places/nearby", s.placesNearby)

		api.GET("/assistant/config", s.assistantConfig)
		api.POST("/assistant/message", s.assistantMessage)
		api.GET("/assistant/context", s.assistantContext)

		api.POST("/batch", s.startBatch)
		api.GET("/batch/:id", s.batchStatus)
		api.GET("/batch/:id/download", s.batchDownload)
	}

	if dir := s.cfg.Server.StaticDir; dir != "" {
		r.NoRoute(staticFiles(dir))
	}
	return r
}

// limited prefixes handlers with the rate limiter when one is configured.
func (s *Server) limited(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(handlers)+1)
	if s.limiter != nil {
		out = append(out, RateLimitMiddleware(s.limiter))
	}
	return append(out, handlers...)
}

// Endpoints lists the public routes reported by /health.
func Endpoints() []string {
	return []string{
		"/health",
		"/server-info",
		"/metrics",
		"/calculate-payment",
		"/find-branches",
		"/api/calculate-payment",
		"/api/loan/schedule",
		"/api/find-branches",
		"/api/places/nearby",
		"/api/assistant/config",
		"/api/assistant/message",
		"/api/assistant/context",
		"/api/batch",
	}
}

// staticFiles serves the widget page for GET requests that match no route.
func staticFiles(dir string) gin.HandlerFunc {
	fs := http.FileServer(http.Dir(dir))
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		clean := filepath.Clean("/" + strings.TrimPrefix(c.Request.URL.Path, "/"))
		if info, err := os.Stat(filepath.Join(dir, clean)); err != nil || (info.IsDir() && clean != "/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		// NoRoute starts with a 404 status; reset it before serving.
		c.Status(http.StatusOK)
		fs.ServeHTTP(c.Writer, c.Request)
	}
}
