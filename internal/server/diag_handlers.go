package server

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"timestamp":   time.Now().UTC(),
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"environment": s.cfg.App.Environment,
		"port":        s.cfg.Server.Port,
		"endpoints":   Endpoints(),
	})
}

func (s *Server) serverInfo(c *gin.Context) {
	hostname, _ := os.Hostname()
	c.JSON(http.StatusOK, gin.H{
		"go":       runtime.Version(),
		"platform": runtime.GOOS,
		"arch":     runtime.GOARCH,
		"hostname": hostname,
		"port":     s.cfg.Server.Port,
		"env":      s.cfg.App.Environment,
		"places":   s.cfg.Places.Provider,
	})
}
