package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agisfl/agisfl-server/internal/api/handlers"
	"github.com/agisfl/agisfl-server/internal/api/middleware"
	v1 "github.com/agisfl/agisfl-server/internal/api/v1"
	"github.com/agisfl/agisfl-server/internal/core/ports"
)

func init() {
	// Set Gin to release mode to disable debug logging
	gin.SetMode(gin.ReleaseMode)
}

type Router struct {
	engine   *gin.Engine
	endpoint string
}

func NewRouter(flHandler *handlers.FederatedLearningHandler, wsHandler *handlers.WebSocketHandler, flEngine ports.Engine, endpoint string) *Router {
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.Logging())

	r := &Router{
		engine:   engine,
		endpoint: endpoint,
	}

	r.registerRoutes(flHandler, wsHandler, flEngine)
	return r
}

func (r *Router) registerRoutes(flHandler *handlers.FederatedLearningHandler, wsHandler *handlers.WebSocketHandler, flEngine ports.Engine) {
	api := r.engine.Group(r.endpoint)
	v1.RegisterRoutes(api, flHandler, wsHandler)

	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.engine.GET("/readyz", func(c *gin.Context) {
		if !flEngine.Status().IsReady {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) AddMiddleware(middleware gin.HandlerFunc) {
	r.engine.Use(middleware)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.ServeHTTP(w, req)
}
