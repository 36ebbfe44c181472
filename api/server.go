// Package api serves curve fitting over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banachtech/oascurve/config"
	"github.com/banachtech/oascurve/metrics"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves HTTP requests for the curve fitting service.
type Server struct {
	analyzer Analyzer
	router   *gin.Engine
	logger   *slog.Logger
	cfg      config.Config
	cache    *cache.Cache

	mu       sync.Mutex
	limiters *cache.Cache
}

// NewServer creates a new HTTP server and set up routing.
func NewServer(analyzer Analyzer, cfg config.Config, logger *slog.Logger) *Server {
	server := &Server{
		analyzer: analyzer,
		logger:   logger,
		cfg:      cfg,
		limiters: cache.New(limiterIdle(cfg.Rate), limiterIdle(cfg.Rate)),
	}
	if cfg.Cache.Enabled {
		server.cache = cache.New(cfg.Cache.TTL, cfg.Cache.Cleanup)
	}

	server.setupRouter()
	return server
}

func (server *Server) setupRouter() {
	router := gin.New()
	router.Use(gin.Recovery(), server.observe)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	if server.cfg.Auth.Enabled {
		v1.Use(server.authentication)
	}
	if server.cfg.Rate.PerSecond > 0 {
		v1.Use(server.rateLimit)
	}
	v1.POST("/fit", server.fit)
	v1.POST("/predict", server.predict)
	v1.POST("/interpolate", server.interpolate)
	v1.POST("/goodness", server.goodness)
	v1.POST("/analyze", server.analyze)
	server.router = router
}

// Handler exposes the router, mainly for tests and embedding.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Start runs the HTTP server on a specific address.
func (server *Server) Start(address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           server.router,
		ReadHeaderTimeout: server.cfg.Server.ReadTimeout,
		ReadTimeout:       server.cfg.Server.ReadTimeout,
	}
	server.logger.Info("http server listening", slog.String("address", address))
	return srv.ListenAndServe()
}

// observe logs and counts every request.
func (server *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	code := c.Writer.Status()
	metrics.ObserveRequest(route, strconv.Itoa(code))
	server.logger.Debug("request",
		slog.String("method", c.Request.Method),
		slog.String("route", route),
		slog.Int("status", code),
		slog.Duration("elapsed", time.Since(start)),
	)
}

func errorResponse(err error) gin.H {
	return gin.H{"error": err.Error()}
}
