package server

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/ratelimit"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/walletbroker/internal/transport/ws"
)

func (s *Server) routes() *gin.Engine {
	if !s.config.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(corsMiddleware(s.config.Server.AllowOrigins))

	wsHandler := ws.NewHandler(s.mux, ws.Config{
		TrustedOrigins: s.config.Broker.TrustedOrigins,
		MaxFrameBytes:  s.config.Broker.MaxFrameBytes,
	}, s.logger)

	// Channel traffic is limited per origin by the registry; the HTTP
	// limiter only guards connection attempts and status routes per IP.
	var httpLimiter *ratelimit.Limiter
	if s.config.RateLimit.Enabled {
		httpLimiter = ratelimit.New(ratelimit.Config{
			RequestsPerSecond: s.config.RateLimit.RequestsPerSecond,
			Burst:             s.config.RateLimit.Burst,
		})
	}
	limited := router.Group("/", ratelimit.Middleware(httpLimiter))

	limited.GET("/ws", wsHandler.HandleConnection)
	router.GET("/health", s.health)
	limited.GET("/stats", s.stats)

	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	limited.GET("/metrics/json", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.metrics.Snapshot(s.broker.Pending()))
	})

	return router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"pending":       s.broker.Pending(),
		"subscriptions": s.broker.Hub().Count(),
	})
}

func (s *Server) stats(c *gin.Context) {
	stats := s.broker.Stats()
	stats["grants"] = s.oracle.Len()
	stats["chains"] = s.rpc.Chains()
	stats["networks"] = s.networks.Len()
	stats["tokens"] = len(s.tokens.List())
	stats["rateLimitedOrigins"] = s.limiter.Len()
	c.JSON(http.StatusOK, stats)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
