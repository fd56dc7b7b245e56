package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qhosting/provisioning-service/internal/config"
)

// RateLimiter is a simple in-memory sliding-window limiter
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow reports whether the caller identified by key may proceed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.window)

	var valid []time.Time
	for _, t := range rl.requests[key] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

// RateLimitMiddleware applies a limiter keyed by user id, falling back to IP
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString("userID")
		if key == "" {
			key = c.ClientIP()
		}

		if !rl.Allow(key) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, please try again later",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// QueueStats exposes queue depth for the health endpoint
type QueueStats interface {
	PendingSize(ctx context.Context) (int64, error)
	DeadLetterSize(ctx context.Context) (int64, error)
}

type Server struct {
	router  *gin.Engine
	handler *Handler
	cfg     *config.Config
	stats   QueueStats
}

// Per-user API rate limit: 60 requests per minute
var userRateLimiter = NewRateLimiter(60, time.Minute)

// Order rate limit: 10 provisioning orders per user per hour
var orderRateLimiter = NewRateLimiter(10, time.Hour)

func NewServer(cfg *config.Config, handler *Handler, stats QueueStats) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:  router,
		handler: handler,
		cfg:     cfg,
		stats:   stats,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		resp := gin.H{
			"status":  "ok",
			"service": "provisioning-service",
		}
		if pending, err := s.stats.PendingSize(c.Request.Context()); err == nil {
			resp["queue_pending"] = pending
		}
		if dead, err := s.stats.DeadLetterSize(c.Request.Context()); err == nil {
			resp["queue_dead"] = dead
		}
		c.JSON(http.StatusOK, resp)
	})

	// Internal API - called by the dashboard backend and billing
	internal := s.router.Group("/api/internal")
	internal.Use(InternalAuthMiddleware(s.cfg.InternalSecret))
	{
		internal.POST("/services/provision", RateLimitMiddleware(orderRateLimiter), s.handler.Provision)
		internal.POST("/services/:id/suspend", s.handler.SuspendService)
		internal.GET("/services/:id/logs", s.handler.GetServiceLogs)

		// Catalog administration
		internal.POST("/plans", s.handler.SavePlan)
		internal.DELETE("/plans/:id", s.handler.DeletePlan)
	}

	// User API - requires JWT authentication
	user := s.router.Group("/api/v1")
	user.Use(JWTAuthMiddleware(s.cfg.JWT.SecretKey))
	user.Use(RateLimitMiddleware(userRateLimiter))
	{
		user.GET("/services", s.handler.ListServices)
		user.GET("/services/:id", s.handler.GetService)
		user.POST("/services/:id/sso", s.handler.ServiceSSO)

		user.GET("/plans", s.handler.ListPlans)
		user.GET("/nodes", s.handler.ListNodes)
	}

	// Public API - no authentication
	public := s.router.Group("/api/v1/public")
	{
		public.GET("/plans", s.handler.ListPlans)
	}
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
