package handler

import (
	"tollway/internal/adapter/http/middleware"
	redisStore "tollway/internal/adapter/storage/redis"
	"tollway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ScopeHistoryRead is the token scope required by the history API.
const ScopeHistoryRead = "history:read"

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Queue          ports.EventQueue
	HistorySvc     ports.HistoryService
	SigSvc         ports.SignatureService
	NonceStore     ports.NonceStore
	TokenSvc       ports.TokenService
	StationSecrets map[string]string
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	IngestPerMin   int64
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(64 << 10)) // toll events are small

	// Health check (deep: PostgreSQL and the event stream)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules(deps.IngestPerMin)

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rules[group], deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- HMAC-authenticated routes (toll stations) ---
	stationAuth := middleware.StationAuth(deps.StationSecrets, deps.SigSvc, deps.NonceStore, deps.Logger)
	eventHandler := NewTollEventHandler(deps.Queue, deps.Logger)
	v1.POST("/toll-events", rl("ingest"), stationAuth, eventHandler.Ingest)

	// --- JWT-authenticated routes (operators) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	historyHandler := NewHistoryHandler(deps.HistorySvc)
	vehicles := v1.Group("/vehicles/:plate", jwtAuth, middleware.RequireScope(ScopeHistoryRead))
	{
		vehicles.GET("/transactions", rl("history"), historyHandler.ListTransactions)
		vehicles.GET("/invoices", rl("history"), historyHandler.ListInvoices)
	}

	return r
}
