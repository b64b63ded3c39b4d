package middleware

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	redisStore "tollway/internal/adapter/storage/redis"
	"tollway/pkg/apperror"
	"tollway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules returns the rate limits per endpoint group.
// ingestPerMinute <= 0 keeps the built-in ingest limit.
func DefaultRateLimitRules(ingestPerMinute int64) map[string]RateLimitRule {
	if ingestPerMinute <= 0 {
		ingestPerMinute = 600
	}
	return map[string]RateLimitRule{
		"ingest":  {Limit: ingestPerMinute, Window: time.Minute},
		"history": {Limit: 60, Window: time.Minute},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
func RateLimiter(store *redisStore.RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := extractIdentifier(c)
		key := fmt.Sprintf("%s:%s", identifier, group)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		// Always set rate limit headers
		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier determines the rate limit key source: station, then
// operator, then client IP.
func extractIdentifier(c *gin.Context) string {
	if sid := c.GetHeader(HeaderStationID); sid != "" {
		return "station:" + strings.ToLower(sid)
	}
	if op, exists := c.Get(CtxOperator); exists {
		return fmt.Sprintf("operator:%v", op)
	}
	return "ip:" + c.ClientIP()
}
