package middleware

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/clipdeck/api/internal/logging"
	"github.com/clipdeck/api/pkg/response"
)

// RateLimiter is a fixed-window limiter keyed by caller, backed by Redis
type RateLimiter struct {
	redis  *redis.Client
	logger *slog.Logger
}

func NewRateLimiter(redisClient *redis.Client, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = logging.Discard()
	}
	return &RateLimiter{redis: redisClient, logger: logging.WithComponent(logger, "ratelimit")}
}

// Limit allows maxRequests per window for each caller. Anonymous callers are
// keyed by IP. Redis errors let the request through.
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if maxRequests <= 0 {
			return c.Next()
		}

		caller := GetUserID(c)
		if caller == "" {
			caller = "ip:" + c.IP()
		}
		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, caller)
		ctx := c.UserContext()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			rl.logger.Warn("rate limit check failed", "key", key, "error", err)
			return c.Next()
		}
		if count == 1 {
			rl.redis.Expire(ctx, key, window)
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			c.Set("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			c.Set("X-RateLimit-Remaining", "0")
			return response.RateLimited(c)
		}
		c.Set("X-RateLimit-Remaining", strconv.Itoa(maxRequests-int(count)))

		return c.Next()
	}
}

// GenerateLimit limits clip, voice and thumbnail submissions per hour
func (rl *RateLimiter) GenerateLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("generate", maxPerHour, time.Hour)
}

// ScenesLimit limits scene parsing and LLM edits per minute
func (rl *RateLimiter) ScenesLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("scenes", maxPerMin, time.Minute)
}

// UploadLimit limits uploads per hour
func (rl *RateLimiter) UploadLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("upload", maxPerHour, time.Hour)
}
