package http

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"sonar/internal/config"
	"sonar/internal/model"
	"sonar/internal/store"
)

// authMiddleware validates the X-API-Key header (or Authorization:
// Bearer <key>) and attaches the resolved key to the context as
// "apiKey". Each authenticated request consumes one quota unit.
func authMiddleware(cfg *config.Config, backend Backend) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !cfg.Auth.Enabled {
			return c.Next()
		}

		raw := c.Get("X-API-Key")
		if raw == "" {
			if auth := c.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				raw = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}
		}
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Success: false,
				Code:    "UNAUTHENTICATED",
				Error:   "Missing API key; pass X-API-Key or Authorization: Bearer",
			})
		}
		if !strings.HasPrefix(raw, "sonar_") {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Success: false,
				Code:    "UNAUTHENTICATED",
				Error:   "Invalid API key format",
			})
		}

		apiKey, err := backend.GetAPIKeyByRawKey(c.Context(), raw)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
					Success: false,
					Code:    "UNAUTHENTICATED",
					Error:   "Invalid or revoked API key",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
				Success: false,
				Code:    "INTERNAL_ERROR",
				Error:   fmt.Sprintf("API key lookup failed: %v", err),
			})
		}

		if !apiKey.IsActive {
			return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
				Success: false,
				Code:    "KEY_INACTIVE",
				Error:   "API key is inactive",
			})
		}
		if apiKey.ExpiresAt != nil && apiKey.ExpiresAt.Before(time.Now().UTC()) {
			return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
				Success: false,
				Code:    "KEY_EXPIRED",
				Error:   "API key has expired",
			})
		}
		if apiKey.QuotaTotal > 0 && apiKey.QuotaUsed >= apiKey.QuotaTotal {
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
				Success: false,
				Code:    "QUOTA_EXCEEDED",
				Error:   "API key quota exhausted",
			})
		}

		// Bookkeeping is best-effort; the request proceeds either way.
		_ = backend.TouchAPIKey(c.Context(), apiKey.ID)
		_ = backend.IncrementAPIKeyQuota(c.Context(), apiKey.ID, 1)

		c.Locals("apiKey", apiKey)
		return c.Next()
	}
}

// rateLimitMiddleware enforces a per-minute fixed-window rate limit
// per API key using Redis.
func rateLimitMiddleware(cfg *config.Config, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey, ok := c.Locals("apiKey").(*model.APIKey)
		if !ok {
			// Auth disabled; nothing to key the window on.
			return c.Next()
		}

		limit := apiKey.RateLimitPerMinute
		if limit <= 0 {
			limit = cfg.RateLimit.DefaultPerMinute
		}
		if limit <= 0 {
			return c.Next()
		}

		now := time.Now().UTC()
		window := now.Format("200601021504") // YYYYMMDDHHMM minute window
		key := fmt.Sprintf("sonar:rl:%s:%s", apiKey.ID, window)

		ctx := c.Context()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
				Success: false,
				Code:    "INTERNAL_ERROR",
				Error:   fmt.Sprintf("rate limit increment failed: %v", err),
			})
		}
		if count == 1 {
			// First hit in this window; set TTL
			_ = rdb.Expire(ctx, key, time.Minute)
		}

		if count > int64(limit) {
			retryAfter := 60 - now.Second()
			c.Set("Retry-After", strconv.Itoa(retryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
				Success: false,
				Code:    "RATE_LIMIT_EXCEEDED",
				Error:   "Rate limit exceeded, try again later",
			})
		}

		return c.Next()
	}
}

// authedKeyID returns the authenticated key's id, empty when auth is
// disabled.
func authedKeyID(c *fiber.Ctx) string {
	if apiKey, ok := c.Locals("apiKey").(*model.APIKey); ok {
		return apiKey.ID
	}
	return ""
}
