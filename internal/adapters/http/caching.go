package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on GET requests
		if c.Method() != "GET" {
			return err
		}

		// Don't override if already set
		if existing := c.Get("Cache-Control"); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		// Default cache times by endpoint pattern
		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10" // Very short for system checks

		case path == "/metrics":
			ttl = "no-cache" // Metrics are real-time

		case path == "/graphql":
			ttl = "private, max-age=0" // GraphQL varies wildly

		case strings.Contains(path, "/frames/"):
			ttl = "public, max-age=86400" // A frame never changes once archived

		case strings.HasSuffix(path, "/frames"):
			ttl = "public, max-age=30" // Frame lists grow while a run steps

		case strings.HasPrefix(path, "/v1/runs"):
			ttl = "no-cache" // Run records carry live progress

		case strings.HasPrefix(path, "/v1/isochrones"):
			ttl = "public, max-age=86400" // Same request, same geometry

		case strings.HasPrefix(path, "/v1/land"):
			ttl = "public, max-age=604800" // Coastlines do not move

		case strings.HasPrefix(path, "/v1/complexity"):
			ttl = "public, max-age=3600"

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=300" // 5 min default for API endpoints
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}

		return err
	}
}
