package http

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ETagMiddleware computes an ETag from the response body and returns
// 304 Not Modified if the client already has it. Geometry endpoints get a
// strong ETag because their bytes are immutable for a given request; the
// rest get a weak one.
func ETagMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Process request first
		if err := c.Next(); err != nil {
			return err
		}

		// Only apply to successful GET responses with a body
		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != 200 {
			return nil
		}

		body := c.Response().Body()
		if len(body) == 0 {
			return nil
		}

		h := sha256.Sum256(body)
		etag := `"` + hex.EncodeToString(h[:8]) + `"`
		if !immutablePath(c.Path()) {
			etag = "W/" + etag
		}

		c.Set("ETag", etag)

		// Check If-None-Match
		ifNoneMatch := c.Get("If-None-Match")
		if ifNoneMatch == etag {
			c.Status(304)
			c.Response().ResetBody()
			return nil
		}

		return nil
	}
}

// immutablePath reports whether the endpoint's bytes can never change for
// a given request: archived frames, isochrones and land barriers.
func immutablePath(path string) bool {
	switch {
	case strings.Contains(path, "/frames/"):
		return true
	case strings.HasPrefix(path, "/v1/isochrones"):
		return true
	case strings.HasPrefix(path, "/v1/land"):
		return true
	}
	return false
}
