package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/jobboard/backend/pkg/utils"
)

// RateLimit throttles anonymous callers per IP. storage may be nil, in which
// case counters live in process memory.
func RateLimit(max int, window time.Duration, storage fiber.Storage) fiber.Handler {
	fallback := strconv.Itoa(int(window.Seconds()))
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "ratelimit:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			// Retry-After holds the seconds left in the current window.
			wait := c.GetRespHeader(fiber.HeaderRetryAfter)
			if wait == "" {
				wait = fallback
			}
			return utils.Error(c, fiber.StatusTooManyRequests,
				fmt.Sprintf("Request was throttled. Expected available in %s seconds.", wait))
		},
		Storage: storage,
	})
}
