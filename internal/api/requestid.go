package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	localsRequestID = "request_id"
)

// NewRequestIDMiddleware tags every request with an ID for log correlation.
// An inbound X-Request-ID header is kept so client and server logs line up;
// otherwise a fresh UUID is issued. The ID is echoed in the response header.
func NewRequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals(localsRequestID, reqID)
		c.Set(requestIDHeader, reqID)
		return c.Next()
	}
}

// RequestID returns the request's correlation ID, or "" outside the
// middleware.
func RequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(localsRequestID).(string); ok {
		return id
	}
	return ""
}
