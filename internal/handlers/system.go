package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/whisper-subtitles/internal/logger"
	"github.com/codebuildervaibhav/whisper-subtitles/internal/pipeline"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

const requestIDKey = "request_id"

// RequestID assigns X-Request-Id to every request, keeping a caller-supplied
// value.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(fiber.HeaderXRequestID, id)
		c.Locals(requestIDKey, id)
		return c.Next()
	}
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// CacheSizer reports how many translation models are loaded.
type CacheSizer interface {
	Len() int
}

// Health returns the GET /health handler.
func Health(service *pipeline.Service, translators CacheSizer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cached := 0
		if translators != nil {
			cached = translators.Len()
		}
		return c.JSON(fiber.Map{
			"status":             "healthy",
			"version":            Version,
			"whisper_available":  service.Available(),
			"translators_cached": cached,
		})
	}
}

// Logs returns the GET /logs handler.
func Logs(buf *logger.LogBuffer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": buf.Lines(),
		})
	}
}
