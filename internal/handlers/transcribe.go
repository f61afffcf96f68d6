package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/whisper-subtitles/internal/apperr"
	"github.com/codebuildervaibhav/whisper-subtitles/internal/pipeline"
)

// TranscribeHandler handles POST /transcribe-ui
type TranscribeHandler struct {
	service   *pipeline.Service
	maxSizeMB int
	log       logrus.FieldLogger
}

// NewTranscribeHandler creates a new transcribe handler
func NewTranscribeHandler(service *pipeline.Service, maxSizeMB int, log logrus.FieldLogger) *TranscribeHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TranscribeHandler{
		service:   service,
		maxSizeMB: maxSizeMB,
		log:       log,
	}
}

// Handle transcribes the uploaded file and returns SRT, VTT or JSON.
func (h *TranscribeHandler) Handle(c *fiber.Ctx) error {
	if !h.service.Available() {
		return writeError(c, apperr.E(apperr.CodeUnavailable, "TranscribeHandler", "Whisper is not installed.", nil))
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file uploaded",
			"code":  "ERR_NO_FILE",
		})
	}

	maxSize := int64(h.maxSizeMB) * 1024 * 1024
	if h.maxSizeMB > 0 && file.Size > maxSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB),
			"code":  "ERR_FILE_TOO_LARGE",
		})
	}

	upload, err := file.Open()
	if err != nil {
		return writeError(c, apperr.Internal("TranscribeHandler", err))
	}
	defer upload.Close()

	result, err := h.service.Process(c.UserContext(), pipeline.Request{
		ID:     requestID(c),
		Audio:  upload,
		Format: c.FormValue("format", "srt"),
		Lang:   c.FormValue("lang", "en"),
	})
	if err != nil {
		return writeError(c, err)
	}

	c.Set(fiber.HeaderContentType, result.ContentType)
	return c.Send(result.Body)
}

// writeError renders {"error": message} with the status mapped from err.
func writeError(c *fiber.Ctx, err error) error {
	return c.Status(apperr.HTTPStatus(err)).JSON(fiber.Map{"error": errorMessage(err)})
}

// errorMessage prefers the safe message of a bare apperr.Error and otherwise
// carries the full error text.
func errorMessage(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Message != "" && ae.Err == nil {
		return ae.Message
	}
	return err.Error()
}
