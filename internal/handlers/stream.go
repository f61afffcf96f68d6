package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/whisper-subtitles/internal/apperr"
	"github.com/codebuildervaibhav/whisper-subtitles/internal/pipeline"
)

// StreamOptions is the optional JSON text message sent before the audio.
type StreamOptions struct {
	Format string `json:"format"`
	Lang   string `json:"lang"`
}

// StreamHandler accepts one audio file over a WebSocket: an optional options
// message, binary chunks, then END. The reply is a single text message.
type StreamHandler struct {
	service  *pipeline.Service
	maxBytes int
	log      logrus.FieldLogger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(service *pipeline.Service, maxSizeMB int, log logrus.FieldLogger) *StreamHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &StreamHandler{
		service:  service,
		maxBytes: maxSizeMB * 1024 * 1024,
		log:      log,
	}
}

// Upgrade rejects plain HTTP requests on the WebSocket route.
func (h *StreamHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handle processes WebSocket connections
func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	var (
		buffer bytes.Buffer
		opts   = StreamOptions{Format: "srt", Lang: "en"}
		id     = uuid.New().String()
		log    = h.log.WithField("request_id", id)
		ended  bool
	)

	if !h.service.Available() {
		h.replyError(c, apperr.E(apperr.CodeUnavailable, "StreamHandler", "Whisper is not installed.", nil))
		return
	}

	for !ended {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			log.WithError(err).Warn("websocket read error")
			return
		}

		switch messageType {
		case websocket.TextMessage:
			text := strings.TrimSpace(string(message))
			if text == "END" {
				ended = true
				continue
			}
			if err := json.Unmarshal(message, &opts); err != nil {
				h.replyError(c, apperr.E(apperr.CodeInvalidArgument, "StreamHandler", "invalid options message", err))
				return
			}
		case websocket.BinaryMessage:
			if h.maxBytes > 0 && buffer.Len()+len(message) > h.maxBytes {
				h.replyError(c, apperr.E(apperr.CodeInvalidArgument, "StreamHandler", "File too large", nil))
				return
			}
			buffer.Write(message)
		}
	}

	if buffer.Len() == 0 {
		h.replyError(c, apperr.E(apperr.CodeInvalidArgument, "StreamHandler", "No audio data received", nil))
		return
	}

	log.WithField("bytes", buffer.Len()).Info("websocket upload received")

	result, err := h.service.Process(context.Background(), pipeline.Request{
		ID:     id,
		Audio:  &buffer,
		Format: opts.Format,
		Lang:   opts.Lang,
	})
	if err != nil {
		h.replyError(c, err)
		return
	}

	if err := c.WriteMessage(websocket.TextMessage, result.Body); err != nil {
		log.WithError(err).Warn("websocket write error")
	}
}

func (h *StreamHandler) replyError(c *websocket.Conn, err error) {
	if werr := c.WriteJSON(fiber.Map{"error": errorMessage(err)}); werr != nil {
		h.log.WithError(werr).Warn("websocket write error")
	}
}
