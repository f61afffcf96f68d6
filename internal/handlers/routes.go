package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/whisper-subtitles/internal/logger"
	"github.com/codebuildervaibhav/whisper-subtitles/internal/pipeline"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Service     *pipeline.Service
	Translators CacheSizer
	Logs        *logger.LogBuffer
	MaxSizeMB   int
	StaticDir   string
	Log         logrus.FieldLogger
}

// Register mounts every route on app.
func Register(app *fiber.App, d Deps) {
	transcribe := NewTranscribeHandler(d.Service, d.MaxSizeMB, d.Log)
	stream := NewStreamHandler(d.Service, d.MaxSizeMB, d.Log)

	app.Get("/health", Health(d.Service, d.Translators))
	if d.Logs != nil {
		app.Get("/logs", Logs(d.Logs))
	}

	app.Post("/transcribe-ui", transcribe.Handle)

	app.Use("/ws", stream.Upgrade)
	app.Get("/ws/transcribe", websocket.New(stream.Handle))

	if d.StaticDir != "" {
		app.Static("/static", d.StaticDir, fiber.Static{Index: "index.html"})
	}
}
