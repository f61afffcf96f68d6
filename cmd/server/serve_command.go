package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/whisper-subtitles/internal/cleanup"
	"github.com/codebuildervaibhav/whisper-subtitles/internal/config"
	"github.com/codebuildervaibhav/whisper-subtitles/internal/handlers"
	"github.com/codebuildervaibhav/whisper-subtitles/internal/logger"
	"github.com/codebuildervaibhav/whisper-subtitles/internal/storage"
	"github.com/codebuildervaibhav/whisper-subtitles/internal/transcription"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, ctx)
		},
	}
}

func runServe(cmd *cobra.Command, cmdCtx *commandContext) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}

	logBuffer := logger.NewLogBuffer(logger.DefaultBufferLines)
	log := logger.New(cfg.Log.Level, logBuffer)

	ctx, stop := shutdownContext(cmd.Context())
	defer stop()

	if err := checkFFmpeg(ctx, cfg); err != nil {
		return fmt.Errorf("startup check failed: %w", err)
	}
	if err := cleanup.EnsureTempDirExists(cfg.Storage.TempDir); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	log.Info("Initializing components...")
	comps, err := buildComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := comps.Close(); err != nil {
			log.WithError(err).Warn("Failed to close translation models")
		}
	}()

	cleanupScheduler := cleanup.NewScheduler(
		cfg.Storage.TempDir,
		time.Duration(cfg.Cleanup.IntervalMinutes)*time.Minute,
		time.Duration(cfg.Cleanup.MaxAgeHours)*time.Hour,
		[]string{storage.ScratchPrefix, transcription.OutputDirPrefix},
		log,
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	app := newApp(cfg, comps, logBuffer, log)

	addr := cfg.Addr()
	log.WithFields(logrus.Fields{
		"addr":              addr,
		"whisper_model":     cfg.Whisper.Model,
		"whisper_available": comps.transcriber.Available(),
		"translation":       cfg.Translation.Backend,
	}).Info("Server starting")
	log.Info("Endpoints: POST /transcribe-ui, GET /ws/transcribe, GET /health, GET /logs")

	return serve(ctx, app, func() error { return app.Listen(addr) }, log)
}

// serve runs listen and, once ctx is canceled, returns only after in-flight
// requests have drained so deferred cleanup never races a running request.
func serve(ctx context.Context, app *fiber.App, listen func() error, log logrus.FieldLogger) error {
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		log.Info("Shutting down gracefully...")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.WithError(err).Warn("Shutdown did not complete cleanly")
		}
	}()

	if err := listen(); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	<-drained
	return nil
}

// newApp builds the fiber application with middleware and routes.
func newApp(cfg *config.Config, comps *components, logBuffer *logger.LogBuffer, log *logrus.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "whisper-subtitles",
		BodyLimit:             (cfg.Limits.MaxFileSizeMB + 1) * 1024 * 1024,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(handlers.RequestID())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${locals:request_id} ${status} - ${latency} ${method} ${path}\n",
		Output: log.WriterLevel(logrus.InfoLevel),
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	handlers.Register(app, handlers.Deps{
		Service:     comps.service,
		Translators: comps.translators,
		Logs:        logBuffer,
		MaxSizeMB:   cfg.Limits.MaxFileSizeMB,
		StaticDir:   cfg.Server.StaticDir,
		Log:         log,
	})
	return app
}

// shutdownContext is canceled on SIGINT or SIGTERM.
func shutdownContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
