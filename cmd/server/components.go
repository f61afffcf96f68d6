package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/whisper-subtitles/internal/config"
	"github.com/codebuildervaibhav/whisper-subtitles/internal/pipeline"
	"github.com/codebuildervaibhav/whisper-subtitles/internal/storage"
	"github.com/codebuildervaibhav/whisper-subtitles/internal/transcription"
	"github.com/codebuildervaibhav/whisper-subtitles/internal/translation"
)

const ffmpegCheckTimeout = 10 * time.Second

// components is everything a transcription request needs.
type components struct {
	transcriber *transcription.WhisperTranscriber
	translators *translation.Cache
	service     *pipeline.Service
}

// checkFFmpeg fails when the configured ffmpeg does not run, then makes it
// visible to Whisper through PATH.
func checkFFmpeg(ctx context.Context, cfg *config.Config) error {
	checkCtx, cancel := context.WithTimeout(ctx, ffmpegCheckTimeout)
	defer cancel()
	if err := transcription.CheckFFmpeg(checkCtx, cfg.FFmpeg.Path); err != nil {
		return err
	}
	transcription.PrependFFmpegDir(cfg.FFmpeg.Path)
	return nil
}

func buildComponents(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*components, error) {
	transcriber := transcription.NewWhisperTranscriber(transcription.Options{
		Python:        cfg.Whisper.Python,
		Model:         cfg.Whisper.Model,
		Device:        cfg.Whisper.Device,
		FP16:          cfg.Whisper.FP16,
		MaxConcurrent: cfg.Whisper.MaxConcurrent,
		WorkDir:       cfg.Storage.TempDir,
	}, log)
	if err := transcriber.Probe(ctx); err != nil {
		log.WithError(err).Warn("Whisper is not available; transcription requests will fail with 503")
	}

	loader, err := newLoader(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	translators, err := translation.NewCache(
		loader,
		cfg.Translation.CacheSize,
		time.Duration(cfg.Translation.LoadTimeoutSeconds)*time.Second,
		log,
	)
	if err != nil {
		return nil, err
	}

	scratch := storage.NewScratchStore(cfg.Storage.TempDir, cfg.Storage.ScratchSuffix, log)
	service := pipeline.NewService(
		transcriber,
		translators,
		scratch,
		time.Duration(cfg.Limits.RequestTimeoutSeconds)*time.Second,
		log,
	)

	return &components{
		transcriber: transcriber,
		translators: translators,
		service:     service,
	}, nil
}

func newLoader(ctx context.Context, cfg *config.Config, log *logrus.Logger) (translation.Loader, error) {
	switch cfg.Translation.Backend {
	case config.BackendGoogle:
		loader, err := translation.NewGoogleLoader(ctx, translation.GoogleOptions{
			APIKey:          cfg.Translation.Google.APIKey,
			CredentialsFile: cfg.Translation.Google.CredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("google translation backend: %w", err)
		}
		log.Info("Using Google Cloud Translation backend")
		return loader, nil
	default:
		log.WithField("model_prefix", cfg.Translation.ModelPrefix).Info("Using MarianMT translation backend")
		return &translation.MarianLoader{
			Python:      cfg.Translation.Python,
			ModelPrefix: cfg.Translation.ModelPrefix,
			Log:         log,
		}, nil
	}
}

func (c *components) Close() error {
	return c.translators.Close()
}
