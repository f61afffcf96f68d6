// Package pipeline runs one transcription request end to end: buffer the
// upload, transcribe it, translate when asked, render the result.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/whisper-subtitles/internal/apperr"
	"github.com/codebuildervaibhav/whisper-subtitles/internal/subtitle"
	"github.com/codebuildervaibhav/whisper-subtitles/internal/types"
)

// Transcriber turns an audio file into timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*types.TranscriptionResult, error)
	Available() bool
}

// Translator translates a single piece of text.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Scratch persists an upload for the duration of one request.
type Scratch interface {
	Write(r io.Reader) (path string, release func(), err error)
}

// Request is one transcription request.
type Request struct {
	ID     string
	Audio  io.Reader
	Format string
	Lang   string
}

// Result is a rendered response body.
type Result struct {
	ContentType string
	Body        []byte
	Language    string
	Translated  bool
	Segments    int
}

// JSONResult is the body returned for the json format.
type JSONResult struct {
	Text string `json:"text"`
	SRT  string `json:"srt"`
	VTT  string `json:"vtt"`
}

// Service wires the pipeline stages together.
type Service struct {
	transcriber Transcriber
	translator  Translator
	scratch     Scratch
	timeout     time.Duration
	log         logrus.FieldLogger
}

// NewService creates the orchestrator. A zero timeout means requests run
// until the transcriber and translator return.
func NewService(transcriber Transcriber, translator Translator, scratch Scratch, timeout time.Duration, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		transcriber: transcriber,
		translator:  translator,
		scratch:     scratch,
		timeout:     timeout,
		log:         log,
	}
}

// Available reports whether transcription requests can be served.
func (s *Service) Available() bool {
	return s.transcriber != nil && s.transcriber.Available()
}

// Process runs the request. Errors are *apperr.Error values: CodeUnavailable
// when Whisper is missing, CodeInternal (or CodeTimeout) for anything that
// fails along the way.
func (s *Service) Process(ctx context.Context, req Request) (*Result, error) {
	const op = "pipeline.Process"

	if !s.Available() {
		return nil, apperr.E(apperr.CodeUnavailable, op, "Whisper is not installed.", nil)
	}

	format := types.NormalizeFormat(req.Format)
	target := req.Lang
	if target == "" {
		target = types.DefaultLanguage
	}
	log := s.log.WithFields(logrus.Fields{
		"request_id": req.ID,
		"format":     format,
		"lang":       target,
	})

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	transcript, err := s.transcribe(ctx, req.Audio)
	if err != nil {
		log.WithError(err).Error("transcription failed")
		return nil, apperr.Internal(op, err)
	}

	translated := false
	if target != transcript.Language {
		log.WithFields(logrus.Fields{
			"source":   transcript.Language,
			"segments": len(transcript.Segments),
		}).Info("translating transcript")
		if err := s.translate(ctx, transcript.Segments, transcript.Language, target); err != nil {
			log.WithError(err).Error("translation failed")
			return nil, apperr.Internal(op, err)
		}
		translated = true
	}

	result, err := render(format, transcript)
	if err != nil {
		log.WithError(err).Error("rendering failed")
		return nil, apperr.Internal(op, err)
	}
	result.Language = transcript.Language
	result.Translated = translated
	result.Segments = len(transcript.Segments)

	log.WithFields(logrus.Fields{
		"source":     transcript.Language,
		"segments":   result.Segments,
		"translated": translated,
		"elapsed":    time.Since(start).Round(time.Millisecond).String(),
	}).Info("request completed")
	return result, nil
}

// transcribe buffers the upload in a scratch file that is released on every
// return path.
func (s *Service) transcribe(ctx context.Context, audio io.Reader) (*types.TranscriptionResult, error) {
	path, release, err := s.scratch.Write(audio)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.transcriber.Transcribe(ctx, path)
}

// translate replaces each segment's text in playback order, one call per
// segment.
func (s *Service) translate(ctx context.Context, segments []types.Segment, source, target string) error {
	if s.translator == nil {
		return errors.New("translation is not configured")
	}
	for i := range segments {
		text, err := s.translator.Translate(ctx, segments[i].Text, source, target)
		if err != nil {
			return err
		}
		segments[i].Text = text
	}
	return nil
}

func render(format string, transcript *types.TranscriptionResult) (*Result, error) {
	switch format {
	case types.FormatSRT:
		return &Result{ContentType: types.ContentTypeSRT, Body: []byte(subtitle.RenderSRT(transcript.Segments))}, nil
	case types.FormatVTT:
		return &Result{ContentType: types.ContentTypeVTT, Body: []byte(subtitle.RenderVTT(transcript.Segments))}, nil
	default:
		body, err := json.Marshal(JSONResult{
			Text: transcript.Text,
			SRT:  subtitle.RenderSRT(transcript.Segments),
			VTT:  subtitle.RenderVTT(transcript.Segments),
		})
		if err != nil {
			return nil, err
		}
		return &Result{ContentType: types.ContentTypeJSON, Body: body}, nil
	}
}
