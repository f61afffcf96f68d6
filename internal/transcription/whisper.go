package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/codebuildervaibhav/whisper-subtitles/internal/types"
)

// OutputDirPrefix names the per-call output directories under WorkDir.
const OutputDirPrefix = "whisper_"

// Options configures the Whisper subprocess.
type Options struct {
	Python        string
	Model         string
	Device        string
	FP16          bool
	MaxConcurrent int
	// WorkDir holds the per-call output directories.
	WorkDir string
}

// WhisperTranscriber wraps Python's OpenAI Whisper for transcription
type WhisperTranscriber struct {
	opts      Options
	sem       *semaphore.Weighted
	available atomic.Bool
	log       logrus.FieldLogger
}

// NewWhisperTranscriber creates a new transcriber using Python Whisper.
// It reports unavailable until Probe succeeds.
func NewWhisperTranscriber(opts Options, log logrus.FieldLogger) *WhisperTranscriber {
	if opts.Python == "" {
		opts.Python = "python"
	}
	if opts.Model == "" {
		opts.Model = "base"
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &WhisperTranscriber{
		opts: opts,
		sem:  semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		log:  log.WithField("component", "whisper"),
	}
}

// Probe checks that the whisper module imports and records the outcome.
func (wt *WhisperTranscriber) Probe(ctx context.Context) error {
	err := CheckPythonModule(ctx, wt.opts.Python, "whisper")
	wt.available.Store(err == nil)
	if err != nil {
		wt.log.WithError(err).Warn("whisper is not available, transcription requests will be rejected")
		return err
	}
	wt.log.WithFields(logrus.Fields{
		"model":          wt.opts.Model,
		"device":         wt.opts.Device,
		"max_concurrent": wt.opts.MaxConcurrent,
	}).Info("whisper available")
	return nil
}

// Available reports whether the last Probe succeeded.
func (wt *WhisperTranscriber) Available() bool {
	return wt.available.Load()
}

// Transcribe runs Whisper on audioPath with language detection and returns
// the detected language with the ordered segments.
func (wt *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) (*types.TranscriptionResult, error) {
	if err := wt.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for whisper slot: %w", err)
	}
	defer wt.sem.Release(1)

	absAudioPath, err := filepath.Abs(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	if err := os.MkdirAll(wt.opts.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create whisper work dir: %w", err)
	}
	outDir, err := os.MkdirTemp(wt.opts.WorkDir, OutputDirPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	wt.log.WithField("audio", absAudioPath).Debug("transcribing")

	cmd := exec.CommandContext(ctx, wt.opts.Python, wt.args(absAudioPath, outDir)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("whisper transcription aborted: %w", ctxErr)
		}
		return nil, fmt.Errorf("whisper transcription failed: %v: %s", err, strings.TrimSpace(string(output)))
	}

	baseName := strings.TrimSuffix(filepath.Base(absAudioPath), filepath.Ext(absAudioPath))
	jsonData, err := os.ReadFile(filepath.Join(outDir, baseName+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %w", err)
	}

	result, err := ParseWhisperOutput(jsonData)
	if err != nil {
		return nil, err
	}

	wt.log.WithFields(logrus.Fields{
		"segments": len(result.Segments),
		"duration": result.Duration,
		"language": result.Language,
	}).Info("transcription completed")
	return result, nil
}

func (wt *WhisperTranscriber) args(audioPath, outDir string) []string {
	fp16 := "False"
	if wt.opts.FP16 {
		fp16 = "True"
	}
	args := []string{"-m", "whisper",
		audioPath,
		"--model", wt.opts.Model,
		"--output_dir", outDir,
		"--output_format", "json",
		"--fp16", fp16,
		"--verbose", "False",
	}
	if wt.opts.Device != "" {
		args = append(args, "--device", wt.opts.Device)
	}
	return args
}

// ParseWhisperOutput converts Whisper's JSON writer output. Segment text is
// kept verbatim; renderers trim it.
func ParseWhisperOutput(data []byte) (*types.TranscriptionResult, error) {
	var whisperOutput WhisperOutput
	if err := json.Unmarshal(data, &whisperOutput); err != nil {
		return nil, fmt.Errorf("failed to parse whisper JSON: %w", err)
	}

	segments := make([]types.Segment, len(whisperOutput.Segments))
	for i, seg := range whisperOutput.Segments {
		segments[i] = types.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		}
	}

	var duration float64
	if len(segments) > 0 {
		duration = segments[len(segments)-1].End
	}

	language := strings.TrimSpace(whisperOutput.Language)
	if language == "" {
		language = types.DefaultLanguage
	}

	return &types.TranscriptionResult{
		Text:     whisperOutput.Text,
		Language: language,
		Duration: duration,
		Segments: segments,
	}, nil
}

// WhisperOutput matches Python Whisper's JSON output format
type WhisperOutput struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []WhisperSegment `json:"segments"`
}

// WhisperSegment represents a timestamped segment from Whisper
type WhisperSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
