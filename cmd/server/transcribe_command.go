package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/whisper-subtitles/internal/cleanup"
	"github.com/codebuildervaibhav/whisper-subtitles/internal/logger"
	"github.com/codebuildervaibhav/whisper-subtitles/internal/pipeline"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var (
		format string
		lang   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe one local audio file and print the subtitles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			log := logger.New(cfg.Log.Level, nil)
			log.SetOutput(cmd.ErrOrStderr())

			runCtx, stop := shutdownContext(cmd.Context())
			defer stop()

			if err := checkFFmpeg(runCtx, cfg); err != nil {
				return err
			}
			if err := cleanup.EnsureTempDirExists(cfg.Storage.TempDir); err != nil {
				return fmt.Errorf("failed to create temp directory: %w", err)
			}

			audio, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open audio file: %w", err)
			}
			defer audio.Close()

			comps, err := buildComponents(runCtx, cfg, log)
			if err != nil {
				return err
			}
			defer comps.Close()

			result, err := comps.service.Process(runCtx, pipeline.Request{
				ID:     uuid.NewString(),
				Audio:  audio,
				Format: format,
				Lang:   lang,
			})
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(result.Body)
				return err
			}
			if err := os.WriteFile(output, result.Body, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%d segments, language %s)\n", output, result.Segments, result.Language)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "srt", "Output format: srt, vtt or json")
	cmd.Flags().StringVarP(&lang, "lang", "l", "en", "Target language code")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the result to this file instead of stdout")
	return cmd
}
