package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/whisper-subtitles/internal/config"
	"github.com/codebuildervaibhav/whisper-subtitles/internal/transcription"
)

const checkTimeout = 30 * time.Second

type dependencyCheck struct {
	name     string
	required bool
	detail   string
	err      error
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify ffmpeg, Whisper and translation dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			checkCtx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			defer cancel()

			checks := runChecks(checkCtx, cfg)
			rows := make([][]string, 0, len(checks))
			var missing []string
			for _, c := range checks {
				status := "ok"
				if c.err != nil {
					status = "missing"
					if c.required {
						missing = append(missing, c.name)
					}
				}
				required := "no"
				if c.required {
					required = "yes"
				}
				rows = append(rows, []string{c.name, status, required, c.detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Dependency", "Status", "Required", "Detail"}, rows))

			for _, c := range checks {
				if c.err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", c.name, c.err)
				}
			}
			if len(missing) > 0 {
				return fmt.Errorf("required dependencies missing: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}

func runChecks(ctx context.Context, cfg *config.Config) []dependencyCheck {
	checks := []dependencyCheck{
		{
			name:     "ffmpeg",
			required: true,
			detail:   cfg.FFmpeg.Path,
			err:      transcription.CheckFFmpeg(ctx, cfg.FFmpeg.Path),
		},
		{
			name:     "whisper",
			required: true,
			detail:   fmt.Sprintf("%s (model %s)", cfg.Whisper.Python, cfg.Whisper.Model),
			err:      transcription.CheckPythonModule(ctx, cfg.Whisper.Python, "whisper"),
		},
	}

	switch cfg.Translation.Backend {
	case config.BackendGoogle:
		var err error
		if cfg.Translation.Google.APIKey == "" && cfg.Translation.Google.CredentialsFile == "" {
			err = errors.New("no API key or credentials file configured; falling back to application default credentials")
		}
		checks = append(checks, dependencyCheck{
			name:   "google translate",
			detail: "credentials",
			err:    err,
		})
	default:
		checks = append(checks, dependencyCheck{
			name:   "transformers",
			detail: cfg.Translation.Python,
			err:    transcription.CheckPythonModule(ctx, cfg.Translation.Python, "transformers"),
		})
	}
	return checks
}
