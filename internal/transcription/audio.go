package transcription

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CheckFFmpeg runs `<path> -version` and fails when the binary is missing or
// not functional.
func CheckFFmpeg(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("ffmpeg path is not configured")
	}
	output, err := exec.CommandContext(ctx, path, "-version").CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg executable %q is not functional: %v: %s", path, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// CheckPythonModule verifies that `python -c "import <module>"` succeeds.
func CheckPythonModule(ctx context.Context, python, module string) error {
	output, err := exec.CommandContext(ctx, python, "-c", "import "+module).CombinedOutput()
	if err != nil {
		return fmt.Errorf("python module %q is not importable with %q: %v: %s", module, python, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// PrependFFmpegDir puts the directory of an explicitly configured ffmpeg
// binary in front of PATH so Whisper's own ffmpeg calls resolve to it.
// Bare command names are left to the existing PATH.
func PrependFFmpegDir(ffmpegPath string) {
	dir := filepath.Dir(ffmpegPath)
	if dir == "." || dir == "" {
		return
	}
	current := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(current) {
		if entry == dir {
			return
		}
	}
	os.Setenv("PATH", dir+string(os.PathListSeparator)+current)
}
