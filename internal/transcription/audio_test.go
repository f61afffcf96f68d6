package transcription

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckFFmpeg(t *testing.T) {
	good := writeStub(t, "ffmpeg", "#!/bin/sh\necho 'ffmpeg version 6.1'\nexit 0\n")
	if err := CheckFFmpeg(context.Background(), good); err != nil {
		t.Fatalf("expected functional ffmpeg, got %v", err)
	}

	broken := writeStub(t, "ffmpeg", "#!/bin/sh\necho 'libavcodec missing' >&2\nexit 127\n")
	err := CheckFFmpeg(context.Background(), broken)
	if err == nil || !strings.Contains(err.Error(), "not functional") {
		t.Fatalf("expected not functional error, got %v", err)
	}

	if err := CheckFFmpeg(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing binary")
	}
	if err := CheckFFmpeg(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestPrependFFmpegDir(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")

	PrependFFmpegDir("ffmpeg")
	if got := os.Getenv("PATH"); got != "/usr/bin" {
		t.Fatalf("bare command should not touch PATH, got %q", got)
	}

	dir := filepath.Join(t.TempDir(), "bin")
	PrependFFmpegDir(filepath.Join(dir, "ffmpeg"))
	PrependFFmpegDir(filepath.Join(dir, "ffmpeg"))
	want := dir + string(os.PathListSeparator) + "/usr/bin"
	if got := os.Getenv("PATH"); got != want {
		t.Fatalf("PATH = %q, want %q", got, want)
	}
}
