package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestScratchStore_WriteAndRelease(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scratch")
	store := NewScratchStore(dir, ".mp3", nil)

	path, release, err := store.Write(strings.NewReader("audio bytes"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("scratch file %s not under %s", path, dir)
	}
	if !strings.HasPrefix(filepath.Base(path), ScratchPrefix) || filepath.Ext(path) != ".mp3" {
		t.Fatalf("unexpected scratch name %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read scratch: %v", err)
	}
	if string(data) != "audio bytes" {
		t.Fatalf("unexpected contents %q", data)
	}

	release()
	release()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected scratch file removed, stat err = %v", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestScratchStore_WriteFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	store := NewScratchStore(dir, ".mp3", nil)

	if _, _, err := store.Write(failingReader{}); err == nil {
		t.Fatalf("expected error")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no leftover files, found %d", len(entries))
	}
}
