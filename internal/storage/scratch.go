package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ScratchPrefix marks files created by ScratchStore so the cleanup sweep can
// recognise them.
const ScratchPrefix = "upload_"

// ScratchStore writes request uploads to short-lived files under a temp dir.
type ScratchStore struct {
	dir    string
	suffix string
	log    logrus.FieldLogger
}

// NewScratchStore creates a scratch store rooted at dir. Every file gets the
// given suffix so external decoders recognise the container.
func NewScratchStore(dir, suffix string, log logrus.FieldLogger) *ScratchStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ScratchStore{
		dir:    dir,
		suffix: suffix,
		log:    log,
	}
}

// Write copies r into a new scratch file and returns its path together with
// a release func that removes it. Release is safe to call more than once and
// must be deferred by the caller.
func (s *ScratchStore) Write(r io.Reader) (string, func(), error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s%s%s", ScratchPrefix, uuid.New().String(), s.suffix))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create scratch file: %w", err)
	}

	release := func() { s.remove(path) }

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		release()
		return "", nil, fmt.Errorf("failed to write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		release()
		return "", nil, fmt.Errorf("failed to close scratch file: %w", err)
	}

	return path, release, nil
}

func (s *ScratchStore) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.WithError(err).WithField("path", path).Warn("failed to remove scratch file")
	}
}
