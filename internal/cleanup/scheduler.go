package cleanup

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler removes stale scratch entries left behind by crashed or killed
// requests. Only names starting with one of the configured prefixes are
// touched.
type Scheduler struct {
	tempDir  string
	interval time.Duration
	maxAge   time.Duration
	prefixes []string
	log      logrus.FieldLogger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(tempDir string, interval, maxAge time.Duration, prefixes []string, log logrus.FieldLogger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		tempDir:  tempDir,
		interval: interval,
		maxAge:   maxAge,
		prefixes: prefixes,
		log:      log.WithField("component", "cleanup"),
		stopChan: make(chan struct{}),
	}
}

// Start runs one sweep immediately, then one per interval until Stop.
func (s *Scheduler) Start() {
	s.log.Info("Running initial temp file cleanup")
	s.Sweep(time.Now())

	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				s.Sweep(now)
			case <-s.stopChan:
				return
			}
		}
	}()

	s.log.WithFields(logrus.Fields{
		"interval": s.interval.String(),
		"max_age":  s.maxAge.String(),
	}).Info("Cleanup scheduler started")
}

// Stop stops the cleanup scheduler and waits for a running sweep.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	s.log.Info("Cleanup scheduler stopped")
}

// Sweep removes matching top-level entries older than the max age relative
// to now and returns how many were deleted.
func (s *Scheduler) Sweep(now time.Time) int {
	entries, err := os.ReadDir(s.tempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.WithError(err).Warn("Error during cleanup")
		}
		return 0
	}

	var deletedCount int
	var deletedSize int64
	for _, entry := range entries {
		if !s.matches(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		age := now.Sub(info.ModTime())
		if age <= s.maxAge {
			continue
		}

		path := filepath.Join(s.tempDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			s.log.WithError(err).WithField("path", path).Warn("Failed to delete old temp entry")
			continue
		}
		deletedCount++
		deletedSize += info.Size()
		s.log.WithFields(logrus.Fields{
			"name": entry.Name(),
			"age":  age.Round(time.Minute).String(),
		}).Debug("Deleted old temp entry")
	}

	if deletedCount > 0 {
		s.log.WithFields(logrus.Fields{
			"deleted":  deletedCount,
			"freed_mb": float64(deletedSize) / (1024 * 1024),
		}).Info("Cleanup complete")
	}
	return deletedCount
}

func (s *Scheduler) matches(name string) bool {
	for _, p := range s.prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// EnsureTempDirExists creates the temp directory if it doesn't exist
func EnsureTempDirExists(tempDir string) error {
	return os.MkdirAll(tempDir, 0755)
}
