package translation

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

//go:embed marian_worker.py
var marianWorkerScript string

// DefaultModelPrefix names the published Marian checkpoints.
const DefaultModelPrefix = "Helsinki-NLP/opus-mt"

const workerStopGrace = 5 * time.Second

// MarianLoader starts one Python worker per language pair. Each worker holds
// the MarianTokenizer and MarianMTModel for its pair in memory.
type MarianLoader struct {
	Python      string
	ModelPrefix string
	Log         logrus.FieldLogger
}

// ModelName returns the checkpoint name for pair.
func (l *MarianLoader) ModelName(pair Pair) string {
	prefix := l.ModelPrefix
	if prefix == "" {
		prefix = DefaultModelPrefix
	}
	return fmt.Sprintf("%s-%s-%s", prefix, pair.Source, pair.Target)
}

// Load starts the worker and waits until it reports the model as ready.
func (l *MarianLoader) Load(ctx context.Context, pair Pair) (Model, error) {
	python := l.Python
	if python == "" {
		python = "python"
	}
	log := l.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	name := l.ModelName(pair)

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create worker pipe: %w", err)
	}

	cmd := exec.Command(python, "-u", "-c", marianWorkerScript, name)
	stderr := &tailBuffer{max: 4096}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderr
	cmd.WaitDelay = workerStopGrace
	stdin, err := cmd.StdinPipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("create worker stdin: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("start marian worker: %w", err)
	}
	stdoutW.Close()

	m := &marianModel{
		pair:   pair,
		name:   name,
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdoutR,
		reader: bufio.NewReader(stdoutR),
		stderr: stderr,
		done:   make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		close(m.done)
	}()

	var ready workerMessage
	if err := m.receive(ctx, &ready); err != nil {
		m.kill()
		return nil, fmt.Errorf("marian worker for %s did not start: %w", name, err)
	}
	if ready.Error != "" {
		m.kill()
		return nil, fmt.Errorf("no translation model %s: %s", name, ready.Error)
	}
	if !ready.Ready {
		m.kill()
		return nil, fmt.Errorf("marian worker for %s sent an unexpected handshake", name)
	}

	log.WithFields(logrus.Fields{"model": name, "pid": cmd.Process.Pid}).Debug("marian worker ready")
	return m, nil
}

type workerMessage struct {
	Ready bool   `json:"ready,omitempty"`
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

type marianModel struct {
	pair   Pair
	name   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File
	reader *bufio.Reader
	stderr *tailBuffer
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// Translate sends one request and waits for its reply. Requests to the same
// worker are serialized.
func (m *marianModel) Translate(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrModelClosed
	}

	payload, err := json.Marshal(workerMessage{Text: text})
	if err != nil {
		return "", err
	}
	if _, err := m.stdin.Write(append(payload, '\n')); err != nil {
		m.killLocked()
		return "", fmt.Errorf("write to marian worker: %w", err)
	}

	var reply workerMessage
	if err := m.receive(ctx, &reply); err != nil {
		// the worker is now out of step with its caller
		m.killLocked()
		return "", err
	}
	if reply.Error != "" {
		return "", errors.New(reply.Error)
	}
	return reply.Text, nil
}

// Close ends the worker by closing its stdin, killing it after a grace period.
func (m *marianModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.stdin.Close()

	select {
	case <-m.done:
	case <-time.After(workerStopGrace):
		_ = m.cmd.Process.Kill()
		<-m.done
	}
	m.stdout.Close()
	return nil
}

func (m *marianModel) kill() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killLocked()
}

func (m *marianModel) killLocked() {
	if m.closed {
		return
	}
	m.closed = true
	m.stdin.Close()
	_ = m.cmd.Process.Kill()
	<-m.done
	m.stdout.Close()
}

// receive reads the next JSON line from the worker, skipping anything else
// the Python runtime prints to stdout.
func (m *marianModel) receive(ctx context.Context, dst *workerMessage) error {
	type result struct {
		line []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		for {
			line, err := m.reader.ReadBytes('\n')
			trimmed := bytes.TrimSpace(line)
			if len(trimmed) > 0 && trimmed[0] == '{' {
				ch <- result{line: trimmed}
				return
			}
			if err != nil {
				ch <- result{err: err}
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.err != nil {
			// stderr is complete once Wait returns
			select {
			case <-m.done:
			case <-time.After(time.Second):
			}
			if detail := strings.TrimSpace(m.stderr.String()); detail != "" {
				return fmt.Errorf("marian worker exited: %v: %s", res.err, detail)
			}
			return fmt.Errorf("marian worker exited: %w", res.err)
		}
		if err := json.Unmarshal(res.line, dst); err != nil {
			return fmt.Errorf("decode marian worker reply: %w", err)
		}
		return nil
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
