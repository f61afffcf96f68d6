package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codebuildervaibhav/whisper-subtitles/internal/apperr"
	"github.com/codebuildervaibhav/whisper-subtitles/internal/storage"
	"github.com/codebuildervaibhav/whisper-subtitles/internal/types"
)

type fakeTranscriber struct {
	unavailable bool
	result      types.TranscriptionResult
	err         error
	seenPath    string
	seenData    string
}

func (f *fakeTranscriber) Available() bool { return !f.unavailable }

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string) (*types.TranscriptionResult, error) {
	f.seenPath = path
	data, _ := os.ReadFile(path)
	f.seenData = string(data)
	if f.err != nil {
		return nil, f.err
	}
	res := f.result
	res.Segments = append([]types.Segment(nil), f.result.Segments...)
	return &res, nil
}

type translateCall struct {
	text, source, target string
}

type fakeTranslator struct {
	mu    sync.Mutex
	calls []translateCall
	err   error
}

func (f *fakeTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, translateCall{text, source, target})
	if f.err != nil {
		return "", f.err
	}
	return strings.ToUpper(strings.TrimSpace(text)), nil
}

func spanishTranscript() types.TranscriptionResult {
	return types.TranscriptionResult{
		Text:     " Hola mundo. Adios.",
		Language: "es",
		Segments: []types.Segment{
			{Start: 0, End: 1.5, Text: " Hola mundo."},
			{Start: 1.5, End: 3.25, Text: " Adios."},
		},
	}
}

func newTestService(t *testing.T, tr *fakeTranscriber, tl Translator) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	return NewService(tr, tl, storage.NewScratchStore(dir, ".mp3", nil), 0, nil), dir
}

func assertNoScratchFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read scratch dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected scratch dir to be empty, found %d entries", len(entries))
	}
}

func TestProcess_SameLanguageSkipsTranslation(t *testing.T) {
	tr := &fakeTranscriber{result: spanishTranscript()}
	tl := &fakeTranslator{}
	svc, dir := newTestService(t, tr, tl)

	res, err := svc.Process(context.Background(), Request{Audio: strings.NewReader("mp3 data"), Format: "srt", Lang: "es"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(tl.calls) != 0 {
		t.Fatalf("expected no translation calls, got %d", len(tl.calls))
	}
	if res.ContentType != "text/plain" {
		t.Fatalf("content type = %q", res.ContentType)
	}
	want := "1\n00:00:00,000 --> 00:00:01,500\nHola mundo.\n\n2\n00:00:01,500 --> 00:00:03,250\nAdios.\n\n"
	if string(res.Body) != want {
		t.Fatalf("body mismatch:\nwant %q\ngot  %q", want, res.Body)
	}
	if res.Translated || res.Language != "es" || res.Segments != 2 {
		t.Fatalf("unexpected result metadata %+v", res)
	}
	if tr.seenData != "mp3 data" || !strings.HasSuffix(tr.seenPath, ".mp3") {
		t.Fatalf("transcriber saw %q at %q", tr.seenData, tr.seenPath)
	}
	assertNoScratchFiles(t, dir)
}

func TestProcess_DifferentLanguageTranslatesEachSegmentInOrder(t *testing.T) {
	tr := &fakeTranscriber{result: spanishTranscript()}
	tl := &fakeTranslator{}
	svc, _ := newTestService(t, tr, tl)

	res, err := svc.Process(context.Background(), Request{Audio: strings.NewReader("x"), Format: "vtt", Lang: "en"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := []translateCall{
		{" Hola mundo.", "es", "en"},
		{" Adios.", "es", "en"},
	}
	if len(tl.calls) != len(want) {
		t.Fatalf("expected %d translation calls, got %d", len(want), len(tl.calls))
	}
	for i := range want {
		if tl.calls[i] != want[i] {
			t.Fatalf("call %d = %+v, want %+v", i, tl.calls[i], want[i])
		}
	}

	if res.ContentType != "text/vtt" {
		t.Fatalf("content type = %q", res.ContentType)
	}
	wantBody := "WEBVTT\n\n00:00:00.000 --> 00:00:01.500\nHOLA MUNDO.\n\n00:00:01.500 --> 00:00:03.250\nADIOS.\n\n"
	if string(res.Body) != wantBody {
		t.Fatalf("body mismatch:\nwant %q\ngot  %q", wantBody, res.Body)
	}
	if !res.Translated {
		t.Fatalf("expected Translated")
	}
}

func TestProcess_DefaultsToSRTAndEnglish(t *testing.T) {
	tr := &fakeTranscriber{result: types.TranscriptionResult{
		Text:     "hi",
		Language: "en",
		Segments: []types.Segment{{Start: 0, End: 1.25, Text: "  hi  "}},
	}}
	tl := &fakeTranslator{}
	svc, _ := newTestService(t, tr, tl)

	res, err := svc.Process(context.Background(), Request{Audio: strings.NewReader("x")})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if string(res.Body) != "1\n00:00:00,000 --> 00:00:01,250\nhi\n\n" {
		t.Fatalf("body = %q", res.Body)
	}
	if len(tl.calls) != 0 {
		t.Fatalf("english transcript should not be translated to the default language")
	}
}

func TestProcess_UnknownFormatReturnsJSON(t *testing.T) {
	tr := &fakeTranscriber{result: spanishTranscript()}
	svc, _ := newTestService(t, tr, &fakeTranslator{})

	for _, format := range []string{"json", "txt"} {
		res, err := svc.Process(context.Background(), Request{Audio: strings.NewReader("x"), Format: format, Lang: "es"})
		if err != nil {
			t.Fatalf("Process(%s): %v", format, err)
		}
		if res.ContentType != "application/json" {
			t.Fatalf("content type = %q", res.ContentType)
		}
		var body JSONResult
		if err := json.Unmarshal(res.Body, &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Text != " Hola mundo. Adios." {
			t.Fatalf("text = %q", body.Text)
		}
		if !strings.HasPrefix(body.SRT, "1\n00:00:00,000") || !strings.HasPrefix(body.VTT, "WEBVTT\n\n") {
			t.Fatalf("unexpected rendered forms: %+v", body)
		}
	}
}

func TestProcess_UnavailableTranscriber(t *testing.T) {
	tr := &fakeTranscriber{unavailable: true}
	svc, dir := newTestService(t, tr, &fakeTranslator{})

	_, err := svc.Process(context.Background(), Request{Audio: strings.NewReader("x")})
	if !apperr.IsCode(err, apperr.CodeUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if tr.seenPath != "" {
		t.Fatalf("transcriber must not be called")
	}
	assertNoScratchFiles(t, dir)
}

func TestProcess_TranscriptionFailureReleasesScratch(t *testing.T) {
	tr := &fakeTranscriber{err: errors.New("whisper transcription failed: exit status 1")}
	svc, dir := newTestService(t, tr, &fakeTranslator{})

	_, err := svc.Process(context.Background(), Request{Audio: strings.NewReader("x")})
	if !apperr.IsCode(err, apperr.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if !strings.Contains(err.Error(), "exit status 1") {
		t.Fatalf("expected underlying message, got %q", err.Error())
	}
	assertNoScratchFiles(t, dir)
}

func TestProcess_TranslationFailurePropagates(t *testing.T) {
	tr := &fakeTranscriber{result: spanishTranscript()}
	tl := &fakeTranslator{err: errors.New("load translation model es->xx: not found")}
	svc, dir := newTestService(t, tr, tl)

	_, err := svc.Process(context.Background(), Request{Audio: strings.NewReader("x"), Lang: "xx"})
	if !apperr.IsCode(err, apperr.CodeInternal) || !strings.Contains(err.Error(), "es->xx") {
		t.Fatalf("expected translation error, got %v", err)
	}
	if len(tl.calls) != 1 {
		t.Fatalf("expected processing to stop after the first failure, got %d calls", len(tl.calls))
	}
	assertNoScratchFiles(t, dir)
}

func TestProcess_UploadReadFailure(t *testing.T) {
	tr := &fakeTranscriber{result: spanishTranscript()}
	svc, dir := newTestService(t, tr, &fakeTranslator{})

	_, err := svc.Process(context.Background(), Request{Audio: io.MultiReader(strings.NewReader("x"), errReader{})})
	if !apperr.IsCode(err, apperr.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if tr.seenPath != "" {
		t.Fatalf("transcriber must not run on a failed upload")
	}
	assertNoScratchFiles(t, dir)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("unexpected EOF in multipart body") }

type blockingTranscriber struct{}

func (blockingTranscriber) Available() bool { return true }

func (blockingTranscriber) Transcribe(ctx context.Context, path string) (*types.TranscriptionResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestProcess_TimeoutBecomesTimeoutError(t *testing.T) {
	svc := NewService(blockingTranscriber{}, &fakeTranslator{}, storage.NewScratchStore(t.TempDir(), ".mp3", nil), 50*time.Millisecond, nil)

	_, err := svc.Process(context.Background(), Request{Audio: strings.NewReader("x")})
	if !apperr.IsCode(err, apperr.CodeTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}
