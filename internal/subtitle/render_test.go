package subtitle

import (
	"testing"

	"github.com/codebuildervaibhav/whisper-subtitles/internal/types"
)

func TestRenderSRT_Empty(t *testing.T) {
	if got := RenderSRT(nil); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestRenderVTT_Empty(t *testing.T) {
	if got := RenderVTT(nil); got != "WEBVTT\n\n" {
		t.Fatalf("expected header only, got %q", got)
	}
}

func TestRenderSRT_SingleSegment(t *testing.T) {
	segments := []types.Segment{{Start: 0, End: 1.25, Text: "  hi  "}}
	want := "1\n00:00:00,000 --> 00:00:01,250\nhi\n\n"
	if got := RenderSRT(segments); got != want {
		t.Fatalf("RenderSRT mismatch:\nwant %q\ngot  %q", want, got)
	}
}

func TestRenderVTT_SingleSegment(t *testing.T) {
	segments := []types.Segment{{Start: 0, End: 1.25, Text: "  hi  "}}
	want := "WEBVTT\n\n00:00:00.000 --> 00:00:01.250\nhi\n\n"
	if got := RenderVTT(segments); got != want {
		t.Fatalf("RenderVTT mismatch:\nwant %q\ngot  %q", want, got)
	}
}

func TestRenderSRT_NumbersCuesInOrder(t *testing.T) {
	segments := []types.Segment{
		{Start: 0, End: 2, Text: "first"},
		{Start: 2, End: 2, Text: "zero length"},
		{Start: 3.5, End: 4.75, Text: "\tthird\n"},
	}
	want := "1\n00:00:00,000 --> 00:00:02,000\nfirst\n\n" +
		"2\n00:00:02,000 --> 00:00:02,000\nzero length\n\n" +
		"3\n00:00:03,500 --> 00:00:04,750\nthird\n\n"
	if got := RenderSRT(segments); got != want {
		t.Fatalf("RenderSRT mismatch:\nwant %q\ngot  %q", want, got)
	}
}

func TestRender_IsPureAndDoesNotMutate(t *testing.T) {
	segments := []types.Segment{{Start: 1, End: 2, Text: " a "}, {Start: 2, End: 3, Text: "b"}}

	first := RenderSRT(segments)
	second := RenderSRT(segments)
	if first != second {
		t.Fatalf("SRT output differs between runs")
	}
	if RenderVTT(segments) != RenderVTT(segments) {
		t.Fatalf("VTT output differs between runs")
	}
	if segments[0].Text != " a " {
		t.Fatalf("input segment text was mutated: %q", segments[0].Text)
	}
}
