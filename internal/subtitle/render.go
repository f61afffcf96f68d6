package subtitle

import (
	"strconv"
	"strings"

	"github.com/codebuildervaibhav/whisper-subtitles/internal/types"
)

// VTTHeader opens every WebVTT document.
const VTTHeader = "WEBVTT\n\n"

// RenderSRT builds an SRT document with 1-based cue numbers.
func RenderSRT(segments []types.Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteByte('\n')
		writeCue(&b, seg, SRTSeparator)
	}
	return b.String()
}

// RenderVTT builds a WebVTT document. Cues carry no index numbers.
func RenderVTT(segments []types.Segment) string {
	var b strings.Builder
	b.WriteString(VTTHeader)
	for _, seg := range segments {
		writeCue(&b, seg, VTTSeparator)
	}
	return b.String()
}

func writeCue(b *strings.Builder, seg types.Segment, sep byte) {
	b.WriteString(FormatTimestamp(seg.Start, sep))
	b.WriteString(" --> ")
	b.WriteString(FormatTimestamp(seg.End, sep))
	b.WriteByte('\n')
	b.WriteString(strings.TrimSpace(seg.Text))
	b.WriteString("\n\n")
}
