package types

// Output format constants
const (
	FormatSRT  = "srt"
	FormatVTT  = "vtt"
	FormatJSON = "json"
)

// Content types returned for rendered subtitles
const (
	ContentTypeSRT  = "text/plain"
	ContentTypeVTT  = "text/vtt"
	ContentTypeJSON = "application/json"
)

// DefaultLanguage is assumed when Whisper does not report one and when the
// caller does not request a target language.
const DefaultLanguage = "en"

// TranscriptionResult represents the output from Whisper
type TranscriptionResult struct {
	Text     string
	Language string
	Duration float64
	Segments []Segment
}

// Segment represents a timestamped segment of transcription
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// NormalizeFormat maps a caller-supplied format to one of the known formats.
// Empty means srt; anything unrecognised means json.
func NormalizeFormat(format string) string {
	switch format {
	case "", FormatSRT:
		return FormatSRT
	case FormatVTT:
		return FormatVTT
	default:
		return FormatJSON
	}
}
