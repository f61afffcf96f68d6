package subtitle

import (
	"fmt"
	"math"
)

// Millisecond separators used by the two subtitle formats.
const (
	SRTSeparator = ','
	VTTSeparator = '.'
)

// FormatTimestamp renders seconds as HH:MM:SS<sep>mmm. Hours grow past two
// digits when needed and milliseconds are truncated, not rounded.
// Negative and non-finite values render as zero.
func FormatTimestamp(seconds float64, sep byte) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}

	total := int64(math.Floor(seconds * 1000))
	ms := total % 1000
	totalSeconds := total / 1000

	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	secs := totalSeconds % 60

	return fmt.Sprintf("%02d:%02d:%02d%c%03d", hours, minutes, secs, sep, ms)
}

// SRTTimestamp formats seconds with a comma before the milliseconds.
func SRTTimestamp(seconds float64) string {
	return FormatTimestamp(seconds, SRTSeparator)
}

// VTTTimestamp formats seconds with a period before the milliseconds.
func VTTTimestamp(seconds float64) string {
	return FormatTimestamp(seconds, VTTSeparator)
}
