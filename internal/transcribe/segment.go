package transcribe

import (
	"fmt"
	"strings"
)

// Segment is a timestamped span of transcribed speech.
type Segment struct {
	Text         string  `json:"text"`
	StartSeconds float64 `json:"start"`
	EndSeconds   float64 `json:"end"`
	Speaker      string  `json:"speaker,omitempty"`
}

// Transcription is the full text of one artifact plus its ordered segments.
type Transcription struct {
	FullText string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// Clone returns a copy that shares no slice storage with t.
func (t Transcription) Clone() Transcription {
	out := Transcription{FullText: t.FullText}
	if t.Segments != nil {
		out.Segments = make([]Segment, len(t.Segments))
		copy(out.Segments, t.Segments)
	}
	return out
}

// FormatTranscript renders segments one per line with their time range and
// optional speaker label. Without segments it falls back to the full text.
func FormatTranscript(t Transcription) string {
	if len(t.Segments) == 0 {
		return strings.TrimSpace(t.FullText)
	}

	var b strings.Builder
	for _, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "[%s - %s] ", clock(seg.StartSeconds), clock(seg.EndSeconds))
		if seg.Speaker != "" {
			fmt.Fprintf(&b, "(%s) ", seg.Speaker)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func clock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
