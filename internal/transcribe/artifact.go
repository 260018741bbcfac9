package transcribe

import (
	"path/filepath"
	"strings"
)

// Artifact is a finished audio or video file ready for transcription.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// IsVideo reports whether the artifact needs audio extraction before it can
// be transcribed.
func (a Artifact) IsVideo() bool {
	if a.ContentType != "" {
		return strings.HasPrefix(strings.ToLower(a.ContentType), "video/")
	}
	switch strings.ToLower(filepath.Ext(a.Name)) {
	case ".mp4", ".mov", ".webm", ".mkv", ".avi":
		return true
	}
	return false
}
