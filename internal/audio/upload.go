package audio

import (
	"path/filepath"
	"strings"

	"github.com/sjawhar/gestalt-coach/internal/transcribe"
)

var mediaExtensions = map[string]string{
	".mp3":  "audio/mpeg",
	".mpga": "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".flac": "audio/flac",
	".webm": "video/webm",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
}

// Upload validates an uploaded file and returns it as an artifact. The
// declared content type wins; the extension is consulted only when the
// browser sent none or a generic one.
func Upload(name, contentType string, data []byte) (transcribe.Artifact, error) {
	if len(data) == 0 {
		return transcribe.Artifact{}, ErrEmptyFile
	}

	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}

	switch {
	case strings.HasPrefix(contentType, "audio/"), strings.HasPrefix(contentType, "video/"):
	case contentType == "", contentType == "application/octet-stream":
		guessed, ok := mediaExtensions[strings.ToLower(filepath.Ext(name))]
		if !ok {
			return transcribe.Artifact{}, ErrUnsupportedMedia
		}
		contentType = guessed
	default:
		return transcribe.Artifact{}, ErrUnsupportedMedia
	}

	if strings.TrimSpace(name) == "" {
		name = "upload"
	}
	return transcribe.Artifact{Name: filepath.Base(name), ContentType: contentType, Data: data}, nil
}
