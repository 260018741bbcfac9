package audio

import "errors"

var (
	ErrAlreadyRecording = errors.New("recording already in progress")
	ErrNotRecording     = errors.New("no recording in progress")
	ErrNoMicrophone     = errors.New("no microphone configured")
	ErrUnsupportedMedia = errors.New("file must be audio or video")
	ErrEmptyFile        = errors.New("file is empty")
)

// PermissionError reports that the microphone could not be opened, either
// because access was denied or because no device is available.
type PermissionError struct {
	Err error
}

func (e *PermissionError) Error() string {
	return "microphone unavailable: " + e.Err.Error()
}

func (e *PermissionError) Unwrap() error { return e.Err }
