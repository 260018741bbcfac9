package transcribe

import "errors"

// ErrMissingFile is returned when no artifact bytes were supplied.
var ErrMissingFile = errors.New("no file provided")

// TranscriptionError reports a failed transcription round trip.
type TranscriptionError struct {
	Op  string
	Err error
}

func (e *TranscriptionError) Error() string {
	if e.Op == "" {
		return "transcription failed: " + e.Err.Error()
	}
	return "transcription failed: " + e.Op + ": " + e.Err.Error()
}

func (e *TranscriptionError) Unwrap() error { return e.Err }
