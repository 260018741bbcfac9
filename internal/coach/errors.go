package coach

import "errors"

var (
	// ErrEmptyMessage is returned when the caller sends a blank message.
	ErrEmptyMessage = errors.New("message is required")
	// ErrMissingConversation is returned when no conversation id was given.
	ErrMissingConversation = errors.New("conversation id is required")
)

// AnalysisError reports that the model produced no usable reply.
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string {
	return "analysis failed: " + e.Err.Error()
}

func (e *AnalysisError) Unwrap() error { return e.Err }
