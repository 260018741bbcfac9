package voice

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAPIKey       = errors.New("ELEVENLABS_API_KEY is not set")
	ErrMissingAgentID      = errors.New("voice agent id is not set")
	ErrNoSignedURL         = errors.New("no signed URL in response")
	ErrUnrecognizedMessage = errors.New("unrecognized voice agent message")
)

// UpstreamError is a non-2xx answer from the voice vendor.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("elevenlabs API error: %d %s", e.Status, e.Body)
}
