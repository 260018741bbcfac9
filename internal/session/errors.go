package session

import "errors"

var (
	// ErrRecordingInFlight is returned while a previous recording or its
	// transcription and analysis round trip has not finished.
	ErrRecordingInFlight = errors.New("a recording is already in progress")
	// ErrNoRecordingPending is returned when completing a recording that was
	// never begun.
	ErrNoRecordingPending = errors.New("no recording pending")
	ErrNothingToSave      = errors.New("current session has no interactions")
	// ErrUnsavedInteractions is returned by StartNewSession when the caller
	// has not confirmed discarding the current interactions.
	ErrUnsavedInteractions = errors.New("current session has unsaved interactions")
	ErrInteractionNotFound = errors.New("interaction not found")
	ErrSessionNotFound     = errors.New("saved session not found")
	ErrNoActiveSession     = errors.New("no saved session is being continued")
	ErrEmptyTranscript     = errors.New("transcription returned no text")
)
