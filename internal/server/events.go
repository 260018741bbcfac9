package server

import (
	"time"

	"github.com/sjawhar/gestalt-coach/internal/session"
	"github.com/sjawhar/gestalt-coach/internal/voice"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type LiveTranscriptEvent struct {
	Event
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

type RecordingStatusEvent struct {
	Event
	State          string  `json:"state"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

type InteractionAddedEvent struct {
	Event
	Interaction session.Interaction `json:"interaction"`
}

type SessionsChangedEvent struct {
	Event
	SavedCount int `json:"saved_count"`
}

type VoiceMessageEvent struct {
	Event
	Message voice.Message `json:"message"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
