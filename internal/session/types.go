package session

import (
	"context"
	"time"

	"github.com/sjawhar/gestalt-coach/internal/transcribe"
)

type Analysis struct {
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	IsFollowUp bool      `json:"isFollowUp"`
}

// Interaction is one recorded or uploaded clip with its transcription and
// feedback. Only Title changes after creation.
type Interaction struct {
	ID            string                   `json:"id"`
	Transcription transcribe.Transcription `json:"transcription"`
	Analysis      Analysis                 `json:"analysis"`
	CreatedAt     time.Time                `json:"createdAt"`
	Title         string                   `json:"title"`
	IsFollowUp    bool                     `json:"isFollowUp"`
}

type Metadata struct {
	Name      string    `json:"name"`
	IsPublic  bool      `json:"isPublic"`
	CreatedAt time.Time `json:"createdAt"`
}

type SavedSession struct {
	Metadata     Metadata      `json:"metadata"`
	Interactions []Interaction `json:"interactions"`
}

// Phase is where the current session sits in its lifecycle.
type Phase string

const (
	PhaseEmpty             Phase = "EMPTY"
	PhaseRecordingFirst    Phase = "RECORDING_FIRST"
	PhaseHasInteractions   Phase = "HAS_INTERACTIONS"
	PhaseRecordingFollowUp Phase = "RECORDING_FOLLOWUP"
)

// CurrentState is a snapshot of the editable session.
type CurrentState struct {
	Interactions            []Interaction `json:"interactions"`
	ActiveSavedSessionIndex *int          `json:"activeSavedSessionIndex,omitempty"`
	Phase                   Phase         `json:"phase"`
	FollowUpPending         bool          `json:"followUpPending"`
}

type Transcriber interface {
	Transcribe(ctx context.Context, artifact transcribe.Artifact) (transcribe.Transcription, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, conversationID, prompt string) (string, error)
}

// Store holds the full list of saved sessions. Writes replace the whole list.
type Store interface {
	LoadSavedSessions(ctx context.Context) ([]SavedSession, error)
	ReplaceSavedSessions(ctx context.Context, sessions []SavedSession) error
}

type EventBroadcaster interface {
	BroadcastInteractionAdded(owner string, interaction Interaction)
	BroadcastSessionsChanged(owner string, savedCount int)
}

func cloneInteraction(in Interaction) Interaction {
	in.Transcription = in.Transcription.Clone()
	return in
}

func cloneInteractions(list []Interaction) []Interaction {
	out := make([]Interaction, len(list))
	for i, in := range list {
		out[i] = cloneInteraction(in)
	}
	return out
}

func cloneSaved(list []SavedSession) []SavedSession {
	out := make([]SavedSession, len(list))
	for i, s := range list {
		out[i] = SavedSession{Metadata: s.Metadata, Interactions: cloneInteractions(s.Interactions)}
	}
	return out
}
