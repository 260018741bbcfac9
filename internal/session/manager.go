package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sjawhar/gestalt-coach/internal/coach"
	"github.com/sjawhar/gestalt-coach/internal/transcribe"
)

type recordingState int

const (
	recordingIdle recordingState = iota
	recordingCapturing
	recordingProcessing
)

// Manager owns one user's current session and saved sessions.
//
// Network calls run outside the lock; the in-flight recording state keeps a
// second recording, save, reset or continue from interleaving with one that
// has not been appended yet.
type Manager struct {
	owner          string
	conversationID string
	store          Store
	transcriber    Transcriber
	analyzer       Analyzer
	hub            EventBroadcaster

	now   func() time.Time
	newID func() string

	mu              sync.Mutex
	current         []Interaction
	seq             int
	activeIndex     int
	followUpPending bool
	recording       recordingState
	recordingFollow bool
	saved           []SavedSession
}

// NewManager loads the saved sessions once from store. They are rewritten in
// full on every later mutation.
func NewManager(ctx context.Context, owner string, store Store, transcriber Transcriber, analyzer Analyzer, hub EventBroadcaster) (*Manager, error) {
	saved, err := store.LoadSavedSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load saved sessions: %w", err)
	}

	conversationID := "play-analysis"
	if owner != "" {
		conversationID = "play-analysis:" + owner
	}

	return &Manager{
		owner:          owner,
		conversationID: conversationID,
		store:          store,
		transcriber:    transcriber,
		analyzer:       analyzer,
		hub:            hub,
		now:            func() time.Time { return time.Now().UTC() },
		newID:          func() string { return uuid.NewString() },
		activeIndex:    -1,
		saved:          saved,
	}, nil
}

// SetFollowUp marks the next recording as a follow-up to the latest
// interaction.
func (m *Manager) SetFollowUp(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.followUpPending = enabled
}

func (m *Manager) FollowUpPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.followUpPending
}

// BeginRecording reserves the single recording slot for a capture that will
// later be handed to CompleteRecording.
func (m *Manager) BeginRecording(isFollowUp bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recording != recordingIdle {
		return ErrRecordingInFlight
	}
	m.recording = recordingCapturing
	m.recordingFollow = isFollowUp || m.followUpPending
	return nil
}

// CancelRecording releases a reservation made by BeginRecording. It has no
// effect once the artifact is being transcribed.
func (m *Manager) CancelRecording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recording != recordingCapturing {
		return false
	}
	m.recording = recordingIdle
	m.recordingFollow = false
	return true
}

// RecordInteraction transcribes and analyzes artifact and appends the
// result to the current session. Nothing is appended on failure.
func (m *Manager) RecordInteraction(ctx context.Context, artifact transcribe.Artifact, isFollowUp bool) (Interaction, error) {
	if err := m.BeginRecording(isFollowUp); err != nil {
		return Interaction{}, err
	}
	return m.CompleteRecording(ctx, artifact)
}

// CompleteRecording processes the artifact for a recording begun with
// BeginRecording.
func (m *Manager) CompleteRecording(ctx context.Context, artifact transcribe.Artifact) (Interaction, error) {
	m.mu.Lock()
	if m.recording != recordingCapturing {
		m.mu.Unlock()
		return Interaction{}, ErrNoRecordingPending
	}
	m.recording = recordingProcessing
	followUp := m.recordingFollow
	var previous *Interaction
	if followUp && len(m.current) > 0 {
		prev := cloneInteraction(m.current[len(m.current)-1])
		previous = &prev
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.recording = recordingIdle
		m.recordingFollow = false
		m.mu.Unlock()
	}()

	tr, err := m.transcriber.Transcribe(ctx, artifact)
	if err != nil {
		var terr *transcribe.TranscriptionError
		if !errors.As(err, &terr) {
			err = &transcribe.TranscriptionError{Op: "transcribe", Err: err}
		}
		slog.Error("session: transcription failed", "owner", m.owner, "error", err)
		return Interaction{}, err
	}

	transcript := transcribe.FormatTranscript(tr)
	if transcript == "" {
		return Interaction{}, &transcribe.TranscriptionError{Op: "transcribe", Err: ErrEmptyTranscript}
	}

	prompt := coach.AnalysisPrompt(transcript)
	if previous != nil {
		prompt = coach.FollowUpPrompt(transcribe.FormatTranscript(previous.Transcription), previous.Analysis.Content, transcript)
	}

	content, err := m.analyzer.Analyze(ctx, m.conversationID, prompt)
	if err == nil && strings.TrimSpace(content) == "" {
		err = errors.New("analysis returned no content")
	}
	if err != nil {
		var aerr *coach.AnalysisError
		if !errors.As(err, &aerr) {
			err = &coach.AnalysisError{Err: err}
		}
		slog.Error("session: analysis failed", "owner", m.owner, "error", err)
		return Interaction{}, err
	}

	now := m.now()
	isFollowUp := previous != nil

	m.mu.Lock()
	m.seq++
	interaction := Interaction{
		ID:            m.newID(),
		Transcription: tr.Clone(),
		Analysis:      Analysis{Content: content, CreatedAt: now, IsFollowUp: isFollowUp},
		CreatedAt:     now,
		Title:         fmt.Sprintf("Interaction %d", m.seq),
		IsFollowUp:    isFollowUp,
	}
	m.current = append(m.current, interaction)
	m.followUpPending = false
	m.mu.Unlock()

	if m.hub != nil {
		m.hub.BroadcastInteractionAdded(m.owner, cloneInteraction(interaction))
	}
	return cloneInteraction(interaction), nil
}

// RenameInteraction retitles the interaction with id, looking in the current
// session first and then in saved sessions. Blank titles are ignored.
func (m *Manager) RenameInteraction(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if i := indexOf(m.current, id); i >= 0 {
		m.current[i].Title = title
		return nil
	}
	for si := range m.saved {
		if indexOf(m.saved[si].Interactions, id) >= 0 {
			return m.renameSavedLocked(ctx, si, id, title)
		}
	}
	return ErrInteractionNotFound
}

// RenameSavedInteraction retitles an interaction of the saved session at
// index, leaving the current session alone.
func (m *Manager) RenameSavedInteraction(ctx context.Context, index int, id, title string) error {
	title = strings.TrimSpace(title)

	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.saved) {
		return ErrSessionNotFound
	}
	if indexOf(m.saved[index].Interactions, id) < 0 {
		return ErrInteractionNotFound
	}
	if title == "" {
		return nil
	}
	return m.renameSavedLocked(ctx, index, id, title)
}

func (m *Manager) renameSavedLocked(ctx context.Context, index int, id, title string) error {
	next := cloneSaved(m.saved)
	next[index].Interactions[indexOf(next[index].Interactions, id)].Title = title
	return m.persistLocked(ctx, next)
}

// DeleteInteraction removes the interaction with id from whichever
// collection holds it. It reports whether anything was removed; deleting an
// unknown id is a no-op.
func (m *Manager) DeleteInteraction(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := indexOf(m.current, id); i >= 0 {
		m.current = append(m.current[:i:i], m.current[i+1:]...)
		return true, nil
	}
	for si := range m.saved {
		if indexOf(m.saved[si].Interactions, id) >= 0 {
			return m.deleteSavedLocked(ctx, si, id)
		}
	}
	return false, nil
}

// DeleteSavedInteraction removes an interaction from the saved session at
// index only. A missing id is a no-op.
func (m *Manager) DeleteSavedInteraction(ctx context.Context, index int, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.saved) {
		return false, ErrSessionNotFound
	}
	return m.deleteSavedLocked(ctx, index, id)
}

func (m *Manager) deleteSavedLocked(ctx context.Context, index int, id string) (bool, error) {
	ii := indexOf(m.saved[index].Interactions, id)
	if ii < 0 {
		return false, nil
	}
	next := cloneSaved(m.saved)
	list := next[index].Interactions
	next[index].Interactions = append(list[:ii:ii], list[ii+1:]...)
	if err := m.persistLocked(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// DefaultSessionName is used when a session is saved without a name.
func DefaultSessionName(t time.Time) string {
	return "Play Session - " + t.Format("1/2/2006") + " " + t.Format("3:04:05 PM")
}

// SaveCurrentSession appends the current interactions to the saved sessions
// as a new record and clears the current session.
func (m *Manager) SaveCurrentSession(ctx context.Context, name string, isPublic bool) (SavedSession, error) {
	m.mu.Lock()
	if m.recording != recordingIdle {
		m.mu.Unlock()
		return SavedSession{}, ErrRecordingInFlight
	}
	if len(m.current) == 0 {
		m.mu.Unlock()
		return SavedSession{}, ErrNothingToSave
	}

	now := m.now()
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultSessionName(now)
	}

	record := SavedSession{
		Metadata:     Metadata{Name: name, IsPublic: isPublic, CreatedAt: now},
		Interactions: cloneInteractions(m.current),
	}
	next := append(cloneSaved(m.saved), record)
	if err := m.persistLocked(ctx, next); err != nil {
		m.mu.Unlock()
		return SavedSession{}, err
	}
	m.resetLocked()
	count := len(m.saved)
	m.mu.Unlock()

	if m.hub != nil {
		m.hub.BroadcastSessionsChanged(m.owner, count)
	}
	return record, nil
}

// UpdateActiveSession writes the current interactions back over the saved
// session being continued, keeping its metadata, and clears the current
// session.
func (m *Manager) UpdateActiveSession(ctx context.Context) (SavedSession, error) {
	m.mu.Lock()
	if m.recording != recordingIdle {
		m.mu.Unlock()
		return SavedSession{}, ErrRecordingInFlight
	}
	if m.activeIndex < 0 || m.activeIndex >= len(m.saved) {
		m.mu.Unlock()
		return SavedSession{}, ErrNoActiveSession
	}
	if len(m.current) == 0 {
		m.mu.Unlock()
		return SavedSession{}, ErrNothingToSave
	}

	next := cloneSaved(m.saved)
	next[m.activeIndex].Interactions = cloneInteractions(m.current)
	record := next[m.activeIndex]
	if err := m.persistLocked(ctx, next); err != nil {
		m.mu.Unlock()
		return SavedSession{}, err
	}
	m.resetLocked()
	count := len(m.saved)
	m.mu.Unlock()

	if m.hub != nil {
		m.hub.BroadcastSessionsChanged(m.owner, count)
	}
	return record, nil
}

// StartNewSession clears the current session. When interactions would be
// lost the caller must confirm with discard, otherwise
// ErrUnsavedInteractions is returned and nothing changes.
func (m *Manager) StartNewSession(discard bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.recording != recordingIdle {
		return ErrRecordingInFlight
	}
	if len(m.current) > 0 && !discard {
		return ErrUnsavedInteractions
	}
	m.resetLocked()
	return nil
}

// ContinueSession loads a copy of the saved session at index into the
// current session. The copies get fresh ids, so the saved record and the
// current session never share an interaction. Edits do not reach the saved
// record until it is saved.
func (m *Manager) ContinueSession(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.recording != recordingIdle {
		return ErrRecordingInFlight
	}
	if index < 0 || index >= len(m.saved) {
		return ErrSessionNotFound
	}
	m.current = cloneInteractions(m.saved[index].Interactions)
	for i := range m.current {
		m.current[i].ID = m.newID()
	}
	m.seq = lastSequence(m.current)
	m.activeIndex = index
	m.followUpPending = false
	return nil
}

// DeleteSavedSession removes the saved session at index. The current
// session is left as is even when it was loaded from that record.
func (m *Manager) DeleteSavedSession(ctx context.Context, index int) error {
	m.mu.Lock()
	if index < 0 || index >= len(m.saved) {
		m.mu.Unlock()
		return ErrSessionNotFound
	}

	next := cloneSaved(m.saved)
	next = append(next[:index], next[index+1:]...)
	if err := m.persistLocked(ctx, next); err != nil {
		m.mu.Unlock()
		return err
	}

	switch {
	case m.activeIndex == index:
		m.activeIndex = -1
	case m.activeIndex > index:
		m.activeIndex--
	}
	count := len(m.saved)
	m.mu.Unlock()

	if m.hub != nil {
		m.hub.BroadcastSessionsChanged(m.owner, count)
	}
	return nil
}

func (m *Manager) Current() CurrentState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := CurrentState{
		Interactions:    cloneInteractions(m.current),
		Phase:           m.phaseLocked(),
		FollowUpPending: m.followUpPending,
	}
	if m.activeIndex >= 0 {
		idx := m.activeIndex
		state.ActiveSavedSessionIndex = &idx
	}
	return state
}

func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phaseLocked()
}

func (m *Manager) SavedSessions() []SavedSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSaved(m.saved)
}

// SavedSession returns a copy of the saved session at index.
func (m *Manager) SavedSession(index int) (SavedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.saved) {
		return SavedSession{}, ErrSessionNotFound
	}
	return cloneSaved(m.saved[index : index+1])[0], nil
}

func (m *Manager) phaseLocked() Phase {
	recording := m.recording != recordingIdle
	switch {
	case recording && len(m.current) == 0:
		return PhaseRecordingFirst
	case recording:
		return PhaseRecordingFollowUp
	case len(m.current) == 0:
		return PhaseEmpty
	default:
		return PhaseHasInteractions
	}
}

func (m *Manager) resetLocked() {
	m.current = nil
	m.seq = 0
	m.activeIndex = -1
	m.followUpPending = false
}

// persistLocked writes next as the complete saved-session list and adopts
// it only when the write succeeds.
func (m *Manager) persistLocked(ctx context.Context, next []SavedSession) error {
	if err := m.store.ReplaceSavedSessions(ctx, next); err != nil {
		return fmt.Errorf("persist saved sessions: %w", err)
	}
	m.saved = next
	return nil
}

func indexOf(list []Interaction, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

// lastSequence is the highest number used by a default "Interaction N"
// title, or the list length when that is larger.
func lastSequence(list []Interaction) int {
	seq := len(list)
	for _, in := range list {
		rest, ok := strings.CutPrefix(in.Title, "Interaction ")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil && n > seq {
			seq = n
		}
	}
	return seq
}
