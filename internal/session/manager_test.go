package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sjawhar/gestalt-coach/internal/coach"
	"github.com/sjawhar/gestalt-coach/internal/transcribe"
)

type docsMock struct {
	mu     sync.Mutex
	docs   map[string][]byte
	writes int
	putErr error
}

func newDocsMock() *docsMock {
	return &docsMock{docs: map[string][]byte{}}
}

func (d *docsMock) GetDocument(_ context.Context, key string) ([]byte, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.docs[key]
	return append([]byte(nil), v...), ok, nil
}

func (d *docsMock) PutDocument(_ context.Context, key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.putErr != nil {
		return d.putErr
	}
	d.writes++
	d.docs[key] = append([]byte(nil), value...)
	return nil
}

type transcriberMock struct {
	mu      sync.Mutex
	texts   []string
	err     error
	block   chan struct{}
	started chan struct{}
}

func (t *transcriberMock) Transcribe(ctx context.Context, artifact transcribe.Artifact) (transcribe.Transcription, error) {
	if t.started != nil {
		t.started <- struct{}{}
	}
	if t.block != nil {
		select {
		case <-t.block:
		case <-ctx.Done():
			return transcribe.Transcription{}, ctx.Err()
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return transcribe.Transcription{}, t.err
	}
	text := string(artifact.Data)
	if len(t.texts) > 0 {
		text = t.texts[0]
		t.texts = t.texts[1:]
	}
	out := transcribe.Transcription{FullText: text, Segments: []transcribe.Segment{}}
	if strings.TrimSpace(text) != "" {
		out.Segments = append(out.Segments, transcribe.Segment{Text: text, StartSeconds: 0, EndSeconds: 2})
	}
	return out, nil
}

type analyzerMock struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (a *analyzerMock) Analyze(_ context.Context, _ string, prompt string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompts = append(a.prompts, prompt)
	if a.err != nil {
		return "", a.err
	}
	return a.reply, nil
}

type hubMock struct {
	mu           sync.Mutex
	added        []Interaction
	changedCount int
}

func (h *hubMock) BroadcastInteractionAdded(_ string, in Interaction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.added = append(h.added, in)
}

func (h *hubMock) BroadcastSessionsChanged(_ string, _ int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.changedCount++
}

type fixture struct {
	manager     *Manager
	docs        *docsMock
	transcriber *transcriberMock
	analyzer    *analyzerMock
	hub         *hubMock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		docs:        newDocsMock(),
		transcriber: &transcriberMock{},
		analyzer:    &analyzerMock{reply: "Good job"},
		hub:         &hubMock{},
	}
	f.manager = f.reload(t)
	return f
}

func (f *fixture) reload(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(context.Background(), "", NewDocumentStore(f.docs, DefaultStoreKey), f.transcriber, f.analyzer, f.hub)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	clock := time.Date(2026, 10, 13, 15, 4, 5, 123456789, time.UTC)
	m.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	seq := 0
	m.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return m
}

func audio(text string) transcribe.Artifact {
	return transcribe.Artifact{Name: "recording.webm", ContentType: "audio/webm", Data: []byte(text)}
}

func mustRecord(t *testing.T, m *Manager, text string, followUp bool) Interaction {
	t.Helper()
	in, err := m.RecordInteraction(context.Background(), audio(text), followUp)
	if err != nil {
		t.Fatalf("RecordInteraction(%q) failed: %v", text, err)
	}
	return in
}

func TestScenarioRecordSaveDelete(t *testing.T) {
	f := newFixture(t)
	m := f.manager

	// A: first interaction.
	first := mustRecord(t, m, "Roll the car", false)
	state := m.Current()
	if len(state.Interactions) != 1 || state.Interactions[0].Title != "Interaction 1" {
		t.Fatalf("expected one interaction titled Interaction 1, got %+v", state.Interactions)
	}
	if first.Analysis.Content != "Good job" || first.IsFollowUp {
		t.Fatalf("unexpected first interaction: %+v", first)
	}
	if state.Phase != PhaseHasInteractions {
		t.Fatalf("expected phase %s, got %s", PhaseHasInteractions, state.Phase)
	}

	// B: follow-up.
	m.SetFollowUp(true)
	second := mustRecord(t, m, "Push it down", false)
	if !second.IsFollowUp || !second.Analysis.IsFollowUp {
		t.Fatalf("expected follow-up interaction, got %+v", second)
	}
	if m.FollowUpPending() {
		t.Fatal("expected follow-up flag cleared after recording")
	}
	lastPrompt := f.analyzer.prompts[len(f.analyzer.prompts)-1]
	for _, want := range []string{"Roll the car", "Good job", "Push it down"} {
		if !strings.Contains(lastPrompt, want) {
			t.Fatalf("expected follow-up prompt to contain %q, got %q", want, lastPrompt)
		}
	}

	// C: save.
	saved, err := m.SaveCurrentSession(context.Background(), "Tuesday Session", false)
	if err != nil {
		t.Fatalf("SaveCurrentSession failed: %v", err)
	}
	if saved.Metadata.Name != "Tuesday Session" || len(saved.Interactions) != 2 {
		t.Fatalf("unexpected saved session: %+v", saved)
	}
	if got := m.Current(); len(got.Interactions) != 0 || got.Phase != PhaseEmpty || got.ActiveSavedSessionIndex != nil {
		t.Fatalf("expected empty current state after save, got %+v", got)
	}
	reloaded := f.reload(t).SavedSessions()
	if len(reloaded) != 1 || reloaded[0].Metadata.Name != "Tuesday Session" || len(reloaded[0].Interactions) != 2 {
		t.Fatalf("unexpected persisted sessions: %+v", reloaded)
	}

	// D: delete from the saved session.
	removed, err := m.DeleteInteraction(context.Background(), first.ID)
	if err != nil || !removed {
		t.Fatalf("DeleteInteraction = %v, %v", removed, err)
	}
	reloaded = f.reload(t).SavedSessions()
	if len(reloaded[0].Interactions) != 1 || reloaded[0].Interactions[0].ID != second.ID {
		t.Fatalf("expected one remaining interaction after delete, got %+v", reloaded[0].Interactions)
	}

	// E: blank rename.
	if err := m.RenameInteraction(context.Background(), second.ID, ""); err != nil {
		t.Fatalf("RenameInteraction failed: %v", err)
	}
	if got := m.SavedSessions()[0].Interactions[0].Title; got != "Interaction 2" {
		t.Fatalf("expected title unchanged, got %q", got)
	}
}

func TestFollowUpWithoutPriorInteraction(t *testing.T) {
	f := newFixture(t)

	in := mustRecord(t, f.manager, "Roll the car", true)
	if in.IsFollowUp {
		t.Fatal("a follow-up with nothing to follow must not be marked as one")
	}
	if strings.Contains(f.analyzer.prompts[0], "follow-up") {
		t.Fatalf("expected plain analysis prompt, got %q", f.analyzer.prompts[0])
	}
}

func TestRecordInteractionTranscriptionFailure(t *testing.T) {
	f := newFixture(t)
	mustRecord(t, f.manager, "Roll the car", false)
	before := f.manager.Current()

	f.transcriber.err = errors.New("whisper unavailable")
	_, err := f.manager.RecordInteraction(context.Background(), audio("x"), false)

	var terr *transcribe.TranscriptionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TranscriptionError, got %v", err)
	}
	if after := f.manager.Current(); !reflect.DeepEqual(before, after) {
		t.Fatalf("expected state unchanged:\nbefore %+v\nafter  %+v", before, after)
	}
	if len(f.analyzer.prompts) != 1 {
		t.Fatalf("analysis must not run after failed transcription")
	}
}

func TestRecordInteractionAnalysisFailure(t *testing.T) {
	f := newFixture(t)
	f.analyzer.err = &coach.AnalysisError{Err: errors.New("no content")}

	_, err := f.manager.RecordInteraction(context.Background(), audio("Roll the car"), false)
	var aerr *coach.AnalysisError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AnalysisError, got %v", err)
	}
	if len(f.manager.Current().Interactions) != 0 {
		t.Fatal("expected no interaction after analysis failure")
	}
	if f.manager.Phase() != PhaseEmpty {
		t.Fatalf("expected phase back to EMPTY, got %s", f.manager.Phase())
	}

	f.analyzer.err = nil
	f.analyzer.reply = "   "
	_, err = f.manager.RecordInteraction(context.Background(), audio("Roll the car"), false)
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AnalysisError for blank analysis, got %v", err)
	}
}

func TestRecordInteractionEmptyTranscript(t *testing.T) {
	f := newFixture(t)
	f.transcriber.texts = []string{"   "}

	_, err := f.manager.RecordInteraction(context.Background(), audio(""), false)
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
}

func TestRecordInteractionRejectsConcurrentCalls(t *testing.T) {
	f := newFixture(t)
	f.transcriber.block = make(chan struct{})
	f.transcriber.started = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := f.manager.RecordInteraction(context.Background(), audio("Roll the car"), false)
		done <- err
	}()
	<-f.transcriber.started

	if phase := f.manager.Phase(); phase != PhaseRecordingFirst {
		t.Fatalf("expected phase %s, got %s", PhaseRecordingFirst, phase)
	}
	if _, err := f.manager.RecordInteraction(context.Background(), audio("again"), false); !errors.Is(err, ErrRecordingInFlight) {
		t.Fatalf("expected ErrRecordingInFlight, got %v", err)
	}
	if err := f.manager.StartNewSession(true); !errors.Is(err, ErrRecordingInFlight) {
		t.Fatalf("expected StartNewSession to be blocked, got %v", err)
	}

	close(f.transcriber.block)
	if err := <-done; err != nil {
		t.Fatalf("first RecordInteraction failed: %v", err)
	}
	if n := len(f.manager.Current().Interactions); n != 1 {
		t.Fatalf("expected exactly one interaction, got %d", n)
	}
}

func TestRecordingReservationLifecycle(t *testing.T) {
	f := newFixture(t)

	if _, err := f.manager.CompleteRecording(context.Background(), audio("x")); !errors.Is(err, ErrNoRecordingPending) {
		t.Fatalf("expected ErrNoRecordingPending, got %v", err)
	}
	if err := f.manager.BeginRecording(false); err != nil {
		t.Fatalf("BeginRecording failed: %v", err)
	}
	if err := f.manager.BeginRecording(false); !errors.Is(err, ErrRecordingInFlight) {
		t.Fatalf("expected ErrRecordingInFlight, got %v", err)
	}
	if !f.manager.CancelRecording() {
		t.Fatal("expected CancelRecording to release the reservation")
	}
	if f.manager.CancelRecording() {
		t.Fatal("expected second CancelRecording to be a no-op")
	}
	if err := f.manager.BeginRecording(false); err != nil {
		t.Fatalf("BeginRecording after cancel failed: %v", err)
	}
	if _, err := f.manager.CompleteRecording(context.Background(), audio("Roll the car")); err != nil {
		t.Fatalf("CompleteRecording failed: %v", err)
	}
}

func TestRenameInteraction(t *testing.T) {
	f := newFixture(t)
	in := mustRecord(t, f.manager, "Roll the car", false)

	for _, blank := range []string{"", "   "} {
		if err := f.manager.RenameInteraction(context.Background(), in.ID, blank); err != nil {
			t.Fatalf("RenameInteraction(%q) failed: %v", blank, err)
		}
	}
	if got := f.manager.Current().Interactions[0].Title; got != "Interaction 1" {
		t.Fatalf("expected blank renames ignored, got %q", got)
	}

	if err := f.manager.RenameInteraction(context.Background(), in.ID, "  Car ramp  "); err != nil {
		t.Fatalf("RenameInteraction failed: %v", err)
	}
	if got := f.manager.Current().Interactions[0].Title; got != "Car ramp" {
		t.Fatalf("expected trimmed title, got %q", got)
	}

	if err := f.manager.RenameInteraction(context.Background(), "missing", "x"); !errors.Is(err, ErrInteractionNotFound) {
		t.Fatalf("expected ErrInteractionNotFound, got %v", err)
	}
}

func TestRenameInteractionInSavedSessionPersists(t *testing.T) {
	f := newFixture(t)
	in := mustRecord(t, f.manager, "Roll the car", false)
	if _, err := f.manager.SaveCurrentSession(context.Background(), "Monday", true); err != nil {
		t.Fatalf("SaveCurrentSession failed: %v", err)
	}

	if err := f.manager.RenameInteraction(context.Background(), in.ID, "Ramp game"); err != nil {
		t.Fatalf("RenameInteraction failed: %v", err)
	}
	if got := f.reload(t).SavedSessions()[0].Interactions[0].Title; got != "Ramp game" {
		t.Fatalf("expected persisted rename, got %q", got)
	}
}

func TestDeleteInteractionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	first := mustRecord(t, f.manager, "one", false)
	mustRecord(t, f.manager, "two", false)

	for i, want := range []bool{true, false} {
		removed, err := f.manager.DeleteInteraction(context.Background(), first.ID)
		if err != nil {
			t.Fatalf("DeleteInteraction #%d failed: %v", i, err)
		}
		if removed != want {
			t.Fatalf("DeleteInteraction #%d removed = %v, want %v", i, removed, want)
		}
	}
	if n := len(f.manager.Current().Interactions); n != 1 {
		t.Fatalf("expected one interaction left, got %d", n)
	}
}

func TestSaveWithoutInteractions(t *testing.T) {
	f := newFixture(t)

	if _, err := f.manager.SaveCurrentSession(context.Background(), "Empty", false); !errors.Is(err, ErrNothingToSave) {
		t.Fatalf("expected ErrNothingToSave, got %v", err)
	}
	if len(f.manager.SavedSessions()) != 0 || f.docs.writes != 0 {
		t.Fatal("expected no saved session and no store write")
	}
}

func TestSaveDefaultName(t *testing.T) {
	f := newFixture(t)
	mustRecord(t, f.manager, "Roll the car", false)

	saved, err := f.manager.SaveCurrentSession(context.Background(), "  ", false)
	if err != nil {
		t.Fatalf("SaveCurrentSession failed: %v", err)
	}
	if !strings.HasPrefix(saved.Metadata.Name, "Play Session - 10/13/2026 ") {
		t.Fatalf("unexpected default name %q", saved.Metadata.Name)
	}
	if saved.Metadata.Name != DefaultSessionName(saved.Metadata.CreatedAt) {
		t.Fatalf("expected name derived from creation time, got %q", saved.Metadata.Name)
	}
}

func TestSavePersistFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	mustRecord(t, f.manager, "Roll the car", false)
	f.docs.putErr = errors.New("disk full")

	if _, err := f.manager.SaveCurrentSession(context.Background(), "x", false); err == nil {
		t.Fatal("expected save to fail")
	}
	if len(f.manager.Current().Interactions) != 1 || len(f.manager.SavedSessions()) != 0 {
		t.Fatal("expected current interactions kept and nothing saved")
	}
}

func TestSaveRoundTripPreservesTimestamps(t *testing.T) {
	f := newFixture(t)
	mustRecord(t, f.manager, "Roll the car", false)
	mustRecord(t, f.manager, "Push it down", true)
	if _, err := f.manager.SaveCurrentSession(context.Background(), "Round trip", true); err != nil {
		t.Fatalf("SaveCurrentSession failed: %v", err)
	}

	want := f.manager.SavedSessions()
	got := f.reload(t).SavedSessions()
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", want, got)
	}
	if got[0].Interactions[0].CreatedAt.Nanosecond() != 123456789 {
		t.Fatalf("expected nanosecond precision, got %v", got[0].Interactions[0].CreatedAt)
	}
}

func TestStartNewSessionRequiresConfirmation(t *testing.T) {
	f := newFixture(t)

	if err := f.manager.StartNewSession(false); err != nil {
		t.Fatalf("StartNewSession on empty session failed: %v", err)
	}

	mustRecord(t, f.manager, "Roll the car", false)
	if err := f.manager.StartNewSession(false); !errors.Is(err, ErrUnsavedInteractions) {
		t.Fatalf("expected ErrUnsavedInteractions, got %v", err)
	}
	if len(f.manager.Current().Interactions) != 1 {
		t.Fatal("expected interactions kept without confirmation")
	}
	if err := f.manager.StartNewSession(true); err != nil {
		t.Fatalf("StartNewSession(discard) failed: %v", err)
	}
	if f.manager.Phase() != PhaseEmpty {
		t.Fatalf("expected EMPTY after discard, got %s", f.manager.Phase())
	}
}

func TestContinueSessionLoadsSnapshot(t *testing.T) {
	f := newFixture(t)
	mustRecord(t, f.manager, "Roll the car", false)
	if _, err := f.manager.SaveCurrentSession(context.Background(), "Monday", false); err != nil {
		t.Fatalf("SaveCurrentSession failed: %v", err)
	}

	if err := f.manager.ContinueSession(3); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := f.manager.ContinueSession(0); err != nil {
		t.Fatalf("ContinueSession failed: %v", err)
	}
	state := f.manager.Current()
	if state.ActiveSavedSessionIndex == nil || *state.ActiveSavedSessionIndex != 0 {
		t.Fatalf("expected active index 0, got %v", state.ActiveSavedSessionIndex)
	}

	f.manager.SetFollowUp(true)
	follow := mustRecord(t, f.manager, "Push it down", false)
	if follow.Title != "Interaction 2" || !follow.IsFollowUp {
		t.Fatalf("unexpected continued interaction: %+v", follow)
	}
	if n := len(f.manager.SavedSessions()[0].Interactions); n != 1 {
		t.Fatalf("saved copy must not change before an explicit save, got %d interactions", n)
	}

	updated, err := f.manager.UpdateActiveSession(context.Background())
	if err != nil {
		t.Fatalf("UpdateActiveSession failed: %v", err)
	}
	if updated.Metadata.Name != "Monday" || len(updated.Interactions) != 2 {
		t.Fatalf("unexpected updated session: %+v", updated)
	}
	if n := len(f.manager.SavedSessions()); n != 1 {
		t.Fatalf("expected update in place, got %d saved sessions", n)
	}
	if _, err := f.manager.UpdateActiveSession(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestSaveWhileContinuingAppends(t *testing.T) {
	f := newFixture(t)
	mustRecord(t, f.manager, "Roll the car", false)
	if _, err := f.manager.SaveCurrentSession(context.Background(), "Monday", false); err != nil {
		t.Fatalf("SaveCurrentSession failed: %v", err)
	}
	if err := f.manager.ContinueSession(0); err != nil {
		t.Fatalf("ContinueSession failed: %v", err)
	}
	if _, err := f.manager.SaveCurrentSession(context.Background(), "Monday again", false); err != nil {
		t.Fatalf("SaveCurrentSession failed: %v", err)
	}
	if n := len(f.manager.SavedSessions()); n != 2 {
		t.Fatalf("expected a new saved record, got %d", n)
	}
}

func TestDeleteSavedSession(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"one", "two", "three"} {
		mustRecord(t, f.manager, name, false)
		if _, err := f.manager.SaveCurrentSession(context.Background(), name, false); err != nil {
			t.Fatalf("SaveCurrentSession failed: %v", err)
		}
	}

	if err := f.manager.ContinueSession(2); err != nil {
		t.Fatalf("ContinueSession failed: %v", err)
	}
	if err := f.manager.DeleteSavedSession(context.Background(), 0); err != nil {
		t.Fatalf("DeleteSavedSession failed: %v", err)
	}
	state := f.manager.Current()
	if state.ActiveSavedSessionIndex == nil || *state.ActiveSavedSessionIndex != 1 {
		t.Fatalf("expected active index to follow its session to 1, got %v", state.ActiveSavedSessionIndex)
	}

	if err := f.manager.DeleteSavedSession(context.Background(), 1); err != nil {
		t.Fatalf("DeleteSavedSession failed: %v", err)
	}
	state = f.manager.Current()
	if state.ActiveSavedSessionIndex != nil {
		t.Fatalf("expected active index cleared, got %v", *state.ActiveSavedSessionIndex)
	}
	if len(state.Interactions) != 1 {
		t.Fatal("deleting the active saved session must not clear the current interactions")
	}

	names := []string{}
	for _, s := range f.reload(t).SavedSessions() {
		names = append(names, s.Metadata.Name)
	}
	if !reflect.DeepEqual(names, []string{"two"}) {
		t.Fatalf("unexpected persisted sessions %v", names)
	}
	if err := f.manager.DeleteSavedSession(context.Background(), 5); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	f := newFixture(t)
	mustRecord(t, f.manager, "Roll the car", false)

	state := f.manager.Current()
	state.Interactions[0].Title = "mutated"
	state.Interactions[0].Transcription.Segments[0].Text = "mutated"

	again := f.manager.Current()
	if again.Interactions[0].Title != "Interaction 1" || again.Interactions[0].Transcription.Segments[0].Text != "Roll the car" {
		t.Fatalf("snapshot mutation leaked into manager: %+v", again.Interactions[0])
	}
}

func TestBroadcasts(t *testing.T) {
	f := newFixture(t)
	mustRecord(t, f.manager, "Roll the car", false)
	if _, err := f.manager.SaveCurrentSession(context.Background(), "x", false); err != nil {
		t.Fatalf("SaveCurrentSession failed: %v", err)
	}

	f.hub.mu.Lock()
	defer f.hub.mu.Unlock()
	if len(f.hub.added) != 1 || f.hub.changedCount != 1 {
		t.Fatalf("expected one interaction_added and one sessions_changed, got %d and %d", len(f.hub.added), f.hub.changedCount)
	}
}

func TestRegistryIsolatesOwners(t *testing.T) {
	docs := newDocsMock()
	reg := NewDocumentRegistry(docs, &transcriberMock{}, &analyzerMock{reply: "ok"}, nil)

	a, err := reg.Get(context.Background(), "parent-a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	again, _ := reg.Get(context.Background(), "parent-a")
	if a != again {
		t.Fatal("expected the same manager for the same owner")
	}
	b, _ := reg.Get(context.Background(), "parent-b")

	mustRecord(t, a, "Roll the car", false)
	if _, err := a.SaveCurrentSession(context.Background(), "mine", false); err != nil {
		t.Fatalf("SaveCurrentSession failed: %v", err)
	}
	if len(b.SavedSessions()) != 0 {
		t.Fatal("owner b must not see owner a's sessions")
	}
	if _, ok := docs.docs[StoreKey("parent-a")]; !ok {
		t.Fatalf("expected sessions under %q", StoreKey("parent-a"))
	}
	if StoreKey("") != DefaultStoreKey {
		t.Fatalf("expected default key for anonymous owner")
	}
}

func idsOf(list []Interaction) []string {
	ids := make([]string, len(list))
	for i, in := range list {
		ids[i] = in.ID
	}
	return ids
}

func TestDeleteTwiceWhileContinuingKeepsSavedCopy(t *testing.T) {
	f := newFixture(t)
	mustRecord(t, f.manager, "one", false)
	mustRecord(t, f.manager, "two", false)
	if _, err := f.manager.SaveCurrentSession(context.Background(), "Monday", false); err != nil {
		t.Fatalf("SaveCurrentSession failed: %v", err)
	}
	if err := f.manager.ContinueSession(0); err != nil {
		t.Fatalf("ContinueSession failed: %v", err)
	}

	current := idsOf(f.manager.Current().Interactions)
	saved := idsOf(f.manager.SavedSessions()[0].Interactions)
	for _, id := range current {
		for _, sid := range saved {
			if id == sid {
				t.Fatalf("id %q is in both the current and the saved session", id)
			}
		}
	}

	for i, want := range []bool{true, false} {
		removed, err := f.manager.DeleteInteraction(context.Background(), current[0])
		if err != nil {
			t.Fatalf("DeleteInteraction #%d failed: %v", i, err)
		}
		if removed != want {
			t.Fatalf("DeleteInteraction #%d removed = %v, want %v", i, removed, want)
		}
	}
	if n := len(f.manager.Current().Interactions); n != 1 {
		t.Fatalf("expected one current interaction, got %d", n)
	}
	if n := len(f.reload(t).SavedSessions()[0].Interactions); n != 2 {
		t.Fatalf("saved session must keep both interactions, got %d", n)
	}
}

func TestSaveWhileContinuingUsesFreshIDs(t *testing.T) {
	f := newFixture(t)
	mustRecord(t, f.manager, "Roll the car", false)
	if _, err := f.manager.SaveCurrentSession(context.Background(), "Monday", false); err != nil {
		t.Fatalf("SaveCurrentSession failed: %v", err)
	}
	if err := f.manager.ContinueSession(0); err != nil {
		t.Fatalf("ContinueSession failed: %v", err)
	}
	if _, err := f.manager.SaveCurrentSession(context.Background(), "Monday again", false); err != nil {
		t.Fatalf("SaveCurrentSession failed: %v", err)
	}

	saved := f.manager.SavedSessions()
	first, second := saved[0].Interactions[0], saved[1].Interactions[0]
	if first.ID == second.ID {
		t.Fatalf("both saved sessions hold id %q", first.ID)
	}
	if first.Title != second.Title || first.Transcription.FullText != second.Transcription.FullText {
		t.Fatalf("copy must keep its content: %+v vs %+v", first, second)
	}
}

func TestRenameWhileContinuing(t *testing.T) {
	f := newFixture(t)
	mustRecord(t, f.manager, "Roll the car", false)
	if _, err := f.manager.SaveCurrentSession(context.Background(), "Monday", false); err != nil {
		t.Fatalf("SaveCurrentSession failed: %v", err)
	}
	if err := f.manager.ContinueSession(0); err != nil {
		t.Fatalf("ContinueSession failed: %v", err)
	}
	currentID := f.manager.Current().Interactions[0].ID
	savedID := f.manager.SavedSessions()[0].Interactions[0].ID

	if err := f.manager.RenameInteraction(context.Background(), currentID, "Draft"); err != nil {
		t.Fatalf("RenameInteraction failed: %v", err)
	}
	if got := f.manager.SavedSessions()[0].Interactions[0].Title; got != "Interaction 1" {
		t.Fatalf("renaming the current copy changed the saved one to %q", got)
	}

	if err := f.manager.RenameSavedInteraction(context.Background(), 0, savedID, "Ramp game"); err != nil {
		t.Fatalf("RenameSavedInteraction failed: %v", err)
	}
	if got := f.reload(t).SavedSessions()[0].Interactions[0].Title; got != "Ramp game" {
		t.Fatalf("expected persisted rename, got %q", got)
	}
	if got := f.manager.Current().Interactions[0].Title; got != "Draft" {
		t.Fatalf("renaming the saved copy changed the current one to %q", got)
	}
}

func TestSavedInteractionOperations(t *testing.T) {
	f := newFixture(t)
	in := mustRecord(t, f.manager, "Roll the car", false)
	mustRecord(t, f.manager, "Push it down", false)
	if _, err := f.manager.SaveCurrentSession(context.Background(), "Monday", false); err != nil {
		t.Fatalf("SaveCurrentSession failed: %v", err)
	}

	if err := f.manager.RenameSavedInteraction(context.Background(), 2, in.ID, "x"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := f.manager.RenameSavedInteraction(context.Background(), 0, "missing", "x"); !errors.Is(err, ErrInteractionNotFound) {
		t.Fatalf("expected ErrInteractionNotFound, got %v", err)
	}
	writes := f.docs.writes
	if err := f.manager.RenameSavedInteraction(context.Background(), 0, in.ID, "  "); err != nil {
		t.Fatalf("blank RenameSavedInteraction failed: %v", err)
	}
	if f.docs.writes != writes {
		t.Fatal("blank rename must not rewrite the store")
	}

	if _, err := f.manager.DeleteSavedInteraction(context.Background(), -1, in.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	for i, want := range []bool{true, false} {
		removed, err := f.manager.DeleteSavedInteraction(context.Background(), 0, in.ID)
		if err != nil {
			t.Fatalf("DeleteSavedInteraction #%d failed: %v", i, err)
		}
		if removed != want {
			t.Fatalf("DeleteSavedInteraction #%d removed = %v, want %v", i, removed, want)
		}
	}
	if got := idsOf(f.reload(t).SavedSessions()[0].Interactions); len(got) != 1 || got[0] == in.ID {
		t.Fatalf("unexpected persisted interactions %v", got)
	}
}

func TestTitlesKeepCountingAfterDelete(t *testing.T) {
	f := newFixture(t)
	mustRecord(t, f.manager, "one", false)
	second := mustRecord(t, f.manager, "two", false)
	if _, err := f.manager.DeleteInteraction(context.Background(), second.ID); err != nil {
		t.Fatalf("DeleteInteraction failed: %v", err)
	}

	third := mustRecord(t, f.manager, "three", false)
	if third.Title != "Interaction 3" {
		t.Fatalf("expected Interaction 3, got %q", third.Title)
	}

	if err := f.manager.StartNewSession(true); err != nil {
		t.Fatalf("StartNewSession failed: %v", err)
	}
	if in := mustRecord(t, f.manager, "fresh", false); in.Title != "Interaction 1" {
		t.Fatalf("expected numbering to restart, got %q", in.Title)
	}
}

func TestContinueResumesTitleSequence(t *testing.T) {
	f := newFixture(t)
	mustRecord(t, f.manager, "one", false)
	second := mustRecord(t, f.manager, "two", false)
	mustRecord(t, f.manager, "three", false)
	if _, err := f.manager.DeleteInteraction(context.Background(), second.ID); err != nil {
		t.Fatalf("DeleteInteraction failed: %v", err)
	}
	if _, err := f.manager.SaveCurrentSession(context.Background(), "Monday", false); err != nil {
		t.Fatalf("SaveCurrentSession failed: %v", err)
	}
	if err := f.manager.ContinueSession(0); err != nil {
		t.Fatalf("ContinueSession failed: %v", err)
	}

	if in := mustRecord(t, f.manager, "four", false); in.Title != "Interaction 4" {
		t.Fatalf("expected Interaction 4, got %q", in.Title)
	}
}
