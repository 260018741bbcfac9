package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/sjawhar/gestalt-coach/internal/audio"
	"github.com/sjawhar/gestalt-coach/internal/session"
	"github.com/sjawhar/gestalt-coach/internal/takeout"
)

type followUpRequest struct {
	Enabled bool `json:"enabled"`
}

type recordingRequest struct {
	FollowUp bool `json:"follow_up"`
}

type renameRequest struct {
	Title string `json:"title"`
}

type saveRequest struct {
	Name         string `json:"name"`
	IsPublic     bool   `json:"is_public"`
	UpdateActive bool   `json:"update_active"`
}

type newSessionRequest struct {
	Discard bool `json:"discard"`
}

type takeoutRequest struct {
	Type string `json:"type"`
}

// micOwner remembers whose session the shared microphone is recording for.
type micOwner struct {
	mu     sync.Mutex
	owner  string
	active bool
}

func (m *micOwner) set(owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owner, m.active = owner, true
}

// take releases the microphone if owner holds it.
func (m *micOwner) take(owner string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active || m.owner != owner {
		return false
	}
	m.owner, m.active = "", false
	return true
}

func registerSessionRoutes(mux *http.ServeMux, opts Options) {
	mic := &micOwner{}

	manager := func(w http.ResponseWriter, r *http.Request) (*session.Manager, string, bool) {
		owner := opts.Owner(r)
		m, err := opts.Sessions.Get(r.Context(), owner)
		if err != nil {
			slog.Error("server: load session manager failed", "owner", owner, "error", err)
			writeError(w, err)
			return nil, owner, false
		}
		return m, owner, true
	}

	mux.HandleFunc("GET /api/session", func(w http.ResponseWriter, r *http.Request) {
		m, _, ok := manager(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, m.Current())
	})

	mux.HandleFunc("POST /api/session/interactions", func(w http.ResponseWriter, r *http.Request) {
		m, _, ok := manager(w, r)
		if !ok {
			return
		}
		artifact, err := readUpload(w, r, opts.MaxUploadBytes)
		if err != nil {
			writeError(w, err)
			return
		}
		followUp, _ := strconv.ParseBool(r.FormValue("follow_up"))

		in, err := m.RecordInteraction(r.Context(), artifact, followUp)
		if err != nil {
			slog.Error("server: record interaction failed", "file", artifact.Name, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, in)
	})

	mux.HandleFunc("POST /api/session/recording/start", func(w http.ResponseWriter, r *http.Request) {
		if opts.Recorder == nil {
			writeError(w, errUnavailable)
			return
		}
		var req recordingRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		m, owner, ok := manager(w, r)
		if !ok {
			return
		}

		if err := m.BeginRecording(req.FollowUp); err != nil {
			writeError(w, err)
			return
		}
		opts.Hub.StartLiveTranscript(owner)
		if err := opts.Recorder.Start(r.Context()); err != nil {
			opts.Hub.StopLiveTranscript(owner)
			m.CancelRecording()
			slog.Warn("server: recording start failed", "error", err)
			writeError(w, err)
			return
		}
		mic.set(owner)
		opts.Hub.BroadcastRecordingStatus(string(audio.StateRecording), 0)
		writeJSON(w, http.StatusOK, map[string]string{"state": string(audio.StateRecording)})
	})

	mux.HandleFunc("POST /api/session/recording/stop", func(w http.ResponseWriter, r *http.Request) {
		if opts.Recorder == nil {
			writeError(w, errUnavailable)
			return
		}
		m, owner, ok := manager(w, r)
		if !ok {
			return
		}
		if !mic.take(owner) {
			writeError(w, audio.ErrNotRecording)
			return
		}

		artifact, err := opts.Recorder.Stop(r.Context())
		opts.Hub.StopLiveTranscript(owner)
		opts.Hub.BroadcastRecordingStatus(string(audio.StateIdle), 0)
		if err != nil {
			m.CancelRecording()
			slog.Error("server: recording stop failed", "error", err)
			writeError(w, err)
			return
		}

		in, err := m.CompleteRecording(r.Context(), artifact)
		if err != nil {
			slog.Error("server: recorded interaction failed", "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, in)
	})

	mux.HandleFunc("POST /api/session/recording/cancel", func(w http.ResponseWriter, r *http.Request) {
		if opts.Recorder == nil {
			writeError(w, errUnavailable)
			return
		}
		m, owner, ok := manager(w, r)
		if !ok {
			return
		}
		if !mic.take(owner) {
			writeError(w, audio.ErrNotRecording)
			return
		}
		if err := opts.Recorder.Cancel(); err != nil {
			slog.Warn("server: recording cancel failed", "error", err)
		}
		opts.Hub.StopLiveTranscript(owner)
		m.CancelRecording()
		opts.Hub.BroadcastRecordingStatus(string(audio.StateIdle), 0)
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/session/follow-up", func(w http.ResponseWriter, r *http.Request) {
		var req followUpRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		m, _, ok := manager(w, r)
		if !ok {
			return
		}
		m.SetFollowUp(req.Enabled)
		writeJSON(w, http.StatusOK, m.Current())
	})

	mux.HandleFunc("PATCH /api/interactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req renameRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		m, _, ok := manager(w, r)
		if !ok {
			return
		}
		if err := m.RenameInteraction(r.Context(), r.PathValue("id"), req.Title); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m.Current())
	})

	mux.HandleFunc("DELETE /api/interactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		m, _, ok := manager(w, r)
		if !ok {
			return
		}
		deleted, err := m.DeleteInteraction(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
	})

	mux.HandleFunc("POST /api/session/save", func(w http.ResponseWriter, r *http.Request) {
		var req saveRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		m, _, ok := manager(w, r)
		if !ok {
			return
		}

		var (
			saved session.SavedSession
			err   error
		)
		if req.UpdateActive {
			saved, err = m.UpdateActiveSession(r.Context())
		} else {
			saved, err = m.SaveCurrentSession(r.Context(), req.Name, req.IsPublic)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	})

	mux.HandleFunc("POST /api/session/new", func(w http.ResponseWriter, r *http.Request) {
		var req newSessionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		m, _, ok := manager(w, r)
		if !ok {
			return
		}
		if err := m.StartNewSession(req.Discard); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m.Current())
	})

	mux.HandleFunc("GET /api/saved-sessions", func(w http.ResponseWriter, r *http.Request) {
		m, _, ok := manager(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, m.SavedSessions())
	})

	mux.HandleFunc("POST /api/saved-sessions/{index}/continue", func(w http.ResponseWriter, r *http.Request) {
		m, _, ok := manager(w, r)
		if !ok {
			return
		}
		index, err := savedIndex(r)
		if err == nil {
			err = m.ContinueSession(index)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m.Current())
	})

	mux.HandleFunc("DELETE /api/saved-sessions/{index}", func(w http.ResponseWriter, r *http.Request) {
		m, _, ok := manager(w, r)
		if !ok {
			return
		}
		index, err := savedIndex(r)
		if err == nil {
			err = m.DeleteSavedSession(r.Context(), index)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("PATCH /api/saved-sessions/{index}/interactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req renameRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		m, _, ok := manager(w, r)
		if !ok {
			return
		}
		index, err := savedIndex(r)
		if err == nil {
			err = m.RenameSavedInteraction(r.Context(), index, r.PathValue("id"), req.Title)
		}
		var saved session.SavedSession
		if err == nil {
			saved, err = m.SavedSession(index)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	})

	mux.HandleFunc("DELETE /api/saved-sessions/{index}/interactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		m, _, ok := manager(w, r)
		if !ok {
			return
		}
		index, err := savedIndex(r)
		if err != nil {
			writeError(w, err)
			return
		}
		deleted, err := m.DeleteSavedInteraction(r.Context(), index, r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
	})

	mux.HandleFunc("POST /api/saved-sessions/{index}/takeout", func(w http.ResponseWriter, r *http.Request) {
		if opts.Takeout == nil {
			writeError(w, errUnavailable)
			return
		}
		var req takeoutRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		kind, err := takeout.ParseKind(req.Type)
		if err != nil {
			writeError(w, err)
			return
		}
		m, _, ok := manager(w, r)
		if !ok {
			return
		}
		index, err := savedIndex(r)
		if err != nil {
			writeError(w, err)
			return
		}
		saved, err := m.SavedSession(index)
		if err != nil {
			writeError(w, err)
			return
		}

		item, err := opts.Takeout.Export(r.Context(), kind, saved)
		if err != nil {
			slog.Error("server: takeout failed", "index", index, "kind", kind, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	})
}

func savedIndex(r *http.Request) (int, error) {
	index, err := strconv.Atoi(strings.TrimSpace(r.PathValue("index")))
	if err != nil {
		return 0, session.ErrSessionNotFound
	}
	return index, nil
}
