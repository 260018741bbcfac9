package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sjawhar/gestalt-coach/internal/audio"
	"github.com/sjawhar/gestalt-coach/internal/coach"
	"github.com/sjawhar/gestalt-coach/internal/session"
	"github.com/sjawhar/gestalt-coach/internal/takeout"
	"github.com/sjawhar/gestalt-coach/internal/transcribe"
	"github.com/sjawhar/gestalt-coach/internal/voice"
)

const maxJSONBytes = 1 << 20

var (
	errUploadTooLarge = errors.New("file is too large")
	errUnavailable    = errors.New("not available on this server")
)

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

type chatResponse struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

func registerAPIRoutes(mux *http.ServeMux, opts Options) {
	mux.HandleFunc("POST /api/transcribe", func(w http.ResponseWriter, r *http.Request) {
		if opts.Transcriber == nil {
			writeError(w, errUnavailable)
			return
		}
		artifact, err := readUpload(w, r, opts.MaxUploadBytes)
		if err != nil {
			writeError(w, err)
			return
		}

		result, err := opts.Transcriber.Transcribe(r.Context(), artifact)
		if err != nil {
			slog.Error("server: transcribe failed", "file", artifact.Name, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transcription": result})
	})

	mux.HandleFunc("POST /api/chat", chatHandler(opts, func() Replier { return opts.Coach }))
	mux.HandleFunc("POST /api/play-analysis", chatHandler(opts, func() Replier { return opts.Analyst }))

	mux.HandleFunc("GET /api/get-signed-url", func(w http.ResponseWriter, r *http.Request) {
		if opts.Voice == nil {
			writeError(w, errUnavailable)
			return
		}
		url, err := opts.Voice.SignedURL(r.Context())
		if err != nil {
			slog.Error("server: signed url failed", "error", err)
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"signedUrl": url})
	})

	mux.HandleFunc("POST /api/voice/messages", func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBytes))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
			return
		}
		msg, err := voice.DecodeMessage(data, opts.Now())
		if err != nil {
			writeError(w, err)
			return
		}
		opts.Hub.BroadcastVoiceMessage(opts.Owner(r), msg)
		writeJSON(w, http.StatusOK, msg)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		state := "UNAVAILABLE"
		var elapsed float64
		if opts.Recorder != nil {
			state = string(opts.Recorder.State())
			elapsed = opts.Recorder.Elapsed().Seconds()
		}
		var warnings []string
		if opts.Warnings != nil {
			warnings = opts.Warnings()
		}
		if warnings == nil {
			warnings = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"recording":       state,
			"elapsed_seconds": elapsed,
			"warnings":        warnings,
		})
	})
}

func chatHandler(opts Options, persona func() Replier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent := persona()
		if agent == nil {
			writeError(w, errUnavailable)
			return
		}

		var req chatRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			writeError(w, coach.ErrEmptyMessage)
			return
		}

		conversationID := strings.TrimSpace(req.ConversationID)
		if conversationID == "" {
			conversationID = opts.NewID()
		}

		reply, err := agent.Reply(r.Context(), conversationID, req.Message)
		if err != nil {
			slog.Error("server: chat failed", "path", r.URL.Path, "conversation", conversationID, "error", err)
			writeJSONError(w, http.StatusInternalServerError, "Failed to get response from AI")
			return
		}
		writeJSON(w, http.StatusOK, chatResponse{Message: reply, ConversationID: conversationID})
	}
}

// readUpload pulls the multipart "file" field into an artifact.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (transcribe.Artifact, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return transcribe.Artifact{}, errUploadTooLarge
		}
		return transcribe.Artifact{}, transcribe.ErrMissingFile
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return transcribe.Artifact{}, fmt.Errorf("read upload: %w", err)
	}
	return audio.Upload(header.Filename, header.Header.Get("Content-Type"), data)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func errorStatus(err error) int {
	var permission *audio.PermissionError
	switch {
	case errors.As(err, &permission):
		return http.StatusForbidden
	case errors.Is(err, session.ErrRecordingInFlight),
		errors.Is(err, session.ErrNoRecordingPending),
		errors.Is(err, session.ErrNothingToSave),
		errors.Is(err, session.ErrUnsavedInteractions),
		errors.Is(err, audio.ErrAlreadyRecording),
		errors.Is(err, audio.ErrNotRecording):
		return http.StatusConflict
	case errors.Is(err, session.ErrInteractionNotFound),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrNoActiveSession):
		return http.StatusNotFound
	case errors.Is(err, audio.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, errUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, audio.ErrEmptyFile),
		errors.Is(err, transcribe.ErrMissingFile),
		errors.Is(err, coach.ErrEmptyMessage),
		errors.Is(err, takeout.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrEmptyTranscript),
		errors.Is(err, voice.ErrUnrecognizedMessage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSONError(w, errorStatus(err), err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
