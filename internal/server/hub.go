package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/sjawhar/gestalt-coach/internal/session"
	"github.com/sjawhar/gestalt-coach/internal/voice"
)

// Hub fans events out to websocket subscribers. Session events and live
// transcript text go only to subscribers of the same owner; recording status
// goes to everyone.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]string

	liveMu    sync.Mutex
	liveOwner string
	liveOn    bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]string)}
}

func (h *Hub) Subscribe(owner string) chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = owner
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		send(ch, msg)
	}
}

// BroadcastTo delivers msg to the subscribers of owner only.
func (h *Hub) BroadcastTo(owner string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch, o := range h.clients {
		if o == owner {
			send(ch, msg)
		}
	}
}

func send(ch chan []byte, msg []byte) {
	select {
	case ch <- msg:
	default:
	}
}

// StartLiveTranscript routes live recorder text to owner until
// StopLiveTranscript is called for the same owner.
func (h *Hub) StartLiveTranscript(owner string) {
	h.liveMu.Lock()
	defer h.liveMu.Unlock()
	h.liveOwner, h.liveOn = owner, true
}

func (h *Hub) StopLiveTranscript(owner string) {
	h.liveMu.Lock()
	defer h.liveMu.Unlock()
	if h.liveOn && h.liveOwner == owner {
		h.liveOwner, h.liveOn = "", false
	}
}

// LiveTranscript forwards text from the live recorder stream to the owner
// of the running recording. Text arriving with no recording owner is dropped.
func (h *Hub) LiveTranscript(text string, final bool) {
	h.liveMu.Lock()
	owner, on := h.liveOwner, h.liveOn
	h.liveMu.Unlock()
	if !on {
		return
	}
	h.ownerEvent(owner, LiveTranscriptEvent{
		Event: newEvent("live_transcript", time.Now().UTC()),
		Text:  text,
		Final: final,
	})
}

func (h *Hub) BroadcastRecordingStatus(state string, elapsed time.Duration) {
	h.broadcastEvent(RecordingStatusEvent{
		Event:          newEvent("recording_status", time.Now().UTC()),
		State:          state,
		ElapsedSeconds: elapsed.Seconds(),
	})
}

func (h *Hub) BroadcastInteractionAdded(owner string, in session.Interaction) {
	h.ownerEvent(owner, InteractionAddedEvent{
		Event:       newEvent("interaction_added", in.CreatedAt),
		Interaction: in,
	})
}

func (h *Hub) BroadcastSessionsChanged(owner string, savedCount int) {
	h.ownerEvent(owner, SessionsChangedEvent{
		Event:      newEvent("sessions_changed", time.Now().UTC()),
		SavedCount: savedCount,
	})
}

func (h *Hub) BroadcastVoiceMessage(owner string, msg voice.Message) {
	h.ownerEvent(owner, VoiceMessageEvent{
		Event:   newEvent("voice_message", msg.Timestamp),
		Message: msg,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, ok := marshalEvent(event)
	if ok {
		h.Broadcast(payload)
	}
}

func (h *Hub) ownerEvent(owner string, event any) {
	payload, ok := marshalEvent(event)
	if ok {
		h.BroadcastTo(owner, payload)
	}
}

func marshalEvent(event any) ([]byte, bool) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return nil, false
	}
	return payload, true
}
