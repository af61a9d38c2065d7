package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/vidflow/internal/domain"
	"github.com/bnema/vidflow/internal/service"
)

const keepAliveInterval = 15 * time.Second

type SSEHandler struct {
	eventBus *service.EventBus
	videos   VideoService
}

func NewSSEHandler(eventBus *service.EventBus, videos VideoService) *SSEHandler {
	return &SSEHandler{
		eventBus: eventBus,
		videos:   videos,
	}
}

// sentState is the last state pushed on a stream, used to skip repeats.
type sentState struct {
	status    domain.VideoStatus
	updatedAt time.Time
}

// sseWrite writes an SSE event, handling multi-line data correctly.
func sseWrite(w http.ResponseWriter, eventName string, data string) {
	_, _ = fmt.Fprintf(w, "event: %s\n", eventName)
	for _, line := range strings.Split(data, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// sendStatus pushes the video as a "status" event unless it is unchanged
// since last.
func (h *SSEHandler) sendStatus(w http.ResponseWriter, v *domain.Video, message string, last *sentState) (*sentState, error) {
	state := &sentState{status: v.Status, updatedAt: v.UpdatedAt}
	if last != nil && last.status == state.status && last.updatedAt.Equal(state.updatedAt) {
		return last, nil
	}

	data, err := json.Marshal(struct {
		Video   *domain.Video `json:"video"`
		Message string        `json:"message,omitempty"`
	}{v, message})
	if err != nil {
		return last, err
	}
	sseWrite(w, "status", string(data))
	return state, nil
}

// sendKeepAlive writes an SSE comment to keep the connection active.
func sendKeepAlive(w http.ResponseWriter) {
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		ctx := r.Context()

		// Subscribe before reading the current state so no transition is missed.
		ch := h.eventBus.Subscribe(id)
		defer h.eventBus.Unsubscribe(id, ch)

		v, err := h.videos.Get(ctx, id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		last, _ := h.sendStatus(w, v, "", nil)
		if v.Status.IsTerminal() {
			<-ctx.Done()
			return
		}

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				sendKeepAlive(w)
			case event, ok := <-ch:
				if !ok {
					return
				}
				v, err := h.videos.Get(ctx, id)
				if err != nil {
					return
				}
				last, _ = h.sendStatus(w, v, event.Message, last)

				// Let the client close the connection once terminal.
				if v.Status.IsTerminal() {
					<-ctx.Done()
					return
				}
			}
		}
	}
}
