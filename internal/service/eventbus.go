package service

import (
	"sync"

	"github.com/bnema/vidflow/internal/domain"
)

// Event is a status change of one video, fanned out to SSE subscribers.
type Event struct {
	Type    string             `json:"type"` // "status"
	VideoID string             `json:"video_id"`
	Status  domain.VideoStatus `json:"status"`
	Message string             `json:"message,omitempty"`
}

type EventPublisher interface {
	Publish(videoID string, event Event)
}

type EventBus struct {
	subscribers map[string][]chan Event
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan Event),
	}
}

func (eb *EventBus) Subscribe(videoID string) chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, 16)
	eb.subscribers[videoID] = append(eb.subscribers[videoID], ch)
	return ch
}

func (eb *EventBus) Unsubscribe(videoID string, ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[videoID]
	for i, sub := range subs {
		if sub == ch {
			eb.subscribers[videoID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}

	if len(eb.subscribers[videoID]) == 0 {
		delete(eb.subscribers, videoID)
	}
}

// Publish never blocks; a subscriber with a full buffer misses the event.
func (eb *EventBus) Publish(videoID string, event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers[videoID] {
		select {
		case ch <- event:
		default:
		}
	}
}

func publishStatus(pub EventPublisher, v *domain.Video, message string) {
	if pub == nil || v == nil {
		return
	}
	pub.Publish(v.ID, Event{Type: "status", VideoID: v.ID, Status: v.Status, Message: message})
}
