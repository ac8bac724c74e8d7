package app

import (
	"context"
	"errors"
	"sync"

	"quiz-battle-service/internal/domain"
)

// RoomHub fans room events out to in-process subscribers (websocket clients).
type RoomHub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.Event]struct{}
}

func NewRoomHub() *RoomHub {
	return &RoomHub{subscribers: make(map[string]map[chan domain.Event]struct{})}
}

// Subscribe returns a channel that receives events for a room.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *RoomHub) Subscribe(roomID string) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 16)

	h.mu.Lock()
	subs, ok := h.subscribers[roomID]
	if !ok {
		subs = make(map[chan domain.Event]struct{})
		h.subscribers[roomID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[roomID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.subscribers, roomID)
		}
	}
	return ch, cancel
}

// Publish delivers event to every subscriber of its room without blocking.
func (h *RoomHub) Publish(_ context.Context, event domain.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[event.RoomID] {
		select {
		case ch <- event:
		default:
			// Slow subscriber: drop its oldest event to make room.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
	return nil
}

// Subscribers reports how many channels listen to a room.
func (h *RoomHub) Subscribers(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[roomID])
}

// Publishers publishes to each publisher in turn and joins their errors.
type Publishers []EventPublisher

func (p Publishers) Publish(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, pub := range p {
		if err := pub.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
