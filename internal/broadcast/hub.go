package broadcast

import (
	"strings"
	"sync"
)

// ChannelPrefix prefixes per-viewer channel names.
const ChannelPrefix = "user."

// EventModelOperation is the event name of operation messages.
const EventModelOperation = "model.operation"

// Channel returns the private channel of a viewer.
func Channel(viewerID string) string {
	return ChannelPrefix + viewerID
}

// ViewerOf returns the viewer id a channel belongs to.
func ViewerOf(channel string) (string, bool) {
	id, ok := strings.CutPrefix(channel, ChannelPrefix)
	return id, ok && id != ""
}

// Message is one published event.
type Message struct {
	ID      string `json:"id"`
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Data    any    `json:"data"`
}

// Subscription receives the messages of one channel. Messages published
// while its buffer is full are dropped.
type Subscription struct {
	C <-chan Message

	channel string
	ch      chan Message
	hub     *Hub
	once    sync.Once
}

// Close unsubscribes. C is closed once no more messages can arrive.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Hub fans messages out to channel subscribers. It is safe for concurrent
// use.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe opens a subscription with the given buffer size.
func (h *Hub) Subscribe(channel string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 1
	}

	ch := make(chan Message, buffer)
	s := &Subscription{C: ch, channel: channel, ch: ch, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[channel] == nil {
		h.subs[channel] = make(map[*Subscription]struct{})
	}

	h.subs[channel][s] = struct{}{}

	return s
}

// Publish delivers msg to every subscriber of its channel without
// blocking and reports how many received and how many dropped it.
func (h *Hub) Publish(msg Message) (delivered, dropped int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs[msg.Channel] {
		select {
		case s.ch <- msg:
			delivered++
		default:
			dropped++
		}
	}

	return delivered, dropped
}

// Subscribers returns the number of subscriptions on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs[channel])
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs[s.channel], s)

	if len(h.subs[s.channel]) == 0 {
		delete(h.subs, s.channel)
	}

	close(s.ch)
}
