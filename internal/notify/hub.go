// Package notify fans processing updates out to a customer's live listeners.
package notify

import (
	"sync"
	"time"
)

const bufferSize = 10

type Update struct {
	Type       string    `json:"type"`
	CustomerID string    `json:"customer_id"`
	Payload    any       `json:"payload,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Update]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Update]struct{}),
	}
}

// Subscribe registers a listener for customerID. The returned cancel func
// removes it and closes the channel.
func (h *Hub) Subscribe(customerID string) (<-chan Update, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Update, bufferSize)
	if h.subscribers[customerID] == nil {
		h.subscribers[customerID] = make(map[chan Update]struct{})
	}
	h.subscribers[customerID][ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			subs := h.subscribers[customerID]
			delete(subs, ch)
			if len(subs) == 0 {
				delete(h.subscribers, customerID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Notify delivers u to every listener of customerID without blocking; a
// listener with a full buffer misses the update.
func (h *Hub) Notify(customerID string, u Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if u.CustomerID == "" {
		u.CustomerID = customerID
	}
	if u.Timestamp.IsZero() {
		u.Timestamp = time.Now()
	}
	for ch := range h.subscribers[customerID] {
		select {
		case ch <- u:
		default:
		}
	}
}

func (h *Hub) Subscribers(customerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[customerID])
}
