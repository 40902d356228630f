// Package realtime pushes stored notifications to the live connections of
// their recipients.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/logger"
	"zephyrm-backend/internal/metrics"
)

// MessageTypeNewNotification is the envelope type of a pushed notification.
const MessageTypeNewNotification = "NEW_NOTIFICATION"

// Envelope is the frame written to a channel.
type Envelope struct {
	Type         string               `json:"type"`
	Notification *domain.Notification `json:"notification"`
}

// Channel is one live connection of a user. Enqueue must not block; it
// reports false when the channel cannot take the message.
type Channel interface {
	ID() string
	Enqueue(msg []byte) bool
	Close()
}

// Hub maps users to their open channels. A user may hold any number of them.
type Hub struct {
	mu       sync.RWMutex
	channels map[int32]map[string]Channel
	metrics  *metrics.Metrics
}

func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		channels: make(map[int32]map[string]Channel),
		metrics:  m,
	}
}

func (h *Hub) Register(userID int32, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	byID, ok := h.channels[userID]
	if !ok {
		byID = make(map[string]Channel)
		h.channels[userID] = byID
	}
	if old, ok := byID[ch.ID()]; ok && old != ch {
		old.Close()
		h.metrics.ConnectionClosed()
	}
	byID[ch.ID()] = ch
	h.metrics.ConnectionOpened()
	logger.Debug("Channel registered", "userID", userID, "channelID", ch.ID(), "open", len(byID))
}

// Unregister closes and forgets the channel. It reports whether the channel
// was still registered.
func (h *Hub) Unregister(userID int32, channelID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.remove(userID, channelID)
}

// remove must be called with h.mu held.
func (h *Hub) remove(userID int32, channelID string) bool {
	byID, ok := h.channels[userID]
	if !ok {
		return false
	}
	ch, ok := byID[channelID]
	if !ok {
		return false
	}
	delete(byID, channelID)
	if len(byID) == 0 {
		delete(h.channels, userID)
	}
	ch.Close()
	h.metrics.ConnectionClosed()
	logger.Debug("Channel unregistered", "userID", userID, "channelID", channelID)
	return true
}

// Connections returns how many channels the user has open.
func (h *Hub) Connections(userID int32) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[userID])
}

// Deliver pushes n to every channel of userID. Having no channel is not an
// error. The table lock is held while enqueueing so two deliveries to the
// same user land in every channel in the same order.
func (h *Hub) Deliver(ctx context.Context, userID int32, n *domain.Notification) error {
	msg, err := json.Marshal(Envelope{Type: MessageTypeNewNotification, Notification: n})
	if err != nil {
		return err
	}
	h.deliverRaw(userID, msg)
	return nil
}

func (h *Hub) deliverRaw(userID int32, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	byID := h.channels[userID]
	if len(byID) == 0 {
		return
	}
	for id, ch := range byID {
		if ch.Enqueue(msg) {
			h.metrics.MessageDelivered()
			continue
		}
		// Slow consumer.
		logger.Warn("Dropping channel with full buffer", "userID", userID, "channelID", id)
		h.metrics.ChannelDropped()
		h.remove(userID, id)
	}
}

// Close drops every channel. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, byID := range h.channels {
		for id := range byID {
			h.remove(userID, id)
		}
	}
}
