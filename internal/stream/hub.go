package stream

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/pulsegrid/pulsegrid/pkg/models"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind starts dropping events rather than blocking
// ingestion.
const subscriberBuffer = 16

// Subscription is a live feed of events for a single device. Receive from
// Events until the owner calls Unsubscribe.
type Subscription struct {
	ID       string
	DeviceID string
	Events   chan models.Event
}

// Hub fans events out to per-device subscribers. Publish never blocks:
// a slow subscriber loses events, it does not stall the publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[string]*Subscription

	log *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		subs: make(map[string]map[string]*Subscription),
		log:  log.With("component", "stream"),
	}
}

// Subscribe registers interest in one device's events.
func (h *Hub) Subscribe(deviceID string) *Subscription {
	sub := &Subscription{
		ID:       uuid.New().String(),
		DeviceID: deviceID,
		Events:   make(chan models.Event, subscriberBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[deviceID] == nil {
		h.subs[deviceID] = make(map[string]*Subscription)
	}
	h.subs[deviceID][sub.ID] = sub

	h.log.Debug("subscriber attached", "device_id", deviceID, "subscriber_id", sub.ID)
	return sub
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// once per subscription.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	device, ok := h.subs[sub.DeviceID]
	if !ok {
		return
	}
	if _, ok := device[sub.ID]; !ok {
		return
	}
	delete(device, sub.ID)
	if len(device) == 0 {
		delete(h.subs, sub.DeviceID)
	}
	close(sub.Events)

	h.log.Debug("subscriber detached", "device_id", sub.DeviceID, "subscriber_id", sub.ID)
}

// Publish delivers an event to every subscriber of its device. Events for
// devices without subscribers are dropped silently.
func (h *Hub) Publish(event models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs[event.DeviceID] {
		select {
		case sub.Events <- event:
		default:
			h.log.Warn("subscriber lagging, dropping event",
				"device_id", event.DeviceID,
				"subscriber_id", sub.ID,
				"kind", event.Kind,
			)
		}
	}
}

// SubscriberCount reports how many subscribers are attached to a device.
func (h *Hub) SubscriberCount(deviceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[deviceID])
}
