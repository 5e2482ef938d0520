package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventBookingCreated     = "booking_created"
	EventConfirmationSent   = "confirmation_sent"
	EventFormLinkSent       = "form_link_sent"
	EventStatusChanged      = "status_changed"
	EventWizardCompleted    = "wizard_completed"
	EventNotificationFailed = "notification_failed"
)

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID       string    `json:"booking_id"`
	WorkspaceID     string    `json:"workspace_id"`
	BookingTypeSlug string    `json:"booking_type_slug,omitempty"`
	Status          string    `json:"status"`
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	ContactName     string    `json:"contact_name,omitempty"`
	SessionID       string    `json:"session_id,omitempty"`
}

// NotificationEventPayload describes one notification attempt result.
type NotificationEventPayload struct {
	BookingID   string `json:"booking_id"`
	WorkspaceID string `json:"workspace_id"`
	Kind        string `json:"kind"`
	Outcome     string `json:"outcome"`
	Error       string `json:"error,omitempty"`
}

// StatusEventPayload describes a staff-driven status transition.
type StatusEventPayload struct {
	BookingID   string `json:"booking_id"`
	WorkspaceID string `json:"workspace_id"`
	From        string `json:"from,omitempty"`
	To          string `json:"to"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events. It is injected explicitly
// wherever two components need to talk; there are no global bindings.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
