package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventOrderEnqueued      = "order_enqueued"
	EventOrderCommitted     = "order_committed"
	EventOrderConflict      = "order_conflict"
	EventOrderFailed        = "order_failed"
	EventOrderStatusChanged = "order_status_changed"
)

// OrderEventPayload describes the minimal order snapshot for event consumers.
type OrderEventPayload struct {
	TaskID    int64     `json:"task_id,omitempty"`
	OrderID   int64     `json:"order_id,omitempty"`
	UserID    int64     `json:"user_id"`
	HouseID   int64     `json:"house_id"`
	BeginDate string    `json:"begin_date"`
	EndDate   string    `json:"end_date"`
	Status    string    `json:"status,omitempty"`
	Result    int64     `json:"result,omitempty"`
	At        time.Time `json:"at"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
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
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.Publish(&Event{Type: eventType, Payload: data})
	return nil
}
