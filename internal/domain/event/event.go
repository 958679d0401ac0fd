package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys shared by publishers and subscribers
const (
	KeyActorID  = "actor_id"
	KeyUsername = "username"
	KeyRealName = "real_name"
	KeyAmount   = "amount"
	KeyReason   = "reason"
	KeyInvoice  = "invoice"
	KeyNote     = "note"
)

// Event is published after a lifecycle change has been committed
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	RequestID int64                  `json:"request_id"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent creates a new domain event with generated ID and timestamp
func NewEvent(eventType Type, requestID int64, payload map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		RequestID: requestID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

func (e *Event) GetPayloadString(key string) string {
	if str, ok := e.Payload[key].(string); ok {
		return str
	}
	return ""
}

func (e *Event) GetPayloadInt(key string) int64 {
	switch v := e.Payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
