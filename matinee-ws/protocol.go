package matineews

import (
	"encoding/json"
	"fmt"
	"time"
)

// Client-facing route actions and outbound push actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionBroadcast   = "broadcast"

	ActionSubscribed   = "subscribed"
	ActionUnsubscribed = "unsubscribed"
	ActionUpdate       = "update"
)

// ClientMessage is a message received on the $default WebSocket route.
type ClientMessage struct {
	Action     string          `json:"action"`
	Channel    string          `json:"channel"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId,omitempty"`
	EventType  string          `json:"eventType,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage is a message pushed to a session.
type ServerMessage struct {
	Action     string          `json:"action"`
	Channel    string          `json:"channel"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId,omitempty"`
	EventType  string          `json:"eventType,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// ParseMessage parses a client message from a JSON string.
func ParseMessage(body string) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	if msg.Action == "" {
		return nil, fmt.Errorf("missing message action")
	}
	return &msg, nil
}

// Validate checks structural presence of the fields required for the
// message's action. Payload semantics are never inspected.
func (m *ClientMessage) Validate() error {
	if m.Channel == "" {
		return &ValidationError{Field: "channel"}
	}
	if m.EntityType == "" {
		return &ValidationError{Field: "entityType"}
	}
	if m.Action == ActionBroadcast {
		if m.EventType == "" {
			return &ValidationError{Field: "eventType"}
		}
		if len(m.Payload) == 0 {
			return &ValidationError{Field: "payload"}
		}
	}
	return nil
}

func (m *ClientMessage) Topic() Topic {
	return Topic{Channel: m.Channel, EntityType: m.EntityType, EntityID: m.EntityID}
}

// Event is one broadcast in flight. It is never persisted; the timestamp is
// stamped when fan-out begins.
type Event struct {
	Channel    string          `json:"channel"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId,omitempty"`
	EventType  string          `json:"eventType"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (ev Event) Topic() Topic {
	return Topic{Channel: ev.Channel, EntityType: ev.EntityType, EntityID: ev.EntityID}
}

func (ev Event) Validate() error {
	if ev.Channel == "" {
		return &ValidationError{Field: "channel"}
	}
	if ev.EntityType == "" {
		return &ValidationError{Field: "entityType"}
	}
	if ev.EventType == "" {
		return &ValidationError{Field: "eventType"}
	}
	if len(ev.Payload) == 0 {
		return &ValidationError{Field: "payload"}
	}
	return nil
}

// UpdateMessage builds the outbound push for a broadcast event.
func UpdateMessage(ev Event) ([]byte, error) {
	b, err := json.Marshal(ServerMessage{
		Action:     ActionUpdate,
		Channel:    ev.Channel,
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		EventType:  ev.EventType,
		Payload:    ev.Payload,
		Timestamp:  ev.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling update message: %w", err)
	}
	return b, nil
}

// AckMessage builds the subscribed/unsubscribed acknowledgement pushed back
// to the requesting session.
func AckMessage(action string, topic Topic) []byte {
	b, _ := json.Marshal(ServerMessage{
		Action:     action,
		Channel:    topic.Channel,
		EntityType: topic.EntityType,
		EntityID:   topic.EntityID,
		Timestamp:  time.Now().UTC(),
	})
	return b
}
