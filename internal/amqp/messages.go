package amqp

import (
	"encoding/json"
	"time"
)

// NotificationMessage is the fan-out payload published after a board
// transition or a form submission: who did what to which subject. Delivery
// is best-effort; the worker decides the channel.
type NotificationMessage struct {
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Subject   string    `json:"subject"`
	Detail    string    `json:"detail,omitempty"`
	TenantID  int64     `json:"tenant_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewNotificationMessage builds a message stamped with the current time.
func NewNotificationMessage(tenantID int64, actor, action, subject, detail string) *NotificationMessage {
	return &NotificationMessage{
		Actor:     actor,
		Action:    action,
		Subject:   subject,
		Detail:    detail,
		TenantID:  tenantID,
		Timestamp: time.Now(),
	}
}

// Key identifies the message for at-most-once suppression: the same actor
// performing the same action on the same subject maps to the same key.
func (m *NotificationMessage) Key() string {
	return m.Action + ":" + m.Subject
}

// ToJSON converts the message to JSON bytes.
func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NotificationMessageFromJSON parses a message from JSON bytes.
func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
