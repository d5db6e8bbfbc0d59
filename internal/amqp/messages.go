package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"billcal/internal/core"
)

// Operations carried by an InstanceChangeMessage.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// InstanceChangeMessage announces that a bill instance was created, edited,
// toggled or deleted. It carries only the id; consumers reload the instance.
type InstanceChangeMessage struct {
	MessageID string    `json:"message_id"`
	ID        int64     `json:"id"`
	Op        string    `json:"op"`
	Month     string    `json:"month"` // YYYY-MM
	Timestamp time.Time `json:"timestamp"`
}

// NewInstanceChangeMessage creates a message for instance id in month.
func NewInstanceChangeMessage(id int64, op string, month core.Date) *InstanceChangeMessage {
	m := ""
	if !month.IsZero() {
		m = month.Format("2006-01")
	}
	return &InstanceChangeMessage{
		MessageID: uuid.NewString(),
		ID:        id,
		Op:        op,
		Month:     m,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InstanceChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InstanceChangeMessageFromJSON decodes and checks a message.
func InstanceChangeMessageFromJSON(data []byte) (*InstanceChangeMessage, error) {
	var msg InstanceChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("invalid instance id %d", msg.ID)
	}
	if msg.Op != OpUpsert && msg.Op != OpDelete {
		return nil, fmt.Errorf("unknown op %q", msg.Op)
	}
	return &msg, nil
}
