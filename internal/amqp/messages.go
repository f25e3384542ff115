package amqp

import (
	"encoding/json"
	"time"

	"bilancio/internal/core"
)

// Entry event operations
const (
	OpEntryCreated = "created"
	OpEntryUpdated = "updated"
	OpEntryDeleted = "deleted"
)

// EntryEventMessage is a lightweight notification that a ledger entry
// changed. It carries the operation and the months the change touched;
// the worker recomputes those months from the database instead of
// trusting any payload.
type EntryEventMessage struct {
	Op        string        `json:"op"`
	EntryID   int64         `json:"entryId"`
	Periods   []core.Period `json:"periods"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewEntryEventMessage creates an event message for one entry change
func NewEntryEventMessage(op string, entryID int64, periods []core.Period) *EntryEventMessage {
	return &EntryEventMessage{
		Op:        op,
		EntryID:   entryID,
		Periods:   periods,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntryEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryEventMessageFromJSON creates a message from JSON bytes
func EntryEventMessageFromJSON(data []byte) (*EntryEventMessage, error) {
	var msg EntryEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
