// Package events carries activity notifications between the web client and
// the export worker over AMQP.
package events

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

var ErrInvalidMessage = errors.New("invalid transaction recorded message")

// TransactionRecordedMessage is published after the remote store accepted a
// new transaction. EventID is the idempotency key on the consumer side.
type TransactionRecordedMessage struct {
	EventID     uuid.UUID `json:"event_id"`
	RecordID    string    `json:"record_id,omitempty"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	Kind        core.Kind `json:"kind"`
	Principal   string    `json:"principal"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// NewTransactionRecorded stamps a fresh event id and time. The kind follows
// the sign of amount.
func NewTransactionRecorded(recordID, description string, amount float64, category, principal string) *TransactionRecordedMessage {
	rec := core.TransactionRecord{Amount: amount}
	return &TransactionRecordedMessage{
		EventID:     uuid.New(),
		RecordID:    recordID,
		Description: description,
		Amount:      amount,
		Category:    category,
		Kind:        rec.Kind(),
		Principal:   principal,
		RecordedAt:  time.Now().UTC(),
	}
}

// Validate rejects messages the worker cannot export.
func (m *TransactionRecordedMessage) Validate() error {
	if m.EventID == uuid.Nil || m.Description == "" || m.RecordedAt.IsZero() {
		return ErrInvalidMessage
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionRecordedFromJSON decodes and validates a message body.
func TransactionRecordedFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
