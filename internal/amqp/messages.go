package amqp

import (
	"encoding/json"
	"time"

	"mealbook/internal/ledger"
)

// LedgerSavedMessage announces that a ledger was persisted. It carries only
// the key; consumers fetch the full ledger from the database.
type LedgerSavedMessage struct {
	OwnerID   string    `json:"owner_id"`
	Month     int       `json:"month"`
	Year      int       `json:"year"`
	UpdatedAt time.Time `json:"updated_at"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerSavedMessage builds the message for a freshly saved ledger.
func NewLedgerSavedMessage(l ledger.Ledger) *LedgerSavedMessage {
	return &LedgerSavedMessage{
		OwnerID:   l.OwnerID,
		Month:     l.Month,
		Year:      l.Year,
		UpdatedAt: l.UpdatedAt,
		Timestamp: time.Now(),
	}
}

// Key returns the ledger key the message refers to.
func (m *LedgerSavedMessage) Key() ledger.Key {
	return ledger.Key{OwnerID: m.OwnerID, Month: m.Month, Year: m.Year}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerSavedMessageFromJSON decodes and validates a message body.
func LedgerSavedMessageFromJSON(data []byte) (*LedgerSavedMessage, error) {
	var msg LedgerSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Key().Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
