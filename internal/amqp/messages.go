package amqp

import (
	"encoding/json"
	"time"
)

// LedgerEventMessage announces one accepted ledger mutation. It carries only
// identifiers; the worker reloads the household's ledger from the database,
// so a stale or duplicated message is harmless.
type LedgerEventMessage struct {
	HouseholdID string    `json:"household_id"`
	Kind        string    `json:"kind"` // user, income, expense, goal, goal_update
	RecordID    string    `json:"record_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewLedgerEventMessage creates an event message stamped with the current time.
func NewLedgerEventMessage(householdID, kind, recordID string) *LedgerEventMessage {
	return &LedgerEventMessage{
		HouseholdID: householdID,
		Kind:        kind,
		RecordID:    recordID,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
