package amqp

import (
	"testing"
	"time"
)

func TestNewLedgerEventMessage(t *testing.T) {
	msg := NewLedgerEventMessage("hh-1", "expense", "rec-42")

	if msg.HouseholdID != "hh-1" {
		t.Errorf("NewLedgerEventMessage() HouseholdID = %v, want hh-1", msg.HouseholdID)
	}
	if msg.Kind != "expense" {
		t.Errorf("NewLedgerEventMessage() Kind = %v, want expense", msg.Kind)
	}
	if msg.RecordID != "rec-42" {
		t.Errorf("NewLedgerEventMessage() RecordID = %v, want rec-42", msg.RecordID)
	}
	if msg.Timestamp.IsZero() {
		t.Error("NewLedgerEventMessage() Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("NewLedgerEventMessage() Timestamp should be recent")
	}
}

func TestLedgerEventMessage_JSON(t *testing.T) {
	timestamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := &LedgerEventMessage{
		HouseholdID: "hh-1",
		Kind:        "goal_update",
		RecordID:    "goal-7",
		Timestamp:   timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := LedgerEventMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("LedgerEventMessageFromJSON() error = %v", err)
	}

	if parsed.HouseholdID != msg.HouseholdID {
		t.Errorf("Parsed HouseholdID = %v, want %v", parsed.HouseholdID, msg.HouseholdID)
	}
	if parsed.Kind != msg.Kind {
		t.Errorf("Parsed Kind = %v, want %v", parsed.Kind, msg.Kind)
	}
	if parsed.RecordID != msg.RecordID {
		t.Errorf("Parsed RecordID = %v, want %v", parsed.RecordID, msg.RecordID)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestLedgerEventMessage_InvalidJSON(t *testing.T) {
	invalidJSON := []byte(`{"household_id": 42, "kind": "expense"}`)

	_, err := LedgerEventMessageFromJSON(invalidJSON)
	if err == nil {
		t.Error("LedgerEventMessageFromJSON() should fail with invalid JSON")
	}
}
