package amqp

import (
	"encoding/json"
	"time"
)

// Ledger operations carried by LedgerEvent.
const (
	OperationCreated = "created"
	OperationUpdated = "updated"
	OperationDeleted = "deleted"
)

// LedgerEvent announces a committed ledger mutation. Consumers reload the
// transaction from the store; the event carries identifiers only.
type LedgerEvent struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Operation     string    `json:"operation"`
	Kind          string    `json:"kind"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerEvent(transactionID, userID, operation, kind string) *LedgerEvent {
	return &LedgerEvent{
		TransactionID: transactionID,
		UserID:        userID,
		Operation:     operation,
		Kind:          kind,
		Timestamp:     time.Now(),
	}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
