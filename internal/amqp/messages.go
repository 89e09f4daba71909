package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
)

// EventKind names what happened to a transaction.
type EventKind string

const (
	EventCreated EventKind = "transaction.created"
	EventDeleted EventKind = "transaction.deleted"
)

// TransactionEvent carries a full transaction snapshot, so consumers never
// need to read the bot's database.
type TransactionEvent struct {
	Kind        EventKind `json:"kind"`
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Amount      int64     `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	Timestamp   time.Time `json:"timestamp"`
	EmittedAt   time.Time `json:"emittedAt"`
}

// NewTransactionEvent snapshots tx.
func NewTransactionEvent(kind EventKind, tx core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Kind:        kind,
		ID:          tx.ID,
		Type:        string(tx.Type),
		Amount:      tx.Amount,
		Category:    tx.Category,
		Description: tx.Description,
		Author:      tx.Author,
		Timestamp:   tx.Timestamp,
		EmittedAt:   time.Now(),
	}
}

// Transaction rebuilds the transaction the event describes.
func (e *TransactionEvent) Transaction() core.Transaction {
	return core.Transaction{
		ID:          e.ID,
		Type:        core.TransactionType(e.Type),
		Amount:      e.Amount,
		Category:    e.Category,
		Description: e.Description,
		Author:      e.Author,
		Timestamp:   e.Timestamp,
	}
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes and sanity-checks an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	switch ev.Kind {
	case EventCreated, EventDeleted:
	default:
		return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	if ev.ID == "" {
		return nil, fmt.Errorf("event without transaction id")
	}
	return &ev, nil
}
