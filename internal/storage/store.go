// Package storage defines the transaction store port and its SQLite
// implementation.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
)

// ListOptions filters List. Zero values mean "no filter"; From is inclusive
// and To exclusive.
type ListOptions struct {
	From   time.Time
	To     time.Time
	Type   core.TransactionType
	Author string
	Limit  int
}

// Match reports whether tx passes every filter except Limit.
func (o ListOptions) Match(tx core.Transaction) bool {
	if !o.From.IsZero() && tx.Timestamp.Before(o.From) {
		return false
	}
	if !o.To.IsZero() && !tx.Timestamp.Before(o.To) {
		return false
	}
	if o.Type != "" && tx.Type != o.Type {
		return false
	}
	if o.Author != "" && tx.Author != o.Author {
		return false
	}
	return true
}

// TransactionStore is the durable record of transactions. Records are
// immutable once saved; the only mutations are deletes and the bulk replace
// used by backup restore. List returns transactions oldest first.
type TransactionStore interface {
	Save(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	Get(ctx context.Context, id string) (core.Transaction, error)
	List(ctx context.Context, opts ListOptions) ([]core.Transaction, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
	ReplaceAll(ctx context.Context, txs []core.Transaction) error
	LastByAuthor(ctx context.Context, author string) (core.Transaction, error)
	Close() error
}

// PrepareForSave validates tx and assigns a fresh id when it has none.
func PrepareForSave(tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("invalid transaction: %w", err)
	}
	if strings.TrimSpace(tx.ID) == "" {
		tx.ID = uuid.NewString()
	}
	return tx, nil
}
