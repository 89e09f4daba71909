// Package memory is an in-process spreadsheet mirror, used when no Google
// spreadsheet is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
	ports "github.com/nanmax/wa-finance-bot-sub000/internal/sheets"
)

type Store struct {
	mu      sync.Mutex
	items   []core.Transaction
	appends int
}

var (
	_ ports.TransactionWriter  = (*Store)(nil)
	_ ports.TransactionDeleter = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

// Append stores the transaction and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, tx)
	s.appends++
	return fmt.Sprintf("mem:%d", s.appends), nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, tx := range s.items {
		if tx.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return nil
}

// Rows returns a copy of the mirrored transactions in append order.
func (s *Store) Rows() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.items...)
}
