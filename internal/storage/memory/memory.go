// Package memory is an in-process TransactionStore for tests and demos.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
	"github.com/nanmax/wa-finance-bot-sub000/internal/storage"
)

type Store struct {
	mu  sync.RWMutex
	txs []core.Transaction // insertion order
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Save(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	tx, err := storage.PrepareForSave(tx)
	if err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.txs {
		if existing.ID == tx.ID {
			return core.Transaction{}, fmt.Errorf("transaction %s already exists", tx.ID)
		}
	}
	s.txs = append(s.txs, tx)
	return tx, nil
}

func (s *Store) Get(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tx := range s.txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return core.Transaction{}, core.ErrNotFound
}

// sorted returns a copy ordered by timestamp, insertion order breaking ties.
func (s *Store) sorted() []core.Transaction {
	out := make([]core.Transaction, len(s.txs))
	copy(out, s.txs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func (s *Store) List(_ context.Context, opts storage.ListOptions) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Transaction
	for _, tx := range s.sorted() {
		if !opts.Match(tx) {
			continue
		}
		out = append(out, tx)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, tx := range s.txs {
		if tx.ID == id {
			s.txs = append(s.txs[:i], s.txs[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.txs))
	s.txs = nil
	return n, nil
}

func (s *Store) ReplaceAll(_ context.Context, txs []core.Transaction) error {
	prepared := make([]core.Transaction, 0, len(txs))
	seen := make(map[string]struct{}, len(txs))
	for i, tx := range txs {
		p, err := storage.PrepareForSave(tx)
		if err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("transaction %d: id %s appears more than once", i, p.ID)
		}
		seen[p.ID] = struct{}{}
		prepared = append(prepared, p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = prepared
	return nil
}

func (s *Store) LastByAuthor(_ context.Context, author string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.sorted()
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Author == author {
			return all[i], nil
		}
	}
	return core.Transaction{}, core.ErrNotFound
}

func (s *Store) Close() error { return nil }

var _ storage.TransactionStore = (*Store)(nil)
