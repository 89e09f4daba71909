// Package services orchestrates transaction writes across the store, the
// event bus and the report cache.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/nanmax/wa-finance-bot-sub000/internal/amqp"
	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
	"github.com/nanmax/wa-finance-bot-sub000/internal/log"
	"github.com/nanmax/wa-finance-bot-sub000/internal/storage"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error
	Close() error
}

// Invalidator drops derived data after a write. cache.Cache satisfies it.
type Invalidator interface {
	Clear(ctx context.Context)
}

// TransactionService saves to the store first and then publishes an event.
// Publish failures are logged and never fail the write: the store is the
// source of truth and the mirror catches up on the next event.
type TransactionService struct {
	store       storage.TransactionStore
	publisher   EventPublisher
	invalidator Invalidator
	logger      *log.Logger
}

type Option func(*TransactionService)

func WithPublisher(p EventPublisher) Option {
	return func(s *TransactionService) { s.publisher = p }
}

func WithInvalidator(inv Invalidator) Option {
	return func(s *TransactionService) { s.invalidator = inv }
}

func WithLogger(l *log.Logger) Option {
	return func(s *TransactionService) { s.logger = l }
}

func NewTransactionService(store storage.TransactionStore, opts ...Option) *TransactionService {
	s := &TransactionService{store: store, logger: log.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentStorage)
	return s
}

// Record persists tx and announces it. The returned transaction carries the
// id assigned by the store.
func (s *TransactionService) Record(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	saved, err := s.store.Save(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.invalidate(ctx)
	s.publish(ctx, amqp.EventCreated, saved)
	return saved, nil
}

// Delete removes the transaction with the given id. core.ErrNotFound is
// returned unchanged for unknown ids.
func (s *TransactionService) Delete(ctx context.Context, id string) (core.Transaction, error) {
	tx, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction: %w", err)
	}
	s.invalidate(ctx)
	s.publish(ctx, amqp.EventDeleted, tx)
	return tx, nil
}

// UndoLast deletes the most recent transaction recorded by author.
func (s *TransactionService) UndoLast(ctx context.Context, author string) (core.Transaction, error) {
	last, err := s.store.LastByAuthor(ctx, author)
	if err != nil {
		return core.Transaction{}, err
	}
	return s.Delete(ctx, last.ID)
}

func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.Get(ctx, id)
}

func (s *TransactionService) List(ctx context.Context, opts storage.ListOptions) ([]core.Transaction, error) {
	return s.store.List(ctx, opts)
}

// All returns every stored transaction, oldest first.
func (s *TransactionService) All(ctx context.Context) ([]core.Transaction, error) {
	return s.store.List(ctx, storage.ListOptions{})
}

// Restore replaces the whole data set. No events are published; the
// spreadsheet mirror is expected to be rebuilt separately after a restore.
func (s *TransactionService) Restore(ctx context.Context, txs []core.Transaction) error {
	if err := s.store.ReplaceAll(ctx, txs); err != nil {
		return fmt.Errorf("restore transactions: %w", err)
	}
	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "Transactions restored", log.FieldOperation, log.OpRestore, "count", len(txs))
	return nil
}

func (s *TransactionService) invalidate(ctx context.Context) {
	if s.invalidator != nil {
		s.invalidator.Clear(ctx)
	}
}

func (s *TransactionService) publish(ctx context.Context, kind amqp.EventKind, tx core.Transaction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionEvent(ctx, amqp.NewTransactionEvent(kind, tx)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish transaction event",
			log.FieldOperation, log.OpPublish,
			log.FieldTxID, tx.ID,
			"kind", kind,
			log.FieldError, err)
	}
}

// Close closes both the store and the publisher.
func (s *TransactionService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close transaction service: %w", errors.Join(errs...))
	}
	return nil
}
