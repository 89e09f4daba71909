// Package worker mirrors transaction events into the spreadsheet.
package worker

import (
	"context"
	"fmt"

	"github.com/nanmax/wa-finance-bot-sub000/internal/amqp"
	"github.com/nanmax/wa-finance-bot-sub000/internal/log"
	"github.com/nanmax/wa-finance-bot-sub000/internal/sheets"
)

// SheetsSyncWorker applies transaction events to a spreadsheet mirror.
type SheetsSyncWorker struct {
	writer  sheets.TransactionWriter
	deleter sheets.TransactionDeleter
	logger  *log.Logger
}

// NewSheetsSyncWorker builds a worker; deleter may be nil, in which case
// delete events are only logged.
func NewSheetsSyncWorker(writer sheets.TransactionWriter, deleter sheets.TransactionDeleter, logger *log.Logger) *SheetsSyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SheetsSyncWorker{
		writer:  writer,
		deleter: deleter,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent implements amqp.TransactionEventHandler. A returned error makes
// the consumer requeue the event.
func (w *SheetsSyncWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	switch ev.Kind {
	case amqp.EventCreated:
		return w.handleCreated(ctx, ev)
	case amqp.EventDeleted:
		return w.handleDeleted(ctx, ev)
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown event kind", "kind", ev.Kind, "id", ev.ID)
		return nil
	}
}

func (w *SheetsSyncWorker) handleCreated(ctx context.Context, ev *amqp.TransactionEvent) error {
	tx := ev.Transaction()
	// Requeueing an invalid snapshot would loop forever.
	if err := tx.Validate(); err != nil {
		w.logger.ErrorContext(ctx, "Dropping invalid transaction event", log.FieldTxID, tx.ID, log.FieldError, err)
		return nil
	}
	ref, err := w.writer.Append(ctx, tx)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	w.logger.InfoContext(ctx, "Successfully synced transaction",
		log.FieldOperation, log.OpSync,
		log.FieldTxID, tx.ID,
		log.FieldSheetsRef, ref,
		log.FieldAmount, tx.Amount,
		log.FieldCategory, tx.Category)
	return nil
}

func (w *SheetsSyncWorker) handleDeleted(ctx context.Context, ev *amqp.TransactionEvent) error {
	if w.deleter == nil {
		w.logger.WarnContext(ctx, "No deleter configured, skipping sheet deletion", log.FieldTxID, ev.ID)
		return nil
	}
	if err := w.deleter.Delete(ctx, ev.ID); err != nil {
		return fmt.Errorf("delete from sheets: %w", err)
	}
	w.logger.InfoContext(ctx, "Successfully deleted transaction from sheet",
		log.FieldOperation, log.OpDelete,
		log.FieldTxID, ev.ID)
	return nil
}
