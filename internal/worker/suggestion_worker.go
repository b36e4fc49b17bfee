package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Suggester records an informational category suggestion on a transaction.
type Suggester interface {
	RecordSuggestion(ctx context.Context, userID, txID string) error
}

// SuggestionWorker turns ledger events into AI category suggestions. It never
// touches balances.
type SuggestionWorker struct {
	repo      *storage.Repository
	suggester Suggester
	batchSize int
}

func NewSuggestionWorker(repo *storage.Repository, suggester Suggester, batchSize int) *SuggestionWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &SuggestionWorker{repo: repo, suggester: suggester, batchSize: batchSize}
}

// HandleLedgerEvent processes one event from the queue. Returning an error
// requeues the delivery.
func (w *SuggestionWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	if ev.Operation == amqp.OperationDeleted || core.Kind(ev.Kind) == core.KindTransfer {
		return nil
	}

	slog.InfoContext(ctx, "Processing ledger event",
		"transaction_id", ev.TransactionID,
		"operation", ev.Operation)

	if err := w.suggester.RecordSuggestion(ctx, ev.UserID, ev.TransactionID); err != nil {
		return fmt.Errorf("record suggestion: %w", err)
	}
	return nil
}

// ProcessPending suggests categories for transactions whose events were
// missed, e.g. while the worker was down. Failures are logged per row.
func (w *SuggestionWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.repo.Queries().PendingSuggestions(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	var ok, failed int
	for _, t := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.suggester.RecordSuggestion(ctx, t.UserID, t.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to record suggestion",
				"transaction_id", t.ID,
				"error", err)
			failed++
			continue
		}
		ok++
	}

	slog.InfoContext(ctx, "Pending suggestions processed",
		"total", len(pending),
		"processed", ok,
		"errors", failed)
	return nil
}
