package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

const maxLedgerAttempts = 3

// EventPublisher announces committed ledger mutations.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// LedgerService keeps wallet balances consistent with the transactions that
// reference them. Every mutation runs in one database transaction: the
// stored row and all balance deltas commit together or not at all.
type LedgerService struct {
	repo      *storage.Repository
	publisher EventPublisher
	now       func() time.Time
	// getWallet reads a wallet inside the mutation's transaction.
	getWallet func(*storage.Queries, context.Context, string, string) (core.Wallet, error)
	mutationHooks
}

func NewLedgerService(repo *storage.Repository, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		repo:      repo,
		publisher: publisher,
		now:       time.Now,
		getWallet: (*storage.Queries).GetWallet,
	}
}

// Create validates and stores a transaction, then applies its forward deltas.
func (s *LedgerService) Create(ctx context.Context, userID string, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var created core.Transaction
	err := s.withRetry(ctx, "create transaction", func(q *storage.Queries) error {
		t, err := s.resolve(ctx, q, userID, in)
		if err != nil {
			return err
		}
		t.ID = core.NewID()
		t.UserID = userID
		t.CreatedAt = s.now().UTC()

		if err := q.InsertTransaction(ctx, t); err != nil {
			return err
		}
		if err := s.applyDeltas(ctx, q, userID, t.Deltas()); err != nil {
			return err
		}
		created = t
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.afterCommit(ctx, created, amqp.OperationCreated)
	return created, nil
}

// Update reverses the stored transaction's deltas, overwrites it, and applies
// the new deltas, atomically. Kind and wallet changes need no special casing.
func (s *LedgerService) Update(ctx context.Context, userID, id string, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var updated core.Transaction
	err := s.withRetry(ctx, "update transaction", func(q *storage.Queries) error {
		old, err := q.GetTransaction(ctx, userID, id)
		if err != nil {
			return err
		}
		next, err := s.resolve(ctx, q, userID, in)
		if err != nil {
			return err
		}
		next.ID = old.ID
		next.UserID = old.UserID
		next.CreatedAt = old.CreatedAt
		if next.AICategoryID == "" && next.AIConfidence == nil {
			next.AICategoryID = old.AICategoryID
			next.AIConfidence = old.AIConfidence
		}

		if err := s.applyDeltas(ctx, q, userID, core.Inverse(old.Deltas())); err != nil {
			return err
		}
		if err := q.UpdateTransaction(ctx, next); err != nil {
			return err
		}
		if err := s.applyDeltas(ctx, q, userID, next.Deltas()); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.afterCommit(ctx, updated, amqp.OperationUpdated)
	return updated, nil
}

// Delete reverses the transaction's deltas and removes it.
func (s *LedgerService) Delete(ctx context.Context, userID, id string) error {
	var deleted core.Transaction
	err := s.withRetry(ctx, "delete transaction", func(q *storage.Queries) error {
		old, err := q.GetTransaction(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := s.applyDeltas(ctx, q, userID, core.Inverse(old.Deltas())); err != nil {
			return err
		}
		if err := q.DeleteTransaction(ctx, userID, id); err != nil {
			return err
		}
		deleted = old
		return nil
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, deleted, amqp.OperationDeleted)
	return nil
}

func (s *LedgerService) Get(ctx context.Context, userID, id string) (core.Transaction, error) {
	return s.repo.Queries().GetTransaction(ctx, userID, id)
}

func (s *LedgerService) List(ctx context.Context, userID string, f storage.TransactionFilter) ([]core.Transaction, error) {
	return s.repo.Queries().ListTransactions(ctx, userID, f)
}

// VerifyBalance recomputes a wallet's balance from its history. It never
// writes; callers compare stored and computed.
func (s *LedgerService) VerifyBalance(ctx context.Context, userID, walletID string) (stored, computed core.Money, err error) {
	q := s.repo.Queries()
	w, err := q.GetWallet(ctx, userID, walletID)
	if err != nil {
		return core.Money{}, core.Money{}, err
	}
	effect, err := q.WalletHistoryEffect(ctx, userID, walletID)
	if err != nil {
		return core.Money{}, core.Money{}, err
	}
	return w.Balance, w.OpeningBalance.Add(effect), nil
}

// resolve turns validated input into a transaction row, checking that every
// referenced wallet and category belongs to userID.
func (s *LedgerService) resolve(ctx context.Context, q *storage.Queries, userID string, in core.TransactionInput) (core.Transaction, error) {
	source, dest, err := in.Wallets()
	if err != nil {
		return core.Transaction{}, err
	}
	for _, id := range []string{source, dest} {
		if id == "" {
			continue
		}
		if _, err := q.GetWallet(ctx, userID, id); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return core.Transaction{}, core.ErrUnknownWallet
			}
			return core.Transaction{}, err
		}
	}
	for _, id := range []string{in.CategoryID, in.AICategoryID} {
		if id == "" {
			continue
		}
		if _, err := q.GetCategory(ctx, userID, id); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return core.Transaction{}, core.ErrUnknownCategory
			}
			return core.Transaction{}, err
		}
	}

	return core.Transaction{
		Kind:         in.Kind,
		Amount:       in.Amount,
		WalletID:     source,
		DestWalletID: dest,
		CategoryID:   in.CategoryID,
		AICategoryID: in.AICategoryID,
		AIConfidence: in.AIConfidence,
		Date:         in.Date,
		Description:  in.Description,
	}, nil
}

// applyDeltas writes each delta with a version compare-and-swap. A wallet
// that no longer exists is skipped: its reference was cleared on deletion
// and there is no balance left to keep consistent.
func (s *LedgerService) applyDeltas(ctx context.Context, q *storage.Queries, userID string, deltas []core.WalletDelta) error {
	for _, d := range deltas {
		w, err := s.getWallet(q, ctx, userID, d.WalletID)
		if errors.Is(err, core.ErrNotFound) {
			slog.WarnContext(ctx, "Skipping balance delta for missing wallet",
				"wallet_id", d.WalletID,
				"amount_cents", d.Amount.Cents)
			continue
		}
		if err != nil {
			return err
		}
		next, err := w.Balance.CheckedAdd(d.Amount)
		if err != nil {
			return err
		}
		if err := q.CompareAndSwapBalance(ctx, userID, w.ID, w.Version, next); err != nil {
			return err
		}
	}
	return nil
}

// withRetry runs fn in a transaction, retrying the whole unit when a wallet
// version moved underneath it.
func (s *LedgerService) withRetry(ctx context.Context, op string, fn func(q *storage.Queries) error) error {
	var err error
	for attempt := 1; attempt <= maxLedgerAttempts; attempt++ {
		err = s.repo.WithTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, core.ErrConflict) {
			break
		}
		slog.WarnContext(ctx, "Wallet version conflict, retrying", "op", op, "attempt", attempt)
	}

	if core.IsValidation(err) || errors.Is(err, core.ErrNotFound) {
		return err
	}
	return &core.ConsistencyError{Op: op, Err: err}
}

func (s *LedgerService) afterCommit(ctx context.Context, t core.Transaction, operation string) {
	structured := applog.NewStructuredLogger(applog.FromContext(ctx))
	structured.LogMutation(ctx, operation, t.UserID, t.ID, string(t.Kind), t.Amount.Cents)
	s.notify(t.UserID)

	if s.publisher == nil {
		return
	}
	ev := amqp.NewLedgerEvent(t.ID, t.UserID, operation, string(t.Kind))
	if err := s.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		structured.LogError(ctx, "Failed to publish ledger event", err, applog.ComponentAMQP, operation,
			applog.NewFields().WithTransaction(t.ID, string(t.Kind), t.Amount.Cents).WithUser(t.UserID))
	}
}
