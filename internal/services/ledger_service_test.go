package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

func newLedger(f fixture) (*LedgerService, *recordingPublisher) {
	pub := &recordingPublisher{}
	s := NewLedgerService(f.repo, pub)
	s.now = func() time.Time { return testNow }
	return s, pub
}

func TestLedger_ExpenseThenTransfer(t *testing.T) {
	f := newFixture(t)
	s, _ := newLedger(f)
	ctx := context.Background()
	date := core.NewDate(2024, 3, 1)

	_, err := s.Create(ctx, f.userID, core.TransactionInput{
		Kind: core.KindExpense, Amount: money(200), WalletID: f.walletA, CategoryID: f.food, Date: date,
	})
	require.NoError(t, err)
	_, err = s.Create(ctx, f.userID, core.TransactionInput{
		Kind: core.KindTransfer, Amount: money(50), WalletID: f.walletA, DestWalletID: f.walletB, Date: date,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(-250), f.balance(t, f.walletA))
	assert.Equal(t, int64(50), f.balance(t, f.walletB))
	f.requireConsistent(t, s, f.walletA, f.walletB)
}

func TestLedger_EditTransferToExpense(t *testing.T) {
	f := newFixture(t)
	s, _ := newLedger(f)
	ctx := context.Background()
	date := core.NewDate(2024, 3, 1)

	tx, err := s.Create(ctx, f.userID, core.TransactionInput{
		Kind: core.KindTransfer, Amount: money(100), WalletID: f.walletA, DestWalletID: f.walletB, Date: date,
	})
	require.NoError(t, err)

	updated, err := s.Update(ctx, f.userID, tx.ID, core.TransactionInput{
		Kind: core.KindExpense, Amount: money(100), WalletID: f.walletA, Date: date,
	})
	require.NoError(t, err)
	assert.Empty(t, updated.DestWalletID)

	assert.Equal(t, int64(-100), f.balance(t, f.walletA))
	assert.Equal(t, int64(0), f.balance(t, f.walletB))
	f.requireConsistent(t, s, f.walletA, f.walletB)
}

func TestLedger_IdenticalUpdateIsNoOp(t *testing.T) {
	f := newFixture(t)
	s, _ := newLedger(f)
	ctx := context.Background()
	in := core.TransactionInput{
		Kind: core.KindIncome, Amount: money(900), DestWalletID: f.walletB, CategoryID: f.salary, Date: core.NewDate(2024, 3, 2),
	}

	tx, err := s.Create(ctx, f.userID, in)
	require.NoError(t, err)
	assert.Equal(t, f.walletB, tx.WalletID, "income is stored in the source slot")
	before := f.balance(t, f.walletB)

	_, err = s.Update(ctx, f.userID, tx.ID, in)
	require.NoError(t, err)
	assert.Equal(t, before, f.balance(t, f.walletB))
	assert.Equal(t, int64(900), before)
}

func TestLedger_DeleteRestoresBalances(t *testing.T) {
	f := newFixture(t)
	s, pub := newLedger(f)
	ctx := context.Background()

	tx, err := s.Create(ctx, f.userID, core.TransactionInput{
		Kind: core.KindTransfer, Amount: money(75), WalletID: f.walletA, DestWalletID: f.walletB, Date: core.NewDate(2024, 3, 3),
	})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, f.userID, tx.ID))

	assert.Equal(t, int64(0), f.balance(t, f.walletA))
	assert.Equal(t, int64(0), f.balance(t, f.walletB))

	require.Len(t, pub.events, 2)
	assert.Equal(t, amqp.OperationCreated, pub.events[0].Operation)
	assert.Equal(t, amqp.OperationDeleted, pub.events[1].Operation)
	assert.Equal(t, tx.ID, pub.events[1].TransactionID)
}

func TestLedger_NotFoundLeavesBalances(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u2", core.RoleUser)
	s, _ := newLedger(f)
	ctx := context.Background()

	tx, err := s.Create(ctx, f.userID, core.TransactionInput{
		Kind: core.KindExpense, Amount: money(10), WalletID: f.walletA, Date: core.NewDate(2024, 3, 3),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, s.Delete(ctx, f.userID, "missing"), core.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "u2", tx.ID), core.ErrNotFound)
	_, err = s.Update(ctx, "u2", tx.ID, core.TransactionInput{
		Kind: core.KindExpense, Amount: money(10), WalletID: f.walletA, Date: core.NewDate(2024, 3, 3),
	})
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.Equal(t, int64(-10), f.balance(t, f.walletA))
}

func TestLedger_Validation(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u2", core.RoleUser)
	require.NoError(t, f.repo.Queries().InsertWallet(context.Background(), core.Wallet{ID: "foreign", UserID: "u2", Name: "x", CreatedAt: testNow}))
	s, pub := newLedger(f)
	date := core.NewDate(2024, 3, 1)

	tests := []struct {
		name string
		in   core.TransactionInput
		want error
	}{
		{"zero amount", core.TransactionInput{Kind: core.KindExpense, WalletID: f.walletA, Date: date}, core.ErrInvalidAmount},
		{"bad kind", core.TransactionInput{Kind: "gift", Amount: money(1), WalletID: f.walletA, Date: date}, core.ErrInvalidKind},
		{"no wallet", core.TransactionInput{Kind: core.KindExpense, Amount: money(1), Date: date}, core.ErrMissingWallet},
		{"missing date", core.TransactionInput{Kind: core.KindExpense, Amount: money(1), WalletID: f.walletA}, core.ErrMissingDate},
		{"same wallet transfer", core.TransactionInput{Kind: core.KindTransfer, Amount: money(1), WalletID: f.walletA, DestWalletID: f.walletA, Date: date}, core.ErrSameWallet},
		{"foreign wallet", core.TransactionInput{Kind: core.KindExpense, Amount: money(1), WalletID: "foreign", Date: date}, core.ErrUnknownWallet},
		{"foreign category", core.TransactionInput{Kind: core.KindExpense, Amount: money(1), WalletID: f.walletA, CategoryID: "nope", Date: date}, core.ErrUnknownCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(context.Background(), f.userID, tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, core.IsValidation(err))
		})
	}

	assert.Equal(t, int64(0), f.balance(t, f.walletA))
	assert.Empty(t, pub.events)
}

func TestLedger_DeletedDestinationIsSkipped(t *testing.T) {
	f := newFixture(t)
	s, _ := newLedger(f)
	ctx := context.Background()

	tx, err := s.Create(ctx, f.userID, core.TransactionInput{
		Kind: core.KindTransfer, Amount: money(40), WalletID: f.walletA, DestWalletID: f.walletB, Date: core.NewDate(2024, 3, 3),
	})
	require.NoError(t, err)
	require.NoError(t, f.repo.Queries().DeleteWallet(ctx, f.userID, f.walletB))

	require.NoError(t, s.Delete(ctx, f.userID, tx.ID))
	assert.Equal(t, int64(0), f.balance(t, f.walletA))
	f.requireConsistent(t, s, f.walletA)
}

func TestLedger_MutationHookAndPublishFailure(t *testing.T) {
	f := newFixture(t)
	s, pub := newLedger(f)
	pub.err = errors.New("broker down")
	var invalidated []string
	s.OnMutation(func(userID string) { invalidated = append(invalidated, userID) })

	_, err := s.Create(context.Background(), f.userID, core.TransactionInput{
		Kind: core.KindExpense, Amount: money(5), WalletID: f.walletA, Date: core.NewDate(2024, 3, 3),
	})
	require.NoError(t, err, "publish failures must not fail the request")
	assert.Equal(t, []string{f.userID}, invalidated)
}

func TestLedger_ConservationOverSequence(t *testing.T) {
	f := newFixture(t)
	s, _ := newLedger(f)
	ctx := context.Background()
	date := core.NewDate(2024, 3, 4)

	var ids []string
	inputs := []core.TransactionInput{
		{Kind: core.KindIncome, Amount: money(1000), WalletID: f.walletA, Date: date},
		{Kind: core.KindExpense, Amount: money(130), WalletID: f.walletA, CategoryID: f.food, Date: date},
		{Kind: core.KindTransfer, Amount: money(300), WalletID: f.walletA, DestWalletID: f.walletB, Date: date},
		{Kind: core.KindExpense, Amount: money(45), WalletID: f.walletB, Date: date},
	}
	for _, in := range inputs {
		tx, err := s.Create(ctx, f.userID, in)
		require.NoError(t, err)
		ids = append(ids, tx.ID)
	}

	_, err := s.Update(ctx, f.userID, ids[2], core.TransactionInput{
		Kind: core.KindTransfer, Amount: money(200), WalletID: f.walletB, DestWalletID: f.walletA, Date: date,
	})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, f.userID, ids[1]))

	f.requireConsistent(t, s, f.walletA, f.walletB)
	assert.Equal(t, int64(1200), f.balance(t, f.walletA))
	assert.Equal(t, int64(-245), f.balance(t, f.walletB))

	list, err := s.List(ctx, f.userID, storage.TransactionFilter{WalletID: f.walletB})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestLedger_FailedCreateRollsBack(t *testing.T) {
	f := newFixture(t)
	s, pub := newLedger(f)
	ctx := context.Background()
	date := core.NewDate(2024, 3, 5)

	_, err := s.Create(ctx, f.userID, core.TransactionInput{
		Kind: core.KindIncome, Amount: money(math.MaxInt64 - 1), WalletID: f.walletB, Date: date,
	})
	require.NoError(t, err)
	pub.events = nil

	// The row and the source debit are written before the credit overflows.
	_, err = s.Create(ctx, f.userID, core.TransactionInput{
		Kind: core.KindTransfer, Amount: money(2), WalletID: f.walletA, DestWalletID: f.walletB, Date: date,
	})
	require.ErrorIs(t, err, core.ErrAmountOutOfRange)

	list, err := s.List(ctx, f.userID, storage.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, int64(0), f.balance(t, f.walletA))
	assert.Equal(t, int64(math.MaxInt64-1), f.balance(t, f.walletB))
	assert.Empty(t, pub.events)
}

func TestLedger_FailedUpdateRollsBack(t *testing.T) {
	f := newFixture(t)
	s, _ := newLedger(f)
	ctx := context.Background()
	date := core.NewDate(2024, 3, 5)

	tx, err := s.Create(ctx, f.userID, core.TransactionInput{
		Kind: core.KindExpense, Amount: money(300), WalletID: f.walletA, CategoryID: f.food, Date: date,
	})
	require.NoError(t, err)

	// Reversal succeeds, then the read for the new delta dies with the request.
	calls := 0
	s.getWallet = func(q *storage.Queries, ctx context.Context, userID, id string) (core.Wallet, error) {
		calls++
		if calls == 2 {
			return core.Wallet{}, context.Canceled
		}
		return q.GetWallet(ctx, userID, id)
	}
	_, err = s.Update(ctx, f.userID, tx.ID, core.TransactionInput{
		Kind: core.KindExpense, Amount: money(900), WalletID: f.walletB, Date: date,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	stored, err := s.Get(ctx, f.userID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Amount, stored.Amount)
	assert.Equal(t, f.walletA, stored.WalletID)
	assert.Equal(t, int64(-300), f.balance(t, f.walletA))
	assert.Equal(t, int64(0), f.balance(t, f.walletB))
	f.requireConsistent(t, s, f.walletA, f.walletB)
}

func TestLedger_RetriesExhaustedOnStaleVersion(t *testing.T) {
	f := newFixture(t)
	s, pub := newLedger(f)
	ctx := context.Background()

	var invalidated int
	s.OnMutation(func(string) { invalidated++ })
	reads := 0
	s.getWallet = func(q *storage.Queries, ctx context.Context, userID, id string) (core.Wallet, error) {
		reads++
		w, err := q.GetWallet(ctx, userID, id)
		w.Version--
		return w, err
	}

	_, err := s.Create(ctx, f.userID, core.TransactionInput{
		Kind: core.KindExpense, Amount: money(10), WalletID: f.walletA, Date: core.NewDate(2024, 3, 6),
	})
	var consistency *core.ConsistencyError
	require.ErrorAs(t, err, &consistency)
	assert.ErrorIs(t, err, core.ErrConflict)
	assert.Equal(t, maxLedgerAttempts, reads)

	list, err := s.List(ctx, f.userID, storage.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, int64(0), f.balance(t, f.walletA))
	assert.Zero(t, invalidated)
	assert.Empty(t, pub.events)
}

func TestLedger_LogsCommittedMutation(t *testing.T) {
	f := newFixture(t)
	s, pub := newLedger(f)
	pub.err = errors.New("broker down")

	var buf bytes.Buffer
	logger := applog.New(applog.Config{Component: applog.ComponentHTTP, Handler: slog.NewTextHandler(&buf, nil)})
	ctx := context.WithValue(context.Background(), applog.LoggerContextKey, logger)

	tx, err := s.Create(ctx, f.userID, core.TransactionInput{
		Kind: core.KindExpense, Amount: money(725), WalletID: f.walletA, Date: core.NewDate(2024, 3, 8),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Ledger mutation committed")
	assert.Contains(t, out, "component=ledger")
	assert.Contains(t, out, "transaction_id="+tx.ID)
	assert.Contains(t, out, "amount_cents=725")
	assert.Contains(t, out, "operation="+amqp.OperationCreated)
	assert.Contains(t, out, "Failed to publish ledger event")
	assert.Contains(t, out, "component=amqp")
}
