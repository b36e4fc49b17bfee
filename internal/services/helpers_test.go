package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

var testNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *storage.Repository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "fintrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

// fixture is a registered user with two empty wallets and two categories.
type fixture struct {
	repo    *storage.Repository
	userID  string
	walletA string
	walletB string
	food    string
	salary  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	repo := newTestRepo(t)
	q := repo.Queries()

	f := fixture{repo: repo, userID: "u1", walletA: "wa", walletB: "wb", food: "cfood", salary: "csal"}
	require.NoError(t, q.InsertUser(ctx, core.User{
		ID: f.userID, Email: "u1@example.com", Name: "U1", PasswordHash: "x",
		Role: core.RoleUser, Status: core.StatusActive, CreatedAt: testNow, UpdatedAt: testNow,
	}))
	require.NoError(t, q.InsertSettings(ctx, core.DefaultSettings(f.userID)))
	for _, id := range []string{f.walletA, f.walletB} {
		require.NoError(t, q.InsertWallet(ctx, core.Wallet{ID: id, UserID: f.userID, Name: "Wallet " + id, CreatedAt: testNow}))
	}
	require.NoError(t, q.InsertCategory(ctx, core.Category{ID: f.food, UserID: f.userID, Name: "Food", Direction: core.DirectionExpense}))
	require.NoError(t, q.InsertCategory(ctx, core.Category{ID: f.salary, UserID: f.userID, Name: "Salary", Direction: core.DirectionIncome}))
	return f
}

func (f fixture) addUser(t *testing.T, id string, role core.Role) {
	t.Helper()
	require.NoError(t, f.repo.Queries().InsertUser(context.Background(), core.User{
		ID: id, Email: id + "@example.com", Name: id, PasswordHash: "x",
		Role: role, Status: core.StatusActive, CreatedAt: testNow, UpdatedAt: testNow,
	}))
}

func (f fixture) balance(t *testing.T, walletID string) int64 {
	t.Helper()
	w, err := f.repo.Queries().GetWallet(context.Background(), f.userID, walletID)
	require.NoError(t, err)
	return w.Balance.Cents
}

// requireConsistent checks the stored balance against the recomputed history.
func (f fixture) requireConsistent(t *testing.T, ledger *LedgerService, walletIDs ...string) {
	t.Helper()
	for _, id := range walletIDs {
		stored, computed, err := ledger.VerifyBalance(context.Background(), f.userID, id)
		require.NoError(t, err)
		require.Equal(t, computed, stored, "wallet %s drifted", id)
	}
}

func money(cents int64) core.Money { return core.Money{Cents: cents} }

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}
