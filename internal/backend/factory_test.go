package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/sheets/memory"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataBackend:     config.BackendSQLite,
		SQLiteDBPath:    filepath.Join(t.TempDir(), "fintrack.db"),
		Suggester:       config.SuggesterBayes,
		AITimeout:       time.Second,
		ReportCacheTTL:  time.Minute,
		ReportCacheSize: 10,
		GoogleSheetName: "Export",
	}
}

func openApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := NewFactory(nil).Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func TestOpen_DefaultsToLocalCollaborators(t *testing.T) {
	app := openApp(t, testConfig(t))

	assert.IsType(t, &memory.Store{}, app.Exporter)
	assert.NotNil(t, app.Suggester)
	assert.Nil(t, app.AMQP)
	require.NoError(t, app.Repo.Ping(context.Background()))
}

func TestOpen_SuggesterNone(t *testing.T) {
	cfg := testConfig(t)
	cfg.Suggester = config.SuggesterNone
	app := openApp(t, cfg)

	assert.Nil(t, app.Suggester)
}

func TestOpen_RejectsBadCollaborators(t *testing.T) {
	tests := map[string]string{
		"gemini without key": config.SuggesterGemini,
		"unknown suggester":  "oracle",
	}
	for name, suggester := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Suggester = suggester
			_, err := NewFactory(nil).Open(context.Background(), cfg)
			assert.Error(t, err)
		})
	}
}

func TestOpen_UnsupportedBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataBackend = "mysql"
	_, err := NewFactory(nil).Open(context.Background(), cfg)
	assert.ErrorContains(t, err, "unsupported data backend")
}

func TestApp_LedgerMutationRefreshesDashboard(t *testing.T) {
	ctx := context.Background()
	app := openApp(t, testConfig(t))

	u, err := app.Users.Register(ctx, core.RegisterInput{Email: "a@example.com", Name: "A", Password: "secret-pw"})
	require.NoError(t, err)
	wallets, err := app.Wallets.List(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, wallets, 1)

	day := core.NewDate(2024, 3, 10)
	q := services.ReportQuery{UserID: u.ID, From: core.NewDate(2024, 3, 1), To: core.NewDate(2024, 3, 31)}

	before, err := app.Reports.Dashboard(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int64(0), before.Cashflow.Expense.Cents)

	_, err = app.Ledger.Create(ctx, u.ID, core.TransactionInput{
		Kind:     core.KindExpense,
		Amount:   core.Money{Cents: 1250},
		WalletID: wallets[0].ID,
		Date:     day,
	})
	require.NoError(t, err)

	after, err := app.Reports.Dashboard(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), after.Cashflow.Expense.Cents)
}

func TestApp_CategoryDeleteRefreshesDashboard(t *testing.T) {
	ctx := context.Background()
	app := openApp(t, testConfig(t))

	u, err := app.Users.Register(ctx, core.RegisterInput{Email: "b@example.com", Name: "B", Password: "secret-pw"})
	require.NoError(t, err)
	wallets, err := app.Wallets.List(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	food, err := app.Categories.Create(ctx, u.ID, core.CategoryInput{Name: "Street food", Direction: core.DirectionExpense})
	require.NoError(t, err)

	_, err = app.Ledger.Create(ctx, u.ID, core.TransactionInput{
		Kind:       core.KindExpense,
		Amount:     core.Money{Cents: 800},
		WalletID:   wallets[0].ID,
		CategoryID: food.ID,
		Date:       core.NewDate(2024, 3, 10),
	})
	require.NoError(t, err)

	q := services.ReportQuery{UserID: u.ID, From: core.NewDate(2024, 3, 1), To: core.NewDate(2024, 3, 31)}
	d, err := app.Reports.Dashboard(ctx, q)
	require.NoError(t, err)
	require.Len(t, d.Breakdown, 1)
	assert.Equal(t, "Street food", d.Breakdown[0].Label)

	require.NoError(t, app.Categories.Delete(ctx, u.ID, food.ID))

	d, err = app.Reports.Dashboard(ctx, q)
	require.NoError(t, err)
	require.Len(t, d.Breakdown, 1)
	assert.Equal(t, core.UncategorizedLabel, d.Breakdown[0].Label)
	assert.Equal(t, int64(800), d.Breakdown[0].Amount.Cents)
}

func TestApp_CloseIsIdempotent(t *testing.T) {
	app, err := NewFactory(nil).Open(context.Background(), testConfig(t))
	require.NoError(t, err)

	require.NoError(t, app.Close())
	require.NoError(t, app.Close())
}
