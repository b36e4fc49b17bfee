package backend

import (
	"errors"

	"fintrack/internal/ai"
	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/services"
	"fintrack/internal/sheets"
	"fintrack/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// App is everything a fintrack binary runs on: the store, the services
// sharing it and the optional infrastructure around them.
type App struct {
	Repo *storage.Repository

	Ledger      *services.LedgerService
	Wallets     *services.WalletService
	Categories  *services.CategoryService
	Budgets     *services.BudgetService
	Reports     *services.ReportService
	Users       *services.UserService
	Admin       *services.AdminService
	Assistant   *services.AssistantService
	Maintenance *services.MaintenanceService

	// Exporter receives report exports. It is the in-memory sink unless a
	// spreadsheet is configured.
	Exporter sheets.ExportWriter

	// AMQP is nil when no broker is configured or it was unreachable.
	AMQP *amqp.Client

	// Suggester is nil when suggestions are disabled.
	Suggester ai.Suggester

	Caches *cache.Manager

	cleanups []CleanupFunc
}

func (a *App) addCleanup(fn CleanupFunc) {
	a.cleanups = append(a.cleanups, fn)
}

// Close releases resources in reverse order of acquisition and reports
// every failure.
func (a *App) Close() error {
	var errs []error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanups = nil
	return errors.Join(errs...)
}
