package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/storage"
)

// MaintenanceReport summarises one maintenance run.
type MaintenanceReport struct {
	ChatLogsPurged    int64 `json:"chat_logs_purged"`
	ResetTokensPurged int64 `json:"reset_tokens_purged"`
	WalletsAudited    int   `json:"wallets_audited"`
	BalanceMismatches int   `json:"balance_mismatches"`
}

// MaintenanceService runs the periodic housekeeping jobs.
type MaintenanceService struct {
	repo      *storage.Repository
	assistant *AssistantService
	ledger    *LedgerService
	now       func() time.Time
}

func NewMaintenanceService(repo *storage.Repository, assistant *AssistantService, ledger *LedgerService) *MaintenanceService {
	return &MaintenanceService{repo: repo, assistant: assistant, ledger: ledger, now: time.Now}
}

// Run purges expired chat logs and reset tokens, then audits every wallet
// balance against its history. Mismatches are logged, never repaired.
func (s *MaintenanceService) Run(ctx context.Context) (MaintenanceReport, error) {
	var r MaintenanceReport
	now := s.now().UTC()

	n, err := s.assistant.PurgeChatLogs(ctx, now)
	if err != nil {
		return r, fmt.Errorf("purge chat logs: %w", err)
	}
	r.ChatLogsPurged = n

	if r.ResetTokensPurged, err = s.repo.Queries().DeleteExpiredResetTokens(ctx, now); err != nil {
		return r, fmt.Errorf("purge reset tokens: %w", err)
	}

	if err := s.audit(ctx, &r); err != nil {
		return r, fmt.Errorf("audit balances: %w", err)
	}

	slog.InfoContext(ctx, "Maintenance run completed",
		"chat_logs_purged", r.ChatLogsPurged,
		"reset_tokens_purged", r.ResetTokensPurged,
		"wallets_audited", r.WalletsAudited,
		"balance_mismatches", r.BalanceMismatches)
	return r, nil
}

func (s *MaintenanceService) audit(ctx context.Context, r *MaintenanceReport) error {
	q := s.repo.Queries()
	users, err := q.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		wallets, err := q.ListWallets(ctx, u.ID)
		if err != nil {
			return err
		}
		for _, w := range wallets {
			stored, computed, err := s.ledger.VerifyBalance(ctx, u.ID, w.ID)
			if err != nil {
				return err
			}
			r.WalletsAudited++
			if stored != computed {
				r.BalanceMismatches++
				slog.WarnContext(ctx, "Wallet balance drifted from history",
					"user_id", u.ID,
					"wallet_id", w.ID,
					"stored_cents", stored.Cents,
					"computed_cents", computed.Cents)
			}
		}
	}
	return nil
}
