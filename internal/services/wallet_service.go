package services

import (
	"context"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// WalletService manages wallet metadata. Balances only move through the
// ledger; there is no operation that sets one directly.
type WalletService struct {
	repo *storage.Repository
	now  func() time.Time
	mutationHooks
}

func NewWalletService(repo *storage.Repository) *WalletService {
	return &WalletService{repo: repo, now: time.Now}
}

func (s *WalletService) Create(ctx context.Context, userID string, in core.WalletInput) (core.Wallet, error) {
	if err := in.Validate(); err != nil {
		return core.Wallet{}, err
	}
	w := core.Wallet{
		ID:             core.NewID(),
		UserID:         userID,
		Name:           strings.TrimSpace(in.Name),
		Type:           strings.TrimSpace(in.Type),
		OpeningBalance: in.OpeningBalance,
		Balance:        in.OpeningBalance,
		Version:        1,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.Queries().InsertWallet(ctx, w); err != nil {
		return core.Wallet{}, err
	}
	return w, nil
}

func (s *WalletService) Get(ctx context.Context, userID, id string) (core.Wallet, error) {
	return s.repo.Queries().GetWallet(ctx, userID, id)
}

func (s *WalletService) List(ctx context.Context, userID string) ([]core.Wallet, error) {
	return s.repo.Queries().ListWallets(ctx, userID)
}

// Rename changes the name and type label. The opening balance in the input
// is ignored.
func (s *WalletService) Rename(ctx context.Context, userID, id string, in core.WalletInput) (core.Wallet, error) {
	if err := in.Validate(); err != nil {
		return core.Wallet{}, err
	}
	q := s.repo.Queries()
	if err := q.RenameWallet(ctx, userID, id, strings.TrimSpace(in.Name), strings.TrimSpace(in.Type)); err != nil {
		return core.Wallet{}, err
	}
	s.notify(userID)
	return q.GetWallet(ctx, userID, id)
}

// Delete removes the wallet. Transactions that referenced it stay, with the
// reference cleared; later edits to them skip the missing wallet.
func (s *WalletService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Queries().DeleteWallet(ctx, userID, id); err != nil {
		return err
	}
	s.notify(userID)
	return nil
}
