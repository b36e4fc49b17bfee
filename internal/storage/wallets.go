package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
)

const walletColumns = `id, user_id, name, type, opening_balance_cents, balance_cents, version, created_at`

func scanWallet(row rowScanner) (core.Wallet, error) {
	var (
		w       core.Wallet
		created string
	)
	err := row.Scan(&w.ID, &w.UserID, &w.Name, &w.Type,
		&w.OpeningBalance.Cents, &w.Balance.Cents, &w.Version, &created)
	if err != nil {
		return core.Wallet{}, err
	}
	w.CreatedAt = parseTime(created)
	return w, nil
}

// InsertWallet stores a new wallet. Balance starts at the opening balance.
func (q *Queries) InsertWallet(ctx context.Context, w core.Wallet) error {
	_, err := q.exec(ctx, `
		INSERT INTO wallets (`+walletColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.UserID, w.Name, w.Type,
		w.OpeningBalance.Cents, w.OpeningBalance.Cents, 1, formatTime(w.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	slog.InfoContext(ctx, "Wallet saved", "wallet_id", w.ID, "user_id", w.UserID)
	return nil
}

// GetWallet returns the wallet if it exists and belongs to userID.
func (q *Queries) GetWallet(ctx context.Context, userID, id string) (core.Wallet, error) {
	row := q.queryRow(ctx, `
		SELECT `+walletColumns+` FROM wallets
		WHERE id = ? AND user_id = ?`, id, userID)
	w, err := scanWallet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Wallet{}, core.NotFoundError("wallet")
	}
	if err != nil {
		return core.Wallet{}, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

func (q *Queries) ListWallets(ctx context.Context, userID string) ([]core.Wallet, error) {
	rows, err := q.query(ctx, `
		SELECT `+walletColumns+` FROM wallets
		WHERE user_id = ?
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var out []core.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// RenameWallet changes the descriptive fields. Balances are never edited here.
func (q *Queries) RenameWallet(ctx context.Context, userID, id, name, walletType string) error {
	res, err := q.exec(ctx, `
		UPDATE wallets SET name = ?, type = ?
		WHERE id = ? AND user_id = ?`, name, walletType, id, userID)
	if err != nil {
		return fmt.Errorf("rename wallet: %w", err)
	}
	return expectOne(res, "wallet")
}

// DeleteWallet removes the wallet. Transactions keep existing with their
// wallet reference cleared.
func (q *Queries) DeleteWallet(ctx context.Context, userID, id string) error {
	res, err := q.exec(ctx, `DELETE FROM wallets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	return expectOne(res, "wallet")
}

// CompareAndSwapBalance writes a new balance only if the wallet is still at
// the expected version. It returns core.ErrConflict when the version moved.
func (q *Queries) CompareAndSwapBalance(ctx context.Context, userID, id string, expectedVersion int64, balance core.Money) error {
	res, err := q.exec(ctx, `
		UPDATE wallets SET balance_cents = ?, version = version + 1
		WHERE id = ? AND user_id = ? AND version = ?`,
		balance.Cents, id, userID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	if n == 0 {
		return core.ErrConflict
	}
	return nil
}

// WalletHistoryEffect sums the signed effect of every stored transaction on
// the wallet.
func (q *Queries) WalletHistoryEffect(ctx context.Context, userID, walletID string) (core.Money, error) {
	var total int64
	err := q.queryRow(ctx, `
		SELECT COALESCE(SUM(
			CASE
				WHEN wallet_id = ? AND kind = 'income' THEN amount_cents
				WHEN wallet_id = ? THEN -amount_cents
				WHEN dest_wallet_id = ? AND kind = 'transfer' THEN amount_cents
				ELSE 0
			END), 0)
		FROM transactions
		WHERE user_id = ? AND (wallet_id = ? OR dest_wallet_id = ?)`,
		walletID, walletID, walletID, userID, walletID, walletID).Scan(&total)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum wallet history: %w", err)
	}
	return core.Money{Cents: total}, nil
}

func expectOne(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.NotFoundError(entity)
	}
	return nil
}
