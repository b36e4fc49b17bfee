package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fintrack/internal/core"
)

const transactionColumns = `id, user_id, kind, amount_cents, wallet_id, dest_wallet_id,
	category_id, ai_category_id, ai_confidence, date, description, created_at`

// TransactionFilter narrows ListTransactions. Zero values mean "any".
type TransactionFilter struct {
	From       core.Date
	To         core.Date
	Kind       core.Kind
	WalletID   string
	CategoryID string
	Limit      int
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                        core.Transaction
		wallet, dest, cat, aiCat sql.NullString
		aiConf                   sql.NullFloat64
		date, created            string
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Kind, &t.Amount.Cents, &wallet, &dest,
		&cat, &aiCat, &aiConf, &date, &t.Description, &created)
	if err != nil {
		return core.Transaction{}, err
	}
	t.WalletID = wallet.String
	t.DestWalletID = dest.String
	t.CategoryID = cat.String
	t.AICategoryID = aiCat.String
	if aiConf.Valid {
		v := aiConf.Float64
		t.AIConfidence = &v
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("stored date %q: %w", date, err)
	}
	t.Date = d
	t.CreatedAt = parseTime(created)
	return t, nil
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func (q *Queries) InsertTransaction(ctx context.Context, t core.Transaction) error {
	_, err := q.exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, string(t.Kind), t.Amount.Cents,
		nullString(t.WalletID), nullString(t.DestWalletID),
		nullString(t.CategoryID), nullString(t.AICategoryID), nullFloat(t.AIConfidence),
		t.Date.String(), t.Description, formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction saved",
		"transaction_id", t.ID,
		"kind", t.Kind,
		"amount_cents", t.Amount.Cents,
		"date", t.Date.String())
	return nil
}

func (q *Queries) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := q.queryRow(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.NotFoundError("transaction")
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// UpdateTransaction overwrites every mutable field of the stored row.
func (q *Queries) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := q.exec(ctx, `
		UPDATE transactions SET
			kind = ?, amount_cents = ?, wallet_id = ?, dest_wallet_id = ?,
			category_id = ?, ai_category_id = ?, ai_confidence = ?,
			date = ?, description = ?, ai_checked_at = NULL
		WHERE id = ? AND user_id = ?`,
		string(t.Kind), t.Amount.Cents, nullString(t.WalletID), nullString(t.DestWalletID),
		nullString(t.CategoryID), nullString(t.AICategoryID), nullFloat(t.AIConfidence),
		t.Date.String(), t.Description, t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return expectOne(res, "transaction")
}

func (q *Queries) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := q.exec(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectOne(res, "transaction")
}

// SetAISuggestion records an informational suggestion. Balances are untouched.
func (q *Queries) SetAISuggestion(ctx context.Context, userID, id, categoryID string, confidence float64) error {
	res, err := q.exec(ctx, `
		UPDATE transactions SET ai_category_id = ?, ai_confidence = ?
		WHERE id = ? AND user_id = ?`,
		nullString(categoryID), confidence, id, userID)
	if err != nil {
		return fmt.Errorf("set ai suggestion: %w", err)
	}
	return expectOne(res, "transaction")
}

// MarkSuggestionChecked records that the suggester looked at the row, so the
// backfill skips it even when nothing matched. Edits clear the mark.
func (q *Queries) MarkSuggestionChecked(ctx context.Context, userID, id string, at time.Time) error {
	res, err := q.exec(ctx, `
		UPDATE transactions SET ai_checked_at = ?
		WHERE id = ? AND user_id = ?`,
		formatTime(at), id, userID)
	if err != nil {
		return fmt.Errorf("mark suggestion checked: %w", err)
	}
	return expectOne(res, "transaction")
}

// ListTransactions returns matching transactions, newest first.
func (q *Queries) ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]core.Transaction, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{userID}
	)
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.To.String())
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.WalletID != "" {
		where = append(where, "(wallet_id = ? OR dest_wallet_id = ?)")
		args = append(args, f.WalletID, f.WalletID)
	}
	if f.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}

	stmt := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY date DESC, created_at DESC, id`
	if f.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := q.query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PendingSuggestions returns uncategorized transactions the suggester has not
// looked at yet, across all users, newest first. The worker uses it to catch
// up on missed events.
func (q *Queries) PendingSuggestions(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := q.query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE category_id IS NULL AND ai_category_id IS NULL AND ai_checked_at IS NULL
			AND kind <> 'transfer' AND description <> ''
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending suggestions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
