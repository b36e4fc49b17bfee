package storage

import (
	"context"
	"fmt"
	"strings"

	"fintrack/internal/core"
)

// ReportFilter scopes every aggregate query to one user and window.
// WalletID matches the source slot only.
type ReportFilter struct {
	UserID   string
	From     core.Date
	To       core.Date
	WalletID string
	Kind     core.Kind
}

func (f ReportFilter) where(alias string, withKind bool) (string, []any) {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}
	clauses := []string{col("user_id") + " = ?"}
	args := []any{f.UserID}
	if !f.From.IsZero() {
		clauses = append(clauses, col("date")+" >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		clauses = append(clauses, col("date")+" <= ?")
		args = append(args, f.To.String())
	}
	if f.WalletID != "" {
		clauses = append(clauses, col("wallet_id")+" = ?")
		args = append(args, f.WalletID)
	}
	if withKind && f.Kind != "" {
		clauses = append(clauses, col("kind")+" = ?")
		args = append(args, string(f.Kind))
	}
	return strings.Join(clauses, " AND "), args
}

// SumByCategory groups amounts by category name. Rows without a category
// come back with an empty label; core.MergeBuckets folds them.
func (q *Queries) SumByCategory(ctx context.Context, f ReportFilter) ([]core.CategoryAmount, error) {
	where, args := f.where("t", true)
	rows, err := q.query(ctx, `
		SELECT COALESCE(c.name, ''), SUM(t.amount_cents)
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE `+where+`
		GROUP BY c.name`, args...)
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.Label, &ca.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		out = append(out, ca)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return core.MergeBuckets(out), nil
}

// SumByKind returns the income, expense and transfer totals of the window.
func (q *Queries) SumByKind(ctx context.Context, f ReportFilter) (core.Cashflow, error) {
	where, args := f.where("", false)
	var income, expense, transfer int64
	err := q.queryRow(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_cents ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount_cents ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'transfer' THEN amount_cents ELSE 0 END), 0)
		FROM transactions
		WHERE `+where, args...).Scan(&income, &expense, &transfer)
	if err != nil {
		return core.Cashflow{}, fmt.Errorf("sum by kind: %w", err)
	}
	return core.NewCashflow(
		core.Money{Cents: income},
		core.Money{Cents: expense},
		core.Money{Cents: transfer},
	), nil
}

// SumByDate returns one point per date that has transactions, ascending.
func (q *Queries) SumByDate(ctx context.Context, f ReportFilter) ([]core.TrendPoint, error) {
	where, args := f.where("", true)
	rows, err := q.query(ctx, `
		SELECT date, SUM(amount_cents)
		FROM transactions
		WHERE `+where+`
		GROUP BY date
		ORDER BY date`, args...)
	if err != nil {
		return nil, fmt.Errorf("sum by date: %w", err)
	}
	defer rows.Close()

	var out []core.TrendPoint
	for rows.Next() {
		var (
			date  string
			point core.TrendPoint
		)
		if err := rows.Scan(&date, &point.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan trend point: %w", err)
		}
		if point.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("stored date %q: %w", date, err)
		}
		out = append(out, point)
	}
	return out, rows.Err()
}

// ExportRows flattens every transaction in the window, newest first.
// The kind filter is ignored so exports always carry all kinds.
func (q *Queries) ExportRows(ctx context.Context, f ReportFilter) ([]core.ExportRow, error) {
	where, args := f.where("t", false)
	rows, err := q.query(ctx, `
		SELECT t.date, COALESCE(c.name, ''), t.description, t.amount_cents, t.kind, COALESCE(w.name, '')
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		LEFT JOIN wallets w ON w.id = t.wallet_id
		WHERE `+where+`
		ORDER BY t.date DESC, t.created_at DESC, t.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("export rows: %w", err)
	}
	defer rows.Close()

	var out []core.ExportRow
	for rows.Next() {
		var (
			r    core.ExportRow
			date string
			kind string
		)
		if err := rows.Scan(&date, &r.Category, &r.Description, &r.Amount.Cents, &kind, &r.Wallet); err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}
		if r.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("stored date %q: %w", date, err)
		}
		if r.Category == "" {
			r.Category = core.UncategorizedLabel
		}
		if r.Wallet == "" {
			r.Wallet = core.UnknownWalletLabel
		}
		r.Kind = core.Kind(kind).Label()
		out = append(out, r)
	}
	return out, rows.Err()
}
