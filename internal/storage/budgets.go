package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
)

const budgetColumns = `id, user_id, name, limit_cents, start_date, end_date, created_at`

func scanBudget(row rowScanner) (core.Budget, error) {
	var (
		b                     core.Budget
		start, end, createdAt string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.Name, &b.Limit.Cents, &start, &end, &createdAt); err != nil {
		return core.Budget{}, err
	}
	var err error
	if b.StartDate, err = core.ParseDate(start); err != nil {
		return core.Budget{}, err
	}
	if b.EndDate, err = core.ParseDate(end); err != nil {
		return core.Budget{}, err
	}
	b.CreatedAt = parseTime(createdAt)
	return b, nil
}

func (q *Queries) InsertBudget(ctx context.Context, b core.Budget) error {
	_, err := q.exec(ctx, `
		INSERT INTO budgets (`+budgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Name, b.Limit.Cents,
		b.StartDate.String(), b.EndDate.String(), formatTime(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	return nil
}

func (q *Queries) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := q.exec(ctx, `
		UPDATE budgets SET name = ?, limit_cents = ?, start_date = ?, end_date = ?
		WHERE id = ? AND user_id = ?`,
		b.Name, b.Limit.Cents, b.StartDate.String(), b.EndDate.String(), b.ID, b.UserID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	return expectOne(res, "budget")
}

// ReplaceBudgetCategories swaps the link set of a budget. Callers run it
// inside a transaction together with the budget write.
func (q *Queries) ReplaceBudgetCategories(ctx context.Context, budgetID string, categoryIDs []string) error {
	if _, err := q.exec(ctx, `DELETE FROM budget_categories WHERE budget_id = ?`, budgetID); err != nil {
		return fmt.Errorf("clear budget categories: %w", err)
	}
	for _, id := range categoryIDs {
		if _, err := q.exec(ctx, `
			INSERT INTO budget_categories (budget_id, category_id) VALUES (?, ?)`,
			budgetID, id); err != nil {
			return fmt.Errorf("link budget category %s: %w", id, err)
		}
	}
	return nil
}

func (q *Queries) budgetCategoryIDs(ctx context.Context, budgetID string) ([]string, error) {
	rows, err := q.query(ctx, `
		SELECT category_id FROM budget_categories
		WHERE budget_id = ?
		ORDER BY category_id`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("list budget categories: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan budget category: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (q *Queries) GetBudget(ctx context.Context, userID, id string) (core.Budget, error) {
	row := q.queryRow(ctx, `
		SELECT `+budgetColumns+` FROM budgets
		WHERE id = ? AND user_id = ?`, id, userID)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.NotFoundError("budget")
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	if b.CategoryIDs, err = q.budgetCategoryIDs(ctx, b.ID); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (q *Queries) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := q.query(ctx, `
		SELECT `+budgetColumns+` FROM budgets
		WHERE user_id = ?
		ORDER BY start_date DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	// Links are loaded after the cursor is closed; SQLite runs on one connection.
	for i := range out {
		if out[i].CategoryIDs, err = q.budgetCategoryIDs(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (q *Queries) DeleteBudget(ctx context.Context, userID, id string) error {
	res, err := q.exec(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return expectOne(res, "budget")
}

// BudgetSpent sums expense amounts in the budget's linked categories within
// the inclusive window. A budget without links sums to zero.
func (q *Queries) BudgetSpent(ctx context.Context, userID, budgetID string, from, to core.Date) (core.Money, error) {
	var total int64
	err := q.queryRow(ctx, `
		SELECT COALESCE(SUM(t.amount_cents), 0)
		FROM transactions t
		JOIN budget_categories bc ON bc.category_id = t.category_id
		WHERE bc.budget_id = ?
		  AND t.user_id = ?
		  AND t.kind = 'expense'
		  AND t.date >= ? AND t.date <= ?`,
		budgetID, userID, from.String(), to.String()).Scan(&total)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum budget spend: %w", err)
	}
	return core.Money{Cents: total}, nil
}
