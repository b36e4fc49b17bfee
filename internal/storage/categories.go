package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
)

const categoryColumns = `id, user_id, name, direction, parent_id`

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c      core.Category
		parent sql.NullString
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Direction, &parent); err != nil {
		return core.Category{}, err
	}
	c.ParentID = parent.String
	return c, nil
}

func (q *Queries) InsertCategory(ctx context.Context, c core.Category) error {
	_, err := q.exec(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, string(c.Direction), nullString(c.ParentID))
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (q *Queries) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	row := q.queryRow(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE id = ? AND user_id = ?`, id, userID)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.NotFoundError("category")
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// FindCategoryByName matches case-insensitively within one user's categories.
func (q *Queries) FindCategoryByName(ctx context.Context, userID, name string) (core.Category, error) {
	row := q.queryRow(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE user_id = ? AND LOWER(name) = LOWER(?)
		ORDER BY id
		LIMIT 1`, userID, name)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.NotFoundError("category")
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("find category: %w", err)
	}
	return c, nil
}

func (q *Queries) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	return q.listCategories(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE user_id = ?
		ORDER BY direction, name, id`, userID)
}

// ListChildren returns the direct children of parentID.
func (q *Queries) ListChildren(ctx context.Context, userID, parentID string) ([]core.Category, error) {
	return q.listCategories(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE user_id = ? AND parent_id = ?
		ORDER BY name, id`, userID, parentID)
}

func (q *Queries) listCategories(ctx context.Context, stmt string, args ...any) ([]core.Category, error) {
	rows, err := q.query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := q.exec(ctx, `
		UPDATE categories SET name = ?, direction = ?, parent_id = ?
		WHERE id = ? AND user_id = ?`,
		c.Name, string(c.Direction), nullString(c.ParentID), c.ID, c.UserID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return expectOne(res, "category")
}

// DeleteCategory removes the category. Children lose their parent and
// transactions lose their category through ON DELETE SET NULL.
func (q *Queries) DeleteCategory(ctx context.Context, userID, id string) error {
	res, err := q.exec(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return expectOne(res, "category")
}

// OwnedCategoryIDs filters ids down to the ones userID owns in direction,
// preserving order.
func (q *Queries) OwnedCategoryIDs(ctx context.Context, userID string, direction core.Direction, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ids)+2)
	args = append(args, userID, string(direction))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := q.query(ctx, `
		SELECT id FROM categories
		WHERE user_id = ? AND direction = ? AND id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("filter owned categories: %w", err)
	}
	defer rows.Close()

	owned := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan category id: %w", err)
		}
		owned[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []string
	seen := make(map[string]bool, len(owned))
	for _, id := range ids {
		if owned[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}
