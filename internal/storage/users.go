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

const userColumns = `id, email, name, password_hash, role, status, created_at, updated_at`

func scanUser(row rowScanner) (core.User, error) {
	var (
		u                core.User
		created, updated string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.Status, &created, &updated); err != nil {
		return core.User{}, err
	}
	u.CreatedAt = parseTime(created)
	u.UpdatedAt = parseTime(updated)
	return u, nil
}

// InsertUser stores a new user. A duplicate email maps to core.ErrEmailTaken.
func (q *Queries) InsertUser(ctx context.Context, u core.User) error {
	_, err := q.exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash, string(u.Role), u.Status,
		formatTime(u.CreatedAt), formatTime(u.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	slog.InfoContext(ctx, "User saved", "user_id", u.ID, "role", u.Role)
	return nil
}

func (q *Queries) GetUser(ctx context.Context, id string) (core.User, error) {
	return q.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return q.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER(?)`, email)
}

func (q *Queries) getUser(ctx context.Context, stmt string, arg string) (core.User, error) {
	u, err := scanUser(q.queryRow(ctx, stmt, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.NotFoundError("user")
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (q *Queries) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := q.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (q *Queries) UpdateUserStatus(ctx context.Context, id string, status int, now time.Time) error {
	res, err := q.exec(ctx, `UPDATE users SET status = ?, updated_at = ? WHERE id = ?`,
		status, formatTime(now), id)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	return expectOne(res, "user")
}

func (q *Queries) UpdatePasswordHash(ctx context.Context, email, hash string, now time.Time) error {
	res, err := q.exec(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE LOWER(email) = LOWER(?)`,
		hash, formatTime(now), email)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectOne(res, "user")
}

// DeleteUser cascades to every row the user owns.
func (q *Queries) DeleteUser(ctx context.Context, id string) error {
	res, err := q.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectOne(res, "user")
}

func (q *Queries) InsertSettings(ctx context.Context, s core.Settings) error {
	_, err := q.exec(ctx, `
		INSERT INTO user_settings (user_id, currency, language, notifications, ai_suggestions, theme)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.UserID, s.Currency, s.Language, boolToInt(s.Notifications), boolToInt(s.AISuggestions), s.Theme)
	if err != nil {
		return fmt.Errorf("insert settings: %w", err)
	}
	return nil
}

func (q *Queries) GetSettings(ctx context.Context, userID string) (core.Settings, error) {
	var (
		s                    core.Settings
		notifications, aiSug int
	)
	err := q.queryRow(ctx, `
		SELECT user_id, currency, language, notifications, ai_suggestions, theme
		FROM user_settings WHERE user_id = ?`, userID).
		Scan(&s.UserID, &s.Currency, &s.Language, &notifications, &aiSug, &s.Theme)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Settings{}, core.NotFoundError("settings")
	}
	if err != nil {
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	s.Notifications = notifications != 0
	s.AISuggestions = aiSug != 0
	return s, nil
}

func (q *Queries) UpdateSettings(ctx context.Context, s core.Settings) error {
	res, err := q.exec(ctx, `
		UPDATE user_settings
		SET currency = ?, language = ?, notifications = ?, ai_suggestions = ?, theme = ?
		WHERE user_id = ?`,
		s.Currency, s.Language, boolToInt(s.Notifications), boolToInt(s.AISuggestions), s.Theme, s.UserID)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return expectOne(res, "settings")
}

// UpsertResetToken supersedes any previous token for the email.
func (q *Queries) UpsertResetToken(ctx context.Context, t core.PasswordResetToken) error {
	_, err := q.exec(ctx, `
		INSERT INTO password_reset_tokens (email, token, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET token = excluded.token, expires_at = excluded.expires_at`,
		t.Email, t.Token, formatTime(t.ExpiresAt))
	if err != nil {
		return fmt.Errorf("upsert reset token: %w", err)
	}
	return nil
}

func (q *Queries) GetResetToken(ctx context.Context, token string) (core.PasswordResetToken, error) {
	var (
		t       core.PasswordResetToken
		expires string
	)
	err := q.queryRow(ctx, `
		SELECT email, token, expires_at FROM password_reset_tokens WHERE token = ?`, token).
		Scan(&t.Email, &t.Token, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return core.PasswordResetToken{}, core.NotFoundError("reset token")
	}
	if err != nil {
		return core.PasswordResetToken{}, fmt.Errorf("get reset token: %w", err)
	}
	t.ExpiresAt = parseTime(expires)
	return t, nil
}

func (q *Queries) DeleteResetToken(ctx context.Context, email string) error {
	if _, err := q.exec(ctx, `DELETE FROM password_reset_tokens WHERE email = ?`, email); err != nil {
		return fmt.Errorf("delete reset token: %w", err)
	}
	return nil
}

func (q *Queries) DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.exec(ctx, `DELETE FROM password_reset_tokens WHERE expires_at < ?`, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired reset tokens: %w", err)
	}
	return res.RowsAffected()
}

// isUniqueViolation recognises unique-constraint errors from both drivers
// without importing their error types.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key value")
}
