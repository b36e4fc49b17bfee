package storage

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
)

func (q *Queries) InsertChatLog(ctx context.Context, l core.ChatLog) error {
	_, err := q.exec(ctx, `
		INSERT INTO chat_logs (user_id, question, answer, created_at)
		VALUES (?, ?, ?, ?)`,
		l.UserID, l.Question, l.Answer, formatTime(l.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert chat log: %w", err)
	}
	return nil
}

// RecentChatLogs returns up to limit logs, newest first.
func (q *Queries) RecentChatLogs(ctx context.Context, userID string, limit int) ([]core.ChatLog, error) {
	rows, err := q.query(ctx, `
		SELECT id, user_id, question, answer, created_at
		FROM chat_logs
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat logs: %w", err)
	}
	defer rows.Close()

	var out []core.ChatLog
	for rows.Next() {
		var (
			l       core.ChatLog
			created string
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.Question, &l.Answer, &created); err != nil {
			return nil, fmt.Errorf("scan chat log: %w", err)
		}
		l.CreatedAt = parseTime(created)
		out = append(out, l)
	}
	return out, rows.Err()
}

// DeleteChatLogsBefore bulk-deletes logs older than cutoff for every user.
func (q *Queries) DeleteChatLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.exec(ctx, `DELETE FROM chat_logs WHERE created_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete chat logs: %w", err)
	}
	return res.RowsAffected()
}
