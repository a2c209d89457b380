package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/passalarm/internal/model"
)

// PostgresNotificationLogRepo はPostgreSQLを使用した通知ログリポジトリ。
// ユーザーごとに最新capacity件のみを保持し、古いエントリは追記時に削除する。
type PostgresNotificationLogRepo struct {
	db       *sql.DB
	capacity int
}

// NewPostgresNotificationLogRepo はPostgresNotificationLogRepoを生成する。
// capacityが0以下の場合はデフォルト値100を使用する。
func NewPostgresNotificationLogRepo(db *sql.DB, capacity int) *PostgresNotificationLogRepo {
	if capacity <= 0 {
		capacity = 100
	}
	return &PostgresNotificationLogRepo{db: db, capacity: capacity}
}

// Append はログエントリを追記し、上限を超えた古いエントリを削除する。
func (r *PostgresNotificationLogRepo) Append(ctx context.Context, entry *model.NotificationLogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO notification_logs (id, user_id, channel, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.UserID, string(entry.Channel), entry.Content, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification log: %w", err)
	}

	// 最新capacity件より古いエントリを削除して上限を保つ
	_, err = tx.ExecContext(ctx,
		`DELETE FROM notification_logs
		 WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM notification_logs
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		 )`,
		entry.UserID, r.capacity,
	)
	if err != nil {
		return fmt.Errorf("failed to prune notification logs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListByUserID はユーザーの通知ログを新しい順に返す。
// limitが0以下の場合は保持上限までの全件を返す。
func (r *PostgresNotificationLogRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]*model.NotificationLogEntry, error) {
	if limit <= 0 || limit > r.capacity {
		limit = r.capacity
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, channel, content, created_at
		 FROM notification_logs
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification logs: %w", err)
	}
	defer rows.Close()

	var entries []*model.NotificationLogEntry
	for rows.Next() {
		entry := &model.NotificationLogEntry{}
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Channel, &entry.Content, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification log: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notification logs: %w", err)
	}
	return entries, nil
}

// CountByUserID はユーザーの通知ログ件数を返す。
func (r *PostgresNotificationLogRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification_logs WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notification logs: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ NotificationLogRepository = (*PostgresNotificationLogRepo)(nil)
