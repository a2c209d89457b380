package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/passalarm/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, name, email, phone_number, password_hash,
	is_subscribed, is_affiliate, is_admin, email_enabled, sms_enabled,
	referred_by, last_tested_phone, created_at, updated_at`

// scanUser は1行をmodel.Userに読み込む。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PhoneNumber, &user.PasswordHash,
		&user.IsSubscribed, &user.IsAffiliate, &user.IsAdmin, &user.EmailEnabled, &user.SMSEnabled,
		&user.ReferredBy, &user.LastTestedPhone, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, phone_number, password_hash,
			is_subscribed, is_affiliate, is_admin, email_enabled, sms_enabled,
			referred_by, last_tested_phone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		user.ID, user.Name, user.Email, user.PhoneNumber, user.PasswordHash,
		user.IsSubscribed, user.IsAffiliate, user.IsAdmin, user.EmailEnabled, user.SMSEnabled,
		user.ReferredBy, user.LastTestedPhone, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateContact は連絡先（メール・電話番号）を更新する。
func (r *PostgresUserRepo) UpdateContact(ctx context.Context, id, email, phone string) error {
	return r.exec(ctx, id,
		`UPDATE users SET email = $2, phone_number = $3, updated_at = $4 WHERE id = $1`,
		id, email, phone, time.Now())
}

// UpdateChannels は通知チャネルの有効/無効を更新する。
func (r *PostgresUserRepo) UpdateChannels(ctx context.Context, id string, emailEnabled, smsEnabled bool) error {
	return r.exec(ctx, id,
		`UPDATE users SET email_enabled = $2, sms_enabled = $3, updated_at = $4 WHERE id = $1`,
		id, emailEnabled, smsEnabled, time.Now())
}

// UpdateSubscription はサブスクリプションフラグを更新する。
func (r *PostgresUserRepo) UpdateSubscription(ctx context.Context, id string, subscribed bool) error {
	return r.exec(ctx, id,
		`UPDATE users SET is_subscribed = $2, updated_at = $3 WHERE id = $1`,
		id, subscribed, time.Now())
}

// UpdateLastTestedPhone はテスト送信済み電話番号を記録する。
func (r *PostgresUserRepo) UpdateLastTestedPhone(ctx context.Context, id, phone string) error {
	return r.exec(ctx, id,
		`UPDATE users SET last_tested_phone = $2, updated_at = $3 WHERE id = $1`,
		id, phone, time.Now())
}

// ListNotifiable は通知対象ユーザーを取得する。
// サブスクリプション有効かつ少なくとも1チャネルが有効なユーザー。
func (r *PostgresUserRepo) ListNotifiable(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE is_subscribed = TRUE AND (email_enabled = TRUE OR sms_enabled = TRUE)
		 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifiable users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user := &model.User{}
		if err := rows.Scan(
			&user.ID, &user.Name, &user.Email, &user.PhoneNumber, &user.PasswordHash,
			&user.IsSubscribed, &user.IsAffiliate, &user.IsAdmin, &user.EmailEnabled, &user.SMSEnabled,
			&user.ReferredBy, &user.LastTestedPhone, &user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// CountSubscribed はサブスクリプション有効なユーザー数を返す。
func (r *PostgresUserRepo) CountSubscribed(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE is_subscribed = TRUE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count subscribed users: %w", err)
	}
	return count, nil
}

// MonthlySignups は月別の新規登録数を返す（古い月から順）。
func (r *PostgresUserRepo) MonthlySignups(ctx context.Context, months int) ([]MonthlyCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT to_char(created_at, 'YYYY-MM') AS month, COUNT(*)
		 FROM users
		 WHERE created_at >= date_trunc('month', now()) - make_interval(months => $1)
		 GROUP BY month
		 ORDER BY month`,
		months)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly signups: %w", err)
	}
	defer rows.Close()

	var counts []MonthlyCount
	for rows.Next() {
		var c MonthlyCount
		if err := rows.Scan(&c.Month, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan monthly count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate monthly counts: %w", err)
	}
	return counts, nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するsessions、notification_logs等はCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// exec は1ユーザーを対象とする更新を実行し、対象が存在しない場合はエラーを返す。
func (r *PostgresUserRepo) exec(ctx context.Context, id, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
