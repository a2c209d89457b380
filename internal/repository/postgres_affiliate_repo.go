package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/passalarm/internal/model"
)

// PostgresAffiliateRepo はPostgreSQLを使用したアフィリエイトリポジトリ。
type PostgresAffiliateRepo struct {
	db *sql.DB
}

// NewPostgresAffiliateRepo はPostgresAffiliateRepoを生成する。
func NewPostgresAffiliateRepo(db *sql.DB) *PostgresAffiliateRepo {
	return &PostgresAffiliateRepo{db: db}
}

// GetProfile はパートナープロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresAffiliateRepo) GetProfile(ctx context.Context, userID string) (*model.AffiliateProfile, error) {
	p := &model.AffiliateProfile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, first_name, last_name, street, house_number, zip, city, country,
			company_name, vat_id, paypal_email, updated_at
		 FROM affiliate_profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.FirstName, &p.LastName, &p.Street, &p.HouseNumber, &p.Zip, &p.City,
		&p.Country, &p.CompanyName, &p.VatID, &p.PaypalEmail, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get affiliate profile: %w", err)
	}
	return p, nil
}

// UpsertProfile はパートナープロフィールを作成または更新する。
func (r *PostgresAffiliateRepo) UpsertProfile(ctx context.Context, profile *model.AffiliateProfile) error {
	profile.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO affiliate_profiles (user_id, first_name, last_name, street, house_number,
			zip, city, country, company_name, vat_id, paypal_email, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (user_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			street = EXCLUDED.street,
			house_number = EXCLUDED.house_number,
			zip = EXCLUDED.zip,
			city = EXCLUDED.city,
			country = EXCLUDED.country,
			company_name = EXCLUDED.company_name,
			vat_id = EXCLUDED.vat_id,
			paypal_email = EXCLUDED.paypal_email,
			updated_at = EXCLUDED.updated_at`,
		profile.UserID, profile.FirstName, profile.LastName, profile.Street, profile.HouseNumber,
		profile.Zip, profile.City, profile.Country, profile.CompanyName, profile.VatID,
		profile.PaypalEmail, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert affiliate profile: %w", err)
	}
	return nil
}

// CreateCode はレフェラルコードを登録する。
func (r *PostgresAffiliateRepo) CreateCode(ctx context.Context, userID, code string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO referral_codes (code, user_id, created_at) VALUES ($1, $2, $3)`,
		code, userID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert referral code: %w", err)
	}
	return nil
}

// FindCodeByUserID はユーザーのレフェラルコードを返す。未登録の場合は空文字を返す。
func (r *PostgresAffiliateRepo) FindCodeByUserID(ctx context.Context, userID string) (string, error) {
	var code string
	err := r.db.QueryRowContext(ctx,
		`SELECT code FROM referral_codes WHERE user_id = $1`, userID).Scan(&code)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find referral code: %w", err)
	}
	return code, nil
}

// FindUserIDByCode はレフェラルコードの所有者を返す。未登録の場合は空文字を返す。
func (r *PostgresAffiliateRepo) FindUserIDByCode(ctx context.Context, code string) (string, error) {
	var userID string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM referral_codes WHERE code = $1`, code).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find referral code owner: %w", err)
	}
	return userID, nil
}

// ListStatsByUserID はユーザーの月次実績を古い月から順に返す。
func (r *PostgresAffiliateRepo) ListStatsByUserID(ctx context.Context, userID string) ([]*model.AffiliateStat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, month, clicks, conversions, earnings, paid_out
		 FROM affiliate_stats WHERE user_id = $1 ORDER BY month`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list affiliate stats: %w", err)
	}
	defer rows.Close()

	var stats []*model.AffiliateStat
	for rows.Next() {
		s := &model.AffiliateStat{}
		if err := rows.Scan(&s.UserID, &s.Month, &s.Clicks, &s.Conversions, &s.Earnings, &s.PaidOut); err != nil {
			return nil, fmt.Errorf("failed to scan affiliate stat: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate affiliate stats: %w", err)
	}
	return stats, nil
}

// AddClick は指定月のクリック数を加算する（行がなければ作成）。
func (r *PostgresAffiliateRepo) AddClick(ctx context.Context, userID, month string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO affiliate_stats (user_id, month, clicks) VALUES ($1, $2, 1)
		 ON CONFLICT (user_id, month) DO UPDATE SET clicks = affiliate_stats.clicks + 1`,
		userID, month,
	)
	if err != nil {
		return fmt.Errorf("failed to add click: %w", err)
	}
	return nil
}

// AddConversion は指定月の成約数と報酬を加算する（行がなければ作成）。
func (r *PostgresAffiliateRepo) AddConversion(ctx context.Context, userID, month string, earnings float64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO affiliate_stats (user_id, month, conversions, earnings) VALUES ($1, $2, 1, $3)
		 ON CONFLICT (user_id, month) DO UPDATE SET
			conversions = affiliate_stats.conversions + 1,
			earnings = affiliate_stats.earnings + EXCLUDED.earnings`,
		userID, month, earnings,
	)
	if err != nil {
		return fmt.Errorf("failed to add conversion: %w", err)
	}
	return nil
}

// UnpaidEarnings は未払い報酬の合計を返す。
func (r *PostgresAffiliateRepo) UnpaidEarnings(ctx context.Context, userID string) (float64, error) {
	var total float64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(earnings), 0) FROM affiliate_stats
		 WHERE user_id = $1 AND paid_out = FALSE`,
		userID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum unpaid earnings: %w", err)
	}
	return total, nil
}

// MarkPaidOut は未払いの全実績を払い出し済みにする。
func (r *PostgresAffiliateRepo) MarkPaidOut(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE affiliate_stats SET paid_out = TRUE
		 WHERE user_id = $1 AND paid_out = FALSE`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark stats paid out: %w", err)
	}
	return nil
}

// TopPartners は報酬合計の上位パートナーを返す。
func (r *PostgresAffiliateRepo) TopPartners(ctx context.Context, limit int) ([]PartnerSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.name, COALESCE(c.code, ''),
			COALESCE(SUM(s.clicks), 0), COALESCE(SUM(s.conversions), 0), COALESCE(SUM(s.earnings), 0)
		 FROM users u
		 LEFT JOIN referral_codes c ON c.user_id = u.id
		 LEFT JOIN affiliate_stats s ON s.user_id = u.id
		 WHERE u.is_affiliate = TRUE
		 GROUP BY u.id, u.name, c.code
		 ORDER BY COALESCE(SUM(s.earnings), 0) DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query top partners: %w", err)
	}
	defer rows.Close()

	var partners []PartnerSummary
	for rows.Next() {
		var p PartnerSummary
		if err := rows.Scan(&p.UserID, &p.Name, &p.Code, &p.Clicks, &p.Conversions, &p.Earnings); err != nil {
			return nil, fmt.Errorf("failed to scan partner summary: %w", err)
		}
		partners = append(partners, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate partner summaries: %w", err)
	}
	return partners, nil
}

// PayoutTotalsBetween は期間内に払い出し済みとなった実績の集計を返す。
// startMonth/endMonthは"2025-01"形式で両端を含む。
func (r *PostgresAffiliateRepo) PayoutTotalsBetween(ctx context.Context, startMonth, endMonth string) (*PayoutTotals, error) {
	totals := &PayoutTotals{}
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(earnings), 0) FROM affiliate_stats
		 WHERE paid_out = TRUE AND month BETWEEN $1 AND $2`,
		startMonth, endMonth,
	).Scan(&totals.Count, &totals.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to query payout totals: %w", err)
	}
	return totals, nil
}

// compile-time interface check
var _ AffiliateRepository = (*PostgresAffiliateRepo)(nil)
