package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/passalarm/internal/model"
)

// PostgresSettingsRepo はPostgreSQLを使用したシステム設定リポジトリ。
// 設定は常にid=1の1行で全体を読み書きする。
type PostgresSettingsRepo struct {
	db *sql.DB
}

// NewPostgresSettingsRepo はPostgresSettingsRepoを生成する。
func NewPostgresSettingsRepo(db *sql.DB) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{db: db}
}

// Load はシステム設定を読み込む。
// 行が存在しない場合はデフォルト設定を返す。
func (r *PostgresSettingsRepo) Load(ctx context.Context) (*model.SystemSettings, error) {
	s := &model.SystemSettings{}
	var probeSource string
	err := r.db.QueryRowContext(ctx,
		`SELECT gemini_api_key,
			stripe_public_key, stripe_secret_key, stripe_price_id, stripe_webhook_secret,
			twilio_sid, twilio_auth_token, twilio_from_number,
			resend_api_key, email_sender_address,
			probe_source, scraper_api_key, scraper_robot_id, probe_source_url,
			affiliate_commission_percentage, notify_on_every_poll_while_available,
			updated_at
		 FROM system_settings WHERE id = 1`,
	).Scan(
		&s.GeminiAPIKey,
		&s.StripePublicKey, &s.StripeSecretKey, &s.StripePriceID, &s.StripeWebhookSecret,
		&s.TwilioSID, &s.TwilioAuthToken, &s.TwilioFromNumber,
		&s.ResendAPIKey, &s.EmailSenderAddress,
		&probeSource, &s.ScraperAPIKey, &s.ScraperRobotID, &s.ProbeSourceURL,
		&s.AffiliateCommissionPercentage, &s.NotifyOnEveryPollWhileAvailable,
		&s.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return model.DefaultSystemSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load system settings: %w", err)
	}

	s.ProbeSource = model.ProbeSourceKind(probeSource)
	return s, nil
}

// Save はシステム設定を全体保存する。
func (r *PostgresSettingsRepo) Save(ctx context.Context, settings *model.SystemSettings) error {
	settings.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO system_settings (id, gemini_api_key,
			stripe_public_key, stripe_secret_key, stripe_price_id, stripe_webhook_secret,
			twilio_sid, twilio_auth_token, twilio_from_number,
			resend_api_key, email_sender_address,
			probe_source, scraper_api_key, scraper_robot_id, probe_source_url,
			affiliate_commission_percentage, notify_on_every_poll_while_available,
			updated_at)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (id) DO UPDATE SET
			gemini_api_key = EXCLUDED.gemini_api_key,
			stripe_public_key = EXCLUDED.stripe_public_key,
			stripe_secret_key = EXCLUDED.stripe_secret_key,
			stripe_price_id = EXCLUDED.stripe_price_id,
			stripe_webhook_secret = EXCLUDED.stripe_webhook_secret,
			twilio_sid = EXCLUDED.twilio_sid,
			twilio_auth_token = EXCLUDED.twilio_auth_token,
			twilio_from_number = EXCLUDED.twilio_from_number,
			resend_api_key = EXCLUDED.resend_api_key,
			email_sender_address = EXCLUDED.email_sender_address,
			probe_source = EXCLUDED.probe_source,
			scraper_api_key = EXCLUDED.scraper_api_key,
			scraper_robot_id = EXCLUDED.scraper_robot_id,
			probe_source_url = EXCLUDED.probe_source_url,
			affiliate_commission_percentage = EXCLUDED.affiliate_commission_percentage,
			notify_on_every_poll_while_available = EXCLUDED.notify_on_every_poll_while_available,
			updated_at = EXCLUDED.updated_at`,
		settings.GeminiAPIKey,
		settings.StripePublicKey, settings.StripeSecretKey, settings.StripePriceID, settings.StripeWebhookSecret,
		settings.TwilioSID, settings.TwilioAuthToken, settings.TwilioFromNumber,
		settings.ResendAPIKey, settings.EmailSenderAddress,
		string(settings.ProbeSource), settings.ScraperAPIKey, settings.ScraperRobotID, settings.ProbeSourceURL,
		settings.AffiliateCommissionPercentage, settings.NotifyOnEveryPollWhileAvailable,
		settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save system settings: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SettingsRepository = (*PostgresSettingsRepo)(nil)
