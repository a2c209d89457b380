// Package settings はシステム設定の読み書きとマスキングを提供する。
package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/hitoshi/passalarm/internal/model"
	"github.com/hitoshi/passalarm/internal/repository"
)

// URLValidator は管理者が保存するURLの事前検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Service はシステム設定のサービス層。
// 設定は常に全体を読み込み、全体を書き戻す。部分更新はしない。
type Service struct {
	repo         repository.SettingsRepository
	urlValidator URLValidator
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.SettingsRepository, urlValidator URLValidator) *Service {
	return &Service{
		repo:         repo,
		urlValidator: urlValidator,
	}
}

// Load はシステム設定を取得する。シークレットはマスクされない。
// 内部サービス（在庫確認・通知送信）向け。
func (s *Service) Load(ctx context.Context) (*model.SystemSettings, error) {
	settings, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("システム設定の読み込みに失敗しました: %w", err)
	}
	return settings, nil
}

// Update はシステム設定を検証して保存する。
// page/feedソースのURLはSSRF対策の事前検証を通す。
func (s *Service) Update(ctx context.Context, settings *model.SystemSettings) error {
	switch settings.ProbeSource {
	case model.ProbeSourceScraper, model.ProbeSourcePage, model.ProbeSourceFeed:
	default:
		return model.NewValidationError("probe_source", "不明な在庫確認ソースです")
	}

	if settings.ProbeSource != model.ProbeSourceScraper && settings.ProbeSourceURL != "" {
		if err := s.urlValidator.ValidateURL(settings.ProbeSourceURL); err != nil {
			return model.NewValidationError("probe_source_url", "このURLは使用できません")
		}
	}

	if settings.AffiliateCommissionPercentage < 0 || settings.AffiliateCommissionPercentage > 100 {
		return model.NewValidationError("affiliate_commission_percentage", "報酬率は0〜100で指定してください")
	}

	if err := s.repo.Save(ctx, settings); err != nil {
		return fmt.Errorf("システム設定の保存に失敗しました: %w", err)
	}
	return nil
}

// MaskedView は管理画面表示用に作成したシークレットマスク済みの設定ビュー。
type MaskedView struct {
	GeminiAPIKey string `json:"gemini_api_key"`

	StripePublicKey     string `json:"stripe_public_key"`
	StripeSecretKey     string `json:"stripe_secret_key"`
	StripePriceID       string `json:"stripe_price_id"`
	StripeWebhookSecret string `json:"stripe_webhook_secret"`

	TwilioSID        string `json:"twilio_sid"`
	TwilioAuthToken  string `json:"twilio_auth_token"`
	TwilioFromNumber string `json:"twilio_from_number"`

	ResendAPIKey       string `json:"resend_api_key"`
	EmailSenderAddress string `json:"email_sender_address"`

	ProbeSource    string `json:"probe_source"`
	ScraperAPIKey  string `json:"scraper_api_key"`
	ScraperRobotID string `json:"scraper_robot_id"`
	ProbeSourceURL string `json:"probe_source_url"`

	AffiliateCommissionPercentage   int  `json:"affiliate_commission_percentage"`
	NotifyOnEveryPollWhileAvailable bool `json:"notify_on_every_poll_while_available"`
}

// LoadMasked はシークレットをマスクした設定を返す。管理画面の表示用。
func (s *Service) LoadMasked(ctx context.Context) (*MaskedView, error) {
	settings, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	return &MaskedView{
		GeminiAPIKey:                    MaskSecret(settings.GeminiAPIKey),
		StripePublicKey:                 settings.StripePublicKey,
		StripeSecretKey:                 MaskSecret(settings.StripeSecretKey),
		StripePriceID:                   settings.StripePriceID,
		StripeWebhookSecret:             MaskSecret(settings.StripeWebhookSecret),
		TwilioSID:                       MaskSecret(settings.TwilioSID),
		TwilioAuthToken:                 MaskSecret(settings.TwilioAuthToken),
		TwilioFromNumber:                settings.TwilioFromNumber,
		ResendAPIKey:                    MaskSecret(settings.ResendAPIKey),
		EmailSenderAddress:              settings.EmailSenderAddress,
		ProbeSource:                     string(settings.ProbeSource),
		ScraperAPIKey:                   MaskSecret(settings.ScraperAPIKey),
		ScraperRobotID:                  settings.ScraperRobotID,
		ProbeSourceURL:                  settings.ProbeSourceURL,
		AffiliateCommissionPercentage:   settings.AffiliateCommissionPercentage,
		NotifyOnEveryPollWhileAvailable: settings.NotifyOnEveryPollWhileAvailable,
	}, nil
}

// MaskSecret はシークレットの末尾4文字以外を伏せ字にする。
// 8文字以下の場合は全体を伏せ字にする。空文字はそのまま返す。
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}
