package model

import "time"

// ProbeSourceKind は在庫確認の外部データソース種別を表す。
type ProbeSourceKind string

const (
	// ProbeSourceScraper はスクレイピングAPI（Browse.ai互換）を示す。
	ProbeSourceScraper ProbeSourceKind = "scraper"
	// ProbeSourcePage は商品ページの直接スクレイプを示す。
	ProbeSourcePage ProbeSourceKind = "page"
	// ProbeSourceFeed は在庫アナウンスのRSS/Atomフィードを示す。
	ProbeSourceFeed ProbeSourceKind = "feed"
)

// SystemSettings は管理画面で設定する外部連携と動作設定を表す。
// DB上は1行で全体を保存し、部分更新はしない（読み込み→書き戻し）。
type SystemSettings struct {
	// 生成AI
	GeminiAPIKey string

	// 決済（Stripe）
	StripePublicKey     string
	StripeSecretKey     string
	StripePriceID       string
	StripeWebhookSecret string

	// SMS（Twilio）
	TwilioSID        string
	TwilioAuthToken  string
	TwilioFromNumber string

	// メール（Resend）
	ResendAPIKey       string
	EmailSenderAddress string

	// 在庫確認ソース
	ProbeSource      ProbeSourceKind
	ScraperAPIKey    string
	ScraperRobotID   string
	ProbeSourceURL   string // page/feedソースのURL

	// アフィリエイト
	AffiliateCommissionPercentage int

	// AVAILABLEのまま変化しないポーリングでも毎回通知するか。
	// falseの場合はAVAILABLEへの遷移エッジのみ通知する。
	NotifyOnEveryPollWhileAvailable bool

	UpdatedAt time.Time
}

// DefaultSystemSettings は未設定時のデフォルト設定を返す。
func DefaultSystemSettings() *SystemSettings {
	return &SystemSettings{
		ProbeSource:                   ProbeSourceScraper,
		AffiliateCommissionPercentage: 50,
	}
}

// HasSMSCredentials はTwilioクレデンシャルが設定済みかを返す。
func (s *SystemSettings) HasSMSCredentials() bool {
	return s.TwilioSID != "" && s.TwilioAuthToken != ""
}

// HasEmailCredentials はResendクレデンシャルが設定済みかを返す。
func (s *SystemSettings) HasEmailCredentials() bool {
	return s.ResendAPIKey != ""
}
