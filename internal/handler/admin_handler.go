package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/passalarm/internal/admin"
	"github.com/hitoshi/passalarm/internal/model"
	"github.com/hitoshi/passalarm/internal/settings"
)

// AdminServiceInterface は管理画面ハンドラーが必要とするサービスインターフェース。
type AdminServiceInterface interface {
	// GetStats は管理ダッシュボードの集計データを返す。
	GetStats(ctx context.Context) (*admin.Stats, error)
	// SetDemoStatus はデモ用の在庫状態を設定する。
	SetDemoStatus(ctx context.Context, productID string, status model.AvailabilityStatus) (*model.ProductState, error)
}

// SettingsServiceInterface はシステム設定の読み書きインターフェース。
type SettingsServiceInterface interface {
	// Load はシステム設定をマスクなしで読み込む。
	Load(ctx context.Context) (*model.SystemSettings, error)
	// LoadMasked はシークレットをマスクした設定を返す。
	LoadMasked(ctx context.Context) (*settings.MaskedView, error)
	// Update はシステム設定を検証して保存する。
	Update(ctx context.Context, s *model.SystemSettings) error
}

// AdminHandler は管理画面のHTTPハンドラー。
type AdminHandler struct {
	service    AdminServiceInterface
	settings   SettingsServiceInterface
	userLoader UserLoader
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AdminServiceInterface, settingsService SettingsServiceInterface, userLoader UserLoader) *AdminHandler {
	return &AdminHandler{
		service:    service,
		settings:   settingsService,
		userLoader: userLoader,
	}
}

// updateSettingsRequest はシステム設定更新リクエストのボディ。
// シークレット項目が空またはマスク済み値のままの場合は既存値を維持する。
type updateSettingsRequest struct {
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

// monthlyCountResponse は月別件数のAPIレスポンス。
type monthlyCountResponse struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// partnerSummaryResponse はパートナー集計のAPIレスポンス。
type partnerSummaryResponse struct {
	UserID      string  `json:"user_id"`
	Name        string  `json:"name"`
	Code        string  `json:"code"`
	Clicks      int     `json:"clicks"`
	Conversions int     `json:"conversions"`
	EarningsEUR float64 `json:"earnings_eur"`
}

// statsResponse は管理ダッシュボードの集計データのAPIレスポンス。
type statsResponse struct {
	SubscriberCount      int                      `json:"subscriber_count"`
	MonthlyRevenueEUR    float64                  `json:"monthly_revenue_eur"`
	MonthlySignups       []monthlyCountResponse   `json:"monthly_signups"`
	TopPartners          []partnerSummaryResponse `json:"top_partners"`
	PayoutCountThisYear  int                      `json:"payout_count_this_year"`
	PayoutAmountThisYear float64                  `json:"payout_amount_this_year"`
}

// setDemoStatusRequest はデモ在庫状態設定リクエストのボディ。
type setDemoStatusRequest struct {
	Status string `json:"status"`
}

// GetStats は管理ダッシュボードの集計データを返す。
// GET /api/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r, h.userLoader); !ok {
		return
	}

	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := statsResponse{
		SubscriberCount:   stats.SubscriberCount,
		MonthlyRevenueEUR: stats.MonthlyRevenueEUR,
		MonthlySignups:    make([]monthlyCountResponse, len(stats.MonthlySignups)),
		TopPartners:       make([]partnerSummaryResponse, len(stats.TopPartners)),
	}
	for i, m := range stats.MonthlySignups {
		resp.MonthlySignups[i] = monthlyCountResponse{Month: m.Month, Count: m.Count}
	}
	for i, p := range stats.TopPartners {
		resp.TopPartners[i] = partnerSummaryResponse{
			UserID:      p.UserID,
			Name:        p.Name,
			Code:        p.Code,
			Clicks:      p.Clicks,
			Conversions: p.Conversions,
			EarningsEUR: p.Earnings,
		}
	}
	if stats.PayoutsThisYear != nil {
		resp.PayoutCountThisYear = stats.PayoutsThisYear.Count
		resp.PayoutAmountThisYear = stats.PayoutsThisYear.Amount
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetSettings はシークレットをマスクしたシステム設定を返す。
// GET /api/admin/settings
func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r, h.userLoader); !ok {
		return
	}

	masked, err := h.settings.LoadMasked(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(masked)
}

// UpdateSettings はシステム設定を更新する。
// PUT /api/admin/settings
func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r, h.userLoader); !ok {
		return
	}

	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	current, err := h.settings.Load(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	updated := &model.SystemSettings{
		GeminiAPIKey:                    resolveSecret(req.GeminiAPIKey, current.GeminiAPIKey),
		StripePublicKey:                 req.StripePublicKey,
		StripeSecretKey:                 resolveSecret(req.StripeSecretKey, current.StripeSecretKey),
		StripePriceID:                   req.StripePriceID,
		StripeWebhookSecret:             resolveSecret(req.StripeWebhookSecret, current.StripeWebhookSecret),
		TwilioSID:                       resolveSecret(req.TwilioSID, current.TwilioSID),
		TwilioAuthToken:                 resolveSecret(req.TwilioAuthToken, current.TwilioAuthToken),
		TwilioFromNumber:                req.TwilioFromNumber,
		ResendAPIKey:                    resolveSecret(req.ResendAPIKey, current.ResendAPIKey),
		EmailSenderAddress:              req.EmailSenderAddress,
		ProbeSource:                     model.ProbeSourceKind(req.ProbeSource),
		ScraperAPIKey:                   resolveSecret(req.ScraperAPIKey, current.ScraperAPIKey),
		ScraperRobotID:                  req.ScraperRobotID,
		ProbeSourceURL:                  req.ProbeSourceURL,
		AffiliateCommissionPercentage:   req.AffiliateCommissionPercentage,
		NotifyOnEveryPollWhileAvailable: req.NotifyOnEveryPollWhileAvailable,
	}

	if err := h.settings.Update(r.Context(), updated); err != nil {
		handleServiceError(w, err)
		return
	}

	masked, err := h.settings.LoadMasked(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(masked)
}

// SetDemoStatus はデモ用の在庫状態を設定する。
// AVAILABLEへの遷移エッジの場合は本番同様に通知が配信される。
// PUT /api/admin/availability/{productID}
func (h *AdminHandler) SetDemoStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r, h.userLoader); !ok {
		return
	}

	productID := chi.URLParam(r, "productID")

	var req setDemoStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	state, err := h.service.SetDemoStatus(r.Context(), productID, model.AvailabilityStatus(req.Status))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProductStateResponse(state))
}

// resolveSecret はシークレット入力値を解決する。
// 空またはマスク済み値（伏せ字を含む）の場合は既存値を維持する。
func resolveSecret(incoming, current string) string {
	if incoming == "" || strings.Contains(incoming, "*") {
		return current
	}
	return incoming
}
