package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/passalarm/internal/affiliate"
	"github.com/hitoshi/passalarm/internal/model"
)

// AffiliateServiceInterface はアフィリエイトハンドラーが必要とするサービスインターフェース。
type AffiliateServiceInterface interface {
	// TrackClick は紹介リンクのクリックを記録しリダイレクト先URLを返す。
	TrackClick(ctx context.Context, code string) (string, error)
	// GetDashboard はパートナーダッシュボードの表示データを返す。
	GetDashboard(ctx context.Context, user *model.User) (*affiliate.Dashboard, error)
	// UpdateProfile はパートナープロフィールを更新する。
	UpdateProfile(ctx context.Context, user *model.User, profile *model.AffiliateProfile) error
	// RequestPayout は未払い報酬の払い出しを要求し、払い出した金額を返す。
	RequestPayout(ctx context.Context, user *model.User) (float64, error)
}

// AffiliateHandler はパートナープログラムのHTTPハンドラー。
type AffiliateHandler struct {
	service    AffiliateServiceInterface
	userLoader UserLoader
}

// NewAffiliateHandler はAffiliateHandlerを生成する。
func NewAffiliateHandler(service AffiliateServiceInterface, userLoader UserLoader) *AffiliateHandler {
	return &AffiliateHandler{
		service:    service,
		userLoader: userLoader,
	}
}

// affiliateStatResponse は月次実績のAPIレスポンス。
type affiliateStatResponse struct {
	Month       string  `json:"month"`
	Clicks      int     `json:"clicks"`
	Conversions int     `json:"conversions"`
	EarningsEUR float64 `json:"earnings_eur"`
	PaidOut     bool    `json:"paid_out"`
}

// affiliateProfileResponse はパートナープロフィールのAPIレスポンス。
type affiliateProfileResponse struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
	Zip         string `json:"zip"`
	City        string `json:"city"`
	Country     string `json:"country"`
	CompanyName string `json:"company_name"`
	VatID       string `json:"vat_id"`
	PaypalEmail string `json:"paypal_email"`
}

// dashboardResponse はパートナーダッシュボードのAPIレスポンス。
type dashboardResponse struct {
	Code                 string                    `json:"code"`
	Link                 string                    `json:"link"`
	CommissionPercentage int                       `json:"commission_percentage"`
	Stats                []affiliateStatResponse   `json:"stats"`
	UnpaidEarningsEUR    float64                   `json:"unpaid_earnings_eur"`
	Profile              *affiliateProfileResponse `json:"profile,omitempty"`
	ProfileComplete      bool                      `json:"profile_complete"`
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
type updateProfileRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
	Zip         string `json:"zip"`
	City        string `json:"city"`
	Country     string `json:"country"`
	CompanyName string `json:"company_name"`
	VatID       string `json:"vat_id"`
	PaypalEmail string `json:"paypal_email"`
}

// TrackClick は紹介リンクのクリックを記録してトップページへリダイレクトする。
// GET /ref/{code}
func (h *AffiliateHandler) TrackClick(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	redirectURL, err := h.service.TrackClick(r.Context(), code)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// GetDashboard はパートナーダッシュボードの表示データを返す。
// GET /api/affiliate/dashboard
func (h *AffiliateHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.userLoader)
	if !ok {
		return
	}

	dashboard, err := h.service.GetDashboard(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := dashboardResponse{
		Code:                 dashboard.Code,
		Link:                 dashboard.Link,
		CommissionPercentage: dashboard.CommissionPercentage,
		Stats:                make([]affiliateStatResponse, len(dashboard.Stats)),
		UnpaidEarningsEUR:    dashboard.UnpaidEarnings,
		ProfileComplete:      dashboard.ProfileComplete,
	}
	for i, stat := range dashboard.Stats {
		resp.Stats[i] = affiliateStatResponse{
			Month:       stat.Month,
			Clicks:      stat.Clicks,
			Conversions: stat.Conversions,
			EarningsEUR: stat.Earnings,
			PaidOut:     stat.PaidOut,
		}
	}
	if dashboard.Profile != nil {
		resp.Profile = &affiliateProfileResponse{
			FirstName:   dashboard.Profile.FirstName,
			LastName:    dashboard.Profile.LastName,
			Street:      dashboard.Profile.Street,
			HouseNumber: dashboard.Profile.HouseNumber,
			Zip:         dashboard.Profile.Zip,
			City:        dashboard.Profile.City,
			Country:     dashboard.Profile.Country,
			CompanyName: dashboard.Profile.CompanyName,
			VatID:       dashboard.Profile.VatID,
			PaypalEmail: dashboard.Profile.PaypalEmail,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// UpdateProfile はパートナープロフィールを更新する。
// PUT /api/affiliate/profile
func (h *AffiliateHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.userLoader)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	profile := &model.AffiliateProfile{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Street:      req.Street,
		HouseNumber: req.HouseNumber,
		Zip:         req.Zip,
		City:        req.City,
		Country:     req.Country,
		CompanyName: req.CompanyName,
		VatID:       req.VatID,
		PaypalEmail: req.PaypalEmail,
		UpdatedAt:   time.Now(),
	}

	if err := h.service.UpdateProfile(r.Context(), user, profile); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RequestPayout は未払い報酬の払い出しを要求する。
// POST /api/affiliate/payout
func (h *AffiliateHandler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.userLoader)
	if !ok {
		return
	}

	amount, err := h.service.RequestPayout(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]float64{"amount_eur": amount})
}
