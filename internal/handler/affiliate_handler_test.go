package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/passalarm/internal/affiliate"
	"github.com/hitoshi/passalarm/internal/model"
)

// --- モック定義 ---

// mockAffiliateService はAffiliateServiceInterfaceのモック実装。
type mockAffiliateService struct {
	trackClickFn    func(ctx context.Context, code string) (string, error)
	getDashboardFn  func(ctx context.Context, user *model.User) (*affiliate.Dashboard, error)
	updateProfileFn func(ctx context.Context, user *model.User, profile *model.AffiliateProfile) error
	requestPayoutFn func(ctx context.Context, user *model.User) (float64, error)
}

func (m *mockAffiliateService) TrackClick(ctx context.Context, code string) (string, error) {
	if m.trackClickFn != nil {
		return m.trackClickFn(ctx, code)
	}
	return "", nil
}

func (m *mockAffiliateService) GetDashboard(ctx context.Context, user *model.User) (*affiliate.Dashboard, error) {
	if m.getDashboardFn != nil {
		return m.getDashboardFn(ctx, user)
	}
	return &affiliate.Dashboard{}, nil
}

func (m *mockAffiliateService) UpdateProfile(ctx context.Context, user *model.User, profile *model.AffiliateProfile) error {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, user, profile)
	}
	return nil
}

func (m *mockAffiliateService) RequestPayout(ctx context.Context, user *model.User) (float64, error) {
	if m.requestPayoutFn != nil {
		return m.requestPayoutFn(ctx, user)
	}
	return 0, nil
}

// --- GET /ref/{code} テスト ---

func TestAffiliateHandler_TrackClick_Redirects(t *testing.T) {
	svc := &mockAffiliateService{
		trackClickFn: func(ctx context.Context, code string) (string, error) {
			if code != "ABCD1234" {
				t.Errorf("code = %q, want %q", code, "ABCD1234")
			}
			return "https://passalarm.app/?ref=ABCD1234", nil
		},
	}

	h := NewAffiliateHandler(svc, loaderFor(nil))

	req := httptest.NewRequest(http.MethodGet, "/ref/ABCD1234", nil)
	req = withURLParam(req, "code", "ABCD1234")
	w := httptest.NewRecorder()

	h.TrackClick(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	if loc := resp.Header.Get("Location"); loc != "https://passalarm.app/?ref=ABCD1234" {
		t.Errorf("Location = %q, want referral redirect", loc)
	}
}

// --- GET /api/affiliate/dashboard テスト ---

func TestAffiliateHandler_GetDashboard_Success(t *testing.T) {
	partner := &model.User{ID: "partner-1", IsAffiliate: true}
	svc := &mockAffiliateService{
		getDashboardFn: func(ctx context.Context, user *model.User) (*affiliate.Dashboard, error) {
			return &affiliate.Dashboard{
				Code:                 "ABCD1234",
				Link:                 "https://passalarm.app/?ref=ABCD1234",
				CommissionPercentage: 50,
				Stats: []*model.AffiliateStat{
					{Month: "2026-08", Clicks: 12, Conversions: 2, Earnings: 2.99},
				},
				UnpaidEarnings:  2.99,
				ProfileComplete: false,
			}, nil
		},
	}

	h := NewAffiliateHandler(svc, loaderFor(partner))

	req := httptest.NewRequest(http.MethodGet, "/api/affiliate/dashboard", nil)
	req = withUserID(req, "partner-1")
	w := httptest.NewRecorder()

	h.GetDashboard(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["code"] != "ABCD1234" {
		t.Errorf("code = %v, want %q", result["code"], "ABCD1234")
	}
	if int(result["commission_percentage"].(float64)) != 50 {
		t.Errorf("commission_percentage = %v, want 50", result["commission_percentage"])
	}
	stats := result["stats"].([]interface{})
	if len(stats) != 1 {
		t.Fatalf("stats length = %d, want 1", len(stats))
	}
	if result["profile_complete"] != false {
		t.Errorf("profile_complete = %v, want false", result["profile_complete"])
	}
}

func TestAffiliateHandler_GetDashboard_NotAffiliate(t *testing.T) {
	customer := &model.User{ID: "user-1", IsAffiliate: false}
	svc := &mockAffiliateService{
		getDashboardFn: func(ctx context.Context, user *model.User) (*affiliate.Dashboard, error) {
			return nil, model.NewNotAffiliateError()
		},
	}

	h := NewAffiliateHandler(svc, loaderFor(customer))

	req := httptest.NewRequest(http.MethodGet, "/api/affiliate/dashboard", nil)
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.GetDashboard(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

// --- PUT /api/affiliate/profile テスト ---

func TestAffiliateHandler_UpdateProfile(t *testing.T) {
	partner := &model.User{ID: "partner-1", IsAffiliate: true}
	var received *model.AffiliateProfile
	svc := &mockAffiliateService{
		updateProfileFn: func(ctx context.Context, user *model.User, profile *model.AffiliateProfile) error {
			received = profile
			return nil
		},
	}

	h := NewAffiliateHandler(svc, loaderFor(partner))

	body, _ := json.Marshal(map[string]string{
		"first_name":   "Max",
		"last_name":    "Mustermann",
		"street":       "Musterstraße",
		"house_number": "1",
		"zip":          "80331",
		"city":         "München",
		"country":      "DE",
		"paypal_email": "max@example.com",
	})
	req := httptest.NewRequest(http.MethodPut, "/api/affiliate/profile", bytes.NewReader(body))
	req = withUserID(req, "partner-1")
	w := httptest.NewRecorder()

	h.UpdateProfile(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if received == nil {
		t.Fatal("expected profile to reach service")
	}
	if received.City != "München" {
		t.Errorf("city = %q, want %q", received.City, "München")
	}
	if received.PaypalEmail != "max@example.com" {
		t.Errorf("paypal_email = %q, want %q", received.PaypalEmail, "max@example.com")
	}
}

// --- POST /api/affiliate/payout テスト ---

func TestAffiliateHandler_RequestPayout_Success(t *testing.T) {
	partner := &model.User{ID: "partner-1", IsAffiliate: true}
	svc := &mockAffiliateService{
		requestPayoutFn: func(ctx context.Context, user *model.User) (float64, error) {
			return 80.0, nil
		},
	}

	h := NewAffiliateHandler(svc, loaderFor(partner))

	req := httptest.NewRequest(http.MethodPost, "/api/affiliate/payout", nil)
	req = withUserID(req, "partner-1")
	w := httptest.NewRecorder()

	h.RequestPayout(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var result map[string]float64
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["amount_eur"] != 80.0 {
		t.Errorf("amount_eur = %v, want 80.0", result["amount_eur"])
	}
}

func TestAffiliateHandler_RequestPayout_BelowMinimum(t *testing.T) {
	partner := &model.User{ID: "partner-1", IsAffiliate: true}
	svc := &mockAffiliateService{
		requestPayoutFn: func(ctx context.Context, user *model.User) (float64, error) {
			return 0, model.NewPayoutBelowMinimumError(50.0)
		},
	}

	h := NewAffiliateHandler(svc, loaderFor(partner))

	req := httptest.NewRequest(http.MethodPost, "/api/affiliate/payout", nil)
	req = withUserID(req, "partner-1")
	w := httptest.NewRecorder()

	h.RequestPayout(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusConflict)
	}

	var errResp apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Code != model.ErrCodePayoutBelowMinimum {
		t.Errorf("code = %q, want %q", errResp.Code, model.ErrCodePayoutBelowMinimum)
	}
}
