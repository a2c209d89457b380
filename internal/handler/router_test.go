package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/passalarm/internal/middleware"
	"github.com/hitoshi/passalarm/internal/model"
)

// mockSessionFinder はmiddleware.SessionFinderのモック実装。
type mockSessionFinder struct {
	sessions map[string]*model.Session
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, nil
}

func testRouterDeps() *RouterDeps {
	user := &model.User{ID: "user-1", IsSubscribed: true, EmailEnabled: true}
	return &RouterDeps{
		SessionFinder: &mockSessionFinder{
			sessions: map[string]*model.Session{
				"valid-session": {ID: "valid-session", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)},
			},
		},
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig()),
		AuthService:       &mockAuthService{},
		AuthConfig:        testAuthConfig(),
		UserLoader:        loaderFor(user),
		StateLister:       &mockStateLister{},
		Watcher:           &mockWatcher{},
		TestAlarm:         &mockTestAlarmSender{},
		NotificationLogs:  &mockLogLister{},
		UserService:       &mockUserService{},
		AffiliateService:  &mockAffiliateService{},
		AdminService:      &mockAdminService{},
		SettingsService:   &mockSettingsService{},
	}
}

func TestRouter_HealthEndpoint(t *testing.T) {
	deps := testRouterDeps()
	defer deps.RateLimiter.Stop()
	r := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRouter_PublicAvailability(t *testing.T) {
	deps := testRouterDeps()
	defer deps.RateLimiter.Stop()
	r := NewRouter(deps)

	// 認証なしで在庫状態を読み取れる
	req := httptest.NewRequest(http.MethodGet, "/api/availability", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRouter_ProtectedRoutesRequireSession(t *testing.T) {
	deps := testRouterDeps()
	defer deps.RateLimiter.Stop()
	r := NewRouter(deps)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/notifications"},
		{http.MethodPost, "/api/alarms/test"},
		{http.MethodPost, "/api/availability/check"},
		{http.MethodGet, "/api/affiliate/dashboard"},
		{http.MethodGet, "/api/admin/stats"},
	}

	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want %d", p.method, p.path, w.Result().StatusCode, http.StatusUnauthorized)
		}
	}
}

func TestRouter_ProtectedRouteWithSession(t *testing.T) {
	deps := testRouterDeps()
	defer deps.RateLimiter.Stop()
	r := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRouter_ReferralRedirect(t *testing.T) {
	deps := testRouterDeps()
	deps.AffiliateService = &mockAffiliateService{
		trackClickFn: func(ctx context.Context, code string) (string, error) {
			return "https://passalarm.app/?ref=" + code, nil
		},
	}
	defer deps.RateLimiter.Stop()
	r := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/ref/ABCD1234", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	if loc := resp.Header.Get("Location"); loc != "https://passalarm.app/?ref=ABCD1234" {
		t.Errorf("Location = %q, want referral redirect", loc)
	}
}

func TestRouter_CSRFTokenEndpoint(t *testing.T) {
	deps := testRouterDeps()
	defer deps.RateLimiter.Stop()
	r := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	found := false
	for _, c := range resp.Cookies() {
		if c.Name == "csrf_token" && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("csrf_token cookie should be set")
	}
}

func TestRouter_StateChangingRequestWithoutCSRFToken(t *testing.T) {
	deps := testRouterDeps()
	defer deps.RateLimiter.Stop()
	r := NewRouter(deps)

	// 有効なセッションがあってもCSRFトークンがないPOSTは拒否される
	req := httptest.NewRequest(http.MethodPost, "/api/availability/check", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}
