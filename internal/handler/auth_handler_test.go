package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/passalarm/internal/auth"
	"github.com/hitoshi/passalarm/internal/model"
)

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	registerCustomerFn func(ctx context.Context, req auth.CustomerRegistration) (*model.User, *model.Session, error)
	registerPartnerFn  func(ctx context.Context, req auth.PartnerRegistration) (*model.User, *model.Session, error)
	loginFn            func(ctx context.Context, email, password string) (*model.User, *model.Session, error)
	logoutFn           func(ctx context.Context, sessionID string) error
	getCurrentUserFn   func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) RegisterCustomer(ctx context.Context, req auth.CustomerRegistration) (*model.User, *model.Session, error) {
	if m.registerCustomerFn != nil {
		return m.registerCustomerFn(ctx, req)
	}
	return nil, nil, nil
}

func (m *mockAuthService) RegisterPartner(ctx context.Context, req auth.PartnerRegistration) (*model.User, *model.Session, error) {
	if m.registerPartnerFn != nil {
		return m.registerPartnerFn(ctx, req)
	}
	return nil, nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, nil
}

func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{
		CookieSecure:  false,
		SessionMaxAge: 3600,
	}
}

// sessionCookieFrom はレスポンスからセッションCookieを探す。
func sessionCookieFrom(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	return nil
}

// --- POST /auth/register/customer テスト ---

func TestAuthHandler_RegisterCustomer_Success(t *testing.T) {
	svc := &mockAuthService{
		registerCustomerFn: func(ctx context.Context, req auth.CustomerRegistration) (*model.User, *model.Session, error) {
			if req.Email != "kunde@example.com" {
				t.Errorf("email = %q, want %q", req.Email, "kunde@example.com")
			}
			if req.ReferralCode != "ABCD1234" {
				t.Errorf("referral code = %q, want %q", req.ReferralCode, "ABCD1234")
			}
			user := &model.User{
				ID:           "user-1",
				Name:         req.Name,
				Email:        req.Email,
				PhoneNumber:  "+491701234567",
				EmailEnabled: true,
				SMSEnabled:   true,
			}
			session := &model.Session{ID: "sess-1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}
			return user, session, nil
		},
	}

	h := NewAuthHandler(svc, testAuthConfig())

	body, _ := json.Marshal(map[string]string{
		"name":             "Max Mustermann",
		"email":            "kunde@example.com",
		"password":         "geheim123",
		"password_confirm": "geheim123",
		"phone":            "0170 1234567",
		"referral_code":    "ABCD1234",
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/register/customer", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.RegisterCustomer(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	cookie := sessionCookieFrom(resp)
	if cookie == nil {
		t.Fatal("expected session cookie to be set")
	}
	if cookie.Value != "sess-1" {
		t.Errorf("session cookie = %q, want %q", cookie.Value, "sess-1")
	}
	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["id"] != "user-1" {
		t.Errorf("id = %v, want %q", result["id"], "user-1")
	}
	if result["email_enabled"] != true {
		t.Errorf("email_enabled = %v, want true", result["email_enabled"])
	}
}

func TestAuthHandler_RegisterCustomer_ValidationError(t *testing.T) {
	svc := &mockAuthService{
		registerCustomerFn: func(ctx context.Context, req auth.CustomerRegistration) (*model.User, *model.Session, error) {
			return nil, nil, model.NewInvalidEmailError()
		},
	}

	h := NewAuthHandler(svc, testAuthConfig())

	body, _ := json.Marshal(map[string]string{"email": "not-an-email"})
	req := httptest.NewRequest(http.MethodPost, "/auth/register/customer", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.RegisterCustomer(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var errResp apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Code != model.ErrCodeInvalidEmail {
		t.Errorf("code = %q, want %q", errResp.Code, model.ErrCodeInvalidEmail)
	}
}

func TestAuthHandler_RegisterCustomer_InvalidBody(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/register/customer", bytes.NewReader([]byte("{invalid")))
	w := httptest.NewRecorder()

	h.RegisterCustomer(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// --- POST /auth/register/partner テスト ---

func TestAuthHandler_RegisterPartner_Success(t *testing.T) {
	svc := &mockAuthService{
		registerPartnerFn: func(ctx context.Context, req auth.PartnerRegistration) (*model.User, *model.Session, error) {
			user := &model.User{ID: "partner-1", Name: req.Name, Email: req.Email, IsAffiliate: true}
			session := &model.Session{ID: "sess-p", UserID: "partner-1", ExpiresAt: time.Now().Add(time.Hour)}
			return user, session, nil
		},
	}

	h := NewAuthHandler(svc, testAuthConfig())

	body, _ := json.Marshal(map[string]string{
		"name":             "Partner GmbH",
		"email":            "partner@example.com",
		"password":         "geheim123",
		"password_confirm": "geheim123",
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/register/partner", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.RegisterPartner(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["is_affiliate"] != true {
		t.Errorf("is_affiliate = %v, want true", result["is_affiliate"])
	}
}

// --- POST /auth/login テスト ---

func TestAuthHandler_Login_Success(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
			user := &model.User{ID: "user-1", Email: email, IsSubscribed: true}
			session := &model.Session{ID: "sess-login", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}
			return user, session, nil
		},
	}

	h := NewAuthHandler(svc, testAuthConfig())

	body, _ := json.Marshal(map[string]string{"email": "kunde@example.com", "password": "geheim123"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if cookie := sessionCookieFrom(resp); cookie == nil || cookie.Value != "sess-login" {
		t.Error("expected session cookie to be set on login")
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
			return nil, nil, model.NewInvalidCredentialsError()
		},
	}

	h := NewAuthHandler(svc, testAuthConfig())

	body, _ := json.Marshal(map[string]string{"email": "kunde@example.com", "password": "falsch"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	if sessionCookieFrom(resp) != nil {
		t.Error("session cookie must not be set on failed login")
	}
}

// --- POST /auth/logout テスト ---

func TestAuthHandler_Logout_ClearsCookie(t *testing.T) {
	loggedOut := ""
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			loggedOut = sessionID
			return nil
		},
	}

	h := NewAuthHandler(svc, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-1"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if loggedOut != "sess-1" {
		t.Errorf("logged out session = %q, want %q", loggedOut, "sess-1")
	}

	cookie := sessionCookieFrom(resp)
	if cookie == nil {
		t.Fatal("expected clearing session cookie")
	}
	if cookie.Value != "" || cookie.MaxAge != -1 {
		t.Errorf("cookie not cleared: value=%q maxAge=%d", cookie.Value, cookie.MaxAge)
	}
}

// --- GET /auth/me テスト ---

func TestAuthHandler_Me_Success(t *testing.T) {
	svc := &mockAuthService{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			if sessionID != "sess-1" {
				t.Errorf("sessionID = %q, want %q", sessionID, "sess-1")
			}
			return &model.User{ID: "user-1", Name: "Max", Email: "kunde@example.com"}, nil
		},
	}

	h := NewAuthHandler(svc, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-1"})
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["email"] != "kunde@example.com" {
		t.Errorf("email = %v, want %q", result["email"], "kunde@example.com")
	}
}

func TestAuthHandler_Me_NoCookie(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}
