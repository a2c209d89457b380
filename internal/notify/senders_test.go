package notify

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/passalarm/internal/model"
)

// mockSettingsLoader はSettingsLoaderのモック実装。
type mockSettingsLoader struct {
	settings *model.SystemSettings
}

func (m *mockSettingsLoader) Load(ctx context.Context) (*model.SystemSettings, error) {
	return m.settings, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestResendSender_SimulatesWithoutCredentials はAPIキー未設定時に
// 実送信せずシミュレーション成功を返すことを検証する。
func TestResendSender_SimulatesWithoutCredentials(t *testing.T) {
	s := NewResendEmailSender(&mockSettingsLoader{settings: &model.SystemSettings{}}, discardLogger(), time.Second)
	s.apiBase = "http://127.0.0.1:1" // 到達した場合にテストが失敗するよう無効な宛先にする

	result, err := s.Send(context.Background(), "kunde@example.de", "Alarm", "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || !result.Simulated {
		t.Errorf("result = %+v, want simulated success", result)
	}
}

// TestResendSender_SendsViaAPI は実クレデンシャル設定時のAPI呼び出しを検証する。
func TestResendSender_SendsViaAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" {
			t.Errorf("path = %q, want /emails", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer re-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id": "email-1"}`))
	}))
	defer server.Close()

	s := NewResendEmailSender(&mockSettingsLoader{settings: &model.SystemSettings{
		ResendAPIKey:       "re-key",
		EmailSenderAddress: "alarm@example.de",
	}}, discardLogger(), time.Second)
	s.apiBase = server.URL

	result, err := s.Send(context.Background(), "kunde@example.de", "Alarm", "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.Simulated {
		t.Errorf("result = %+v, want real success", result)
	}
}

// TestResendSender_ProviderError はAPIエラー時にerrorを返すことを検証する。
func TestResendSender_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	s := NewResendEmailSender(&mockSettingsLoader{settings: &model.SystemSettings{
		ResendAPIKey: "re-key",
	}}, discardLogger(), time.Second)
	s.apiBase = server.URL

	if _, err := s.Send(context.Background(), "kunde@example.de", "Alarm", "text"); err == nil {
		t.Error("expected error, got nil")
	}
}

// TestTwilioSender_SimulatesWithoutCredentials はクレデンシャルや
// 送信元番号の未設定時にシミュレーション成功を返すことを検証する。
func TestTwilioSender_SimulatesWithoutCredentials(t *testing.T) {
	tests := []struct {
		name     string
		settings *model.SystemSettings
	}{
		{"no credentials", &model.SystemSettings{}},
		{"no from number", &model.SystemSettings{TwilioSID: "AC1", TwilioAuthToken: "tok"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewTwilioSMSSender(&mockSettingsLoader{settings: tt.settings}, discardLogger(), time.Second)
			s.apiBase = "http://127.0.0.1:1"

			result, err := s.Send(context.Background(), "+491701234567", "text")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.Success || !result.Simulated {
				t.Errorf("result = %+v, want simulated success", result)
			}
		})
	}
}

// TestTwilioSender_SendsViaAPI は実クレデンシャル設定時のAPI呼び出しを検証する。
func TestTwilioSender_SendsViaAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC1/Messages.json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if r.PostForm.Get("To") != "+491701234567" || r.PostForm.Get("From") != "+491700000000" {
			t.Errorf("form = %v", r.PostForm)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid": "SM1"}`))
	}))
	defer server.Close()

	s := NewTwilioSMSSender(&mockSettingsLoader{settings: &model.SystemSettings{
		TwilioSID:        "AC1",
		TwilioAuthToken:  "tok",
		TwilioFromNumber: "+491700000000",
	}}, discardLogger(), time.Second)
	s.apiBase = server.URL

	result, err := s.Send(context.Background(), "+491701234567", "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.Simulated {
		t.Errorf("result = %+v, want real success", result)
	}
}
