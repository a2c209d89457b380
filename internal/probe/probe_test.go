package probe

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

// mockSSRFValidator はSSRFValidatorのモック実装。
// テスト用のhttptestサーバー（127.0.0.1）に接続できるよう素のクライアントを返す。
type mockSSRFValidator struct{}

func (m *mockSSRFValidator) ValidateURL(rawURL string) error { return nil }

func (m *mockSSRFValidator) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func newTestProber(t *testing.T, settings *model.SystemSettings) *Prober {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewProber(&mockSettingsLoader{settings: settings}, &mockSSRFValidator{}, logger, 5*time.Second)
}

// TestClassifyMarkerText はテキストからの在庫判定を検証する。
func TestClassifyMarkerText(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantStatus model.AvailabilityStatus
		wantOK     bool
	}{
		{"german available", "Jetzt verfügbar!", model.StatusAvailable, true},
		{"german sold out", "Leider ausverkauft", model.StatusSoldOut, true},
		{"nicht verfuegbar is sold out", "Derzeit nicht verfügbar", model.StatusSoldOut, true},
		{"english sold out", "SOLD OUT", model.StatusSoldOut, true},
		{"no marker", "ResortPass Gold 2026", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, ok := classifyMarkerText(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("classifyMarkerText(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if ok && status != tt.wantStatus {
				t.Errorf("classifyMarkerText(%q) = %v, want %v", tt.text, status, tt.wantStatus)
			}
		})
	}
}

// TestCheck_NotConfigured は設定不足時にOutcomeNotConfiguredを返すことを検証する。
func TestCheck_NotConfigured(t *testing.T) {
	tests := []struct {
		name     string
		settings *model.SystemSettings
	}{
		{"scraper without key", &model.SystemSettings{ProbeSource: model.ProbeSourceScraper, ScraperRobotID: "robot-1"}},
		{"scraper without robot", &model.SystemSettings{ProbeSource: model.ProbeSourceScraper, ScraperAPIKey: "key"}},
		{"page without url", &model.SystemSettings{ProbeSource: model.ProbeSourcePage}},
		{"feed without url", &model.SystemSettings{ProbeSource: model.ProbeSourceFeed}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProber(t, tt.settings)
			result, err := p.Check(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Outcome != OutcomeNotConfigured {
				t.Errorf("Outcome = %v, want %v", result.Outcome, OutcomeNotConfigured)
			}
			if result.Statuses != nil {
				t.Errorf("Statuses should be nil, got %v", result.Statuses)
			}
		})
	}
}

// TestCheck_Scraper はスクレイピングAPI経由の在庫確認を検証する。
func TestCheck_Scraper(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want Bearer test-key", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"result": {
				"robotTasks": {
					"items": [
						{"capturedTexts": {"gold": "Jetzt verfügbar", "silver": "ausverkauft"}}
					]
				}
			}
		}`))
	}))
	defer server.Close()

	p := newTestProber(t, &model.SystemSettings{
		ProbeSource:    model.ProbeSourceScraper,
		ScraperAPIKey:  "test-key",
		ScraperRobotID: "robot-1",
	})
	p.scraperAPIBase = server.URL

	result, err := p.Check(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeLive {
		t.Fatalf("Outcome = %v, want %v (reason: %s)", result.Outcome, OutcomeLive, result.Reason)
	}
	if result.Statuses[model.ProductGold] != model.StatusAvailable {
		t.Errorf("gold = %v, want AVAILABLE", result.Statuses[model.ProductGold])
	}
	if result.Statuses[model.ProductSilver] != model.StatusSoldOut {
		t.Errorf("silver = %v, want SOLD_OUT", result.Statuses[model.ProductSilver])
	}
}

// TestCheck_Scraper_ServerError はAPIエラー時にOutcomeErrorを返すことを検証する。
func TestCheck_Scraper_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := newTestProber(t, &model.SystemSettings{
		ProbeSource:    model.ProbeSourceScraper,
		ScraperAPIKey:  "test-key",
		ScraperRobotID: "robot-1",
	})
	p.scraperAPIBase = server.URL

	result, err := p.Check(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeError {
		t.Errorf("Outcome = %v, want %v", result.Outcome, OutcomeError)
	}
	if result.Reason == "" {
		t.Error("Reason should not be empty")
	}
}

// TestCheck_Page は商品ページのスクレイプによる在庫確認を検証する。
func TestCheck_Page(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body>
			<div class="product">
				<h2>ResortPass Gold</h2>
				<span class="stock">Jetzt verfügbar</span>
			</div>
			<div class="product">
				<h2>ResortPass Silber</h2>
				<span class="stock">Ausverkauft</span>
			</div>
		</body></html>`))
	}))
	defer server.Close()

	p := newTestProber(t, &model.SystemSettings{
		ProbeSource:    model.ProbeSourcePage,
		ProbeSourceURL: server.URL,
	})

	result, err := p.Check(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeLive {
		t.Fatalf("Outcome = %v, want %v (reason: %s)", result.Outcome, OutcomeLive, result.Reason)
	}
	if result.Statuses[model.ProductGold] != model.StatusAvailable {
		t.Errorf("gold = %v, want AVAILABLE", result.Statuses[model.ProductGold])
	}
	if result.Statuses[model.ProductSilver] != model.StatusSoldOut {
		t.Errorf("silver = %v, want SOLD_OUT", result.Statuses[model.ProductSilver])
	}
}

// TestCheck_Feed はアナウンスフィードによる在庫確認を検証する。
// 言及のないパスは売り切れ扱いになる。
func TestCheck_Feed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Pass Announcements</title>
    <item>
      <title>ResortPass Gold wieder verfügbar</title>
      <pubDate>Mon, 31 Aug 2026 10:00:00 +0000</pubDate>
    </item>
    <item>
      <title>ResortPass Gold ausverkauft</title>
      <pubDate>Mon, 24 Aug 2026 10:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`))
	}))
	defer server.Close()

	p := newTestProber(t, &model.SystemSettings{
		ProbeSource:    model.ProbeSourceFeed,
		ProbeSourceURL: server.URL,
	})

	result, err := p.Check(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeLive {
		t.Fatalf("Outcome = %v, want %v (reason: %s)", result.Outcome, OutcomeLive, result.Reason)
	}
	// 最新記事（8/31）が優先される
	if result.Statuses[model.ProductGold] != model.StatusAvailable {
		t.Errorf("gold = %v, want AVAILABLE", result.Statuses[model.ProductGold])
	}
	// 言及なしは売り切れ扱い
	if result.Statuses[model.ProductSilver] != model.StatusSoldOut {
		t.Errorf("silver = %v, want SOLD_OUT", result.Statuses[model.ProductSilver])
	}
}
