package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/passalarm/internal/model"
)

// defaultTwilioAPIBase はSMS配信API（Twilio互換）のベースURL。
const defaultTwilioAPIBase = "https://api.twilio.com"

// TwilioSMSSender はTwilio互換APIによるSMS送信実装。
// クレデンシャルまたは送信元番号が未設定の場合は実送信せず
// シミュレーション結果を返す。
type TwilioSMSSender struct {
	settings SettingsLoader
	client   *http.Client
	logger   *slog.Logger

	// apiBase はSMS配信APIのベースURL。テストで差し替える。
	apiBase string
}

// NewTwilioSMSSender はTwilioSMSSenderの新しいインスタンスを生成する。
func NewTwilioSMSSender(settings SettingsLoader, logger *slog.Logger, timeout time.Duration) *TwilioSMSSender {
	return &TwilioSMSSender{
		settings: settings,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		apiBase:  defaultTwilioAPIBase,
	}
}

// Send はSMSを送信する。SMSSenderインターフェースを実装する。
func (s *TwilioSMSSender) Send(ctx context.Context, to, body string) (*model.SendResult, error) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("システム設定の読み込みに失敗しました: %w", err)
	}

	if !settings.HasSMSCredentials() || settings.TwilioFromNumber == "" {
		s.logger.Info("SMSクレデンシャルが未設定のためシミュレーション送信します",
			slog.String("to", to),
		)
		return &model.SendResult{
			Success:   true,
			Simulated: true,
			Message:   "SMSをシミュレーション送信しました（クレデンシャル未設定）",
			Timestamp: time.Now(),
		}, nil
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", settings.TwilioFromNumber)
	form.Set("Body", body)

	reqURL := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.apiBase, settings.TwilioSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.SetBasicAuth(settings.TwilioSID, settings.TwilioAuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("SMS配信APIへのリクエストに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("SMS配信APIがHTTP %dを返しました", resp.StatusCode)
	}

	return &model.SendResult{
		Success:   true,
		Message:   "SMSを送信しました",
		Timestamp: time.Now(),
	}, nil
}

// compile-time interface check
var _ SMSSender = (*TwilioSMSSender)(nil)
