package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/passalarm/internal/model"
)

// defaultResendAPIBase はメール配信API（Resend互換）のベースURL。
const defaultResendAPIBase = "https://api.resend.com"

// defaultSenderAddress は送信元アドレスが未設定の場合のデフォルト。
const defaultSenderAddress = "alarm@passalarm.app"

// ResendEmailSender はResend互換APIによるメール送信実装。
// APIキーが未設定の場合は実送信せずシミュレーション結果を返す。
type ResendEmailSender struct {
	settings SettingsLoader
	client   *http.Client
	logger   *slog.Logger

	// apiBase はメール配信APIのベースURL。テストで差し替える。
	apiBase string
}

// NewResendEmailSender はResendEmailSenderの新しいインスタンスを生成する。
func NewResendEmailSender(settings SettingsLoader, logger *slog.Logger, timeout time.Duration) *ResendEmailSender {
	return &ResendEmailSender{
		settings: settings,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		apiBase:  defaultResendAPIBase,
	}
}

// resendRequest はメール配信APIのリクエストボディ。
type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// Send はメールを送信する。EmailSenderインターフェースを実装する。
func (s *ResendEmailSender) Send(ctx context.Context, to, subject, body string) (*model.SendResult, error) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("システム設定の読み込みに失敗しました: %w", err)
	}

	if !settings.HasEmailCredentials() {
		s.logger.Info("メールクレデンシャルが未設定のためシミュレーション送信します",
			slog.String("to", to),
		)
		return &model.SendResult{
			Success:   true,
			Simulated: true,
			Message:   "メールをシミュレーション送信しました（APIキー未設定）",
			Timestamp: time.Now(),
		}, nil
	}

	from := settings.EmailSenderAddress
	if from == "" {
		from = defaultSenderAddress
	}

	reqBody, err := json.Marshal(resendRequest{
		From:    from,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return nil, fmt.Errorf("リクエストのエンコードに失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBase+"/emails", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+settings.ResendAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("メール配信APIへのリクエストに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("メール配信APIがHTTP %dを返しました", resp.StatusCode)
	}

	return &model.SendResult{
		Success:   true,
		Message:   "メールを送信しました",
		Timestamp: time.Now(),
	}, nil
}

// compile-time interface check
var _ EmailSender = (*ResendEmailSender)(nil)
