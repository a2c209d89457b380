// Package compose は通知メッセージの生成を提供する。
//
// 生成AI（Gemini互換API）で短いドイツ語の通知文を作り、
// APIキー未設定・通信失敗・空レスポンスのいずれの場合も
// 決定的なフォールバック文へ切り替える。Composeがエラーを
// 返すことはなく、通知の送信自体は常に続行できる。
package compose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/passalarm/internal/model"
)

// defaultGeminiAPIBase は生成AI APIのベースURL。
const defaultGeminiAPIBase = "https://generativelanguage.googleapis.com/v1beta"

// geminiModel は使用するモデル名。
const geminiModel = "gemini-2.5-flash"

// composeMaxBodySize はAPIレスポンスの最大読み取りサイズ。
const composeMaxBodySize = 1 << 20 // 1MB

// SettingsLoader はシステム設定の読み込みインターフェース。
type SettingsLoader interface {
	Load(ctx context.Context) (*model.SystemSettings, error)
}

// TextSanitizer は生成テキストのサニタイズインターフェース。
type TextSanitizer interface {
	Sanitize(raw string) string
}

// Composer は通知メッセージを生成する。
type Composer struct {
	settings  SettingsLoader
	sanitizer TextSanitizer
	client    *http.Client
	logger    *slog.Logger

	// apiBase は生成AI APIのベースURL。テストで差し替える。
	apiBase string
}

// NewComposer はComposerの新しいインスタンスを生成する。
func NewComposer(settings SettingsLoader, sanitizer TextSanitizer, logger *slog.Logger, timeout time.Duration) *Composer {
	return &Composer{
		settings:  settings,
		sanitizer: sanitizer,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
		apiBase:   defaultGeminiAPIBase,
	}
}

// AlarmMessage はパスの在庫アラーム文を生成する。
// 生成に失敗した場合はフォールバック文を返し、エラーは返さない。
// 同一入力に対してフォールバック文は常に同一になる。
func (c *Composer) AlarmMessage(ctx context.Context, productName string, available bool) string {
	var prompt string
	if available {
		prompt = fmt.Sprintf(
			"Schreibe eine kurze, dringende Benachrichtigung (max. 160 Zeichen) auf Deutsch: "+
				"Der %s ist ab sofort wieder verfügbar. Der Empfänger soll schnell zugreifen, "+
				"bevor er wieder ausverkauft ist. Nur der Text, keine Anführungszeichen.",
			productName)
	} else {
		prompt = fmt.Sprintf(
			"Schreibe eine kurze, neutrale Status-Benachrichtigung (max. 160 Zeichen) auf Deutsch: "+
				"Der %s ist weiterhin ausverkauft. Nur der Text, keine Anführungszeichen.",
			productName)
	}

	text, err := c.generate(ctx, prompt)
	if err != nil {
		c.logger.Warn("メッセージ生成に失敗したためフォールバック文を使用します",
			slog.String("product", productName),
			slog.String("error", err.Error()),
		)
		return FallbackAlarmMessage(productName, available)
	}
	return text
}

// MarketingCopy はダッシュボード向けの宣伝文を生成する。
func (c *Composer) MarketingCopy(ctx context.Context, productName string) string {
	prompt := fmt.Sprintf(
		"Schreibe einen kurzen Werbetext (max. 200 Zeichen) auf Deutsch für den %s "+
			"eines Bergresorts. Ton: exklusiv und knapp. Nur der Text, keine Anführungszeichen.",
		productName)

	text, err := c.generate(ctx, prompt)
	if err != nil {
		c.logger.Warn("宣伝文の生成に失敗したためフォールバック文を使用します",
			slog.String("product", productName),
			slog.String("error", err.Error()),
		)
		return fmt.Sprintf("%s: Sichern Sie sich Ihren Saisonzugang, solange er verfügbar ist.", productName)
	}
	return text
}

// FallbackAlarmMessage は生成AIなしで使用する決定的なアラーム文を返す。
func FallbackAlarmMessage(productName string, available bool) string {
	if available {
		return fmt.Sprintf("Automatischer Alarm: %s ist jetzt verfügbar! Schnell zugreifen!", productName)
	}
	return fmt.Sprintf("Status-Update: %s ist weiterhin ausverkauft.", productName)
}

// geminiRequest は生成AI APIのリクエストボディ。
type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

// geminiResponse は生成AI APIのレスポンスボディ。
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// generate は生成AI APIを呼び出してテキストを生成する。
func (c *Composer) generate(ctx context.Context, prompt string) (string, error) {
	settings, err := c.settings.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("システム設定の読み込みに失敗しました: %w", err)
	}
	if settings.GeminiAPIKey == "" {
		return "", fmt.Errorf("生成AIのAPIキーが未設定です")
	}

	reqBody, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("リクエストのエンコードに失敗: %w", err)
	}

	reqURL := fmt.Sprintf("%s/models/%s:generateContent", c.apiBase, geminiModel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", settings.GeminiAPIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("生成AI APIへのリクエストに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("生成AI APIがHTTP %dを返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, composeMaxBodySize))
	if err != nil {
		return "", fmt.Errorf("レスポンス読み取りに失敗: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("レスポンスのパースに失敗: %w", err)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("生成結果が空です")
	}

	text := c.sanitizer.Sanitize(parsed.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", fmt.Errorf("サニタイズ後のテキストが空です")
	}
	return text, nil
}
