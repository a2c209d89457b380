// Package notify は通知の配信（メール/SMS）とテスト送信の悪用防止を提供する。
package notify

import (
	"context"

	"github.com/hitoshi/passalarm/internal/model"
)

// EmailSender はメール送信コラボレーターのインターフェース。
// errorはプロバイダー呼び出しの一時的失敗を表す。
// クレデンシャル未設定の場合はSimulated=trueの成功結果を返す。
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) (*model.SendResult, error)
}

// SMSSender はSMS送信コラボレーターのインターフェース。
type SMSSender interface {
	Send(ctx context.Context, to, body string) (*model.SendResult, error)
}

// SettingsLoader はシステム設定の読み込みインターフェース。
type SettingsLoader interface {
	Load(ctx context.Context) (*model.SystemSettings, error)
}
