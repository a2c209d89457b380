package model

import "time"

// NotificationChannel は通知の配信チャネルを表す。
type NotificationChannel string

const (
	// ChannelEmail はメール配信を示す。
	ChannelEmail NotificationChannel = "EMAIL"
	// ChannelSMS はSMS配信を示す。
	ChannelSMS NotificationChannel = "SMS"
)

// NotificationLogEntry は通知配信の記録を表す。イミュータブル。
// 新しい順に並べ、ユーザーごとに上限件数まで保持する。
type NotificationLogEntry struct {
	ID        string
	UserID    string
	Channel   NotificationChannel
	Content   string
	CreatedAt time.Time
}

// SendResult はメール/SMS送信コラボレーターの結果を表す。
type SendResult struct {
	Success   bool
	Simulated bool // クレデンシャル未設定によるシミュレーション送信
	Message   string
	Timestamp time.Time
}

// SkipReason は配信がスキップされた業務ルール上の理由を表す。
// エラーではなく単なるno-op。
type SkipReason string

const (
	// SkipNotSubscribed はサブスクリプションが無効であることを示す。
	SkipNotSubscribed SkipReason = "NOT_SUBSCRIBED"
	// SkipNoChannelsEnabled は有効なチャネルが1つもないことを示す。
	SkipNoChannelsEnabled SkipReason = "NO_CHANNELS_ENABLED"
)

// ChannelFailReason はチャネル単位の配信失敗理由を表す。
type ChannelFailReason string

const (
	// FailMissingEmail はメールアドレス未設定による失敗を示す。
	FailMissingEmail ChannelFailReason = "MISSING_EMAIL"
	// FailMissingPhone は電話番号未設定による失敗を示す。
	FailMissingPhone ChannelFailReason = "MISSING_PHONE"
	// FailProvider はプロバイダー呼び出しの一時的失敗を示す。
	FailProvider ChannelFailReason = "PROVIDER_FAILURE"
	// FailTestDenied は同一番号への再テストがAbuseGuardに拒否されたことを示す。
	FailTestDenied ChannelFailReason = "TEST_DENIED"
)

// ChannelOutcome は1チャネルの配信結果を表す。
type ChannelOutcome struct {
	Channel    NotificationChannel
	Sent       bool
	Simulated  bool
	FailReason ChannelFailReason // Sent=falseの場合のみ設定
	Event      string            // 成功時にUIへ表示する一時通知文
}

// DispatchOutcome は1回のdispatch呼び出し全体の結果を表す。
// Skippedが設定されている場合、チャネル送信は一切試行されていない。
type DispatchOutcome struct {
	Skipped  SkipReason // 空ならスキップされていない
	Message  string     // 全チャネルで共有する生成済みメッセージ
	Channels []ChannelOutcome
}

// SentCount は送信に成功したチャネル数を返す。
func (o *DispatchOutcome) SentCount() int {
	n := 0
	for _, c := range o.Channels {
		if c.Sent {
			n++
		}
	}
	return n
}
