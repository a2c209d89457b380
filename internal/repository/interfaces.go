// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/passalarm/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// UpdateContact は連絡先（メール・電話番号）を更新する。
	UpdateContact(ctx context.Context, id, email, phone string) error

	// UpdateChannels は通知チャネルの有効/無効を更新する。
	UpdateChannels(ctx context.Context, id string, emailEnabled, smsEnabled bool) error

	// UpdateSubscription はサブスクリプションフラグを更新する。
	UpdateSubscription(ctx context.Context, id string, subscribed bool) error

	// UpdateLastTestedPhone はテスト送信済み電話番号を記録する。
	UpdateLastTestedPhone(ctx context.Context, id, phone string) error

	// ListNotifiable は通知対象ユーザーを取得する。
	// サブスクリプション有効かつ少なくとも1チャネルが有効なユーザー。
	ListNotifiable(ctx context.Context) ([]*model.User, error)

	// CountSubscribed はサブスクリプション有効なユーザー数を返す。
	CountSubscribed(ctx context.Context) (int, error)

	// MonthlySignups は月別の新規登録数を返す（古い月から順）。
	MonthlySignups(ctx context.Context, months int) ([]MonthlyCount, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessions、notification_logs等はCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// MonthlyCount は月別の件数を表す。
type MonthlyCount struct {
	Month string // "2025-01" 形式
	Count int
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ProductStateRepository はパス在庫状態の永続化インターフェース。
type ProductStateRepository interface {
	// List は全パスの現在状態を返す。
	List(ctx context.Context) ([]*model.ProductState, error)

	// FindByProductID は指定パスの状態を取得する。見つからない場合はnilを返す。
	FindByProductID(ctx context.Context, productID string) (*model.ProductState, error)

	// Apply は確認結果をlast-write-winsで反映し、更新後の状態を返す。
	// 既存行のcheckedAtの方が新しい場合は反映せずnilを返す（stale write）。
	// previous_statusには反映前のstatusが自動的に記録される。
	Apply(ctx context.Context, productID string, status model.AvailabilityStatus, source model.StateSource, checkedAt time.Time) (*model.ProductState, error)
}

// NotificationLogRepository は通知ログの永続化インターフェース。
type NotificationLogRepository interface {
	// Append はログエントリを追記し、ユーザーごとの上限を超えた古いエントリを削除する。
	Append(ctx context.Context, entry *model.NotificationLogEntry) error

	// ListByUserID はユーザーの通知ログを新しい順に返す。
	ListByUserID(ctx context.Context, userID string, limit int) ([]*model.NotificationLogEntry, error)

	// CountByUserID はユーザーの通知ログ件数を返す。
	CountByUserID(ctx context.Context, userID string) (int, error)
}

// SettingsRepository はシステム設定の永続化インターフェース。
// 設定は1行で全体を読み書きし、部分更新はしない。
type SettingsRepository interface {
	// Load はシステム設定を読み込む。
	Load(ctx context.Context) (*model.SystemSettings, error)
	// Save はシステム設定を全体保存する。
	Save(ctx context.Context, settings *model.SystemSettings) error
}

// PartnerSummary はパートナーの集計結果を表す。
type PartnerSummary struct {
	UserID      string
	Name        string
	Code        string
	Clicks      int
	Conversions int
	Earnings    float64
}

// PayoutTotals は期間内の払い出し集計を表す。
type PayoutTotals struct {
	Count  int
	Amount float64
}

// AffiliateRepository はアフィリエイトデータの永続化インターフェース。
type AffiliateRepository interface {
	// GetProfile はパートナープロフィールを取得する。見つからない場合はnilを返す。
	GetProfile(ctx context.Context, userID string) (*model.AffiliateProfile, error)

	// UpsertProfile はパートナープロフィールを作成または更新する。
	UpsertProfile(ctx context.Context, profile *model.AffiliateProfile) error

	// CreateCode はレフェラルコードを登録する。
	CreateCode(ctx context.Context, userID, code string) error

	// FindCodeByUserID はユーザーのレフェラルコードを返す。未登録の場合は空文字を返す。
	FindCodeByUserID(ctx context.Context, userID string) (string, error)

	// FindUserIDByCode はレフェラルコードの所有者を返す。未登録の場合は空文字を返す。
	FindUserIDByCode(ctx context.Context, code string) (string, error)

	// ListStatsByUserID はユーザーの月次実績を古い月から順に返す。
	ListStatsByUserID(ctx context.Context, userID string) ([]*model.AffiliateStat, error)

	// AddClick は指定月のクリック数を加算する（行がなければ作成）。
	AddClick(ctx context.Context, userID, month string) error

	// AddConversion は指定月の成約数と報酬を加算する（行がなければ作成）。
	AddConversion(ctx context.Context, userID, month string, earnings float64) error

	// UnpaidEarnings は未払い報酬の合計を返す。
	UnpaidEarnings(ctx context.Context, userID string) (float64, error)

	// MarkPaidOut は未払いの全実績を払い出し済みにする。
	MarkPaidOut(ctx context.Context, userID string) error

	// TopPartners は報酬合計の上位パートナーを返す。
	TopPartners(ctx context.Context, limit int) ([]PartnerSummary, error)

	// PayoutTotalsBetween は期間内に払い出し済みとなった実績の集計を返す。
	PayoutTotalsBetween(ctx context.Context, startMonth, endMonth string) (*PayoutTotals, error)
}
