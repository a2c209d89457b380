// Package affiliate はパートナープログラムのドメインロジックを提供する。
// レフェラルコード、クリック/成約の実績集計、報酬の払い出しを扱う。
package affiliate

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/passalarm/internal/model"
	"github.com/hitoshi/passalarm/internal/repository"
)

// SettingsLoader はシステム設定の読み込みインターフェース。
type SettingsLoader interface {
	Load(ctx context.Context) (*model.SystemSettings, error)
}

// ServiceConfig はアフィリエイトサービスの設定。
type ServiceConfig struct {
	BaseURL         string  // 紹介リンクのベースURL
	MinPayoutEUR    float64 // 払い出し可能な最低報酬額
	PriceEURMonthly float64 // 月額料金（成約報酬の計算基準）
}

// Dashboard はパートナーダッシュボードの表示データを表す。
type Dashboard struct {
	Code                 string
	Link                 string
	CommissionPercentage int
	Stats                []*model.AffiliateStat
	UnpaidEarnings       float64
	Profile              *model.AffiliateProfile
	ProfileComplete      bool
}

// Service はアフィリエイトのサービス層。
type Service struct {
	repo     repository.AffiliateRepository
	settings SettingsLoader
	logger   *slog.Logger
	config   ServiceConfig
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.AffiliateRepository, settings SettingsLoader, logger *slog.Logger, config ServiceConfig) *Service {
	return &Service{
		repo:     repo,
		settings: settings,
		logger:   logger,
		config:   config,
	}
}

// IssueCode はパートナーのレフェラルコードを発行する。
// 既に発行済みの場合は既存のコードを返す。
func (s *Service) IssueCode(ctx context.Context, userID string) (string, error) {
	existing, err := s.repo.FindCodeByUserID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("レフェラルコードの検索に失敗しました: %w", err)
	}
	if existing != "" {
		return existing, nil
	}

	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("レフェラルコードの生成に失敗しました: %w", err)
	}
	if err := s.repo.CreateCode(ctx, userID, code); err != nil {
		return "", fmt.Errorf("レフェラルコードの登録に失敗しました: %w", err)
	}

	s.logger.Info("レフェラルコードを発行しました",
		slog.String("user_id", userID),
		slog.String("code", code),
	)
	return code, nil
}

// AttributeSignup は登録時の紹介コードを検証し、所有者のユーザーIDを返す。
// 未知のコードは空文字を返す（登録自体は続行できる）。
func (s *Service) AttributeSignup(ctx context.Context, code string) (string, error) {
	ownerID, err := s.repo.FindUserIDByCode(ctx, code)
	if err != nil {
		return "", fmt.Errorf("レフェラルコードの検索に失敗しました: %w", err)
	}
	return ownerID, nil
}

// TrackClick は紹介リンクのクリックを記録し、リダイレクト先URLを返す。
// 未知のコードでもリダイレクトは行い、記録だけを省略する。
func (s *Service) TrackClick(ctx context.Context, code string) (string, error) {
	redirect := fmt.Sprintf("%s/?ref=%s", strings.TrimRight(s.config.BaseURL, "/"), code)

	ownerID, err := s.repo.FindUserIDByCode(ctx, code)
	if err != nil {
		return "", fmt.Errorf("レフェラルコードの検索に失敗しました: %w", err)
	}
	if ownerID == "" {
		return redirect, nil
	}

	if err := s.repo.AddClick(ctx, ownerID, monthKey(time.Now())); err != nil {
		return "", fmt.Errorf("クリックの記録に失敗しました: %w", err)
	}
	return redirect, nil
}

// RecordConversion は紹介経由ユーザーのサブスクリプション成約を記録する。
// 報酬は月額料金に設定中の報酬率を掛けた額になる。
func (s *Service) RecordConversion(ctx context.Context, referralCode string) error {
	ownerID, err := s.repo.FindUserIDByCode(ctx, referralCode)
	if err != nil {
		return fmt.Errorf("レフェラルコードの検索に失敗しました: %w", err)
	}
	if ownerID == "" {
		return nil
	}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("システム設定の読み込みに失敗しました: %w", err)
	}
	earnings := s.config.PriceEURMonthly * float64(settings.AffiliateCommissionPercentage) / 100

	if err := s.repo.AddConversion(ctx, ownerID, monthKey(time.Now()), earnings); err != nil {
		return fmt.Errorf("成約の記録に失敗しました: %w", err)
	}

	s.logger.Info("アフィリエイト成約を記録しました",
		slog.String("partner_id", ownerID),
		slog.Float64("earnings", earnings),
	)
	return nil
}

// GetDashboard はパートナーダッシュボードの表示データを返す。
func (s *Service) GetDashboard(ctx context.Context, user *model.User) (*Dashboard, error) {
	if !user.IsAffiliate {
		return nil, model.NewNotAffiliateError()
	}

	code, err := s.IssueCode(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("システム設定の読み込みに失敗しました: %w", err)
	}

	stats, err := s.repo.ListStatsByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("実績の取得に失敗しました: %w", err)
	}

	unpaid, err := s.repo.UnpaidEarnings(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("未払い報酬の取得に失敗しました: %w", err)
	}

	profile, err := s.repo.GetProfile(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}

	return &Dashboard{
		Code:                 code,
		Link:                 fmt.Sprintf("%s/?ref=%s", strings.TrimRight(s.config.BaseURL, "/"), code),
		CommissionPercentage: settings.AffiliateCommissionPercentage,
		Stats:                stats,
		UnpaidEarnings:       unpaid,
		Profile:              profile,
		ProfileComplete:      profile != nil && profile.IsComplete(),
	}, nil
}

// UpdateProfile はパートナーの支払・住所情報を保存する。
func (s *Service) UpdateProfile(ctx context.Context, user *model.User, profile *model.AffiliateProfile) error {
	if !user.IsAffiliate {
		return model.NewNotAffiliateError()
	}

	profile.UserID = user.ID
	profile.UpdatedAt = time.Now()
	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		return fmt.Errorf("プロフィールの保存に失敗しました: %w", err)
	}
	return nil
}

// RequestPayout は未払い報酬の払い出しを実行する。
// プロフィール未完成、または最低額未満の場合は拒否する。
func (s *Service) RequestPayout(ctx context.Context, user *model.User) (float64, error) {
	if !user.IsAffiliate {
		return 0, model.NewNotAffiliateError()
	}

	profile, err := s.repo.GetProfile(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile == nil || !profile.IsComplete() {
		return 0, model.NewProfileIncompleteError()
	}

	unpaid, err := s.repo.UnpaidEarnings(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("未払い報酬の取得に失敗しました: %w", err)
	}
	if unpaid < s.config.MinPayoutEUR {
		return 0, model.NewPayoutBelowMinimumError(s.config.MinPayoutEUR)
	}

	if err := s.repo.MarkPaidOut(ctx, user.ID); err != nil {
		return 0, fmt.Errorf("払い出しの記録に失敗しました: %w", err)
	}

	s.logger.Info("報酬を払い出しました",
		slog.String("partner_id", user.ID),
		slog.Float64("amount", unpaid),
	)
	return unpaid, nil
}

// monthKey は実績集計に使う月キー（"2026-01"形式）を返す。
func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

// generateCode は8文字のレフェラルコードを生成する。
func generateCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}
