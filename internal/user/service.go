// Package user はアカウント管理のドメインロジックを提供する。
// 連絡先・通知チャネルの更新、サブスクリプションの開始/停止、退会を扱う。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/passalarm/internal/model"
	"github.com/hitoshi/passalarm/internal/repository"
	"github.com/hitoshi/passalarm/internal/validate"
)

// ConversionRecorder はアフィリエイト成約記録のインターフェース。
type ConversionRecorder interface {
	RecordConversion(ctx context.Context, referralCode string) error
}

// SettingsLoader はシステム設定の読み込みインターフェース。
type SettingsLoader interface {
	Load(ctx context.Context) (*model.SystemSettings, error)
}

// ServiceConfig はアカウントサービスの設定。
type ServiceConfig struct {
	BaseURL string
}

// Service はアカウント管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	conversions ConversionRecorder
	settings    SettingsLoader
	logger      *slog.Logger
	config      ServiceConfig
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	conversions ConversionRecorder,
	settings SettingsLoader,
	logger *slog.Logger,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		conversions: conversions,
		settings:    settings,
		logger:      logger,
		config:      config,
	}
}

// UpdateContact は連絡先を検証して更新し、更新後のユーザーを返す。
// 電話番号は正規化して保存する。空の電話番号は削除を意味し、
// その場合SMSチャネルは無効化される。
func (s *Service) UpdateContact(ctx context.Context, user *model.User, email, phone string) (*model.User, error) {
	if !validate.Email(email) {
		return nil, model.NewInvalidEmailError()
	}

	normalized := ""
	if phone != "" {
		if !validate.Phone(phone) {
			return nil, model.NewInvalidPhoneError()
		}
		normalized = validate.NormalizePhone(phone)
	}

	if email != user.Email {
		existing, err := s.userRepo.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
		}
		if existing != nil && existing.ID != user.ID {
			return nil, model.NewEmailTakenError()
		}
	}

	if err := s.userRepo.UpdateContact(ctx, user.ID, email, normalized); err != nil {
		return nil, fmt.Errorf("連絡先の更新に失敗しました: %w", err)
	}

	// 電話番号を削除した場合はSMSチャネルも無効化する
	if normalized == "" && user.SMSEnabled {
		if err := s.userRepo.UpdateChannels(ctx, user.ID, user.EmailEnabled, false); err != nil {
			return nil, fmt.Errorf("通知チャネルの更新に失敗しました: %w", err)
		}
	}

	updated, err := s.userRepo.FindByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの再取得に失敗しました: %w", err)
	}
	return updated, nil
}

// UpdateChannels は通知チャネルの有効/無効を更新する。
// 電話番号のないユーザーはSMSチャネルを有効化できない。
func (s *Service) UpdateChannels(ctx context.Context, user *model.User, emailEnabled, smsEnabled bool) (*model.User, error) {
	if smsEnabled && user.PhoneNumber == "" {
		return nil, model.NewInvalidPhoneError()
	}

	if err := s.userRepo.UpdateChannels(ctx, user.ID, emailEnabled, smsEnabled); err != nil {
		return nil, fmt.Errorf("通知チャネルの更新に失敗しました: %w", err)
	}

	updated, err := s.userRepo.FindByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの再取得に失敗しました: %w", err)
	}
	return updated, nil
}

// ActivateSubscription はサブスクリプションを有効化する。
// 紹介経由のユーザーの場合はアフィリエイト成約を記録する。
// 成約記録の失敗は有効化自体を妨げない。
func (s *Service) ActivateSubscription(ctx context.Context, user *model.User) (*model.User, error) {
	if !user.IsSubscribed {
		if err := s.userRepo.UpdateSubscription(ctx, user.ID, true); err != nil {
			return nil, fmt.Errorf("サブスクリプションの有効化に失敗しました: %w", err)
		}

		if user.ReferredBy != "" {
			if err := s.conversions.RecordConversion(ctx, user.ReferredBy); err != nil {
				s.logger.Error("アフィリエイト成約の記録に失敗しました",
					slog.String("user_id", user.ID),
					slog.String("error", err.Error()),
				)
			}
		}

		s.logger.Info("サブスクリプションを有効化しました",
			slog.String("user_id", user.ID),
		)
	}

	updated, err := s.userRepo.FindByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの再取得に失敗しました: %w", err)
	}
	return updated, nil
}

// CancelSubscription はサブスクリプションを停止する。
func (s *Service) CancelSubscription(ctx context.Context, user *model.User) (*model.User, error) {
	if err := s.userRepo.UpdateSubscription(ctx, user.ID, false); err != nil {
		return nil, fmt.Errorf("サブスクリプションの停止に失敗しました: %w", err)
	}

	s.logger.Info("サブスクリプションを停止しました",
		slog.String("user_id", user.ID),
	)

	updated, err := s.userRepo.FindByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの再取得に失敗しました: %w", err)
	}
	return updated, nil
}

// BillingPortalURL は請求管理ポータルのURLを返す。
// 決済プロバイダーが未設定の場合はデモポータルのURLを返す。
func (s *Service) BillingPortalURL(ctx context.Context, user *model.User) (string, error) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("システム設定の読み込みに失敗しました: %w", err)
	}

	base := strings.TrimRight(s.config.BaseURL, "/")
	if settings.StripeSecretKey == "" {
		return base + "/billing/demo-portal", nil
	}
	return base + "/billing/portal", nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: sessions → user（+ CASCADE: notification_logs, affiliate_profiles等）
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	s.logger.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	s.logger.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)
	return nil
}
