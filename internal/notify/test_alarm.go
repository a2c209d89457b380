package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/passalarm/internal/model"
	"github.com/hitoshi/passalarm/internal/repository"
)

// testAlarmProductName はテスト送信に使うダミーのパス名。
const testAlarmProductName = "Test-Alarm (Verifikation)"

// TestAlarmService はユーザー起点のテスト送信を実行する。
// 本番の配信経路をそのまま使い、成功したSMSの送信先番号を記録して
// 同一番号への再テストを防ぐ。
type TestAlarmService struct {
	dispatcher *Dispatcher
	userRepo   repository.UserRepository
	logger     *slog.Logger
}

// NewTestAlarmService はTestAlarmServiceの新しいインスタンスを生成する。
func NewTestAlarmService(dispatcher *Dispatcher, userRepo repository.UserRepository, logger *slog.Logger) *TestAlarmService {
	return &TestAlarmService{
		dispatcher: dispatcher,
		userRepo:   userRepo,
		logger:     logger,
	}
}

// Send はテストアラームを配信する。
// サブスクリプション無効・チャネル未設定・全チャネル拒否はAPIErrorとして返す。
func (s *TestAlarmService) Send(ctx context.Context, user *model.User) (*model.DispatchOutcome, error) {
	outcome := s.dispatcher.Dispatch(ctx, DispatchRequest{
		User:        user,
		ProductName: testAlarmProductName,
		Available:   true,
		Test:        true,
	})

	switch outcome.Skipped {
	case model.SkipNotSubscribed:
		return nil, model.NewNotSubscribedError()
	case model.SkipNoChannelsEnabled:
		return nil, model.NewNoChannelsEnabledError()
	}

	// SMSが送信できた場合は番号を記録して再テストを防ぐ
	for _, co := range outcome.Channels {
		if co.Channel == model.ChannelSMS && co.Sent {
			if err := s.userRepo.UpdateLastTestedPhone(ctx, user.ID, user.PhoneNumber); err != nil {
				return nil, fmt.Errorf("テスト済み番号の記録に失敗しました: %w", err)
			}
		}
	}

	// 1チャネルも送信できず、拒否だけが理由の場合はエラーとして返す
	if outcome.SentCount() == 0 && onlyTestDenied(outcome.Channels) {
		return nil, model.NewTestDeniedError()
	}

	s.logger.Info("テストアラームを配信しました",
		slog.String("user_id", user.ID),
		slog.Int("sent_channels", outcome.SentCount()),
	)

	return outcome, nil
}

// onlyTestDenied は全チャネルの失敗理由がテスト拒否かを返す。
func onlyTestDenied(channels []model.ChannelOutcome) bool {
	if len(channels) == 0 {
		return false
	}
	for _, co := range channels {
		if co.FailReason != model.FailTestDenied {
			return false
		}
	}
	return true
}
