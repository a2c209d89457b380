package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/passalarm/internal/model"
	"github.com/hitoshi/passalarm/internal/repository"
)

// ComposerService は通知メッセージ生成のインターフェース。
type ComposerService interface {
	AlarmMessage(ctx context.Context, productName string, available bool) string
}

// MetricsRecorder は配信メトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordNotification(channel string, success bool)
}

// DispatchRequest は1ユーザーへの配信依頼を表す。
type DispatchRequest struct {
	User        *model.User
	ProductName string
	Available   bool
	// Test はユーザー起点のテスト送信かどうか。
	// テスト送信のSMSは悪用防止チェックの対象になる。
	Test bool
}

// Dispatcher は1ユーザーへの通知配信を実行する。
//
// 配信手順:
//  1. サブスクリプション無効ならスキップ（エラーではない）
//  2. 有効チャネルが1つもなければスキップ
//  3. メッセージを1回だけ生成し全チャネルで共有する
//  4. メール、SMSの順に独立して試行する（片方の失敗は他方に影響しない）
//  5. 各成功チャネルごとに通知ログへ追記する
type Dispatcher struct {
	composer ComposerService
	email    EmailSender
	sms      SMSSender
	logRepo  repository.NotificationLogRepository
	logger   *slog.Logger
	metrics  MetricsRecorder
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
// metricsはnilを許容する。
func NewDispatcher(
	composer ComposerService,
	email EmailSender,
	sms SMSSender,
	logRepo repository.NotificationLogRepository,
	logger *slog.Logger,
	metrics MetricsRecorder,
) *Dispatcher {
	return &Dispatcher{
		composer: composer,
		email:    email,
		sms:      sms,
		logRepo:  logRepo,
		logger:   logger,
		metrics:  metrics,
	}
}

// Dispatch は1ユーザーへの通知配信を実行する。
// 業務ルール上のスキップとチャネル単位の失敗はDispatchOutcomeで表現し、
// エラーは返さない。
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) *model.DispatchOutcome {
	user := req.User

	if !user.IsSubscribed {
		return &model.DispatchOutcome{Skipped: model.SkipNotSubscribed}
	}

	channels := user.EnabledChannels()
	if len(channels) == 0 {
		return &model.DispatchOutcome{Skipped: model.SkipNoChannelsEnabled}
	}

	// メッセージは1回だけ生成し全チャネルで共有する
	message := d.composer.AlarmMessage(ctx, req.ProductName, req.Available)

	outcome := &model.DispatchOutcome{Message: message}

	for _, channel := range channels {
		var co model.ChannelOutcome
		switch channel {
		case model.ChannelEmail:
			co = d.dispatchEmail(ctx, req, message)
		case model.ChannelSMS:
			co = d.dispatchSMS(ctx, req, message)
		}
		outcome.Channels = append(outcome.Channels, co)

		if d.metrics != nil {
			d.metrics.RecordNotification(string(channel), co.Sent)
		}
	}

	return outcome
}

func (d *Dispatcher) dispatchEmail(ctx context.Context, req DispatchRequest, message string) model.ChannelOutcome {
	user := req.User

	if user.Email == "" {
		return model.ChannelOutcome{Channel: model.ChannelEmail, FailReason: model.FailMissingEmail}
	}

	subject := fmt.Sprintf("Alarm: %s", req.ProductName)
	result, err := d.email.Send(ctx, user.Email, subject, message)
	if err != nil {
		d.logger.Error("メール送信に失敗しました",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return model.ChannelOutcome{Channel: model.ChannelEmail, FailReason: model.FailProvider}
	}

	d.appendLog(ctx, user.ID, model.ChannelEmail, message)

	return model.ChannelOutcome{
		Channel:   model.ChannelEmail,
		Sent:      true,
		Simulated: result.Simulated,
		Event:     fmt.Sprintf("📧 Alarm für %s gesendet!", req.ProductName),
	}
}

func (d *Dispatcher) dispatchSMS(ctx context.Context, req DispatchRequest, message string) model.ChannelOutcome {
	user := req.User

	if user.PhoneNumber == "" {
		return model.ChannelOutcome{Channel: model.ChannelSMS, FailReason: model.FailMissingPhone}
	}

	// テスト送信のみ同一番号への再テストを拒否する
	if req.Test && !ApproveTest(user.PhoneNumber, user.LastTestedPhone) {
		d.logger.Info("同一番号への再テストを拒否しました",
			slog.String("user_id", user.ID),
		)
		return model.ChannelOutcome{Channel: model.ChannelSMS, FailReason: model.FailTestDenied}
	}

	result, err := d.sms.Send(ctx, user.PhoneNumber, message)
	if err != nil {
		d.logger.Error("SMS送信に失敗しました",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return model.ChannelOutcome{Channel: model.ChannelSMS, FailReason: model.FailProvider}
	}

	d.appendLog(ctx, user.ID, model.ChannelSMS, message)

	return model.ChannelOutcome{
		Channel:   model.ChannelSMS,
		Sent:      true,
		Simulated: result.Simulated,
		Event:     fmt.Sprintf("📱 SMS für %s gesendet!", req.ProductName),
	}
}

// appendLog は通知ログへ追記する。記録失敗は配信結果に影響しない。
func (d *Dispatcher) appendLog(ctx context.Context, userID string, channel model.NotificationChannel, content string) {
	entry := &model.NotificationLogEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Channel:   channel,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := d.logRepo.Append(ctx, entry); err != nil {
		d.logger.Error("通知ログの記録に失敗しました",
			slog.String("user_id", userID),
			slog.String("channel", string(channel)),
			slog.String("error", err.Error()),
		)
	}
}
