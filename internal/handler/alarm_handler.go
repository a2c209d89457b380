package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/passalarm/internal/model"
)

// notificationLogLimit はAPIで返す通知ログの最大件数。
const notificationLogLimit = 50

// TestAlarmSender はテストアラーム送信のインターフェース。
type TestAlarmSender interface {
	// Send は現在のユーザー宛にテストアラームを送信する。
	Send(ctx context.Context, user *model.User) (*model.DispatchOutcome, error)
}

// NotificationLogLister は通知ログの読み取りインターフェース。
// repository.NotificationLogRepositoryのサブセット。
type NotificationLogLister interface {
	// ListByUserID はユーザーの通知ログを新しい順に返す。
	ListByUserID(ctx context.Context, userID string, limit int) ([]*model.NotificationLogEntry, error)
}

// AlarmHandler はテストアラームと通知ログのHTTPハンドラー。
type AlarmHandler struct {
	testAlarm  TestAlarmSender
	logs       NotificationLogLister
	userLoader UserLoader
}

// NewAlarmHandler はAlarmHandlerを生成する。
func NewAlarmHandler(testAlarm TestAlarmSender, logs NotificationLogLister, userLoader UserLoader) *AlarmHandler {
	return &AlarmHandler{
		testAlarm:  testAlarm,
		logs:       logs,
		userLoader: userLoader,
	}
}

// channelOutcomeResponse はチャネル単位の配信結果のAPIレスポンス。
type channelOutcomeResponse struct {
	Channel    string `json:"channel"`
	Sent       bool   `json:"sent"`
	Simulated  bool   `json:"simulated"`
	FailReason string `json:"fail_reason,omitempty"`
	Event      string `json:"event,omitempty"`
}

// dispatchOutcomeResponse は配信結果のAPIレスポンス。
type dispatchOutcomeResponse struct {
	Message  string                   `json:"message"`
	Channels []channelOutcomeResponse `json:"channels"`
}

// notificationLogResponse は通知ログ1件のAPIレスポンス。
type notificationLogResponse struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SendTestAlarm はテストアラームを送信する。
// POST /api/alarms/test
func (h *AlarmHandler) SendTestAlarm(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.userLoader)
	if !ok {
		return
	}

	outcome, err := h.testAlarm.Send(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := dispatchOutcomeResponse{
		Message:  outcome.Message,
		Channels: make([]channelOutcomeResponse, len(outcome.Channels)),
	}
	for i, c := range outcome.Channels {
		resp.Channels[i] = channelOutcomeResponse{
			Channel:    string(c.Channel),
			Sent:       c.Sent,
			Simulated:  c.Simulated,
			FailReason: string(c.FailReason),
			Event:      c.Event,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ListNotifications は現在のユーザーの通知ログを新しい順に返す。
// GET /api/notifications
func (h *AlarmHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.userLoader)
	if !ok {
		return
	}

	entries, err := h.logs.ListByUserID(r.Context(), user.ID, notificationLogLimit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]notificationLogResponse, len(entries))
	for i, e := range entries {
		results[i] = notificationLogResponse{
			ID:        e.ID,
			Channel:   string(e.Channel),
			Content:   e.Content,
			CreatedAt: e.CreatedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}
