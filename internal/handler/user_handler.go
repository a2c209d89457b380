package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/passalarm/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// UpdateContact は連絡先（メール・電話番号）を更新する。
	UpdateContact(ctx context.Context, user *model.User, email, phone string) (*model.User, error)
	// UpdateChannels は通知チャネルの有効/無効を更新する。
	UpdateChannels(ctx context.Context, user *model.User, emailEnabled, smsEnabled bool) (*model.User, error)
	// ActivateSubscription はサブスクリプションを有効化する。
	ActivateSubscription(ctx context.Context, user *model.User) (*model.User, error)
	// CancelSubscription はサブスクリプションを解約する。
	CancelSubscription(ctx context.Context, user *model.User) (*model.User, error)
	// BillingPortalURL は請求ポータルのURLを返す。
	BillingPortalURL(ctx context.Context, user *model.User) (string, error)
	// Withdraw はユーザーの退会処理を実行する。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service    UserServiceInterface
	userLoader UserLoader
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, userLoader UserLoader) *UserHandler {
	return &UserHandler{
		service:    service,
		userLoader: userLoader,
	}
}

// updateContactRequest は連絡先更新リクエストのボディ。
type updateContactRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// updateChannelsRequest は通知チャネル更新リクエストのボディ。
type updateChannelsRequest struct {
	EmailEnabled bool `json:"email_enabled"`
	SMSEnabled   bool `json:"sms_enabled"`
}

// UpdateContact は連絡先を更新する。
// PUT /api/users/me/contact
func (h *UserHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.userLoader)
	if !ok {
		return
	}

	var req updateContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	updated, err := h.service.UpdateContact(r.Context(), user, req.Email, req.Phone)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(updated))
}

// UpdateChannels は通知チャネルの有効/無効を更新する。
// PUT /api/users/me/channels
func (h *UserHandler) UpdateChannels(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.userLoader)
	if !ok {
		return
	}

	var req updateChannelsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	updated, err := h.service.UpdateChannels(r.Context(), user, req.EmailEnabled, req.SMSEnabled)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(updated))
}

// ActivateSubscription はサブスクリプションを有効化する。
// POST /api/users/me/subscription
func (h *UserHandler) ActivateSubscription(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.userLoader)
	if !ok {
		return
	}

	updated, err := h.service.ActivateSubscription(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(updated))
}

// CancelSubscription はサブスクリプションを解約する。
// DELETE /api/users/me/subscription
func (h *UserHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.userLoader)
	if !ok {
		return
	}

	updated, err := h.service.CancelSubscription(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(updated))
}

// BillingPortal は請求ポータルのURLを返す。
// POST /api/users/me/billing-portal
func (h *UserHandler) BillingPortal(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.userLoader)
	if !ok {
		return
	}

	url, err := h.service.BillingPortalURL(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"url": url})
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.userLoader)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), user.ID); err != nil {
		handleServiceError(w, err)
		return
	}

	// 退会後のセッションCookieはクライアント側で破棄される想定
	w.WriteHeader(http.StatusNoContent)
}
