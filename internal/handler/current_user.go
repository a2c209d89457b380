package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/passalarm/internal/middleware"
	"github.com/hitoshi/passalarm/internal/model"
)

// UserLoader はセッションのユーザーIDからユーザーを引くためのインターフェース。
// repository.UserRepositoryのサブセット。
type UserLoader interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// currentUser はリクエストコンテキストのユーザーIDから現在のユーザーを取得する。
// 未認証またはユーザーが存在しない場合はエラーレスポンスを書き込みfalseを返す。
func currentUser(w http.ResponseWriter, r *http.Request, loader UserLoader) (*model.User, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return nil, false
	}

	user, err := loader.FindByID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	if user == nil {
		// セッションは有効だがユーザーが削除されている（退会直後など）
		writeUnauthorized(w)
		return nil, false
	}

	return user, true
}

// requireAdmin は現在のユーザーが管理者であることを検証する。
// 管理者でない場合は403レスポンスを書き込みfalseを返す。
func requireAdmin(w http.ResponseWriter, r *http.Request, loader UserLoader) (*model.User, bool) {
	user, ok := currentUser(w, r, loader)
	if !ok {
		return nil, false
	}
	if !user.IsAdmin {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
		return nil, false
	}
	return user, true
}
