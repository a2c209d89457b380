package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/passalarm/internal/model"
	"github.com/hitoshi/passalarm/internal/watch"
)

// StateLister はパス在庫状態の読み取りインターフェース。
// repository.ProductStateRepositoryのサブセット。
type StateLister interface {
	// List は全パスの現在状態を返す。
	List(ctx context.Context) ([]*model.ProductState, error)
}

// WatcherInterface は在庫確認の手動実行インターフェース。
type WatcherInterface interface {
	// RunOnce は全パスの在庫確認サイクルを1回実行する。
	RunOnce(ctx context.Context) (*watch.CycleResult, error)
	// RunProduct は指定パスのみ在庫確認を実行する。
	RunProduct(ctx context.Context, productID string) (*model.ProductState, error)
}

// AvailabilityHandler はパス在庫状態のHTTPハンドラー。
type AvailabilityHandler struct {
	states  StateLister
	watcher WatcherInterface
}

// NewAvailabilityHandler はAvailabilityHandlerを生成する。
func NewAvailabilityHandler(states StateLister, watcher WatcherInterface) *AvailabilityHandler {
	return &AvailabilityHandler{
		states:  states,
		watcher: watcher,
	}
}

// productStateResponse はパス在庫状態のAPIレスポンス。
type productStateResponse struct {
	ProductID   string    `json:"product_id"`
	DisplayName string    `json:"display_name"`
	Status      string    `json:"status"`
	Source      string    `json:"source"`
	CheckedAt   time.Time `json:"checked_at"`
}

// checkResultResponse は手動在庫確認のAPIレスポンス。
type checkResultResponse struct {
	States     []productStateResponse `json:"states"`
	Dispatched int                    `json:"dispatched"`
}

// ListStates は全パスの現在の在庫状態を返す。
// GET /api/availability
func (h *AvailabilityHandler) ListStates(w http.ResponseWriter, r *http.Request) {
	states, err := h.states.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]productStateResponse, len(states))
	for i, s := range states {
		results[i] = toProductStateResponse(s)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// CheckAll は全パスの在庫確認を即時実行する。
// POST /api/availability/check
func (h *AvailabilityHandler) CheckAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.watcher.RunOnce(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := checkResultResponse{
		States:     make([]productStateResponse, len(result.States)),
		Dispatched: result.Dispatched,
	}
	for i, s := range result.States {
		resp.States[i] = toProductStateResponse(s)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// CheckProduct は指定パスの在庫確認を即時実行する。
// POST /api/availability/{productID}/check
func (h *AvailabilityHandler) CheckProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	state, err := h.watcher.RunProduct(r.Context(), productID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProductStateResponse(state))
}

// toProductStateResponse はmodel.ProductStateからAPIレスポンスに変換する。
func toProductStateResponse(state *model.ProductState) productStateResponse {
	return productStateResponse{
		ProductID:   state.ProductID,
		DisplayName: model.ProductDisplayName(state.ProductID),
		Status:      string(state.Status),
		Source:      string(state.Source),
		CheckedAt:   state.CheckedAt,
	}
}
