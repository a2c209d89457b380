// Package watch はパス在庫のポーリングと通知ファンアウトを提供する。
// 一定間隔のティッカーで在庫を確認し、AVAILABLEへの遷移エッジを検出して
// 通知対象ユーザーへ並列に配信する。
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/passalarm/internal/model"
	"github.com/hitoshi/passalarm/internal/notify"
	"github.com/hitoshi/passalarm/internal/probe"
	"github.com/hitoshi/passalarm/internal/repository"
)

// ProbeService は在庫確認の実行インターフェース。
type ProbeService interface {
	Check(ctx context.Context) (*probe.Result, error)
}

// DispatchService は1ユーザーへの通知配信インターフェース。
type DispatchService interface {
	Dispatch(ctx context.Context, req notify.DispatchRequest) *model.DispatchOutcome
}

// SettingsLoader はシステム設定の読み込みインターフェース。
type SettingsLoader interface {
	Load(ctx context.Context) (*model.SystemSettings, error)
}

// MetricsRecorder はポーリングメトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordProbe(outcome string, duration time.Duration)
	RecordTransition(productID string)
}

// CycleResult は1回のポーリングサイクルの結果を表す。
type CycleResult struct {
	States     []*model.ProductState
	Dispatched int // 1チャネル以上送信できたユーザー数
}

// Watcher は在庫ポーリングと通知ファンアウトを実行する。
type Watcher struct {
	prober         ProbeService
	stateRepo      repository.ProductStateRepository
	userRepo       repository.UserRepository
	settings       SettingsLoader
	dispatcher     DispatchService
	logger         *slog.Logger
	metrics        MetricsRecorder
	maxConcurrency int
	limiter        *rate.Limiter
}

// NewWatcher はWatcherの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
// providerIntervalはプロバイダー呼び出しのペーシング間隔で、
// 0以下の場合はペーシングしない。metricsはnilを許容する。
func NewWatcher(
	prober ProbeService,
	stateRepo repository.ProductStateRepository,
	userRepo repository.UserRepository,
	settings SettingsLoader,
	dispatcher DispatchService,
	logger *slog.Logger,
	metrics MetricsRecorder,
	maxConcurrency int,
	providerInterval time.Duration,
) *Watcher {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if providerInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(providerInterval), 1)
	}
	return &Watcher{
		prober:         prober,
		stateRepo:      stateRepo,
		userRepo:       userRepo,
		settings:       settings,
		dispatcher:     dispatcher,
		logger:         logger,
		metrics:        metrics,
		maxConcurrency: maxConcurrency,
		limiter:        limiter,
	}
}

// Start は一定間隔のティッカーでポーリングを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (w *Watcher) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("在庫ポーリングを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", w.maxConcurrency),
	)

	// 起動直後に1回実行
	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Error("ポーリングサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("在庫ポーリングを停止しました")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("ポーリングサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は全追跡パスの在庫を1回確認し、遷移エッジに応じて通知する。
func (w *Watcher) RunOnce(ctx context.Context) (*CycleResult, error) {
	return w.runCycle(ctx, model.TrackedProducts())
}

// RunProduct は指定パスのみ在庫を確認し、遷移エッジに応じて通知する。
// ダッシュボードの手動確認から呼ばれる。自動サイクルと同時に実行されても
// last-write-winsにより古い結果が新しい結果を上書きすることはない。
func (w *Watcher) RunProduct(ctx context.Context, productID string) (*model.ProductState, error) {
	known := false
	for _, id := range model.TrackedProducts() {
		if id == productID {
			known = true
			break
		}
	}
	if !known {
		return nil, model.NewUnknownProductError(productID)
	}

	result, err := w.runCycle(ctx, []string{productID})
	if err != nil {
		return nil, err
	}
	if len(result.States) == 0 {
		// stale write: 並行する確認結果の方が新しい
		return w.stateRepo.FindByProductID(ctx, productID)
	}
	return result.States[0], nil
}

// ApplyStatus は在庫確認を経ずに状態を直接反映し、遷移エッジに応じて通知する。
// 管理画面のデモ状態切り替えから呼ばれる。
func (w *Watcher) ApplyStatus(ctx context.Context, productID string, status model.AvailabilityStatus, source model.StateSource) (*model.ProductState, error) {
	if !status.IsValid() {
		return nil, model.NewValidationError("status", "不明な在庫ステータスです")
	}

	state, err := w.stateRepo.Apply(ctx, productID, status, source, time.Now())
	if err != nil {
		return nil, fmt.Errorf("在庫状態の反映に失敗しました: %w", err)
	}
	if state == nil {
		return w.stateRepo.FindByProductID(ctx, productID)
	}

	if state.BecameAvailable() {
		if w.metrics != nil {
			w.metrics.RecordTransition(state.ProductID)
		}
		w.fanOut(ctx, state.ProductID)
	}
	return state, nil
}

// runCycle は指定パス群の在庫を確認して状態を反映し、通知をファンアウトする。
func (w *Watcher) runCycle(ctx context.Context, productIDs []string) (*CycleResult, error) {
	start := time.Now()

	settings, err := w.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("システム設定の読み込みに失敗しました: %w", err)
	}

	probeResult, err := w.prober.Check(ctx)
	if err != nil {
		return nil, fmt.Errorf("在庫確認の実行に失敗しました: %w", err)
	}

	if w.metrics != nil {
		w.metrics.RecordProbe(string(probeResult.Outcome), time.Since(start))
	}

	result := &CycleResult{}
	for _, productID := range productIDs {
		status, source, err := w.resolveStatus(ctx, probeResult, productID)
		if err != nil {
			return nil, err
		}

		state, err := w.stateRepo.Apply(ctx, productID, status, source, probeResult.CheckedAt)
		if err != nil {
			return nil, fmt.Errorf("在庫状態の反映に失敗しました: %w", err)
		}
		if state == nil {
			// stale write: 並行する確認結果の方が新しいためスキップ
			w.logger.Info("古い確認結果のため状態反映をスキップしました",
				slog.String("product_id", productID),
			)
			continue
		}
		result.States = append(result.States, state)

		notifiable := state.BecameAvailable() ||
			(settings.NotifyOnEveryPollWhileAvailable && state.Status == model.StatusAvailable)
		if !notifiable {
			continue
		}

		if state.BecameAvailable() {
			w.logger.Info("パスが購入可能になりました",
				slog.String("product_id", state.ProductID),
				slog.String("previous_status", string(state.PreviousStatus)),
			)
			if w.metrics != nil {
				w.metrics.RecordTransition(state.ProductID)
			}
		}
		result.Dispatched += w.fanOut(ctx, state.ProductID)
	}

	w.logger.Info("ポーリングサイクルが完了しました",
		slog.String("outcome", string(probeResult.Outcome)),
		slog.Int("dispatched_users", result.Dispatched),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return result, nil
}

// resolveStatus は確認結果からパスの反映すべき状態と取得元を決める。
// ソース未設定の場合は現在の状態を維持するデモ反映になる。
func (w *Watcher) resolveStatus(ctx context.Context, probeResult *probe.Result, productID string) (model.AvailabilityStatus, model.StateSource, error) {
	switch probeResult.Outcome {
	case probe.OutcomeLive:
		status, ok := probeResult.Statuses[productID]
		if !ok {
			status = model.StatusError
		}
		return status, model.SourceLive, nil

	case probe.OutcomeNotConfigured:
		current, err := w.stateRepo.FindByProductID(ctx, productID)
		if err != nil {
			return "", "", fmt.Errorf("現在の在庫状態の取得に失敗しました: %w", err)
		}
		if current == nil {
			return model.StatusSoldOut, model.SourceDemo, nil
		}
		return current.Status, model.SourceDemo, nil

	default:
		return model.StatusError, model.SourceLive, nil
	}
}

// fanOut は通知対象ユーザー全員へ並列に配信し、
// 1チャネル以上送信できたユーザー数を返す。
// semaphoreパターンで並列数を、rate.Limiterでプロバイダー呼び出し間隔を制御する。
func (w *Watcher) fanOut(ctx context.Context, productID string) int {
	users, err := w.userRepo.ListNotifiable(ctx)
	if err != nil {
		w.logger.Error("通知対象ユーザーの取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0
	}
	if len(users) == 0 {
		return 0
	}

	productName := model.ProductDisplayName(productID)

	w.logger.Info("通知ファンアウトを開始します",
		slog.String("product_id", productID),
		slog.Int("user_count", len(users)),
	)

	sem := make(chan struct{}, w.maxConcurrency)
	var wg sync.WaitGroup
	var dispatched atomic.Int64

	for _, user := range users {
		if err := w.limiter.Wait(ctx); err != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(u *model.User) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := w.dispatcher.Dispatch(ctx, notify.DispatchRequest{
				User:        u,
				ProductName: productName,
				Available:   true,
			})
			if outcome.SentCount() > 0 {
				dispatched.Add(1)
			}
		}(user)
	}

	wg.Wait()
	return int(dispatched.Load())
}
