// Package probe は外部データソースからのパス在庫確認を提供する。
//
// 管理画面で選択されたソース種別（scraper/page/feed）ごとに
// 確認方法を切り替える。クレデンシャルやURLが未設定の場合は
// OutcomeNotConfiguredを返し、通信エラー（OutcomeError）とは区別する。
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/passalarm/internal/model"
)

// Outcome は在庫確認全体の結果種別を表す。
type Outcome string

const (
	// OutcomeLive は外部ソースからの確認に成功したことを示す。
	OutcomeLive Outcome = "live"
	// OutcomeNotConfigured はソース設定が不足していることを示す。
	// 呼び出し側はデモ状態へフォールバックする。
	OutcomeNotConfigured Outcome = "not_configured"
	// OutcomeError は設定済みだが確認に失敗したことを示す。
	OutcomeError Outcome = "error"
)

// Result は1回の在庫確認の結果を表す。
// StatusesはOutcomeLiveの場合のみパスごとの状態を持つ。
type Result struct {
	Outcome   Outcome
	Statuses  map[string]model.AvailabilityStatus
	CheckedAt time.Time
	Reason    string
}

// SettingsLoader はシステム設定の読み込みインターフェース。
type SettingsLoader interface {
	Load(ctx context.Context) (*model.SystemSettings, error)
}

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Prober はパス在庫の確認を行う。
type Prober struct {
	settings  SettingsLoader
	ssrfGuard SSRFValidator
	logger    *slog.Logger
	timeout   time.Duration

	// scraperAPIBase はスクレイピングAPIのベースURL。テストで差し替える。
	scraperAPIBase string
}

// NewProber はProberの新しいインスタンスを生成する。
func NewProber(settings SettingsLoader, ssrfGuard SSRFValidator, logger *slog.Logger, timeout time.Duration) *Prober {
	return &Prober{
		settings:       settings,
		ssrfGuard:      ssrfGuard,
		logger:         logger,
		timeout:        timeout,
		scraperAPIBase: defaultScraperAPIBase,
	}
}

// Check は設定されたソースから全追跡パスの在庫状態を確認する。
// errorを返すのは設定の読み込みに失敗した場合のみで、
// 確認自体の失敗はResult.Outcomeで表現する。
func (p *Prober) Check(ctx context.Context) (*Result, error) {
	settings, err := p.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("システム設定の読み込みに失敗しました: %w", err)
	}

	checkedAt := time.Now()
	start := checkedAt

	var statuses map[string]model.AvailabilityStatus
	var checkErr error

	switch settings.ProbeSource {
	case model.ProbeSourceScraper:
		if settings.ScraperAPIKey == "" || settings.ScraperRobotID == "" {
			return p.notConfigured(checkedAt, "スクレイピングAPIのキーまたはロボットIDが未設定です"), nil
		}
		statuses, checkErr = p.checkScraper(ctx, settings)

	case model.ProbeSourcePage:
		if settings.ProbeSourceURL == "" {
			return p.notConfigured(checkedAt, "商品ページURLが未設定です"), nil
		}
		statuses, checkErr = p.checkPage(ctx, settings.ProbeSourceURL)

	case model.ProbeSourceFeed:
		if settings.ProbeSourceURL == "" {
			return p.notConfigured(checkedAt, "アナウンスフィードURLが未設定です"), nil
		}
		statuses, checkErr = p.checkFeed(ctx, settings.ProbeSourceURL)

	default:
		return p.notConfigured(checkedAt, fmt.Sprintf("不明な在庫確認ソース: %s", settings.ProbeSource)), nil
	}

	duration := time.Since(start)

	if checkErr != nil {
		p.logger.Error("在庫確認に失敗しました",
			slog.String("source", string(settings.ProbeSource)),
			slog.String("error", checkErr.Error()),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		return &Result{
			Outcome:   OutcomeError,
			CheckedAt: checkedAt,
			Reason:    checkErr.Error(),
		}, nil
	}

	p.logger.Info("在庫確認が完了しました",
		slog.String("source", string(settings.ProbeSource)),
		slog.String("gold", string(statuses[model.ProductGold])),
		slog.String("silver", string(statuses[model.ProductSilver])),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return &Result{
		Outcome:   OutcomeLive,
		Statuses:  statuses,
		CheckedAt: checkedAt,
	}, nil
}

func (p *Prober) notConfigured(checkedAt time.Time, reason string) *Result {
	p.logger.Info("在庫確認ソースが未設定のためデモ状態を維持します",
		slog.String("reason", reason),
	)
	return &Result{
		Outcome:   OutcomeNotConfigured,
		CheckedAt: checkedAt,
		Reason:    reason,
	}
}
