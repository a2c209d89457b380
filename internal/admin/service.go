// Package admin は管理画面向けの集計とデモ状態操作を提供する。
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/passalarm/internal/model"
	"github.com/hitoshi/passalarm/internal/repository"
)

// topPartnerLimit は統計に含める上位パートナー数。
const topPartnerLimit = 5

// signupMonths は統計に含める新規登録の月数。
const signupMonths = 6

// StatusApplier はデモ状態の直接反映インターフェース。
// 遷移エッジの検出と通知ファンアウトは反映側が行う。
type StatusApplier interface {
	ApplyStatus(ctx context.Context, productID string, status model.AvailabilityStatus, source model.StateSource) (*model.ProductState, error)
}

// ServiceConfig は管理サービスの設定。
type ServiceConfig struct {
	PriceEURMonthly float64
}

// Stats は管理ダッシュボードの集計データを表す。
type Stats struct {
	SubscriberCount   int
	MonthlyRevenueEUR float64
	MonthlySignups    []repository.MonthlyCount
	TopPartners       []repository.PartnerSummary
	PayoutsThisYear   *repository.PayoutTotals
}

// Service は管理画面のサービス層。
type Service struct {
	userRepo      repository.UserRepository
	affiliateRepo repository.AffiliateRepository
	applier       StatusApplier
	logger        *slog.Logger
	config        ServiceConfig
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	affiliateRepo repository.AffiliateRepository,
	applier StatusApplier,
	logger *slog.Logger,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:      userRepo,
		affiliateRepo: affiliateRepo,
		applier:       applier,
		logger:        logger,
		config:        config,
	}
}

// GetStats は管理ダッシュボードの集計データを返す。
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	subscribers, err := s.userRepo.CountSubscribed(ctx)
	if err != nil {
		return nil, fmt.Errorf("サブスクライバー数の取得に失敗しました: %w", err)
	}

	signups, err := s.userRepo.MonthlySignups(ctx, signupMonths)
	if err != nil {
		return nil, fmt.Errorf("新規登録数の取得に失敗しました: %w", err)
	}

	partners, err := s.affiliateRepo.TopPartners(ctx, topPartnerLimit)
	if err != nil {
		return nil, fmt.Errorf("上位パートナーの取得に失敗しました: %w", err)
	}

	yearStart := time.Now().Format("2006") + "-01"
	yearEnd := time.Now().Format("2006") + "-12"
	payouts, err := s.affiliateRepo.PayoutTotalsBetween(ctx, yearStart, yearEnd)
	if err != nil {
		return nil, fmt.Errorf("払い出し集計の取得に失敗しました: %w", err)
	}

	return &Stats{
		SubscriberCount:   subscribers,
		MonthlyRevenueEUR: float64(subscribers) * s.config.PriceEURMonthly,
		MonthlySignups:    signups,
		TopPartners:       partners,
		PayoutsThisYear:   payouts,
	}, nil
}

// SetDemoStatus はパスのデモ在庫状態を切り替える。
// AVAILABLEへの遷移エッジは本番と同じ通知ファンアウトを起こす。
func (s *Service) SetDemoStatus(ctx context.Context, productID string, status model.AvailabilityStatus) (*model.ProductState, error) {
	state, err := s.applier.ApplyStatus(ctx, productID, status, model.SourceDemo)
	if err != nil {
		return nil, err
	}

	s.logger.Info("デモ在庫状態を切り替えました",
		slog.String("product_id", productID),
		slog.String("status", string(status)),
	)
	return state, nil
}
