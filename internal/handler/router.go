package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/passalarm/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	MetricsRecorder   middleware.HTTPStatusRecorder // nil可

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 現在のユーザーの取得
	UserLoader UserLoader

	// 在庫状態
	StateLister StateLister
	Watcher     WatcherInterface

	// 通知
	TestAlarm        TestAlarmSender
	NotificationLogs NotificationLogLister

	// ユーザー
	UserService UserServiceInterface

	// アフィリエイト
	AffiliateService AffiliateServiceInterface

	// 管理画面
	AdminService    AdminServiceInterface
	SettingsService SettingsServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → (Metrics)
//	→ Session → CSRF → RateLimit(General)
//
// 認証ルート（/auth/*）、紹介リンク（/ref/*）、在庫状態の読み取りは
// 認証ミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))

	if deps.MetricsRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.MetricsRecorder))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	availabilityHandler := NewAvailabilityHandler(deps.StateLister, deps.Watcher)
	alarmHandler := NewAlarmHandler(deps.TestAlarm, deps.NotificationLogs, deps.UserLoader)
	userHandler := NewUserHandler(deps.UserService, deps.UserLoader)
	affiliateHandler := NewAffiliateHandler(deps.AffiliateService, deps.UserLoader)
	adminHandler := NewAdminHandler(deps.AdminService, deps.SettingsService, deps.UserLoader)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	// 認証ルート
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register/customer", authHandler.RegisterCustomer)
		r.Post("/register/partner", authHandler.RegisterPartner)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// 紹介リンク（クリック追跡してトップページへリダイレクト）
	r.Get("/ref/{code}", affiliateHandler.TrackClick)

	// 在庫状態の読み取りはランディングページでも表示するため認証不要
	r.Get("/api/availability", availabilityHandler.ListStates)

	// CSRFトークン取得（フロントエンドの初期化時に呼ばれる）
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	// CSRF検証はセッション検証の後に行うため、未認証リクエストは401が先に返る
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 在庫確認の手動実行
		r.Post("/api/availability/check", availabilityHandler.CheckAll)
		r.Post("/api/availability/{productID}/check", availabilityHandler.CheckProduct)

		// テストアラーム（専用レート制限を追加）
		r.With(deps.RateLimiter.TestAlarmMiddleware()).Post("/api/alarms/test", alarmHandler.SendTestAlarm)

		// 通知ログ
		r.Get("/api/notifications", alarmHandler.ListNotifications)

		// ユーザー管理
		r.Route("/api/users/me", func(r chi.Router) {
			r.Put("/contact", userHandler.UpdateContact)
			r.Put("/channels", userHandler.UpdateChannels)
			r.Post("/subscription", userHandler.ActivateSubscription)
			r.Delete("/subscription", userHandler.CancelSubscription)
			r.Post("/billing-portal", userHandler.BillingPortal)
			r.Delete("/", userHandler.Withdraw)
		})

		// パートナーダッシュボード
		r.Route("/api/affiliate", func(r chi.Router) {
			r.Get("/dashboard", affiliateHandler.GetDashboard)
			r.Put("/profile", affiliateHandler.UpdateProfile)
			r.Post("/payout", affiliateHandler.RequestPayout)
		})

		// 管理画面
		r.Route("/api/admin", func(r chi.Router) {
			r.Get("/stats", adminHandler.GetStats)
			r.Get("/settings", adminHandler.GetSettings)
			r.Put("/settings", adminHandler.UpdateSettings)
			r.Put("/availability/{productID}", adminHandler.SetDemoStatus)
		})
	})

	return r
}
