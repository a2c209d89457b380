package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/passalarm/internal/admin"
	"github.com/hitoshi/passalarm/internal/affiliate"
	"github.com/hitoshi/passalarm/internal/auth"
	"github.com/hitoshi/passalarm/internal/compose"
	"github.com/hitoshi/passalarm/internal/config"
	"github.com/hitoshi/passalarm/internal/database"
	"github.com/hitoshi/passalarm/internal/handler"
	"github.com/hitoshi/passalarm/internal/logger"
	"github.com/hitoshi/passalarm/internal/metrics"
	"github.com/hitoshi/passalarm/internal/middleware"
	"github.com/hitoshi/passalarm/internal/notify"
	"github.com/hitoshi/passalarm/internal/probe"
	"github.com/hitoshi/passalarm/internal/repository"
	"github.com/hitoshi/passalarm/internal/security"
	"github.com/hitoshi/passalarm/internal/settings"
	"github.com/hitoshi/passalarm/internal/user"
	"github.com/hitoshi/passalarm/internal/watch"
	"github.com/hitoshi/passalarm/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// 在庫ポーリングはworkerモードの責務のためここでは起動しないが、
// 手動チェックとデモ状態反映のためにWatcher自体はワイヤリングする。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	stateRepo := repository.NewPostgresProductStateRepo(db)
	logRepo := repository.NewPostgresNotificationLogRepo(db, cfg.NotificationLogCapacity)
	settingsRepo := repository.NewPostgresSettingsRepo(db)
	affiliateRepo := repository.NewPostgresAffiliateRepo(db)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	// 4. システム設定サービスの初期化（全プロバイダーが参照する）
	settingsService := settings.NewService(settingsRepo, ssrfGuard)

	// 5. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 6. 通知パイプラインの初期化
	composer := compose.NewComposer(settingsService, sanitizer, slog.Default(), cfg.ProviderTimeout)
	emailSender := notify.NewResendEmailSender(settingsService, slog.Default(), cfg.ProviderTimeout)
	smsSender := notify.NewTwilioSMSSender(settingsService, slog.Default(), cfg.ProviderTimeout)
	dispatcher := notify.NewDispatcher(composer, emailSender, smsSender, logRepo, slog.Default(), collector)
	testAlarm := notify.NewTestAlarmService(dispatcher, userRepo, slog.Default())

	// 7. 在庫確認の初期化（serveモードでは手動チェックのみに使用）
	prober := probe.NewProber(settingsService, ssrfGuard, slog.Default(), cfg.ProbeTimeout)
	watcher := watch.NewWatcher(
		prober, stateRepo, userRepo, settingsService, dispatcher,
		slog.Default(), collector, cfg.NotifyMaxConcurrent, cfg.ProviderInterval,
	)

	// 8. ドメインサービスの初期化
	affiliateService := affiliate.NewService(affiliateRepo, settingsService, slog.Default(), affiliate.ServiceConfig{
		BaseURL:         cfg.BaseURL,
		MinPayoutEUR:    cfg.MinPayoutEUR,
		PriceEURMonthly: cfg.PriceEURMonthly,
	})
	authService := auth.NewService(
		userRepo, sessionRepo, affiliateService,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	userService := user.NewService(
		userRepo, sessionRepo, affiliateService, settingsService,
		slog.Default(), user.ServiceConfig{BaseURL: cfg.BaseURL},
	)
	adminService := admin.NewService(
		userRepo, affiliateRepo, watcher,
		slog.Default(), admin.ServiceConfig{PriceEURMonthly: cfg.PriceEURMonthly},
	)

	// 9. ルーターの構築
	// configのレート制限値はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.TestAlarmRate = rate.Limit(float64(cfg.RateLimitTestAlarm) / 60.0)
	rateLimiterCfg.TestAlarmBurst = cfg.RateLimitTestAlarm

	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterCfg),
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		MetricsRecorder: collector,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		UserLoader: userRepo,

		StateLister: stateRepo,
		Watcher:     watcher,

		TestAlarm:        testAlarm,
		NotificationLogs: logRepo,

		UserService: userService,

		AffiliateService: affiliateService,

		AdminService:    adminService,
		SettingsService: settingsService,
	}

	router := handler.NewRouter(deps)

	// /metrics はAPIルーターの外に置き、認証やレート制限の影響を受けない
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.Handle("/", router)

	// 10. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、在庫ポーリングループを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	stateRepo := repository.NewPostgresProductStateRepo(db)
	logRepo := repository.NewPostgresNotificationLogRepo(db, cfg.NotificationLogCapacity)
	settingsRepo := repository.NewPostgresSettingsRepo(db)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	// 4. システム設定サービスの初期化
	settingsService := settings.NewService(settingsRepo, ssrfGuard)

	// 5. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 6. 通知パイプラインの初期化
	composer := compose.NewComposer(settingsService, sanitizer, slog.Default(), cfg.ProviderTimeout)
	emailSender := notify.NewResendEmailSender(settingsService, slog.Default(), cfg.ProviderTimeout)
	smsSender := notify.NewTwilioSMSSender(settingsService, slog.Default(), cfg.ProviderTimeout)
	dispatcher := notify.NewDispatcher(composer, emailSender, smsSender, logRepo, slog.Default(), collector)

	// 7. ウォッチャーの初期化
	prober := probe.NewProber(settingsService, ssrfGuard, slog.Default(), cfg.ProbeTimeout)
	watcher := watch.NewWatcher(
		prober, stateRepo, userRepo, settingsService, dispatcher,
		slog.Default(), collector, cfg.NotifyMaxConcurrent, cfg.ProviderInterval,
	)

	// 8. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("probe_interval", cfg.ProbeInterval),
		slog.Int("max_concurrent", cfg.NotifyMaxConcurrent),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// ポーリングループをメインgoroutineで実行（ブロッキング）
	watcher.Start(ctx, cfg.ProbeInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
