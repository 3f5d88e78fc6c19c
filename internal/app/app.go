// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
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

	"github.com/hitoshi/lumina/internal/backend"
	"github.com/hitoshi/lumina/internal/config"
	"github.com/hitoshi/lumina/internal/database"
	"github.com/hitoshi/lumina/internal/handler"
	"github.com/hitoshi/lumina/internal/loader"
	"github.com/hitoshi/lumina/internal/logger"
	"github.com/hitoshi/lumina/internal/metrics"
	"github.com/hitoshi/lumina/internal/model"
	"github.com/hitoshi/lumina/internal/notify"
	"github.com/hitoshi/lumina/internal/repository"
	"github.com/hitoshi/lumina/internal/security"
	"github.com/hitoshi/lumina/internal/session"
	"github.com/hitoshi/lumina/internal/streams"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

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
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runDaemon(cfg)
	}
}

// runDaemon はクライアントデーモンモードで起動する。
// バックエンドクライアント、セッションコントローラー、コレクション
// ローダーをワイヤリングし、運用エンドポイントのHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runDaemon(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. バックエンドクライアント
	ssrfGuard := security.NewSSRFGuard()
	httpClient := ssrfGuard.NewSafeClient(cfg.HTTPTimeout, cfg.FetchMaxSize)
	client := backend.New(cfg.SupabaseURL, cfg.SupabaseAnonKey, httpClient)

	// 2. リポジトリとメトリクス
	profileRepo := repository.NewBackendProfileRepo(client)
	studyRepo := repository.NewBackendStudyRepo(client)
	eventRepo := repository.NewBackendEventRepo(client)
	streamRepo := repository.NewBackendStreamRepo(client)
	groupRepo := repository.NewBackendGroupRepo(client)
	txRepo := repository.NewBackendTransactionRepo(client)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. セッションコントローラー
	opts := []session.Option{
		session.WithMetrics(collector),
		session.WithResolveTimeout(cfg.ResolveTimeout),
	}
	if cfg.ResendAPIKey != "" {
		opts = append(opts, session.WithMailer(notify.NewWelcomeMailer(cfg.ResendAPIKey, cfg.MailFrom)))
	}
	controller := session.NewController(client, profileRepo, opts...)

	// 4. コレクションローダー
	// コレクションごとに独立し、片方の失敗が他方へ波及しない
	studies := loader.New("studies", studyRepo.List,
		loader.WithRateLimit[model.BibleStudy](rate.Every(time.Second), 3),
		loader.WithMetrics[model.BibleStudy](collector),
	)
	events := loader.New("events", eventRepo.List,
		loader.WithRateLimit[model.CalendarEvent](rate.Every(time.Second), 3),
		loader.WithMetrics[model.CalendarEvent](collector),
	)
	streamList := loader.New("streams", streamRepo.List,
		loader.WithRateLimit[model.LiveStreamItem](rate.Every(time.Second), 3),
		loader.WithMetrics[model.LiveStreamItem](collector),
	)
	groups := loader.New("groups", groupRepo.List,
		loader.WithRateLimit[model.SmallGroup](rate.Every(time.Second), 3),
		loader.WithMetrics[model.SmallGroup](collector),
	)
	// 献金履歴はサインイン中の会員に限定される
	transactions := loader.New("transactions", func(ctx context.Context) ([]model.Transaction, error) {
		st := controller.State()
		if st.Phase() != session.PhaseAuthenticated {
			return nil, fmt.Errorf("no authenticated member")
		}
		return txRepo.ListByProfile(ctx, st.Profile().ID)
	},
		loader.WithRateLimit[model.Transaction](rate.Every(time.Second), 3),
		loader.WithMetrics[model.Transaction](collector),
	)

	// 認証確立後に全コレクションを取得する
	controller.OnChange(func(st session.State) {
		if st.Phase() != session.PhaseAuthenticated {
			return
		}
		go func() {
			for name, load := range map[string]func(context.Context) error{
				"studies":      studies.Load,
				"events":       events.Load,
				"streams":      streamList.Load,
				"groups":       groups.Load,
				"transactions": transactions.Load,
			} {
				if err := load(ctx); err != nil {
					slog.Warn("initial collection load failed",
						slog.String("collection", name),
						slog.String("error", err.Error()),
					)
				}
			}
		}()
	})

	if err := controller.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session controller: %w", err)
	}
	defer controller.Close()

	// 5. セッションの確立
	// 資格情報があればサインイン、なければ未認証セッションで起動する
	if cfg.AuthEmail != "" && cfg.AuthPassword != "" {
		if err := client.SignIn(ctx, cfg.AuthEmail, cfg.AuthPassword); err != nil {
			slog.Error("startup sign-in failed", slog.String("error", err.Error()))
		}
	} else {
		if err := client.Hydrate(ctx, os.Getenv("REFRESH_TOKEN")); err != nil {
			slog.Warn("session hydration failed", slog.String("error", err.Error()))
		}
	}

	// トークンの自動更新
	go client.StartAutoRefresh(ctx, cfg.RefreshInterval)

	// 6. 運用エンドポイントのHTTPサーバー
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:   slog.Default(),
		Gatherer: registry,
		Session:  controller,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("ops server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down ops server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("ops server stopped gracefully")
	return nil
}

// runWorker は配信取り込みワーカーモードで起動する。
// 配信フィードを定期的に取得し、バックエンドのstreamsコレクションへ
// 取り込む。SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.StreamFeedURL == "" {
		return fmt.Errorf("STREAM_FEED_URL is required for worker mode")
	}

	// 1. バックエンドクライアント
	ssrfGuard := security.NewSSRFGuard()
	httpClient := ssrfGuard.NewSafeClient(cfg.HTTPTimeout, cfg.FetchMaxSize)
	client := backend.New(cfg.SupabaseURL, cfg.SupabaseAnonKey, httpClient)

	// ワーカーは資格情報でのサインインが必須
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.AuthEmail == "" || cfg.AuthPassword == "" {
		return fmt.Errorf("AUTH_EMAIL and AUTH_PASSWORD are required for worker mode")
	}
	if err := client.SignIn(ctx, cfg.AuthEmail, cfg.AuthPassword); err != nil {
		return fmt.Errorf("worker sign-in failed: %w", err)
	}
	go client.StartAutoRefresh(ctx, cfg.RefreshInterval)

	// 2. フェッチャーとポーラー
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	streamRepo := repository.NewBackendStreamRepo(client)
	fetcher := streams.NewFetcher(
		streamRepo, ssrfGuard, collector,
		slog.Default(), cfg.StreamFeedURL, cfg.HTTPTimeout, cfg.FetchMaxSize,
	)
	poller := streams.NewPoller(fetcher, slog.Default(), cfg.StreamFeedInterval)

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.String("feed_url", cfg.StreamFeedURL),
		slog.Duration("interval", cfg.StreamFeedInterval),
	)

	// ポーラーをメインgoroutineで実行（ブロッキング）
	poller.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrate mode")
	}

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
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
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
