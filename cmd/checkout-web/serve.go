package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/bigkaa/printhome/checkout-web/internal/api/handlers"
	"github.com/bigkaa/printhome/checkout-web/internal/api/middleware"
	"github.com/bigkaa/printhome/checkout-web/internal/backend"
	"github.com/bigkaa/printhome/checkout-web/internal/config"
	"github.com/bigkaa/printhome/checkout-web/internal/database"
	"github.com/bigkaa/printhome/checkout-web/internal/flow"
	"github.com/bigkaa/printhome/checkout-web/internal/repository"
	"github.com/bigkaa/printhome/checkout-web/internal/server"
	"github.com/bigkaa/printhome/checkout-web/internal/service"
	"github.com/bigkaa/printhome/checkout-web/internal/staging"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP-сервер",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

//nolint:funlen // последовательная сборка зависимостей
func serve(ctx context.Context) error {
	// 1. Конфигурация и логирование
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("загрузка конфигурации: %w", err)
	}
	logger := config.SetupLogger(cfg)
	logger.Info("checkout-web запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("backend_url", cfg.BackendURL),
		slog.Int("max_images", cfg.UploadRules.MaxImages),
	)
	if cfg.FlowCookieSecret == "" {
		logger.Warn("CW_FLOW_COOKIE_SECRET не задан, cookie визарда не переживут рестарт")
	}

	// 2. Хранилище черновиков: PostgreSQL, если настроен, иначе память
	var (
		drafts   repository.CustomerDraftRepository
		checkers []handlers.ReadinessChecker
		depCfg   = service.DephealthConfig{
			ServiceID:         "checkout-web",
			Group:             cfg.DephealthGroup,
			BackendURL:        cfg.BackendURL,
			BackendHealthPath: cfg.BackendHealthPath,
			CheckInterval:     cfg.DephealthCheckInterval,
			IsEntry:           cfg.DephealthIsEntry,
		}
	)
	if cfg.DatabaseEnabled() {
		if err := database.Migrate(cfg, logger); err != nil {
			return fmt.Errorf("миграции БД: %w", err)
		}
		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("подключение к PostgreSQL: %w", err)
		}
		defer pool.Close()

		// Проверка здоровья идёт через тот же пул соединений.
		pgDB := stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		drafts = repository.NewCustomerDraftRepository(pool)
		checkers = append(checkers, database.NewReadinessChecker(pool))
		depCfg.DB = pgDB
		depCfg.PgConnURL = cfg.DatabaseURL("postgres")
	} else {
		logger.Info("CW_DB_HOST не задан, черновики покупателей хранятся в памяти")
		drafts = repository.NewMemoryCustomerDraftRepository()
	}

	janitor := service.NewDraftJanitor(drafts, cfg.DraftPurgeInterval, cfg.DraftRetention, logger)
	janitor.Start(ctx)
	defer janitor.Stop()

	// 3. Backend API
	client, err := backend.New(cfg.BackendURL, cfg.PublicAPIURL, cfg.BackendCACertPath, cfg.BackendTimeout, logger)
	if err != nil {
		return fmt.Errorf("клиент backend API: %w", err)
	}

	// 4. Сервисы
	previews := staging.NewPreviewRegistry()
	flows := service.NewFlowRegistry(cfg.FlowCacheSize, cfg.FlowTTL, previews, client, cfg.UploadRules, cfg.VerifyDecodable, logger)
	defer flows.Close()

	customers := service.NewCustomerService(drafts, logger)
	checkout := service.NewCheckoutService(client, service.NewCartCache(cfg.CartCacheSize, cfg.CartCacheTTL), customers, logger)
	orchestrator := service.NewUploadOrchestrator(client, cfg.UploadRules, logger)

	cookie, err := flow.NewCookie(cfg.FlowCookieSecret, cfg.FlowCookieSecure, cfg.FlowCookieMaxAge)
	if err != nil {
		return fmt.Errorf("cookie визарда: %w", err)
	}

	// 5. Мониторинг зависимостей
	deps, err := service.NewDephealthService(depCfg, logger)
	if err != nil {
		return fmt.Errorf("dephealth: %w", err)
	}
	if err := deps.Start(ctx); err != nil {
		return fmt.Errorf("запуск dephealth: %w", err)
	}
	defer deps.Stop()

	// 6. HTTP
	api := handlers.NewAPIHandler(previews, orchestrator, checkout, customers, cfg.MaxUploadBodyBytes(), logger)
	health := handlers.NewHealthHandler(deps, checkers...)
	router := server.NewRouter(logger, api, health, middleware.Visitor(cookie, flows, logger))

	return server.New(cfg, logger, router).Run(ctx)
}
