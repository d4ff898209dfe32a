// Package agentmarketplace собирает приложение маркетплейса агентов:
// хранилище, кэш, платёжного провайдера, брокер событий, сервисы
// и HTTP-сервер с маршрутами.
package agentmarketplace

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/agent-marketplace/internal/agents"
	"github.com/magabrotheeeer/agent-marketplace/internal/billing"
	"github.com/magabrotheeeer/agent-marketplace/internal/cache"
	"github.com/magabrotheeeer/agent-marketplace/internal/config"
	"github.com/magabrotheeeer/agent-marketplace/internal/lib/jwt"
	"github.com/magabrotheeeer/agent-marketplace/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/agent-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/agent-marketplace/internal/migrations"
	authservice "github.com/magabrotheeeer/agent-marketplace/internal/services/auth"
	entservice "github.com/magabrotheeeer/agent-marketplace/internal/services/entitlement"
	marketservice "github.com/magabrotheeeer/agent-marketplace/internal/services/marketplace"
	portfolioservice "github.com/magabrotheeeer/agent-marketplace/internal/services/portfolio"
	reconcileservice "github.com/magabrotheeeer/agent-marketplace/internal/services/reconcile"
	subservice "github.com/magabrotheeeer/agent-marketplace/internal/services/subscription"
	usageservice "github.com/magabrotheeeer/agent-marketplace/internal/services/usage"
	"github.com/magabrotheeeer/agent-marketplace/internal/storage/repository"
	"github.com/magabrotheeeer/agent-marketplace/internal/tiers"
)

// App хранит собранные зависимости приложения и HTTP-сервер.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
}

// New собирает приложение из конфигурации: подключает хранилище и кэш,
// прогоняет миграции, инициализирует сервисы и регистрирует маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	catalog, err := tiers.New(cfg.TierPrices)
	if err != nil {
		return nil, err
	}

	registry := agents.NewRegistry()
	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	provider := billing.New(cfg.Stripe.SecretKey)

	// Публикация событий опциональна: без брокера сервис продолжает работать.
	var publisher subservice.EventPublisher
	if cfg.AMQPConnectionString != "" {
		_, ch, err := rabbitmq.Connect(cfg.AMQPConnectionString)
		if err != nil {
			logger.Warn("rabbitmq unavailable, events disabled", sl.Err(err))
		} else if err := rabbitmq.SetupExchange(ch); err != nil {
			logger.Warn("rabbitmq exchange setup failed, events disabled", sl.Err(err))
		} else {
			publisher = rabbitmq.NewPublisher(ch)
		}
	}

	authSvc := authservice.NewAuthService(db, catalog, jwtMaker, logger)
	entitlementSvc := entservice.NewEntitlementService(db, catalog, registry, cacheRedis, logger)
	subscriptionSvc := subservice.NewSubscriptionService(db, provider, catalog, cacheRedis, publisher, logger)
	reconcileSvc := reconcileservice.NewReconcileService(db, catalog, cacheRedis, logger)
	usageSvc := usageservice.NewUsageService(db, logger)
	marketplaceSvc := marketservice.NewMarketplaceService(db, logger)
	portfolioSvc := portfolioservice.NewPortfolioService(db, entitlementSvc, registry, usageSvc, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, jwtMaker, registry, &Services{
		Auth:         authSvc,
		Entitlement:  entitlementSvc,
		Subscription: subscriptionSvc,
		Reconcile:    reconcileSvc,
		Usage:        usageSvc,
		Marketplace:  marketplaceSvc,
		Portfolio:    portfolioSvc,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if closeErr := a.db.DB.Close(); closeErr != nil {
			a.logger.Error("failed to close database", sl.Err(closeErr))
		}
		return err
	}
}
