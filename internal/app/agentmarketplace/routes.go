package agentmarketplace

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/agent-marketplace/internal/agents"
	"github.com/magabrotheeeer/agent-marketplace/internal/config"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/handlers/agent/agentusage"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/handlers/agent/invoke"
	agentlist "github.com/magabrotheeeer/agent-marketplace/internal/http/handlers/agent/list"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/handlers/agent/toggle"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/handlers/billing/billingconfig"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/handlers/billing/webhook"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/handlers/health"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/handlers/marketplace/listings"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/handlers/marketplace/purchases"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/handlers/marketplace/reviews"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/handlers/marketplace/wishlist"
	portfoliohandler "github.com/magabrotheeeer/agent-marketplace/internal/http/handlers/portfolio"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/handlers/subscription/cancel"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/handlers/subscription/create"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/handlers/subscription/my"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/handlers/subscription/plans"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/middlewarectx"
	"github.com/magabrotheeeer/agent-marketplace/internal/lib/jwt"
	authservice "github.com/magabrotheeeer/agent-marketplace/internal/services/auth"
	entservice "github.com/magabrotheeeer/agent-marketplace/internal/services/entitlement"
	marketservice "github.com/magabrotheeeer/agent-marketplace/internal/services/marketplace"
	portfolioservice "github.com/magabrotheeeer/agent-marketplace/internal/services/portfolio"
	reconcileservice "github.com/magabrotheeeer/agent-marketplace/internal/services/reconcile"
	subservice "github.com/magabrotheeeer/agent-marketplace/internal/services/subscription"
	usageservice "github.com/magabrotheeeer/agent-marketplace/internal/services/usage"
)

// Services объединяет сервисы приложения для регистрации маршрутов.
type Services struct {
	Auth         *authservice.AuthService
	Entitlement  *entservice.EntitlementService
	Subscription *subservice.SubscriptionService
	Reconcile    *reconcileservice.ReconcileService
	Usage        *usageservice.UsageService
	Marketplace  *marketservice.MarketplaceService
	Portfolio    *portfolioservice.PortfolioService
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config,
	jwtMaker jwt.Maker, registry *agents.Registry, svcs *Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, svcs.Auth).ServeHTTP)
		r.Post("/login", login.New(logger, svcs.Auth).ServeHTTP)
		r.Get("/subscriptions/plans", plans.New(logger, svcs.Subscription).ServeHTTP)
		r.Get("/billing/config", billingconfig.New(logger, cfg.Stripe, cfg.TierPrices).ServeHTTP)
		r.Get("/health", health.New(logger).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))

			r.Post("/subscriptions", create.New(logger, svcs.Subscription).ServeHTTP)
			r.Delete("/subscriptions", cancel.New(logger, svcs.Subscription).ServeHTTP)
			r.Get("/subscriptions/my", my.New(logger, svcs.Subscription).ServeHTTP)

			r.Get("/agents", agentlist.New(logger, svcs.Entitlement).ServeHTTP)
			r.Post("/agents/{id}/invoke", invoke.New(logger, svcs.Entitlement, registry, svcs.Usage).ServeHTTP)
			r.Post("/agents/{id}/toggle", toggle.New(logger, svcs.Entitlement).ServeHTTP)
			r.Get("/agents/usage", agentusage.New(logger, svcs.Usage).ServeHTTP)

			listingsHandler := listings.New(logger, svcs.Marketplace)
			r.Post("/marketplace/listings", listingsHandler.Create)
			r.Get("/marketplace/listings", listingsHandler.List)
			r.Get("/marketplace/listings/{id}", listingsHandler.Read)
			r.Put("/marketplace/listings/{id}", listingsHandler.Update)
			r.Delete("/marketplace/listings/{id}", listingsHandler.Remove)

			reviewsHandler := reviews.New(logger, svcs.Marketplace)
			r.Post("/marketplace/reviews", reviewsHandler.Create)
			r.Get("/marketplace/listings/{id}/reviews", reviewsHandler.List)

			purchasesHandler := purchases.New(logger, svcs.Marketplace)
			r.Post("/marketplace/purchases", purchasesHandler.Create)
			r.Get("/marketplace/purchases", purchasesHandler.List)

			wishlistHandler := wishlist.New(logger, svcs.Marketplace)
			r.Post("/marketplace/wishlist", wishlistHandler.Add)
			r.Get("/marketplace/wishlist", wishlistHandler.List)
			r.Delete("/marketplace/wishlist/{id}", wishlistHandler.Remove)

			portfolioHandler := portfoliohandler.New(logger, svcs.Portfolio)
			r.Post("/portfolios", portfolioHandler.Create)
			r.Get("/portfolios", portfolioHandler.List)
			r.Get("/portfolios/{id}", portfolioHandler.Read)
			r.Put("/portfolios/{id}", portfolioHandler.Update)
			r.Delete("/portfolios/{id}", portfolioHandler.Remove)
			r.Post("/portfolios/analyze", portfolioHandler.Analyze)
			r.Post("/portfolios/optimize", portfolioHandler.Optimize)
			r.Post("/portfolios/risk", portfolioHandler.Risk)
			r.Get("/portfolios/analysis", portfolioHandler.ListAnalyses)
			r.Get("/portfolios/analysis/{id}", portfolioHandler.ReadAnalysis)
		})

		// Webhook endpoint (без аутентификации)
		r.Post("/billing/webhook", webhook.New(logger, svcs.Reconcile, cfg.Stripe.WebhookSecret).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
