// Package billingconfig реализует HTTP-обработчик публичной конфигурации платежей.
//
// Клиенту нужны публикуемый ключ провайдера и идентификаторы цен тарифов,
// чтобы инициализировать платёжную форму. Секретные ключи наружу не отдаются.
package billingconfig

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/agent-marketplace/internal/config"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/response"
)

// Handler управляет HTTP-запросами на чтение платёжной конфигурации.
type Handler struct {
	log        *slog.Logger
	stripe     config.Stripe
	tierPrices config.TierPrices
}

// New создает новый Handler с переданными логгером и конфигурацией.
func New(log *slog.Logger, stripe config.Stripe, tierPrices config.TierPrices) *Handler {
	return &Handler{
		log:        log,
		stripe:     stripe,
		tierPrices: tierPrices,
	}
}

// ServeHTTP godoc
// @Summary Публичная платёжная конфигурация
// @Description Возвращает публикуемый ключ провайдера и идентификаторы цен платных тарифов.
// @Tags Billing
// @Produce  json
// @Success 200 {object} map[string]any "Платёжная конфигурация"
// @Router /billing/config [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.billingconfig"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	log.Info("billing config requested")
	render.JSON(w, r, response.OKWithData(map[string]any{
		"publishable_key":       h.stripe.PublishableKey,
		"professional_price_id": h.tierPrices.ProfessionalPriceRef,
		"enterprise_price_id":   h.tierPrices.EnterprisePriceRef,
	}))
}
