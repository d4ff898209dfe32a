// Package plans реализует HTTP-обработчик каталога тарифов.
package plans

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/agent-marketplace/internal/http/response"
	"github.com/magabrotheeeer/agent-marketplace/internal/tiers"
)

// Handler управляет HTTP-запросами на чтение каталога тарифов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс чтения каталога тарифов.
type Service interface {
	Plans() []tiers.Plan
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Каталог тарифов
// @Description Возвращает тарифные уровни с ценами и списками агентов. Открытая конечная точка.
// @Tags Subscriptions
// @Produce  json
// @Success 200 {object} map[string]any "Каталог тарифов"
// @Router /subscriptions/plans [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.plans"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	plans := h.service.Plans()
	log.Info("plans listed", slog.Int("count", len(plans)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"plans": plans,
	}))
}
