// Package my реализует HTTP-обработчик просмотра текущей подписки пользователя.
package my

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/agent-marketplace/internal/http/middlewarectx"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/response"
	"github.com/magabrotheeeer/agent-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/agent-marketplace/internal/models"
)

// Handler управляет HTTP-запросами на чтение текущей подписки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс чтения активной подписки.
type Service interface {
	My(ctx context.Context, userUID string) (*models.Subscription, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Текущая подписка
// @Description Возвращает активную подписку пользователя. Пользователь без записи находится на базовом тарифе.
// @Tags Subscriptions
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} map[string]any "Текущая подписка"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscriptions/my [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.my"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	sub, err := h.service.My(r.Context(), userUID)
	if err != nil {
		log.Error("failed to read subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read subscription"))
		return
	}
	if sub == nil {
		render.JSON(w, r, response.OKWithData(map[string]any{
			"tier":   models.TierBasic,
			"status": models.StatusBasic,
		}))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"tier":       sub.Tier,
		"status":     sub.Status,
		"is_active":  sub.IsActive,
		"auto_renew": sub.AutoRenew,
		"started_at": sub.StartedAt,
		"ended_at":   sub.EndedAt,
	}))
}
