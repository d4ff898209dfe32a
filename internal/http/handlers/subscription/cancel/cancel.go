// Package cancel реализует HTTP-обработчик отмены платной подписки.
//
// Отмена выполняется в конце оплаченного периода: доступ к платным агентам
// сохраняется до его окончания, после чего пользователь возвращается
// на базовый тариф.
package cancel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/agent-marketplace/internal/http/middlewarectx"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/response"
	"github.com/magabrotheeeer/agent-marketplace/internal/lib/sl"
	subservice "github.com/magabrotheeeer/agent-marketplace/internal/services/subscription"
)

// Handler управляет HTTP-запросами на отмену подписки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики отмены подписки.
type Service interface {
	Cancel(ctx context.Context, userUID string) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Отменить платную подписку
// @Description Планирует отмену подписки в конце оплаченного периода. Доступ сохраняется до его окончания.
// @Tags Subscriptions
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response "Отмена запланирована"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Активная платная подписка не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при отмене"
// @Router /subscriptions [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancel"
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

	if err := h.service.Cancel(r.Context(), userUID); err != nil {
		if errors.Is(err, subservice.ErrNoActivePaidSubscription) {
			log.Info("no active paid subscription", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("no active paid subscription"))
			return
		}
		log.Error("failed to cancel subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not cancel subscription"))
		return
	}

	log.Info("subscription cancellation scheduled", slog.String("user_uid", userUID))
	render.JSON(w, r, response.OK())
}
