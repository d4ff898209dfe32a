// Package create реализует HTTP-обработчик оформления платной подписки.
//
// Handler принимает идентификатор цены и платёжного метода, оформляет
// подписку у платёжного провайдера через сервис подписок и возвращает
// состояние новой подписки. Если платёж требует подтверждения,
// в ответе передаётся client_secret для завершения оплаты на клиенте.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/agent-marketplace/internal/http/middlewarectx"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/response"
	"github.com/magabrotheeeer/agent-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/agent-marketplace/internal/models"
	subservice "github.com/magabrotheeeer/agent-marketplace/internal/services/subscription"
)

// Handler управляет HTTP-запросами на оформление подписки.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики оформления подписки.
type Service interface {
	Create(ctx context.Context, userUID string, req models.CreateSubscriptionRequest) (*subservice.CreateResult, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Оформить платную подписку
// @Description Создает подписку у платёжного провайдера и сохраняет её локально. Может вернуть client_secret для подтверждения платежа.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.CreateSubscriptionRequest true "Данные подписки"
// @Success 200 {object} map[string]any "Подписка оформлена"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "Активная платная подписка уже существует"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при оформлении"
// @Router /subscriptions [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	result, err := h.service.Create(r.Context(), userUID, req)
	if err != nil {
		if errors.Is(err, subservice.ErrActiveSubscriptionExists) {
			log.Info("active paid subscription already exists", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("active paid subscription already exists"))
			return
		}
		log.Error("failed to create subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create subscription"))
		return
	}

	log.Info("subscription created",
		slog.Int("subscription_id", result.SubscriptionID),
		slog.String("tier", string(result.Tier)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"subscription_id": result.SubscriptionID,
		"tier":            result.Tier,
		"status":          result.Status,
		"requires_action": result.RequiresAction,
		"client_secret":   result.ClientSecret,
	}))
}
