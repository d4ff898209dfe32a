// Package purchases реализует HTTP-обработчики покупок публикаций каталога.
package purchases

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
	marketservice "github.com/magabrotheeeer/agent-marketplace/internal/services/marketplace"
)

// Handler управляет HTTP-запросами к покупкам.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики покупок.
type Service interface {
	CreatePurchase(ctx context.Context, buyerUID string, req models.CreatePurchaseRequest) (int, error)
	ListPurchases(ctx context.Context, buyerUID string) ([]*models.Purchase, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// Create godoc
// @Summary Купить публикацию
// @Description Фиксирует покупку опубликованной публикации каталога.
// @Tags Marketplace
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.CreatePurchaseRequest true "Данные покупки"
// @Success 200 {object} map[string]any "Покупка создана"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Публикация не найдена или не опубликована"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /marketplace/purchases [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.marketplace.purchases.create"
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

	var req models.CreatePurchaseRequest
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

	id, err := h.service.CreatePurchase(r.Context(), userUID, req)
	if err != nil {
		if errors.Is(err, marketservice.ErrListingNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("listing not found"))
			return
		}
		log.Error("failed to create purchase", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create purchase"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"purchase_id": id,
	}))
}

// List godoc
// @Summary Покупки пользователя
// @Description Возвращает покупки текущего пользователя.
// @Tags Marketplace
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} map[string]any "Список покупок"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /marketplace/purchases [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.marketplace.purchases.list"
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

	purchases, err := h.service.ListPurchases(r.Context(), userUID)
	if err != nil {
		log.Error("failed to list purchases", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list purchases"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"purchases": purchases,
	}))
}
