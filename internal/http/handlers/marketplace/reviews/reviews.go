// Package reviews реализует HTTP-обработчики отзывов о публикациях.
//
// Отзыв принимается только от покупателя с завершённой покупкой публикации.
package reviews

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/agent-marketplace/internal/http/middlewarectx"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/response"
	"github.com/magabrotheeeer/agent-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/agent-marketplace/internal/models"
	marketservice "github.com/magabrotheeeer/agent-marketplace/internal/services/marketplace"
)

// Handler управляет HTTP-запросами к отзывам.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики отзывов.
type Service interface {
	CreateReview(ctx context.Context, reviewerUID string, req models.CreateReviewRequest) (int, error)
	ListReviews(ctx context.Context, listingID int) ([]*models.Review, error)
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
// @Summary Создать отзыв
// @Description Создает отзыв о купленной публикации. Повторный отзыв того же автора обновляет оценку и текст.
// @Tags Marketplace
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.CreateReviewRequest true "Данные отзыва"
// @Success 200 {object} map[string]any "Отзыв создан"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Нет завершённой покупки публикации"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /marketplace/reviews [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.marketplace.reviews.create"
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

	var req models.CreateReviewRequest
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

	id, err := h.service.CreateReview(r.Context(), userUID, req)
	if err != nil {
		if errors.Is(err, marketservice.ErrPurchaseRequired) {
			log.Info("review without completed purchase rejected")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("review requires a completed purchase of the listing"))
			return
		}
		log.Error("failed to create review", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create review"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"review_id": id,
	}))
}

// List godoc
// @Summary Отзывы о публикации
// @Description Возвращает отзывы о публикации каталога.
// @Tags Marketplace
// @Produce  json
// @Security BearerAuth
// @Param id path int true "Идентификатор публикации"
// @Success 200 {object} map[string]any "Список отзывов"
// @Failure 400 {object} response.ErrorResponse "Некорректный идентификатор"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /marketplace/listings/{id}/reviews [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.marketplace.reviews.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	listingID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		log.Error("invalid listing id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid listing id"))
		return
	}

	reviews, err := h.service.ListReviews(r.Context(), listingID)
	if err != nil {
		log.Error("failed to list reviews", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list reviews"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"reviews": reviews,
	}))
}
