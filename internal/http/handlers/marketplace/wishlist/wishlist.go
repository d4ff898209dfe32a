// Package wishlist реализует HTTP-обработчики списка желаемого.
package wishlist

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

// Handler управляет HTTP-запросами к списку желаемого.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики списка желаемого.
type Service interface {
	AddToWishlist(ctx context.Context, userUID string, listingID int) error
	RemoveFromWishlist(ctx context.Context, userUID string, listingID int) error
	Wishlist(ctx context.Context, userUID string) ([]*models.Listing, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// Add godoc
// @Summary Добавить в список желаемого
// @Description Добавляет публикацию в список желаемого. Повторное добавление не является ошибкой.
// @Tags Marketplace
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.WishlistRequest true "Публикация"
// @Success 200 {object} response.Response "Публикация добавлена"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Публикация не найдена"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /marketplace/wishlist [post]
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.marketplace.wishlist.add"
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

	var req models.WishlistRequest
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

	if err := h.service.AddToWishlist(r.Context(), userUID, req.ListingID); err != nil {
		if errors.Is(err, marketservice.ErrListingNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("listing not found"))
			return
		}
		log.Error("failed to add wishlist item", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not add to wishlist"))
		return
	}

	render.JSON(w, r, response.OK())
}

// Remove godoc
// @Summary Убрать из списка желаемого
// @Description Удаляет публикацию из списка желаемого пользователя.
// @Tags Marketplace
// @Produce  json
// @Security BearerAuth
// @Param id path int true "Идентификатор публикации"
// @Success 200 {object} response.Response "Публикация удалена из списка"
// @Failure 400 {object} response.ErrorResponse "Некорректный идентификатор"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /marketplace/wishlist/{id} [delete]
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.marketplace.wishlist.remove"
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

	listingID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		log.Error("invalid listing id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid listing id"))
		return
	}

	if err := h.service.RemoveFromWishlist(r.Context(), userUID, listingID); err != nil {
		log.Error("failed to remove wishlist item", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not remove from wishlist"))
		return
	}

	render.JSON(w, r, response.OK())
}

// List godoc
// @Summary Список желаемого
// @Description Возвращает публикации из списка желаемого текущего пользователя.
// @Tags Marketplace
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} map[string]any "Список желаемого"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /marketplace/wishlist [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.marketplace.wishlist.list"
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

	listings, err := h.service.Wishlist(r.Context(), userUID)
	if err != nil {
		log.Error("failed to list wishlist", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list wishlist"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"wishlist": listings,
	}))
}
