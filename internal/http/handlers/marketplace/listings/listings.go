// Package listings реализует HTTP-обработчики публикаций каталога маркетплейса.
//
// Один Handler обслуживает весь жизненный цикл публикации: создание
// черновика, просмотр, листинг каталога, редактирование и удаление
// продавцом. Черновики не видны в общем списке.
package listings

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

// Handler управляет HTTP-запросами к публикациям каталога.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики публикаций.
type Service interface {
	CreateListing(ctx context.Context, sellerUID string, req models.CreateListingRequest) (int, error)
	GetListing(ctx context.Context, id int) (*models.Listing, error)
	ListListings(ctx context.Context, limit, offset int) ([]*models.Listing, error)
	UpdateListing(ctx context.Context, sellerUID string, id int, req models.UpdateListingRequest) error
	RemoveListing(ctx context.Context, sellerUID string, id int) error
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
// @Summary Создать публикацию
// @Description Создает черновик публикации текущего продавца.
// @Tags Marketplace
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.CreateListingRequest true "Данные публикации"
// @Success 200 {object} map[string]any "Публикация создана"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /marketplace/listings [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.marketplace.listings.create"
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

	var req models.CreateListingRequest
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

	id, err := h.service.CreateListing(r.Context(), userUID, req)
	if err != nil {
		log.Error("failed to create listing", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create listing"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"listing_id": id,
	}))
}

// List godoc
// @Summary Каталог публикаций
// @Description Возвращает страницу опубликованных публикаций.
// @Tags Marketplace
// @Produce  json
// @Security BearerAuth
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} map[string]any "Страница каталога"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /marketplace/listings [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.marketplace.listings.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	listings, err := h.service.ListListings(r.Context(), limit, offset)
	if err != nil {
		log.Error("failed to list listings", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list listings"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"listings": listings,
	}))
}

// Read godoc
// @Summary Публикация по идентификатору
// @Description Возвращает публикацию каталога по её идентификатору.
// @Tags Marketplace
// @Produce  json
// @Security BearerAuth
// @Param id path int true "Идентификатор публикации"
// @Success 200 {object} map[string]any "Публикация"
// @Failure 400 {object} response.ErrorResponse "Некорректный идентификатор"
// @Failure 404 {object} response.ErrorResponse "Публикация не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /marketplace/listings/{id} [get]
func (h *Handler) Read(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.marketplace.listings.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		log.Error("invalid listing id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid listing id"))
		return
	}

	listing, err := h.service.GetListing(r.Context(), id)
	if err != nil {
		if errors.Is(err, marketservice.ErrListingNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("listing not found"))
			return
		}
		log.Error("failed to read listing", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read listing"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"listing": listing,
	}))
}

// Update godoc
// @Summary Изменить публикацию
// @Description Изменяет публикацию текущего продавца. Пустые поля остаются без изменений.
// @Tags Marketplace
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path int true "Идентификатор публикации"
// @Param request body models.UpdateListingRequest true "Изменяемые поля"
// @Success 200 {object} response.Response "Публикация изменена"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Публикация другого продавца"
// @Failure 404 {object} response.ErrorResponse "Публикация не найдена"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /marketplace/listings/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.marketplace.listings.update"
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

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		log.Error("invalid listing id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid listing id"))
		return
	}

	var req models.UpdateListingRequest
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

	if err := h.service.UpdateListing(r.Context(), userUID, id, req); err != nil {
		switch {
		case errors.Is(err, marketservice.ErrListingNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("listing not found"))
		case errors.Is(err, marketservice.ErrNotListingSeller):
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("listing belongs to another seller"))
		default:
			log.Error("failed to update listing", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not update listing"))
		}
		return
	}

	render.JSON(w, r, response.OK())
}

// Remove godoc
// @Summary Удалить публикацию
// @Description Удаляет публикацию текущего продавца.
// @Tags Marketplace
// @Produce  json
// @Security BearerAuth
// @Param id path int true "Идентификатор публикации"
// @Success 200 {object} response.Response "Публикация удалена"
// @Failure 400 {object} response.ErrorResponse "Некорректный идентификатор"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Публикация не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /marketplace/listings/{id} [delete]
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.marketplace.listings.remove"
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

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		log.Error("invalid listing id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid listing id"))
		return
	}

	if err := h.service.RemoveListing(r.Context(), userUID, id); err != nil {
		if errors.Is(err, marketservice.ErrListingNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("listing not found"))
			return
		}
		log.Error("failed to remove listing", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not remove listing"))
		return
	}

	render.JSON(w, r, response.OK())
}
