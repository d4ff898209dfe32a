// Package toggle реализует HTTP-обработчик включения и выключения агента.
//
// Пользователь может выключить агента, доступного на его тарифе, и включить
// его обратно. Агентов за пределами тарифа переключать нельзя.
package toggle

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/agent-marketplace/internal/http/middlewarectx"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/response"
	"github.com/magabrotheeeer/agent-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/agent-marketplace/internal/models"
	entservice "github.com/magabrotheeeer/agent-marketplace/internal/services/entitlement"
)

// Handler управляет HTTP-запросами на переключение агентов.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс переключения агента.
type Service interface {
	Toggle(ctx context.Context, userUID, agentID string, enabled bool) error
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
// @Summary Включить или выключить агента
// @Description Переключает доступность агента для пользователя в пределах его тарифа.
// @Tags Agents
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path string true "Идентификатор агента"
// @Param request body models.ToggleAgentRequest true "Новое состояние агента"
// @Success 200 {object} response.Response "Состояние изменено"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Агент недоступен на тарифе"
// @Failure 404 {object} response.ErrorResponse "Неизвестный агент"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /agents/{id}/toggle [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.agent.toggle"
	agentID := chi.URLParam(r, "id")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("agent_id", agentID),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req models.ToggleAgentRequest
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

	if err := h.service.Toggle(r.Context(), userUID, agentID, *req.Enabled); err != nil {
		switch {
		case errors.Is(err, entservice.ErrUnknownAgent):
			log.Info("unknown agent requested")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("unknown agent"))
		case errors.Is(err, entservice.ErrTierExcludesCapability):
			log.Info("agent not included in tier")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("agent is not available on your subscription tier"))
		default:
			log.Error("failed to toggle agent", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not toggle agent"))
		}
		return
	}

	log.Info("agent toggled", slog.Bool("enabled", *req.Enabled))
	render.JSON(w, r, response.OK())
}
