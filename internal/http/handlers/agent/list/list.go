// Package list реализует HTTP-обработчик списка агентов пользователя.
//
// Для каждого агента возвращается минимальный тариф и признак доступности
// с учётом текущей подписки и пользовательских выключений.
package list

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

// Handler управляет HTTP-запросами на чтение списка агентов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс чтения списка агентов.
type Service interface {
	ListAgents(ctx context.Context, userUID string) ([]models.AgentInfo, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Список агентов
// @Description Возвращает всех агентов каталога с минимальным тарифом и признаком доступности для пользователя.
// @Tags Agents
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} map[string]any "Список агентов"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /agents [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.agent.list"
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

	agents, err := h.service.ListAgents(r.Context(), userUID)
	if err != nil {
		log.Error("failed to list agents", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list agents"))
		return
	}

	log.Info("agents listed", slog.Int("count", len(agents)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"agents": agents,
	}))
}
