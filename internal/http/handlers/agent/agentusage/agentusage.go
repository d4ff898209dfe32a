// Package agentusage реализует HTTP-обработчик статистики использования агентов.
package agentusage

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

// Handler управляет HTTP-запросами на чтение статистики использования.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс чтения статистики использования.
type Service interface {
	Stats(ctx context.Context, userUID string) ([]*models.UsageStats, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Статистика использования агентов
// @Description Возвращает помесячную статистику вызовов агентов пользователя с итогами по каждому агенту.
// @Tags Agents
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} map[string]any "Статистика использования"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /agents/usage [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.agent.agentusage"
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

	stats, err := h.service.Stats(r.Context(), userUID)
	if err != nil {
		log.Error("failed to read usage stats", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read usage stats"))
		return
	}

	log.Info("usage stats listed", slog.Int("agents", len(stats)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"usage": stats,
	}))
}
