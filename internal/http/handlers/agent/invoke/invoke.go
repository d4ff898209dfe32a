// Package invoke реализует HTTP-обработчик вызова агента.
//
// Перед вызовом проверяется доступ пользователя: тариф должен включать
// агента, а сам агент не должен быть выключен пользователем. Успешный
// вызов учитывается в помесячной статистике; сбой учёта не прерывает
// возврат результата.
package invoke

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/agent-marketplace/internal/agents"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/middlewarectx"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/response"
	"github.com/magabrotheeeer/agent-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/agent-marketplace/internal/models"
	entservice "github.com/magabrotheeeer/agent-marketplace/internal/services/entitlement"
)

// Handler управляет HTTP-запросами на вызов агентов.
type Handler struct {
	log          *slog.Logger
	entitlements Entitlements
	registry     Registry
	usage        UsageRecorder
}

// Entitlements описывает интерфейс проверки доступа к агенту.
type Entitlements interface {
	CheckAccess(ctx context.Context, userUID, agentID string) (*entservice.Access, error)
}

// Registry описывает интерфейс получения бэкенда агента.
type Registry interface {
	Get(agentID string) (agents.Backend, error)
}

// UsageRecorder описывает интерфейс учёта вызовов.
type UsageRecorder interface {
	Record(ctx context.Context, grantID, subscriptionID, tokens int) error
}

// New создает новый Handler с переданными зависимостями.
func New(log *slog.Logger, entitlements Entitlements, registry Registry, usage UsageRecorder) *Handler {
	return &Handler{
		log:          log,
		entitlements: entitlements,
		registry:     registry,
		usage:        usage,
	}
}

// ServeHTTP godoc
// @Summary Вызвать агента
// @Description Проверяет доступ по тарифу, вызывает бэкенд агента и учитывает вызов в статистике.
// @Tags Agents
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path string true "Идентификатор агента"
// @Param request body models.InvokeAgentRequest true "Входные данные агента"
// @Success 200 {object} map[string]any "Результат вызова"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или вход агента"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Агент недоступен на тарифе или выключен"
// @Failure 404 {object} response.ErrorResponse "Неизвестный агент"
// @Failure 500 {object} response.ErrorResponse "Ошибка вызова агента"
// @Router /agents/{id}/invoke [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.agent.invoke"
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

	var req models.InvokeAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	access, err := h.entitlements.CheckAccess(r.Context(), userUID, agentID)
	if err != nil {
		switch {
		case errors.Is(err, entservice.ErrUnknownAgent):
			log.Info("unknown agent requested")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("unknown agent"))
		case errors.Is(err, entservice.ErrTierExcludesCapability):
			log.Info("agent not included in tier")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("agent is not available on your subscription tier"))
		case errors.Is(err, entservice.ErrCapabilityDisabled):
			log.Info("agent disabled by user")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("agent is disabled"))
		default:
			log.Error("failed to check access", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not check access"))
		}
		return
	}

	backend, err := h.registry.Get(agentID)
	if err != nil {
		log.Error("failed to get agent backend", sl.Err(err))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("unknown agent"))
		return
	}

	result, err := backend.Invoke(r.Context(), req.Input)
	if err != nil {
		log.Error("agent invocation failed", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("agent invocation failed"))
		return
	}

	if access.Grant != nil && access.Subscription != nil {
		tokens := agents.EstimateTokens(result)
		if err := h.usage.Record(r.Context(), access.Grant.ID, access.Subscription.ID, tokens); err != nil {
			log.Warn("failed to record usage", sl.Err(err))
		}
	}

	log.Info("agent invoked", slog.String("user_uid", userUID))
	render.JSON(w, r, response.OKWithData(result))
}
