// Package portfolio реализует HTTP-обработчики портфелей пользователя.
//
// Один Handler обслуживает хранение портфелей и их анализ портфельным
// агентом: создание, просмотр, изменение и удаление портфеля, запуск
// анализа, оптимизации и оценки рисков, а также историю результатов.
package portfolio

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
	entservice "github.com/magabrotheeeer/agent-marketplace/internal/services/entitlement"
	portfolioservice "github.com/magabrotheeeer/agent-marketplace/internal/services/portfolio"
)

// Handler управляет HTTP-запросами к портфелям пользователя.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики портфелей.
type Service interface {
	Create(ctx context.Context, userUID string, req models.CreatePortfolioRequest) (int, error)
	Get(ctx context.Context, userUID string, id int) (*models.Portfolio, error)
	List(ctx context.Context, userUID string) ([]*models.Portfolio, error)
	Update(ctx context.Context, userUID string, id int, req models.CreatePortfolioRequest) error
	Remove(ctx context.Context, userUID string, id int) error
	Analyze(ctx context.Context, userUID, resultType string, input map[string]any) (*models.AnalysisRecord, error)
	GetAnalysis(ctx context.Context, userUID string, id int) (*models.AnalysisRecord, error)
	ListAnalyses(ctx context.Context, userUID, agentID, resultType string, limit, offset int) ([]*models.AnalysisRecord, error)
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
// @Summary Создать портфель
// @Description Создает портфель текущего пользователя.
// @Tags Portfolios
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.CreatePortfolioRequest true "Данные портфеля"
// @Success 200 {object} map[string]any "Портфель создан"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /portfolios [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.portfolio.create"
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

	var req models.CreatePortfolioRequest
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

	id, err := h.service.Create(r.Context(), userUID, req)
	if err != nil {
		log.Error("failed to create portfolio", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create portfolio"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"portfolio_id": id,
	}))
}

// List godoc
// @Summary Портфели пользователя
// @Description Возвращает портфели текущего пользователя, последние изменённые первыми.
// @Tags Portfolios
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} map[string]any "Список портфелей"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /portfolios [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.portfolio.list"
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

	portfolios, err := h.service.List(r.Context(), userUID)
	if err != nil {
		log.Error("failed to list portfolios", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list portfolios"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"portfolios": portfolios,
	}))
}

// Read godoc
// @Summary Портфель по идентификатору
// @Description Возвращает портфель текущего пользователя по идентификатору.
// @Tags Portfolios
// @Produce  json
// @Security BearerAuth
// @Param id path int true "Идентификатор портфеля"
// @Success 200 {object} map[string]any "Портфель"
// @Failure 400 {object} response.ErrorResponse "Некорректный идентификатор"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Портфель не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /portfolios/{id} [get]
func (h *Handler) Read(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.portfolio.read"
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
		log.Error("invalid portfolio id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid portfolio id"))
		return
	}

	portfolio, err := h.service.Get(r.Context(), userUID, id)
	if err != nil {
		if errors.Is(err, portfolioservice.ErrPortfolioNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("portfolio not found"))
			return
		}
		log.Error("failed to read portfolio", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read portfolio"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"portfolio": portfolio,
	}))
}

// Update godoc
// @Summary Изменить портфель
// @Description Полностью заменяет содержимое портфеля текущего пользователя.
// @Tags Portfolios
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path int true "Идентификатор портфеля"
// @Param request body models.CreatePortfolioRequest true "Новые данные портфеля"
// @Success 200 {object} response.Response "Портфель изменён"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Портфель не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /portfolios/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.portfolio.update"
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
		log.Error("invalid portfolio id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid portfolio id"))
		return
	}

	var req models.CreatePortfolioRequest
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

	if err := h.service.Update(r.Context(), userUID, id, req); err != nil {
		if errors.Is(err, portfolioservice.ErrPortfolioNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("portfolio not found"))
			return
		}
		log.Error("failed to update portfolio", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not update portfolio"))
		return
	}

	render.JSON(w, r, response.OK())
}

// Remove godoc
// @Summary Удалить портфель
// @Description Удаляет портфель текущего пользователя.
// @Tags Portfolios
// @Produce  json
// @Security BearerAuth
// @Param id path int true "Идентификатор портфеля"
// @Success 200 {object} response.Response "Портфель удалён"
// @Failure 400 {object} response.ErrorResponse "Некорректный идентификатор"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Портфель не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /portfolios/{id} [delete]
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.portfolio.remove"
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
		log.Error("invalid portfolio id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid portfolio id"))
		return
	}

	if err := h.service.Remove(r.Context(), userUID, id); err != nil {
		if errors.Is(err, portfolioservice.ErrPortfolioNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("portfolio not found"))
			return
		}
		log.Error("failed to remove portfolio", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not remove portfolio"))
		return
	}

	render.JSON(w, r, response.OK())
}

// Analyze godoc
// @Summary Проанализировать портфель
// @Description Запускает анализ портфеля портфельным агентом и сохраняет результат в истории.
// @Tags Portfolios
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.AnalyzePortfolioRequest true "Позиции и параметры анализа"
// @Success 200 {object} map[string]any "Результат анализа"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или вход агента"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Агент недоступен на тарифе или выключен"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /portfolios/analyze [post]
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	h.runAnalysis(w, r, "portfolio_analysis")
}

// Optimize godoc
// @Summary Оптимизировать портфель
// @Description Запускает оптимизацию портфеля портфельным агентом и сохраняет результат в истории.
// @Tags Portfolios
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.AnalyzePortfolioRequest true "Позиции и параметры оптимизации"
// @Success 200 {object} map[string]any "Результат оптимизации"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или вход агента"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Агент недоступен на тарифе или выключен"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /portfolios/optimize [post]
func (h *Handler) Optimize(w http.ResponseWriter, r *http.Request) {
	h.runAnalysis(w, r, "portfolio_optimization")
}

// Risk godoc
// @Summary Оценить риски портфеля
// @Description Запускает оценку рисков портфельным агентом и сохраняет результат в истории.
// @Tags Portfolios
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.AnalyzePortfolioRequest true "Позиции и параметры оценки"
// @Success 200 {object} map[string]any "Результат оценки рисков"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или вход агента"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Агент недоступен на тарифе или выключен"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /portfolios/risk [post]
func (h *Handler) Risk(w http.ResponseWriter, r *http.Request) {
	h.runAnalysis(w, r, "risk_analysis")
}

func (h *Handler) runAnalysis(w http.ResponseWriter, r *http.Request, resultType string) {
	const op = "handlers.portfolio.analyze"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("result_type", resultType),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req models.AnalyzePortfolioRequest
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

	record, err := h.service.Analyze(r.Context(), userUID, resultType, req.Input)
	if err != nil {
		switch {
		case errors.Is(err, entservice.ErrTierExcludesCapability):
			log.Info("agent not included in tier")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("agent is not available on your subscription tier"))
		case errors.Is(err, entservice.ErrCapabilityDisabled):
			log.Info("agent disabled by user")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("agent is disabled"))
		case errors.Is(err, portfolioservice.ErrAgentInvocation):
			log.Error("agent invocation failed", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("agent invocation failed"))
		default:
			log.Error("failed to analyze portfolio", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not analyze portfolio"))
		}
		return
	}

	log.Info("portfolio analysis completed", slog.String("user_uid", userUID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"analysis": record,
	}))
}

// ReadAnalysis godoc
// @Summary Результат анализа по идентификатору
// @Description Возвращает сохранённый результат анализа текущего пользователя.
// @Tags Portfolios
// @Produce  json
// @Security BearerAuth
// @Param id path int true "Идентификатор результата"
// @Success 200 {object} map[string]any "Результат анализа"
// @Failure 400 {object} response.ErrorResponse "Некорректный идентификатор"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Результат не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /portfolios/analysis/{id} [get]
func (h *Handler) ReadAnalysis(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.portfolio.read_analysis"
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
		log.Error("invalid analysis id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid analysis id"))
		return
	}

	analysis, err := h.service.GetAnalysis(r.Context(), userUID, id)
	if err != nil {
		if errors.Is(err, portfolioservice.ErrAnalysisNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("analysis not found"))
			return
		}
		log.Error("failed to read analysis", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read analysis"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"analysis": analysis,
	}))
}

// ListAnalyses godoc
// @Summary История анализов
// @Description Возвращает страницу истории анализов текущего пользователя с необязательными фильтрами.
// @Tags Portfolios
// @Produce  json
// @Security BearerAuth
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Param agent_id query string false "Фильтр по агенту"
// @Param result_type query string false "Фильтр по виду анализа"
// @Success 200 {object} map[string]any "История анализов"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /portfolios/analysis [get]
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.portfolio.list_analyses"
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

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	agentID := r.URL.Query().Get("agent_id")
	resultType := r.URL.Query().Get("result_type")

	analyses, err := h.service.ListAnalyses(r.Context(), userUID, agentID, resultType, limit, offset)
	if err != nil {
		log.Error("failed to list analyses", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list analyses"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"analyses": analyses,
	}))
}
