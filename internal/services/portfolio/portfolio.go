// Package services реализует работу с портфелями пользователей: хранение
// портфелей и историю результатов анализа портфельным агентом.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/agent-marketplace/internal/agents"
	"github.com/magabrotheeeer/agent-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/agent-marketplace/internal/models"
	entservice "github.com/magabrotheeeer/agent-marketplace/internal/services/entitlement"
)

// Идентификатор агента, обслуживающего портфельные операции.
const portfolioAgentID = "portfolio_agent"

// Ошибки бизнес-логики портфелей.
var (
	ErrPortfolioNotFound = errors.New("portfolio not found")
	ErrAnalysisNotFound  = errors.New("analysis not found")
	ErrUnknownAnalysis   = errors.New("unknown analysis type")
	ErrAgentInvocation   = errors.New("agent invocation failed")
)

// Виды анализа, которые выполняет портфельный агент.
var analysisTypes = map[string]bool{
	"portfolio_analysis":     true,
	"portfolio_optimization": true,
	"risk_analysis":          true,
}

// PortfolioRepository описывает методы работы с портфелями в хранилище.
type PortfolioRepository interface {
	CreatePortfolio(ctx context.Context, portfolio models.Portfolio) (int, error)
	GetPortfolio(ctx context.Context, userUID string, id int) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context, userUID string) ([]*models.Portfolio, error)
	UpdatePortfolio(ctx context.Context, portfolio models.Portfolio) (int, error)
	RemovePortfolio(ctx context.Context, userUID string, id int) (int, error)
	CreateAnalysis(ctx context.Context, analysis models.AnalysisRecord) (int, error)
	GetAnalysis(ctx context.Context, userUID string, id int) (*models.AnalysisRecord, error)
	ListAnalyses(ctx context.Context, userUID, agentID, resultType string, limit, offset int) ([]*models.AnalysisRecord, error)
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

// PortfolioService управляет портфелями и результатами их анализа.
type PortfolioService struct {
	repo         PortfolioRepository
	entitlements Entitlements
	registry     Registry
	usage        UsageRecorder
	log          *slog.Logger
}

// NewPortfolioService создает новый экземпляр PortfolioService.
func NewPortfolioService(repo PortfolioRepository, entitlements Entitlements,
	registry Registry, usage UsageRecorder, log *slog.Logger) *PortfolioService {
	return &PortfolioService{
		repo:         repo,
		entitlements: entitlements,
		registry:     registry,
		usage:        usage,
		log:          log,
	}
}

// Create создаёт портфель пользователя.
func (s *PortfolioService) Create(ctx context.Context, userUID string, req models.CreatePortfolioRequest) (int, error) {
	const op = "services.portfolio.Create"

	id, err := s.repo.CreatePortfolio(ctx, models.Portfolio{
		UserUID:     userUID,
		Name:        req.Name,
		Description: req.Description,
		Positions:   req.Positions,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("portfolio created", "portfolio_id", id, "user_uid", userUID)
	return id, nil
}

// Get возвращает портфель пользователя по идентификатору.
func (s *PortfolioService) Get(ctx context.Context, userUID string, id int) (*models.Portfolio, error) {
	const op = "services.portfolio.Get"

	portfolio, err := s.repo.GetPortfolio(ctx, userUID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if portfolio == nil {
		return nil, ErrPortfolioNotFound
	}
	return portfolio, nil
}

// List возвращает портфели пользователя, последние изменённые первыми.
func (s *PortfolioService) List(ctx context.Context, userUID string) ([]*models.Portfolio, error) {
	const op = "services.portfolio.List"

	portfolios, err := s.repo.ListPortfolios(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return portfolios, nil
}

// Update полностью заменяет содержимое портфеля пользователя.
func (s *PortfolioService) Update(ctx context.Context, userUID string, id int, req models.CreatePortfolioRequest) error {
	const op = "services.portfolio.Update"

	rows, err := s.repo.UpdatePortfolio(ctx, models.Portfolio{
		ID:          id,
		UserUID:     userUID,
		Name:        req.Name,
		Description: req.Description,
		Positions:   req.Positions,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return ErrPortfolioNotFound
	}
	return nil
}

// Remove удаляет портфель пользователя.
func (s *PortfolioService) Remove(ctx context.Context, userUID string, id int) error {
	const op = "services.portfolio.Remove"

	rows, err := s.repo.RemovePortfolio(ctx, userUID, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return ErrPortfolioNotFound
	}
	s.log.Info("portfolio removed", "portfolio_id", id, "user_uid", userUID)
	return nil
}

// Analyze выполняет анализ портфеля указанного вида. Доступ проверяется
// по тарифу, результат сохраняется в истории анализов, а вызов учитывается
// в статистике; сбой учёта не прерывает возврат результата.
func (s *PortfolioService) Analyze(ctx context.Context, userUID, resultType string,
	input map[string]any) (*models.AnalysisRecord, error) {
	const op = "services.portfolio.Analyze"

	if !analysisTypes[resultType] {
		return nil, ErrUnknownAnalysis
	}

	access, err := s.entitlements.CheckAccess(ctx, userUID, portfolioAgentID)
	if err != nil {
		return nil, err
	}

	backend, err := s.registry.Get(portfolioAgentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result, err := backend.Invoke(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAgentInvocation, err)
	}

	record := models.AnalysisRecord{
		UserUID:    userUID,
		AgentID:    portfolioAgentID,
		ResultType: resultType,
		InputData:  input,
		ResultData: result.Data,
	}
	id, err := s.repo.CreateAnalysis(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	record.ID = id

	if access.Grant != nil && access.Subscription != nil {
		tokens := agents.EstimateTokens(result)
		if err := s.usage.Record(ctx, access.Grant.ID, access.Subscription.ID, tokens); err != nil {
			s.log.Warn("failed to record usage", sl.Err(err))
		}
	}

	s.log.Info("portfolio analyzed",
		slog.String("user_uid", userUID), slog.String("result_type", resultType))
	return &record, nil
}

// GetAnalysis возвращает сохранённый результат анализа пользователя.
func (s *PortfolioService) GetAnalysis(ctx context.Context, userUID string, id int) (*models.AnalysisRecord, error) {
	const op = "services.portfolio.GetAnalysis"

	analysis, err := s.repo.GetAnalysis(ctx, userUID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if analysis == nil {
		return nil, ErrAnalysisNotFound
	}
	return analysis, nil
}

// ListAnalyses возвращает страницу истории анализов пользователя
// с необязательными фильтрами по агенту и виду анализа.
func (s *PortfolioService) ListAnalyses(ctx context.Context, userUID, agentID, resultType string,
	limit, offset int) ([]*models.AnalysisRecord, error) {
	const op = "services.portfolio.ListAnalyses"

	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	analyses, err := s.repo.ListAnalyses(ctx, userUID, agentID, resultType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return analyses, nil
}
