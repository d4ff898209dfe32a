// Package services ведёт помесячный учёт использования агентов.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/agent-marketplace/internal/models"
)

// UsageRepository описывает методы работы с учётом использования.
type UsageRepository interface {
	IncrementUsage(ctx context.Context, rec models.UsageRecord) error
	ListUsage(ctx context.Context, userUID string) ([]*models.MonthlyUsage, error)
}

// UsageService агрегирует запросы к агентам в помесячные счётчики.
type UsageService struct {
	repo UsageRepository
	log  *slog.Logger
}

// NewUsageService создает новый экземпляр UsageService.
func NewUsageService(repo UsageRepository, log *slog.Logger) *UsageService {
	return &UsageService{
		repo: repo,
		log:  log,
	}
}

// Record фиксирует один запрос к агенту и оценку потреблённых токенов.
// Счётчик привязан к гранту и подписке, действовавшим в момент запроса.
func (s *UsageService) Record(ctx context.Context, grantID, subscriptionID, tokens int) error {
	const op = "services.usage.Record"

	now := time.Now().UTC()
	rec := models.UsageRecord{
		UserAgentID:    grantID,
		SubscriptionID: subscriptionID,
		RequestCount:   1,
		TokenCount:     tokens,
		LastUsed:       now,
		Month:          int(now.Month()),
		Year:           now.Year(),
	}
	if err := s.repo.IncrementUsage(ctx, rec); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Stats собирает статистику использования по всем агентам пользователя.
// Строки группируются по агенту с подсчётом итогов за всё время.
func (s *UsageService) Stats(ctx context.Context, userUID string) ([]*models.UsageStats, error) {
	const op = "services.usage.Stats"

	rows, err := s.repo.ListUsage(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var result []*models.UsageStats
	byAgent := make(map[string]*models.UsageStats)
	for _, row := range rows {
		stats, ok := byAgent[row.AgentID]
		if !ok {
			stats = &models.UsageStats{AgentID: row.AgentID}
			byAgent[row.AgentID] = stats
			result = append(result, stats)
		}
		stats.TotalRequests += row.Requests
		stats.TotalTokens += row.Tokens
		stats.Monthly = append(stats.Monthly, *row)
	}
	return result, nil
}
