package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/agent-marketplace/internal/models"
)

// IncrementUsage увеличивает счётчики использования агента за текущий месяц.
// Запись за месяц создаётся при первом обращении.
func (s *Storage) IncrementUsage(ctx context.Context, rec models.UsageRecord) error {
	const op = "storage.IncrementUsage"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO agent_usage (user_agent_id, subscription_id, request_count,
			      token_count, last_used, month, year)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (user_agent_id, subscription_id, month, year)
			  DO UPDATE SET request_count = agent_usage.request_count + EXCLUDED.request_count,
			      token_count = agent_usage.token_count + EXCLUDED.token_count,
			      last_used = EXCLUDED.last_used`
	_, err := s.DB.ExecContext(ctx, query,
		rec.UserAgentID, rec.SubscriptionID, rec.RequestCount,
		rec.TokenCount, rec.LastUsed, rec.Month, rec.Year)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListUsage возвращает помесячную статистику использования агентов пользователем.
func (s *Storage) ListUsage(ctx context.Context, userUID string) ([]*models.MonthlyUsage, error) {
	const op = "storage.ListUsage"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ua.agent_id, au.month, au.year, au.request_count, au.token_count, au.last_used
			  FROM agent_usage au
			  JOIN user_agents ua ON ua.id = au.user_agent_id
			  WHERE ua.user_uid = $1
			  ORDER BY au.year DESC, au.month DESC, ua.agent_id`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.MonthlyUsage
	for rows.Next() {
		var item models.MonthlyUsage
		if err := rows.Scan(&item.AgentID, &item.Month, &item.Year,
			&item.Requests, &item.Tokens, &item.LastUsed); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
