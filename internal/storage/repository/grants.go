package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/agent-marketplace/internal/models"
)

// UpsertGrant создаёт запись о выданном агенте или включает уже существующую.
// Пользовательские настройки при повторной выдаче не перетираются.
func (s *Storage) UpsertGrant(ctx context.Context, userUID, agentID string) error {
	const op = "storage.UpsertGrant"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO user_agents (user_uid, agent_id, is_enabled, settings)
			  VALUES ($1, $2, true, '{}'::jsonb)
			  ON CONFLICT (user_uid, agent_id)
			  DO UPDATE SET is_enabled = true`
	if _, err := s.DB.ExecContext(ctx, query, userUID, agentID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetGrantEnabled включает или выключает выданного агента
// и возвращает количество изменённых строк.
func (s *Storage) SetGrantEnabled(ctx context.Context, userUID, agentID string, enabled bool) (int, error) {
	const op = "storage.SetGrantEnabled"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE user_agents
			  SET is_enabled = $1
			  WHERE user_uid = $2
			    AND agent_id = $3`
	result, err := s.DB.ExecContext(ctx, query, enabled, userUID, agentID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// GetGrant возвращает запись о выданном агенте.
// Если записи нет, возвращает nil без ошибки.
func (s *Storage) GetGrant(ctx context.Context, userUID, agentID string) (*models.CapabilityGrant, error) {
	const op = "storage.GetGrant"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, agent_id, is_enabled, settings, created_at
			  FROM user_agents
			  WHERE user_uid = $1
			    AND agent_id = $2`
	row := s.DB.QueryRowContext(ctx, query, userUID, agentID)

	grant, err := scanGrant(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return grant, nil
}

// ListGrants возвращает все записи о выданных пользователю агентах.
func (s *Storage) ListGrants(ctx context.Context, userUID string) ([]*models.CapabilityGrant, error) {
	const op = "storage.ListGrants"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, agent_id, is_enabled, settings, created_at
			  FROM user_agents
			  WHERE user_uid = $1
			  ORDER BY agent_id`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.CapabilityGrant
	for rows.Next() {
		grant, err := scanGrant(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, grant)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func scanGrant(scan func(dest ...any) error) (*models.CapabilityGrant, error) {
	var grant models.CapabilityGrant
	var settings []byte
	if err := scan(&grant.ID, &grant.UserUID, &grant.AgentID, &grant.IsEnabled,
		&settings, &grant.CreatedAt); err != nil {
		return nil, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &grant.Settings); err != nil {
			return nil, err
		}
	}
	return &grant, nil
}
