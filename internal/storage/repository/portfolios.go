package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/agent-marketplace/internal/models"
)

// CreatePortfolio вставляет новый портфель и возвращает его ID.
func (s *Storage) CreatePortfolio(ctx context.Context, portfolio models.Portfolio) (int, error) {
	const op = "storage.CreatePortfolio"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	positions, err := json.Marshal(portfolio.Positions)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO portfolios (user_uid, name, description, positions, is_public)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	var newID int
	err = s.DB.QueryRowContext(ctx, query,
		portfolio.UserUID, portfolio.Name, portfolio.Description, positions, portfolio.IsPublic).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetPortfolio возвращает портфель пользователя по ID.
// Если портфеля нет или он принадлежит другому пользователю,
// возвращает nil без ошибки.
func (s *Storage) GetPortfolio(ctx context.Context, userUID string, id int) (*models.Portfolio, error) {
	const op = "storage.GetPortfolio"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, name, description, positions, is_public, created_at, updated_at
			  FROM portfolios
			  WHERE id = $1
			    AND user_uid = $2`
	row := s.DB.QueryRowContext(ctx, query, id, userUID)

	portfolio, err := scanPortfolio(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return portfolio, nil
}

// ListPortfolios возвращает портфели пользователя, последние изменённые первыми.
func (s *Storage) ListPortfolios(ctx context.Context, userUID string) ([]*models.Portfolio, error) {
	const op = "storage.ListPortfolios"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, name, description, positions, is_public, created_at, updated_at
			  FROM portfolios
			  WHERE user_uid = $1
			  ORDER BY updated_at DESC`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Portfolio
	for rows.Next() {
		portfolio, err := scanPortfolio(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, portfolio)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdatePortfolio обновляет портфель пользователя
// и возвращает количество изменённых строк.
func (s *Storage) UpdatePortfolio(ctx context.Context, portfolio models.Portfolio) (int, error) {
	const op = "storage.UpdatePortfolio"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	positions, err := json.Marshal(portfolio.Positions)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE portfolios
			  SET name = $1, description = $2, positions = $3, is_public = $4, updated_at = NOW()
			  WHERE id = $5
			    AND user_uid = $6`
	result, err := s.DB.ExecContext(ctx, query,
		portfolio.Name, portfolio.Description, positions, portfolio.IsPublic,
		portfolio.ID, portfolio.UserUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// RemovePortfolio удаляет портфель пользователя
// и возвращает количество удалённых строк.
func (s *Storage) RemovePortfolio(ctx context.Context, userUID string, id int) (int, error) {
	const op = "storage.RemovePortfolio"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM portfolios
			  WHERE id = $1
			    AND user_uid = $2`
	result, err := s.DB.ExecContext(ctx, query, id, userUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// CreateAnalysis сохраняет результат анализа и возвращает его ID.
func (s *Storage) CreateAnalysis(ctx context.Context, analysis models.AnalysisRecord) (int, error) {
	const op = "storage.CreateAnalysis"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	inputData, err := json.Marshal(analysis.InputData)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	resultData, err := json.Marshal(analysis.ResultData)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO analysis_results (user_uid, agent_id, result_type, input_data, result_data, is_saved, name)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING id`
	var newID int
	err = s.DB.QueryRowContext(ctx, query,
		analysis.UserUID, analysis.AgentID, analysis.ResultType,
		inputData, resultData, analysis.IsSaved, analysis.Name).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetAnalysis возвращает результат анализа пользователя по ID.
// Если результата нет, возвращает nil без ошибки.
func (s *Storage) GetAnalysis(ctx context.Context, userUID string, id int) (*models.AnalysisRecord, error) {
	const op = "storage.GetAnalysis"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := analysisColumns + `
			  WHERE id = $1
			    AND user_uid = $2`
	row := s.DB.QueryRowContext(ctx, query, id, userUID)

	analysis, err := scanAnalysis(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return analysis, nil
}

// ListAnalyses возвращает результаты анализа пользователя, новые первыми.
// Необязательные фильтры по агенту и виду анализа.
func (s *Storage) ListAnalyses(ctx context.Context, userUID, agentID, resultType string,
	limit, offset int) ([]*models.AnalysisRecord, error) {
	const op = "storage.ListAnalyses"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := analysisColumns + `
			  WHERE user_uid = $1
			    AND ($2 = '' OR agent_id = $2)
			    AND ($3 = '' OR result_type = $3)
			  ORDER BY created_at DESC
			  LIMIT $4 OFFSET $5`
	rows, err := s.DB.QueryContext(ctx, query, userUID, agentID, resultType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.AnalysisRecord
	for rows.Next() {
		analysis, err := scanAnalysis(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, analysis)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

const analysisColumns = `SELECT id, user_uid, agent_id, result_type, input_data, result_data, is_saved, name, created_at
			  FROM analysis_results`

func scanPortfolio(scan func(dest ...any) error) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	var positions []byte
	if err := scan(&portfolio.ID, &portfolio.UserUID, &portfolio.Name, &portfolio.Description,
		&positions, &portfolio.IsPublic, &portfolio.CreatedAt, &portfolio.UpdatedAt); err != nil {
		return nil, err
	}
	if len(positions) > 0 {
		if err := json.Unmarshal(positions, &portfolio.Positions); err != nil {
			return nil, err
		}
	}
	return &portfolio, nil
}

func scanAnalysis(scan func(dest ...any) error) (*models.AnalysisRecord, error) {
	var analysis models.AnalysisRecord
	var inputData, resultData []byte
	if err := scan(&analysis.ID, &analysis.UserUID, &analysis.AgentID, &analysis.ResultType,
		&inputData, &resultData, &analysis.IsSaved, &analysis.Name, &analysis.CreatedAt); err != nil {
		return nil, err
	}
	if len(inputData) > 0 {
		if err := json.Unmarshal(inputData, &analysis.InputData); err != nil {
			return nil, err
		}
	}
	if len(resultData) > 0 {
		if err := json.Unmarshal(resultData, &analysis.ResultData); err != nil {
			return nil, err
		}
	}
	return &analysis, nil
}
