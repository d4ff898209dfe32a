package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/agent-marketplace/internal/models"
)

// CreateSubscription вставляет новую запись подписки и возвращает её ID.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (int, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_uid, tier, status, is_active, auto_renew,
			      stripe_customer_id, stripe_subscription_id, started_at, ended_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		sub.UserUID, sub.Tier, sub.Status, sub.IsActive, sub.AutoRenew,
		sub.StripeCustomerID, sub.StripeSubscriptionID, sub.StartedAt, sub.EndedAt).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetActiveSubscription возвращает активную подписку пользователя.
// Если активной подписки нет, возвращает nil без ошибки.
func (s *Storage) GetActiveSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.GetActiveSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := subscriptionColumns + `
			  WHERE user_uid = $1
			    AND is_active = true
			  LIMIT 1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// GetSubscriptionByCustomerRef возвращает последнюю подписку
// по идентификатору плательщика у провайдера.
// Если такой подписки нет, возвращает nil без ошибки.
func (s *Storage) GetSubscriptionByCustomerRef(ctx context.Context, customerRef string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByCustomerRef"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := subscriptionColumns + `
			  WHERE stripe_customer_id = $1
			  ORDER BY id DESC
			  LIMIT 1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, customerRef))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// GetSubscriptionBySubscriptionRef возвращает подписку
// по идентификатору подписки у провайдера.
// Если такой подписки нет, возвращает nil без ошибки.
func (s *Storage) GetSubscriptionBySubscriptionRef(ctx context.Context, subscriptionRef string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionBySubscriptionRef"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := subscriptionColumns + `
			  WHERE stripe_subscription_id = $1
			  ORDER BY id DESC
			  LIMIT 1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, subscriptionRef))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// UpdateSubscription обновляет запись подписки по её ID
// и возвращает количество изменённых строк.
func (s *Storage) UpdateSubscription(ctx context.Context, sub *models.Subscription) (int, error) {
	const op = "storage.UpdateSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET tier = $1, status = $2, is_active = $3, auto_renew = $4,
			      stripe_customer_id = $5, stripe_subscription_id = $6, ended_at = $7
			  WHERE id = $8`
	result, err := s.DB.ExecContext(ctx, query,
		sub.Tier, sub.Status, sub.IsActive, sub.AutoRenew,
		sub.StripeCustomerID, sub.StripeSubscriptionID, sub.EndedAt, sub.ID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ActivateBasicSubscription создаёт активную базовую подписку пользователю,
// если у него ещё нет активной подписки. Возвращает true, если запись
// была создана. Частичный уникальный индекс по (user_uid) WHERE is_active
// гарантирует не более одной активной подписки даже при гонке.
func (s *Storage) ActivateBasicSubscription(ctx context.Context, userUID string) (bool, error) {
	const op = "storage.ActivateBasicSubscription"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_uid, tier, status, is_active, auto_renew, started_at)
			  SELECT $1, $2, $3, true, false, NOW()
			  WHERE NOT EXISTS (
			      SELECT 1 FROM subscriptions WHERE user_uid = $1 AND is_active = true
			  )`
	result, err := s.DB.ExecContext(ctx, query, userUID, models.TierBasic, models.StatusBasic)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// LatestStripeCustomerRef возвращает последний идентификатор плательщика
// пользователя у провайдера, чтобы переиспользовать его при новой подписке.
func (s *Storage) LatestStripeCustomerRef(ctx context.Context, userUID string) (string, error) {
	const op = "storage.LatestStripeCustomerRef"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT stripe_customer_id
			  FROM subscriptions
			  WHERE user_uid = $1
			    AND stripe_customer_id IS NOT NULL
			  ORDER BY id DESC
			  LIMIT 1`
	var customerRef string
	err := s.DB.QueryRowContext(ctx, query, userUID).Scan(&customerRef)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return customerRef, nil
}

const subscriptionColumns = `SELECT id, user_uid, tier, status, is_active, auto_renew,
			      stripe_customer_id, stripe_subscription_id, started_at, ended_at
			  FROM subscriptions`

func scanSubscription(row *sql.Row) (*models.Subscription, error) {
	var sub models.Subscription
	var customerRef, subscriptionRef sql.NullString
	var endedAt sql.NullTime
	if err := row.Scan(&sub.ID, &sub.UserUID, &sub.Tier, &sub.Status, &sub.IsActive,
		&sub.AutoRenew, &customerRef, &subscriptionRef, &sub.StartedAt, &endedAt); err != nil {
		return nil, err
	}
	if customerRef.Valid {
		sub.StripeCustomerID = &customerRef.String
	}
	if subscriptionRef.Valid {
		sub.StripeSubscriptionID = &subscriptionRef.String
	}
	if endedAt.Valid {
		sub.EndedAt = &endedAt.Time
	}
	return &sub, nil
}
