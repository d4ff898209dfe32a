package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/agent-marketplace/internal/models"
)

// CreateListing вставляет новую публикацию каталога и возвращает её ID.
func (s *Storage) CreateListing(ctx context.Context, listing models.Listing) (int, error) {
	const op = "storage.CreateListing"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO agent_listings (seller_uid, name, short_description, category, status)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		listing.SellerUID, listing.Name, listing.ShortDescription,
		listing.Category, listing.Status).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetListing возвращает публикацию по её ID.
// Если публикации нет, возвращает nil без ошибки.
func (s *Storage) GetListing(ctx context.Context, id int) (*models.Listing, error) {
	const op = "storage.GetListing"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, seller_uid, name, short_description, category, status, created_at
			  FROM agent_listings
			  WHERE id = $1`
	var item models.Listing
	row := s.DB.QueryRowContext(ctx, query, id)
	if err := row.Scan(&item.ID, &item.SellerUID, &item.Name, &item.ShortDescription,
		&item.Category, &item.Status, &item.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &item, nil
}

// ListListings возвращает опубликованные публикации с пагинацией.
func (s *Storage) ListListings(ctx context.Context, limit, offset int) ([]*models.Listing, error) {
	const op = "storage.ListListings"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, seller_uid, name, short_description, category, status, created_at
			  FROM agent_listings
			  WHERE status = 'published'
			  ORDER BY id
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Listing
	for rows.Next() {
		var item models.Listing
		if err := rows.Scan(&item.ID, &item.SellerUID, &item.Name, &item.ShortDescription,
			&item.Category, &item.Status, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateListing обновляет публикацию продавца и возвращает количество
// изменённых строк. Чужую публикацию условие по seller_uid не затронет.
func (s *Storage) UpdateListing(ctx context.Context, listing models.Listing) (int, error) {
	const op = "storage.UpdateListing"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE agent_listings
			  SET name = $1, short_description = $2, category = $3, status = $4
			  WHERE id = $5
			    AND seller_uid = $6`
	result, err := s.DB.ExecContext(ctx, query,
		listing.Name, listing.ShortDescription, listing.Category, listing.Status,
		listing.ID, listing.SellerUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// RemoveListing удаляет публикацию продавца и возвращает количество удалённых строк.
func (s *Storage) RemoveListing(ctx context.Context, id int, sellerUID string) (int, error) {
	const op = "storage.RemoveListing"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM agent_listings WHERE id = $1 AND seller_uid = $2`
	result, err := s.DB.ExecContext(ctx, query, id, sellerUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// CreateReview вставляет отзыв о публикации и возвращает его ID.
// Повторный отзыв того же автора обновляет оценку и текст.
func (s *Storage) CreateReview(ctx context.Context, review models.Review) (int, error) {
	const op = "storage.CreateReview"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO agent_reviews (listing_id, reviewer_uid, purchase_id, rating, title, content)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (listing_id, reviewer_uid)
			  DO UPDATE SET rating = EXCLUDED.rating, title = EXCLUDED.title,
			      content = EXCLUDED.content
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		review.ListingID, review.ReviewerUID, review.PurchaseID,
		review.Rating, review.Title, review.Content).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ListReviews возвращает отзывы по публикации.
func (s *Storage) ListReviews(ctx context.Context, listingID int) ([]*models.Review, error) {
	const op = "storage.ListReviews"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, listing_id, reviewer_uid, purchase_id, rating, title, content, created_at
			  FROM agent_reviews
			  WHERE listing_id = $1
			  ORDER BY id DESC`
	rows, err := s.DB.QueryContext(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Review
	for rows.Next() {
		var item models.Review
		if err := rows.Scan(&item.ID, &item.ListingID, &item.ReviewerUID, &item.PurchaseID,
			&item.Rating, &item.Title, &item.Content, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetPurchase возвращает покупку по её ID.
// Если покупки нет, возвращает nil без ошибки.
func (s *Storage) GetPurchase(ctx context.Context, id int) (*models.Purchase, error) {
	const op = "storage.GetPurchase"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, listing_id, buyer_uid, transaction_id, amount_cents, currency,
			      status, created_at
			  FROM agent_purchases
			  WHERE id = $1`
	var item models.Purchase
	row := s.DB.QueryRowContext(ctx, query, id)
	if err := row.Scan(&item.ID, &item.ListingID, &item.BuyerUID, &item.TransactionID,
		&item.AmountCents, &item.Currency, &item.Status, &item.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &item, nil
}

// CreatePurchase фиксирует покупку публикации и возвращает её ID.
func (s *Storage) CreatePurchase(ctx context.Context, purchase models.Purchase) (int, error) {
	const op = "storage.CreatePurchase"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO agent_purchases (listing_id, buyer_uid, transaction_id,
			      amount_cents, currency, status)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		purchase.ListingID, purchase.BuyerUID, purchase.TransactionID,
		purchase.AmountCents, purchase.Currency, purchase.Status).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ListPurchases возвращает покупки пользователя.
func (s *Storage) ListPurchases(ctx context.Context, buyerUID string) ([]*models.Purchase, error) {
	const op = "storage.ListPurchases"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, listing_id, buyer_uid, transaction_id, amount_cents, currency,
			      status, created_at
			  FROM agent_purchases
			  WHERE buyer_uid = $1
			  ORDER BY id DESC`
	rows, err := s.DB.QueryContext(ctx, query, buyerUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Purchase
	for rows.Next() {
		var item models.Purchase
		if err := rows.Scan(&item.ID, &item.ListingID, &item.BuyerUID, &item.TransactionID,
			&item.AmountCents, &item.Currency, &item.Status, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// AddWishlistItem добавляет публикацию в список желаемого пользователя.
// Повторное добавление не создаёт дубликат.
func (s *Storage) AddWishlistItem(ctx context.Context, userUID string, listingID int) error {
	const op = "storage.AddWishlistItem"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO agent_wishlists (user_uid, listing_id)
			  VALUES ($1, $2)
			  ON CONFLICT (user_uid, listing_id) DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, query, userUID, listingID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RemoveWishlistItem убирает публикацию из списка желаемого и возвращает
// количество удалённых строк.
func (s *Storage) RemoveWishlistItem(ctx context.Context, userUID string, listingID int) (int, error) {
	const op = "storage.RemoveWishlistItem"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM agent_wishlists WHERE user_uid = $1 AND listing_id = $2`
	result, err := s.DB.ExecContext(ctx, query, userUID, listingID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ListWishlist возвращает публикации из списка желаемого пользователя.
func (s *Storage) ListWishlist(ctx context.Context, userUID string) ([]*models.Listing, error) {
	const op = "storage.ListWishlist"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT l.id, l.seller_uid, l.name, l.short_description, l.category,
			      l.status, l.created_at
			  FROM agent_wishlists w
			  JOIN agent_listings l ON l.id = w.listing_id
			  WHERE w.user_uid = $1
			  ORDER BY w.id DESC`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Listing
	for rows.Next() {
		var item models.Listing
		if err := rows.Scan(&item.ID, &item.SellerUID, &item.Name, &item.ShortDescription,
			&item.Category, &item.Status, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
