// Package services реализует каталог маркетплейса: публикации, отзывы,
// покупки и список желаемого.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/agent-marketplace/internal/models"
)

// Ошибки бизнес-логики маркетплейса.
var (
	ErrListingNotFound  = errors.New("listing not found")
	ErrNotListingSeller = errors.New("listing belongs to another seller")
	ErrPurchaseRequired = errors.New("review requires a completed purchase of the listing")
)

// MarketplaceRepository описывает методы работы с каталогом в хранилище.
type MarketplaceRepository interface {
	CreateListing(ctx context.Context, listing models.Listing) (int, error)
	GetListing(ctx context.Context, id int) (*models.Listing, error)
	ListListings(ctx context.Context, limit, offset int) ([]*models.Listing, error)
	UpdateListing(ctx context.Context, listing models.Listing) (int, error)
	RemoveListing(ctx context.Context, id int, sellerUID string) (int, error)
	CreateReview(ctx context.Context, review models.Review) (int, error)
	ListReviews(ctx context.Context, listingID int) ([]*models.Review, error)
	GetPurchase(ctx context.Context, id int) (*models.Purchase, error)
	CreatePurchase(ctx context.Context, purchase models.Purchase) (int, error)
	ListPurchases(ctx context.Context, buyerUID string) ([]*models.Purchase, error)
	AddWishlistItem(ctx context.Context, userUID string, listingID int) error
	RemoveWishlistItem(ctx context.Context, userUID string, listingID int) (int, error)
	ListWishlist(ctx context.Context, userUID string) ([]*models.Listing, error)
}

// MarketplaceService управляет каталогом публикаций.
type MarketplaceService struct {
	repo MarketplaceRepository
	log  *slog.Logger
}

// NewMarketplaceService создает новый экземпляр MarketplaceService.
func NewMarketplaceService(repo MarketplaceRepository, log *slog.Logger) *MarketplaceService {
	return &MarketplaceService{
		repo: repo,
		log:  log,
	}
}

// CreateListing создаёт публикацию продавца. Новая публикация появляется
// в статусе draft и не видна в общем списке до публикации.
func (s *MarketplaceService) CreateListing(ctx context.Context, sellerUID string, req models.CreateListingRequest) (int, error) {
	const op = "services.marketplace.CreateListing"

	id, err := s.repo.CreateListing(ctx, models.Listing{
		SellerUID:        sellerUID,
		Name:             req.Name,
		ShortDescription: req.ShortDescription,
		Category:         req.Category,
		Status:           "draft",
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("listing created", "listing_id", id, "seller_uid", sellerUID)
	return id, nil
}

// GetListing возвращает публикацию по идентификатору.
func (s *MarketplaceService) GetListing(ctx context.Context, id int) (*models.Listing, error) {
	const op = "services.marketplace.GetListing"

	listing, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if listing == nil {
		return nil, ErrListingNotFound
	}
	return listing, nil
}

// ListListings возвращает страницу опубликованных публикаций каталога.
func (s *MarketplaceService) ListListings(ctx context.Context, limit, offset int) ([]*models.Listing, error) {
	const op = "services.marketplace.ListListings"

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	listings, err := s.repo.ListListings(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return listings, nil
}

// UpdateListing изменяет публикацию продавца. Пустые поля запроса
// сохраняют текущие значения.
func (s *MarketplaceService) UpdateListing(ctx context.Context, sellerUID string, id int, req models.UpdateListingRequest) error {
	const op = "services.marketplace.UpdateListing"

	listing, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if listing == nil {
		return ErrListingNotFound
	}
	if listing.SellerUID != sellerUID {
		return ErrNotListingSeller
	}

	if req.Name != "" {
		listing.Name = req.Name
	}
	if req.ShortDescription != "" {
		listing.ShortDescription = req.ShortDescription
	}
	if req.Category != "" {
		listing.Category = req.Category
	}
	if req.Status != "" {
		listing.Status = req.Status
	}

	rows, err := s.repo.UpdateListing(ctx, *listing)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return ErrListingNotFound
	}
	return nil
}

// RemoveListing удаляет публикацию продавца.
func (s *MarketplaceService) RemoveListing(ctx context.Context, sellerUID string, id int) error {
	const op = "services.marketplace.RemoveListing"

	rows, err := s.repo.RemoveListing(ctx, id, sellerUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return ErrListingNotFound
	}
	s.log.Info("listing removed", "listing_id", id, "seller_uid", sellerUID)
	return nil
}

// CreateReview создаёт отзыв о публикации. Отзыв принимается только от
// покупателя с завершённой покупкой этой публикации.
func (s *MarketplaceService) CreateReview(ctx context.Context, reviewerUID string, req models.CreateReviewRequest) (int, error) {
	const op = "services.marketplace.CreateReview"

	purchase, err := s.repo.GetPurchase(ctx, req.PurchaseID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if purchase == nil || purchase.BuyerUID != reviewerUID ||
		purchase.ListingID != req.ListingID || purchase.Status != "completed" {
		return 0, ErrPurchaseRequired
	}

	id, err := s.repo.CreateReview(ctx, models.Review{
		ListingID:   req.ListingID,
		ReviewerUID: reviewerUID,
		PurchaseID:  req.PurchaseID,
		Rating:      req.Rating,
		Title:       req.Title,
		Content:     req.Content,
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// ListReviews возвращает отзывы о публикации.
func (s *MarketplaceService) ListReviews(ctx context.Context, listingID int) ([]*models.Review, error) {
	const op = "services.marketplace.ListReviews"

	reviews, err := s.repo.ListReviews(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return reviews, nil
}

// CreatePurchase фиксирует покупку опубликованной публикации.
// Идентификатор транзакции генерируется на стороне сервиса.
func (s *MarketplaceService) CreatePurchase(ctx context.Context, buyerUID string, req models.CreatePurchaseRequest) (int, error) {
	const op = "services.marketplace.CreatePurchase"

	listing, err := s.repo.GetListing(ctx, req.ListingID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if listing == nil || listing.Status != "published" {
		return 0, ErrListingNotFound
	}

	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}
	id, err := s.repo.CreatePurchase(ctx, models.Purchase{
		ListingID:     req.ListingID,
		BuyerUID:      buyerUID,
		TransactionID: uuid.NewString(),
		AmountCents:   req.AmountCents,
		Currency:      currency,
		Status:        "completed",
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("purchase created", "purchase_id", id, "listing_id", req.ListingID, "buyer_uid", buyerUID)
	return id, nil
}

// ListPurchases возвращает покупки пользователя.
func (s *MarketplaceService) ListPurchases(ctx context.Context, buyerUID string) ([]*models.Purchase, error) {
	const op = "services.marketplace.ListPurchases"

	purchases, err := s.repo.ListPurchases(ctx, buyerUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return purchases, nil
}

// AddToWishlist добавляет публикацию в список желаемого.
// Повторное добавление не является ошибкой.
func (s *MarketplaceService) AddToWishlist(ctx context.Context, userUID string, listingID int) error {
	const op = "services.marketplace.AddToWishlist"

	listing, err := s.repo.GetListing(ctx, listingID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if listing == nil {
		return ErrListingNotFound
	}
	if err := s.repo.AddWishlistItem(ctx, userUID, listingID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RemoveFromWishlist удаляет публикацию из списка желаемого.
func (s *MarketplaceService) RemoveFromWishlist(ctx context.Context, userUID string, listingID int) error {
	const op = "services.marketplace.RemoveFromWishlist"

	if _, err := s.repo.RemoveWishlistItem(ctx, userUID, listingID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Wishlist возвращает публикации из списка желаемого пользователя.
func (s *MarketplaceService) Wishlist(ctx context.Context, userUID string) ([]*models.Listing, error) {
	const op = "services.marketplace.Wishlist"

	listings, err := s.repo.ListWishlist(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return listings, nil
}
