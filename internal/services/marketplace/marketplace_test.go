package services_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/agent-marketplace/internal/models"
	services "github.com/magabrotheeeer/agent-marketplace/internal/services/marketplace"
)

// Мок для MarketplaceRepository
type MarketplaceRepoMock struct {
	mock.Mock
}

func (m *MarketplaceRepoMock) CreateListing(ctx context.Context, listing models.Listing) (int, error) {
	args := m.Called(ctx, listing)
	return args.Int(0), args.Error(1)
}

func (m *MarketplaceRepoMock) GetListing(ctx context.Context, id int) (*models.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MarketplaceRepoMock) ListListings(ctx context.Context, limit, offset int) ([]*models.Listing, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Listing), args.Error(1)
}

func (m *MarketplaceRepoMock) UpdateListing(ctx context.Context, listing models.Listing) (int, error) {
	args := m.Called(ctx, listing)
	return args.Int(0), args.Error(1)
}

func (m *MarketplaceRepoMock) RemoveListing(ctx context.Context, id int, sellerUID string) (int, error) {
	args := m.Called(ctx, id, sellerUID)
	return args.Int(0), args.Error(1)
}

func (m *MarketplaceRepoMock) CreateReview(ctx context.Context, review models.Review) (int, error) {
	args := m.Called(ctx, review)
	return args.Int(0), args.Error(1)
}

func (m *MarketplaceRepoMock) ListReviews(ctx context.Context, listingID int) ([]*models.Review, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Review), args.Error(1)
}

func (m *MarketplaceRepoMock) GetPurchase(ctx context.Context, id int) (*models.Purchase, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Purchase), args.Error(1)
}

func (m *MarketplaceRepoMock) CreatePurchase(ctx context.Context, purchase models.Purchase) (int, error) {
	args := m.Called(ctx, purchase)
	return args.Int(0), args.Error(1)
}

func (m *MarketplaceRepoMock) ListPurchases(ctx context.Context, buyerUID string) ([]*models.Purchase, error) {
	args := m.Called(ctx, buyerUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Purchase), args.Error(1)
}

func (m *MarketplaceRepoMock) AddWishlistItem(ctx context.Context, userUID string, listingID int) error {
	args := m.Called(ctx, userUID, listingID)
	return args.Error(0)
}

func (m *MarketplaceRepoMock) RemoveWishlistItem(ctx context.Context, userUID string, listingID int) (int, error) {
	args := m.Called(ctx, userUID, listingID)
	return args.Int(0), args.Error(1)
}

func (m *MarketplaceRepoMock) ListWishlist(ctx context.Context, userUID string) ([]*models.Listing, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Listing), args.Error(1)
}

func newService(repo *MarketplaceRepoMock) *services.MarketplaceService {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return services.NewMarketplaceService(repo, log)
}

func publishedListing(sellerUID string) *models.Listing {
	return &models.Listing{
		ID:               10,
		SellerUID:        sellerUID,
		Name:             "Stock Finder Pro",
		ShortDescription: "Screener with custom filters",
		Category:         "screening",
		Status:           "published",
	}
}

func TestMarketplaceService_CreateListing(t *testing.T) {
	repo := new(MarketplaceRepoMock)
	svc := newService(repo)

	repo.On("CreateListing", mock.Anything, mock.MatchedBy(func(l models.Listing) bool {
		return l.SellerUID == "seller-1" && l.Name == "Stock Finder Pro" && l.Status == "draft"
	})).Return(10, nil).Once()

	id, err := svc.CreateListing(context.Background(), "seller-1", models.CreateListingRequest{
		Name:             "Stock Finder Pro",
		ShortDescription: "Screener with custom filters",
		Category:         "screening",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, id)
	repo.AssertExpectations(t)
}

func TestMarketplaceService_UpdateListing(t *testing.T) {
	tests := []struct {
		name       string
		sellerUID  string
		req        models.UpdateListingRequest
		setupMocks func(r *MarketplaceRepoMock)
		wantErr    error
	}{
		{
			name:      "публикация черновика меняет только статус",
			sellerUID: "seller-1",
			req:       models.UpdateListingRequest{Status: "published"},
			setupMocks: func(r *MarketplaceRepoMock) {
				draft := publishedListing("seller-1")
				draft.Status = "draft"
				r.On("GetListing", mock.Anything, 10).Return(draft, nil).Once()
				r.On("UpdateListing", mock.Anything, mock.MatchedBy(func(l models.Listing) bool {
					return l.Status == "published" && l.Name == "Stock Finder Pro"
				})).Return(1, nil).Once()
			},
		},
		{
			name:      "чужую публикацию изменить нельзя",
			sellerUID: "seller-2",
			req:       models.UpdateListingRequest{Name: "Hijacked"},
			setupMocks: func(r *MarketplaceRepoMock) {
				r.On("GetListing", mock.Anything, 10).Return(publishedListing("seller-1"), nil).Once()
			},
			wantErr: services.ErrNotListingSeller,
		},
		{
			name:      "несуществующая публикация",
			sellerUID: "seller-1",
			req:       models.UpdateListingRequest{Name: "Ghost"},
			setupMocks: func(r *MarketplaceRepoMock) {
				r.On("GetListing", mock.Anything, 10).Return(nil, nil).Once()
			},
			wantErr: services.ErrListingNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MarketplaceRepoMock)
			svc := newService(repo)
			tt.setupMocks(repo)

			err := svc.UpdateListing(context.Background(), tt.sellerUID, 10, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestMarketplaceService_CreateReview(t *testing.T) {
	req := models.CreateReviewRequest{
		ListingID:  10,
		PurchaseID: 4,
		Rating:     5,
		Title:      "Отличный агент",
		Content:    "Нашёл три идеи за неделю",
	}

	tests := []struct {
		name       string
		setupMocks func(r *MarketplaceRepoMock)
		wantErr    error
	}{
		{
			name: "отзыв от покупателя принимается",
			setupMocks: func(r *MarketplaceRepoMock) {
				r.On("GetPurchase", mock.Anything, 4).Return(&models.Purchase{
					ID: 4, ListingID: 10, BuyerUID: "buyer-1", Status: "completed",
				}, nil).Once()
				r.On("CreateReview", mock.Anything, mock.MatchedBy(func(rev models.Review) bool {
					return rev.ListingID == 10 && rev.ReviewerUID == "buyer-1" && rev.Rating == 5
				})).Return(77, nil).Once()
			},
		},
		{
			name: "отзыв без покупки отклоняется",
			setupMocks: func(r *MarketplaceRepoMock) {
				r.On("GetPurchase", mock.Anything, 4).Return(nil, nil).Once()
			},
			wantErr: services.ErrPurchaseRequired,
		},
		{
			name: "покупка другого пользователя не подходит",
			setupMocks: func(r *MarketplaceRepoMock) {
				r.On("GetPurchase", mock.Anything, 4).Return(&models.Purchase{
					ID: 4, ListingID: 10, BuyerUID: "buyer-2", Status: "completed",
				}, nil).Once()
			},
			wantErr: services.ErrPurchaseRequired,
		},
		{
			name: "покупка другой публикации не подходит",
			setupMocks: func(r *MarketplaceRepoMock) {
				r.On("GetPurchase", mock.Anything, 4).Return(&models.Purchase{
					ID: 4, ListingID: 99, BuyerUID: "buyer-1", Status: "completed",
				}, nil).Once()
			},
			wantErr: services.ErrPurchaseRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MarketplaceRepoMock)
			svc := newService(repo)
			tt.setupMocks(repo)

			id, err := svc.CreateReview(context.Background(), "buyer-1", req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 77, id)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestMarketplaceService_CreatePurchase(t *testing.T) {
	repo := new(MarketplaceRepoMock)
	svc := newService(repo)

	repo.On("GetListing", mock.Anything, 10).Return(publishedListing("seller-1"), nil).Once()
	repo.On("CreatePurchase", mock.Anything, mock.MatchedBy(func(p models.Purchase) bool {
		return p.ListingID == 10 && p.BuyerUID == "buyer-1" &&
			p.AmountCents == 1999 && p.Currency == "usd" &&
			p.Status == "completed" && p.TransactionID != ""
	})).Return(4, nil).Once()

	id, err := svc.CreatePurchase(context.Background(), "buyer-1", models.CreatePurchaseRequest{
		ListingID:   10,
		AmountCents: 1999,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, id)
	repo.AssertExpectations(t)
}

func TestMarketplaceService_CreatePurchase_DraftListing(t *testing.T) {
	repo := new(MarketplaceRepoMock)
	svc := newService(repo)

	draft := publishedListing("seller-1")
	draft.Status = "draft"
	repo.On("GetListing", mock.Anything, 10).Return(draft, nil).Once()

	_, err := svc.CreatePurchase(context.Background(), "buyer-1", models.CreatePurchaseRequest{
		ListingID:   10,
		AmountCents: 1999,
	})
	assert.ErrorIs(t, err, services.ErrListingNotFound)
}

func TestMarketplaceService_Wishlist(t *testing.T) {
	repo := new(MarketplaceRepoMock)
	svc := newService(repo)

	repo.On("GetListing", mock.Anything, 10).Return(publishedListing("seller-1"), nil).Once()
	repo.On("AddWishlistItem", mock.Anything, "uid-1", 10).Return(nil).Once()
	repo.On("ListWishlist", mock.Anything, "uid-1").
		Return([]*models.Listing{publishedListing("seller-1")}, nil).Once()
	repo.On("RemoveWishlistItem", mock.Anything, "uid-1", 10).Return(1, nil).Once()

	require.NoError(t, svc.AddToWishlist(context.Background(), "uid-1", 10))

	items, err := svc.Wishlist(context.Background(), "uid-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Stock Finder Pro", items[0].Name)

	require.NoError(t, svc.RemoveFromWishlist(context.Background(), "uid-1", 10))
	repo.AssertExpectations(t)
}

func TestMarketplaceService_ListListings_LimitDefaults(t *testing.T) {
	repo := new(MarketplaceRepoMock)
	svc := newService(repo)

	repo.On("ListListings", mock.Anything, 20, 0).Return([]*models.Listing{}, nil).Once()

	_, err := svc.ListListings(context.Background(), -5, -1)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}
