package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/agent-marketplace/internal/billing"
	"github.com/magabrotheeeer/agent-marketplace/internal/config"
	"github.com/magabrotheeeer/agent-marketplace/internal/models"
	services "github.com/magabrotheeeer/agent-marketplace/internal/services/subscription"
	"github.com/magabrotheeeer/agent-marketplace/internal/tiers"
)

// Мок для SubscriptionRepository
type SubscriptionRepoMock struct {
	mock.Mock
}

func (m *SubscriptionRepoMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *SubscriptionRepoMock) GetActiveSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *SubscriptionRepoMock) CreateSubscription(ctx context.Context, sub models.Subscription) (int, error) {
	args := m.Called(ctx, sub)
	return args.Int(0), args.Error(1)
}

func (m *SubscriptionRepoMock) UpdateSubscription(ctx context.Context, sub *models.Subscription) (int, error) {
	args := m.Called(ctx, sub)
	return args.Int(0), args.Error(1)
}

func (m *SubscriptionRepoMock) LatestStripeCustomerRef(ctx context.Context, userUID string) (string, error) {
	args := m.Called(ctx, userUID)
	return args.String(0), args.Error(1)
}

func (m *SubscriptionRepoMock) UpsertGrant(ctx context.Context, userUID, agentID string) error {
	args := m.Called(ctx, userUID, agentID)
	return args.Error(0)
}

// Мок для billing.Provider
type ProviderMock struct {
	mock.Mock
}

func (m *ProviderMock) CreateCustomer(ctx context.Context, email, username, paymentMethodRef, userUID string) (*billing.Customer, error) {
	args := m.Called(ctx, email, username, paymentMethodRef, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Customer), args.Error(1)
}

func (m *ProviderMock) CreateSubscription(ctx context.Context, customerID, priceRef string) (*billing.ProviderSubscription, error) {
	args := m.Called(ctx, customerID, priceRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ProviderSubscription), args.Error(1)
}

func (m *ProviderMock) CancelSubscription(ctx context.Context, subscriptionID string) error {
	args := m.Called(ctx, subscriptionID)
	return args.Error(0)
}

func (m *ProviderMock) GetSubscription(ctx context.Context, subscriptionID string) (*billing.ProviderSubscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ProviderSubscription), args.Error(1)
}

// Мок для Cache
type CacheMock struct {
	mock.Mock
}

func (m *CacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Set(key string, value any, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *CacheMock) Invalidate(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

// Мок для EventPublisher
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(routingKey string, message any) error {
	args := m.Called(routingKey, message)
	return args.Error(0)
}

const proPriceRef = "price_pro_monthly"

func newService(t *testing.T, repo *SubscriptionRepoMock, provider *ProviderMock,
	cache *CacheMock, publisher *PublisherMock) *services.SubscriptionService {
	catalog, err := tiers.New(config.TierPrices{
		ProfessionalPriceRef: proPriceRef,
		EnterprisePriceRef:   "price_ent_monthly",
	})
	require.NoError(t, err)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return services.NewSubscriptionService(repo, provider, catalog, cache, publisher, log)
}

func testUser() *models.User {
	return &models.User{
		UID:      "uid-1",
		Email:    "test@example.com",
		Username: "testuser",
		Role:     "user",
		IsActive: true,
	}
}

func basicSubscription() *models.Subscription {
	return &models.Subscription{
		ID:       5,
		UserUID:  "uid-1",
		Tier:     models.TierBasic,
		Status:   models.StatusBasic,
		IsActive: true,
	}
}

func TestSubscriptionService_Create(t *testing.T) {
	providerSub := &billing.ProviderSubscription{
		ID:                 "sub_123",
		CustomerID:         "cus_123",
		Status:             "active",
		PriceRef:           proPriceRef,
		CurrentPeriodStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		CurrentPeriodEnd:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name       string
		setupMocks func(r *SubscriptionRepoMock, p *ProviderMock, c *CacheMock, pub *PublisherMock)
		wantErr    error
		wantTier   models.Tier
		wantAction bool
	}{
		{
			name: "успешное оформление профессионального тарифа",
			setupMocks: func(r *SubscriptionRepoMock, p *ProviderMock, c *CacheMock, pub *PublisherMock) {
				r.On("GetUser", mock.Anything, "uid-1").Return(testUser(), nil).Once()
				r.On("GetActiveSubscription", mock.Anything, "uid-1").
					Return(basicSubscription(), nil).Once()
				r.On("LatestStripeCustomerRef", mock.Anything, "uid-1").Return("", nil).Once()
				p.On("CreateCustomer", mock.Anything, "test@example.com", "testuser", "pm_123", "uid-1").
					Return(&billing.Customer{ID: "cus_123"}, nil).Once()
				p.On("CreateSubscription", mock.Anything, "cus_123", proPriceRef).
					Return(providerSub, nil).Once()
				// Базовая подписка закрывается перед вставкой платной
				r.On("UpdateSubscription", mock.Anything, mock.MatchedBy(func(sub *models.Subscription) bool {
					return sub.ID == 5 && !sub.IsActive && sub.EndedAt != nil
				})).Return(1, nil).Once()
				r.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(sub models.Subscription) bool {
					return sub.Tier == models.TierProfessional && sub.IsActive && sub.AutoRenew &&
						*sub.StripeSubscriptionID == "sub_123"
				})).Return(6, nil).Once()
				// Профессиональный тариф выдаёт все пять агентов
				for _, agentID := range []string{"portfolio_agent", "stockfinder", "newsagent",
					"options_strategy_agent", "etf_screener_agent"} {
					r.On("UpsertGrant", mock.Anything, "uid-1", agentID).Return(nil).Once()
				}
				c.On("Invalidate", "subscription:active:uid-1").Return(nil).Once()
				pub.On("Publish", "subscription.created", mock.Anything).Return(nil).Once()
			},
			wantTier: models.TierProfessional,
		},
		{
			name: "повторное оформление при активной платной подписке",
			setupMocks: func(r *SubscriptionRepoMock, _ *ProviderMock, _ *CacheMock, _ *PublisherMock) {
				r.On("GetUser", mock.Anything, "uid-1").Return(testUser(), nil).Once()
				paid := basicSubscription()
				paid.Tier = models.TierProfessional
				paid.Status = models.StatusActive
				r.On("GetActiveSubscription", mock.Anything, "uid-1").Return(paid, nil).Once()
			},
			wantErr: services.ErrActiveSubscriptionExists,
		},
		{
			name: "ошибка провайдера не оставляет локальной записи",
			setupMocks: func(r *SubscriptionRepoMock, p *ProviderMock, _ *CacheMock, _ *PublisherMock) {
				r.On("GetUser", mock.Anything, "uid-1").Return(testUser(), nil).Once()
				r.On("GetActiveSubscription", mock.Anything, "uid-1").
					Return(basicSubscription(), nil).Once()
				r.On("LatestStripeCustomerRef", mock.Anything, "uid-1").Return("cus_123", nil).Once()
				p.On("CreateSubscription", mock.Anything, "cus_123", proPriceRef).
					Return(nil, errors.New("card declined")).Once()
			},
			wantErr: errors.New("card declined"),
		},
		{
			name: "неполный платёж требует подтверждения",
			setupMocks: func(r *SubscriptionRepoMock, p *ProviderMock, c *CacheMock, pub *PublisherMock) {
				incomplete := *providerSub
				incomplete.Status = "incomplete"
				incomplete.ClientSecret = "pi_secret_123"

				r.On("GetUser", mock.Anything, "uid-1").Return(testUser(), nil).Once()
				r.On("GetActiveSubscription", mock.Anything, "uid-1").Return(nil, nil).Once()
				r.On("LatestStripeCustomerRef", mock.Anything, "uid-1").Return("cus_123", nil).Once()
				p.On("CreateSubscription", mock.Anything, "cus_123", proPriceRef).
					Return(&incomplete, nil).Once()
				// Неоплаченная подписка не даёт доступа до подтверждения платежа
				r.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(sub models.Subscription) bool {
					return !sub.IsActive && sub.Status == models.StatusPastDue
				})).Return(7, nil).Once()
				r.On("UpsertGrant", mock.Anything, "uid-1", mock.Anything).Return(nil).Times(5)
				c.On("Invalidate", "subscription:active:uid-1").Return(nil).Once()
				pub.On("Publish", "subscription.created", mock.Anything).Return(nil).Once()
			},
			wantTier:   models.TierProfessional,
			wantAction: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(SubscriptionRepoMock)
			provider := new(ProviderMock)
			cache := new(CacheMock)
			publisher := new(PublisherMock)
			svc := newService(t, repo, provider, cache, publisher)
			tt.setupMocks(repo, provider, cache, publisher)

			got, err := svc.Create(context.Background(), "uid-1", models.CreateSubscriptionRequest{
				PriceRef:         proPriceRef,
				PaymentMethodRef: "pm_123",
			})

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				require.NotNil(t, got)
				assert.Equal(t, tt.wantTier, got.Tier)
				assert.Equal(t, tt.wantAction, got.RequiresAction)
			}

			repo.AssertExpectations(t)
			provider.AssertExpectations(t)
		})
	}
}

func TestSubscriptionService_Cancel(t *testing.T) {
	subscriptionRef := "sub_123"

	tests := []struct {
		name       string
		setupMocks func(r *SubscriptionRepoMock, p *ProviderMock, c *CacheMock, pub *PublisherMock)
		wantErr    error
	}{
		{
			name: "успешная отмена платной подписки",
			setupMocks: func(r *SubscriptionRepoMock, p *ProviderMock, c *CacheMock, pub *PublisherMock) {
				paid := &models.Subscription{
					ID:                   6,
					UserUID:              "uid-1",
					Tier:                 models.TierProfessional,
					Status:               models.StatusActive,
					IsActive:             true,
					AutoRenew:            true,
					StripeSubscriptionID: &subscriptionRef,
				}
				r.On("GetActiveSubscription", mock.Anything, "uid-1").Return(paid, nil).Once()
				p.On("CancelSubscription", mock.Anything, "sub_123").Return(nil).Once()
				// Доступ сохраняется до конца оплаченного периода
				r.On("UpdateSubscription", mock.Anything, mock.MatchedBy(func(sub *models.Subscription) bool {
					return sub.Status == models.StatusCanceledPendingBasic &&
						!sub.AutoRenew && sub.IsActive
				})).Return(1, nil).Once()
				c.On("Invalidate", "subscription:active:uid-1").Return(nil).Once()
				pub.On("Publish", "subscription.canceled", mock.Anything).Return(nil).Once()
			},
		},
		{
			name: "отмена без платной подписки",
			setupMocks: func(r *SubscriptionRepoMock, _ *ProviderMock, _ *CacheMock, _ *PublisherMock) {
				r.On("GetActiveSubscription", mock.Anything, "uid-1").
					Return(basicSubscription(), nil).Once()
			},
			wantErr: services.ErrNoActivePaidSubscription,
		},
		{
			name: "отмена без какой-либо подписки",
			setupMocks: func(r *SubscriptionRepoMock, _ *ProviderMock, _ *CacheMock, _ *PublisherMock) {
				r.On("GetActiveSubscription", mock.Anything, "uid-1").Return(nil, nil).Once()
			},
			wantErr: services.ErrNoActivePaidSubscription,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(SubscriptionRepoMock)
			provider := new(ProviderMock)
			cache := new(CacheMock)
			publisher := new(PublisherMock)
			svc := newService(t, repo, provider, cache, publisher)
			tt.setupMocks(repo, provider, cache, publisher)

			err := svc.Cancel(context.Background(), "uid-1")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			repo.AssertExpectations(t)
			provider.AssertExpectations(t)
		})
	}
}

func TestSubscriptionService_Plans(t *testing.T) {
	svc := newService(t, new(SubscriptionRepoMock), new(ProviderMock), new(CacheMock), new(PublisherMock))

	plans := svc.Plans()
	require.Len(t, plans, 3)
	assert.Equal(t, models.TierBasic, plans[0].ID)
	assert.Equal(t, models.TierProfessional, plans[1].ID)
	assert.Equal(t, models.TierEnterprise, plans[2].ID)
}
