// Package services содержит бизнес-логику оформления и отмены платных подписок.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/agent-marketplace/internal/billing"
	"github.com/magabrotheeeer/agent-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/agent-marketplace/internal/models"
	"github.com/magabrotheeeer/agent-marketplace/internal/tiers"
)

var (
	// ErrActiveSubscriptionExists возвращается при попытке оформить вторую платную подписку.
	ErrActiveSubscriptionExists = errors.New("active paid subscription already exists")
	// ErrNoActivePaidSubscription возвращается при отмене, когда платной подписки нет.
	ErrNoActivePaidSubscription = errors.New("no active paid subscription")
)

// SubscriptionRepository определяет методы хранилища для управления подписками.
type SubscriptionRepository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetActiveSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
	CreateSubscription(ctx context.Context, sub models.Subscription) (int, error)
	UpdateSubscription(ctx context.Context, sub *models.Subscription) (int, error)
	LatestStripeCustomerRef(ctx context.Context, userUID string) (string, error)
	UpsertGrant(ctx context.Context, userUID, agentID string) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// EventPublisher публикует события жизненного цикла подписок в брокер.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// CreateResult описывает результат оформления подписки.
type CreateResult struct {
	SubscriptionID int
	Tier           models.Tier
	Status         models.SubscriptionStatus
	// RequiresAction выставляется, когда провайдеру нужно подтверждение платежа.
	RequiresAction bool
	ClientSecret   string
}

// SubscriptionService оформляет и отменяет платные подписки через платёжного провайдера.
type SubscriptionService struct {
	repo      SubscriptionRepository
	provider  billing.Provider
	catalog   *tiers.Catalog
	cache     Cache
	publisher EventPublisher
	log       *slog.Logger
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
func NewSubscriptionService(repo SubscriptionRepository, provider billing.Provider,
	catalog *tiers.Catalog, cache Cache, publisher EventPublisher, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:      repo,
		provider:  provider,
		catalog:   catalog,
		cache:     cache,
		publisher: publisher,
		log:       log,
	}
}

// Create оформляет платную подписку. Локальная запись создаётся только после
// успешного ответа провайдера; активная базовая подписка при этом закрывается.
func (s *SubscriptionService) Create(ctx context.Context, userUID string, req models.CreateSubscriptionRequest) (*CreateResult, error) {
	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.GetActiveSubscription(ctx, userUID)
	if err != nil {
		return nil, err
	}
	if current != nil && current.Tier != models.TierBasic {
		return nil, ErrActiveSubscriptionExists
	}

	customerRef, err := s.repo.LatestStripeCustomerRef(ctx, userUID)
	if err != nil {
		return nil, err
	}
	if customerRef == "" {
		customer, err := s.provider.CreateCustomer(ctx, user.Email, user.Username, req.PaymentMethodRef, userUID)
		if err != nil {
			return nil, err
		}
		customerRef = customer.ID
	}

	providerSub, err := s.provider.CreateSubscription(ctx, customerRef, req.PriceRef)
	if err != nil {
		return nil, err
	}

	tier, ok := s.catalog.TierForPriceRef(providerSub.PriceRef)
	if !ok {
		// Неизвестная цена не должна ронять оформление: считаем её
		// профессиональным тарифом и оставляем след в логах.
		tier = models.TierProfessional
		s.log.Error("unknown price ref, falling back to professional tier",
			slog.String("price_ref", providerSub.PriceRef), slog.String("user_uid", userUID))
	}

	// Активной подписка становится только при подтверждённой оплате.
	// Незавершённый платёж (3-D Secure и т.п.) держит запись неактивной,
	// пока вебхук провайдера не подтвердит оплату.
	status := models.StatusActive
	switch providerSub.Status {
	case "trialing":
		status = models.StatusTrialing
	case "incomplete", "incomplete_expired":
		status = models.StatusPastDue
	}
	isActive := providerSub.Status == "active" || providerSub.Status == "trialing"

	// Закрываем активную базовую подписку перед вставкой платной:
	// частичный уникальный индекс допускает только одну активную запись.
	if current != nil {
		now := time.Now().UTC()
		current.IsActive = false
		current.EndedAt = &now
		if _, err := s.repo.UpdateSubscription(ctx, current); err != nil {
			return nil, err
		}
	}

	sub := models.Subscription{
		UserUID:              userUID,
		Tier:                 tier,
		Status:               status,
		IsActive:             isActive,
		AutoRenew:            true,
		StripeCustomerID:     &customerRef,
		StripeSubscriptionID: &providerSub.ID,
		StartedAt:            providerSub.CurrentPeriodStart,
	}
	id, err := s.repo.CreateSubscription(ctx, sub)
	if err != nil {
		return nil, err
	}

	for agentID := range s.catalog.CapabilitiesFor(tier) {
		if err := s.repo.UpsertGrant(ctx, userUID, agentID); err != nil {
			return nil, err
		}
	}

	s.invalidateCache(userUID)
	s.publishEvent("subscription.created", map[string]any{
		"user_uid": userUID,
		"tier":     tier,
		"status":   status,
	})
	s.log.Info("created paid subscription",
		slog.Int("id", id), slog.String("user_uid", userUID), slog.String("tier", string(tier)))

	return &CreateResult{
		SubscriptionID: id,
		Tier:           tier,
		Status:         status,
		RequiresAction: providerSub.Status == "incomplete",
		ClientSecret:   providerSub.ClientSecret,
	}, nil
}

// Cancel просит провайдера отменить подписку в конце оплаченного периода.
// Доступ сохраняется до вебхука об удалении; досрочной сентинельной записи
// базового тарифа не создаётся.
func (s *SubscriptionService) Cancel(ctx context.Context, userUID string) error {
	current, err := s.repo.GetActiveSubscription(ctx, userUID)
	if err != nil {
		return err
	}
	if current == nil || current.StripeSubscriptionID == nil {
		return ErrNoActivePaidSubscription
	}

	if err := s.provider.CancelSubscription(ctx, *current.StripeSubscriptionID); err != nil {
		return err
	}

	if current.Status.CanTransition(models.StatusCanceledPendingBasic) {
		current.Status = models.StatusCanceledPendingBasic
	}
	current.AutoRenew = false
	if _, err := s.repo.UpdateSubscription(ctx, current); err != nil {
		return err
	}

	s.invalidateCache(userUID)
	s.publishEvent("subscription.canceled", map[string]any{
		"user_uid": userUID,
		"tier":     current.Tier,
	})
	s.log.Info("scheduled subscription cancellation",
		slog.Int("id", current.ID), slog.String("user_uid", userUID))
	return nil
}

// My возвращает активную подписку пользователя или nil, если действует
// только базовый тариф без записи.
func (s *SubscriptionService) My(ctx context.Context, userUID string) (*models.Subscription, error) {
	return s.repo.GetActiveSubscription(ctx, userUID)
}

// Plans возвращает каталог тарифов в порядке возрастания цены.
func (s *SubscriptionService) Plans() []tiers.Plan {
	return s.catalog.Plans()
}

func (s *SubscriptionService) invalidateCache(userUID string) {
	cacheKey := fmt.Sprintf("subscription:active:%s", userUID)
	if err := s.cache.Invalidate(cacheKey); err != nil {
		s.log.Warn("failed to invalidate subscription cache", slog.String("key", cacheKey), sl.Err(err))
	}
}

func (s *SubscriptionService) publishEvent(routingKey string, message any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(routingKey, message); err != nil {
		s.log.Warn("failed to publish subscription event", slog.String("routing_key", routingKey), sl.Err(err))
	}
}
