// Package services приводит локальное состояние подписок в соответствие
// с событиями платёжного провайдера.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/agent-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/agent-marketplace/internal/models"
	"github.com/magabrotheeeer/agent-marketplace/internal/tiers"
)

// Типы событий провайдера, которые обрабатывает сервис.
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Event содержит нормализованные данные события провайдера.
type Event struct {
	Type              string
	SubscriptionRef   string
	CustomerRef       string
	Status            string
	PriceRef          string
	CancelAtPeriodEnd bool
	StartedAt         time.Time
	CurrentPeriodEnd  time.Time
	CanceledAt        *time.Time
}

// ReconcileRepository определяет методы хранилища для применения событий.
type ReconcileRepository interface {
	GetSubscriptionBySubscriptionRef(ctx context.Context, subscriptionRef string) (*models.Subscription, error)
	GetSubscriptionByCustomerRef(ctx context.Context, customerRef string) (*models.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *models.Subscription) (int, error)
	ActivateBasicSubscription(ctx context.Context, userUID string) (bool, error)
	UpsertGrant(ctx context.Context, userUID, agentID string) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// ReconcileService применяет события провайдера к локальным подпискам.
// Все обработчики идемпотентны: повторная доставка события не меняет состояние.
type ReconcileService struct {
	repo    ReconcileRepository
	catalog *tiers.Catalog
	cache   Cache
	log     *slog.Logger
}

// NewReconcileService создает новый экземпляр ReconcileService.
func NewReconcileService(repo ReconcileRepository, catalog *tiers.Catalog, cache Cache, log *slog.Logger) *ReconcileService {
	return &ReconcileService{
		repo:    repo,
		catalog: catalog,
		cache:   cache,
		log:     log,
	}
}

// ApplyEvent применяет событие провайдера. Возвращает true, если локальное
// состояние было изменено. Событие без локальной подписки пропускается
// с записью в лог, а не ошибкой: провайдер не должен ретраить такие доставки.
func (s *ReconcileService) ApplyEvent(ctx context.Context, ev Event) (bool, error) {
	switch ev.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		return s.applyUpdate(ctx, ev)
	case EventSubscriptionDeleted:
		return s.applyDeleted(ctx, ev)
	default:
		s.log.Info("ignoring unsupported provider event", slog.String("type", ev.Type))
		return false, nil
	}
}

func (s *ReconcileService) applyUpdate(ctx context.Context, ev Event) (bool, error) {
	sub, err := s.findSubscription(ctx, ev)
	if err != nil {
		return false, err
	}
	if sub == nil {
		s.log.Warn("provider event for unknown subscription, skipping",
			slog.String("type", ev.Type), slog.String("subscription_ref", ev.SubscriptionRef))
		return false, nil
	}
	if sub.Finalized() {
		// Запоздавшее updated-событие после deleted не воскрешает подписку.
		s.log.Warn("provider event for finalized subscription, skipping",
			slog.String("type", ev.Type), slog.Int("id", sub.ID))
		return false, nil
	}

	target := s.targetStatus(ev)
	if !sub.Status.CanTransition(target) {
		s.log.Warn("rejecting invalid subscription transition",
			slog.Int("id", sub.ID),
			slog.String("from", string(sub.Status)), slog.String("to", string(target)))
		return false, nil
	}

	tier, ok := s.catalog.TierForPriceRef(ev.PriceRef)
	if !ok {
		tier = models.TierProfessional
		s.log.Error("unknown price ref in provider event, falling back to professional tier",
			slog.String("price_ref", ev.PriceRef), slog.Int("id", sub.ID))
	}
	tierChanged := tier != sub.Tier

	sub.Status = target
	sub.Tier = tier
	sub.AutoRenew = !ev.CancelAtPeriodEnd
	// Доступ остаётся только при подтверждённой оплате у провайдера;
	// просрочка и незавершённый платёж доступ снимают.
	sub.IsActive = ev.Status == "active" || ev.Status == "trialing"
	if ev.SubscriptionRef != "" {
		subscriptionRef := ev.SubscriptionRef
		sub.StripeSubscriptionID = &subscriptionRef
	}
	if ev.CustomerRef != "" {
		customerRef := ev.CustomerRef
		sub.StripeCustomerID = &customerRef
	}
	if !ev.StartedAt.IsZero() {
		sub.StartedAt = ev.StartedAt.UTC()
	}
	// Дата окончания назначается только при запланированной отмене
	// и снимается, если отмену отозвали.
	sub.EndedAt = nil
	if ev.CancelAtPeriodEnd && !ev.CurrentPeriodEnd.IsZero() {
		periodEnd := ev.CurrentPeriodEnd.UTC()
		sub.EndedAt = &periodEnd
	}

	if _, err := s.repo.UpdateSubscription(ctx, sub); err != nil {
		return false, err
	}

	if tierChanged {
		for agentID := range s.catalog.CapabilitiesFor(tier) {
			if err := s.repo.UpsertGrant(ctx, sub.UserUID, agentID); err != nil {
				return false, err
			}
		}
	}

	s.invalidateCache(sub.UserUID)
	s.log.Info("applied provider subscription event",
		slog.String("type", ev.Type), slog.Int("id", sub.ID),
		slog.String("status", string(target)), slog.String("tier", string(tier)))
	return true, nil
}

func (s *ReconcileService) applyDeleted(ctx context.Context, ev Event) (bool, error) {
	sub, err := s.findSubscription(ctx, ev)
	if err != nil {
		return false, err
	}
	if sub == nil {
		s.log.Warn("deleted event for unknown subscription, skipping",
			slog.String("subscription_ref", ev.SubscriptionRef))
		return false, nil
	}

	if sub.Finalized() {
		// Повторная доставка deleted: запись уже закрыта, базовый тариф
		// восстанавливается идемпотентной вставкой.
		if _, err := s.repo.ActivateBasicSubscription(ctx, sub.UserUID); err != nil {
			return false, err
		}
		return false, nil
	}

	endedAt := time.Now().UTC()
	if ev.CanceledAt != nil {
		endedAt = ev.CanceledAt.UTC()
	} else if !ev.CurrentPeriodEnd.IsZero() {
		endedAt = ev.CurrentPeriodEnd.UTC()
	}

	if sub.Status.CanTransition(models.StatusCanceledPendingBasic) {
		sub.Status = models.StatusCanceledPendingBasic
	}
	sub.IsActive = false
	sub.AutoRenew = false
	sub.EndedAt = &endedAt
	if _, err := s.repo.UpdateSubscription(ctx, sub); err != nil {
		return false, err
	}

	if _, err := s.repo.ActivateBasicSubscription(ctx, sub.UserUID); err != nil {
		return false, err
	}
	for agentID := range s.catalog.CapabilitiesFor(models.TierBasic) {
		if err := s.repo.UpsertGrant(ctx, sub.UserUID, agentID); err != nil {
			return false, err
		}
	}

	s.invalidateCache(sub.UserUID)
	s.log.Info("finalized subscription after provider deletion",
		slog.Int("id", sub.ID), slog.String("user_uid", sub.UserUID))
	return true, nil
}

// findSubscription ищет подписку сначала по идентификатору подписки за
// провайдером, затем по идентификатору плательщика. Отсутствие записи —
// не ошибка, а ошибки хранилища поднимаются наверх, чтобы провайдер
// ретраил доставку.
func (s *ReconcileService) findSubscription(ctx context.Context, ev Event) (*models.Subscription, error) {
	if ev.SubscriptionRef != "" {
		sub, err := s.repo.GetSubscriptionBySubscriptionRef(ctx, ev.SubscriptionRef)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			return sub, nil
		}
	}
	if ev.CustomerRef != "" {
		sub, err := s.repo.GetSubscriptionByCustomerRef(ctx, ev.CustomerRef)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			return sub, nil
		}
	}
	return nil, nil
}

func (s *ReconcileService) targetStatus(ev Event) models.SubscriptionStatus {
	if ev.CancelAtPeriodEnd {
		return models.StatusCanceledPendingBasic
	}
	switch ev.Status {
	case "trialing":
		return models.StatusTrialing
	case "past_due", "unpaid", "incomplete", "incomplete_expired":
		return models.StatusPastDue
	default:
		return models.StatusActive
	}
}

func (s *ReconcileService) invalidateCache(userUID string) {
	cacheKey := fmt.Sprintf("subscription:active:%s", userUID)
	if err := s.cache.Invalidate(cacheKey); err != nil {
		s.log.Warn("failed to invalidate subscription cache", slog.String("key", cacheKey), sl.Err(err))
	}
}
