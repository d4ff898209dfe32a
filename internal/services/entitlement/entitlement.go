// Package services содержит бизнес-логику проверки доступа пользователей к агентам.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/agent-marketplace/internal/agents"
	"github.com/magabrotheeeer/agent-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/agent-marketplace/internal/models"
	"github.com/magabrotheeeer/agent-marketplace/internal/tiers"
)

// Ошибки отказа в доступе. Обработчики по ним выбирают HTTP-статус.
var (
	// ErrUnknownAgent возвращается при запросе несуществующего агента.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrTierExcludesCapability возвращается, когда тариф не включает агента.
	ErrTierExcludesCapability = errors.New("tier does not include capability")
	// ErrCapabilityDisabled возвращается, когда пользователь сам выключил агента.
	ErrCapabilityDisabled = errors.New("capability explicitly disabled by user")
)

// EntitlementRepository определяет методы хранилища для проверки доступа.
type EntitlementRepository interface {
	// GetActiveSubscription возвращает активную подписку или nil, если её нет.
	GetActiveSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
	// GetGrant возвращает запись о выданном агенте или nil, если её нет.
	GetGrant(ctx context.Context, userUID, agentID string) (*models.CapabilityGrant, error)
	// UpsertGrant выдаёт агента или включает уже выданного.
	UpsertGrant(ctx context.Context, userUID, agentID string) error
	// SetGrantEnabled включает или выключает выданного агента.
	SetGrantEnabled(ctx context.Context, userUID, agentID string, enabled bool) (int, error)
	// ListGrants возвращает все записи о выданных агентах.
	ListGrants(ctx context.Context, userUID string) ([]*models.CapabilityGrant, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Access описывает результат успешной проверки доступа.
type Access struct {
	Tier         models.Tier
	Subscription *models.Subscription
	Grant        *models.CapabilityGrant
}

// EntitlementService решает, какие агенты доступны пользователю на его тарифе.
type EntitlementService struct {
	repo     EntitlementRepository
	catalog  *tiers.Catalog
	registry *agents.Registry
	cache    Cache
	log      *slog.Logger
}

// NewEntitlementService создает новый экземпляр EntitlementService.
func NewEntitlementService(repo EntitlementRepository, catalog *tiers.Catalog,
	registry *agents.Registry, cache Cache, log *slog.Logger) *EntitlementService {
	return &EntitlementService{
		repo:     repo,
		catalog:  catalog,
		registry: registry,
		cache:    cache,
		log:      log,
	}
}

// CheckAccess проверяет, доступен ли агент пользователю. Порядок проверок:
// тариф активной подписки должен включать агента, затем учитывается
// пользовательское выключение. Если тариф включает агента, но записи о выдаче
// ещё нет, она создаётся лениво.
func (s *EntitlementService) CheckAccess(ctx context.Context, userUID, agentID string) (*Access, error) {
	if _, _, ok := s.registry.Describe(agentID); !ok {
		return nil, ErrUnknownAgent
	}

	sub, err := s.activeSubscription(ctx, userUID)
	if err != nil {
		return nil, err
	}
	tier := models.TierBasic
	if sub != nil {
		tier = sub.Tier
	}

	if !s.catalog.Includes(tier, agentID) {
		return nil, ErrTierExcludesCapability
	}

	grant, err := s.repo.GetGrant(ctx, userUID, agentID)
	if err != nil {
		return nil, err
	}
	if grant == nil {
		// Ленивая выдача: тариф включает агента, записи ещё не было.
		if err := s.repo.UpsertGrant(ctx, userUID, agentID); err != nil {
			return nil, err
		}
		grant, err = s.repo.GetGrant(ctx, userUID, agentID)
		if err != nil {
			return nil, err
		}
		s.log.Info("lazily provisioned agent grant",
			slog.String("user_uid", userUID), slog.String("agent_id", agentID))
	}
	if grant != nil && !grant.IsEnabled {
		return nil, ErrCapabilityDisabled
	}

	return &Access{Tier: tier, Subscription: sub, Grant: grant}, nil
}

// Toggle включает или выключает агента для пользователя. Выключать и включать
// можно только агентов, входящих в текущий тариф.
func (s *EntitlementService) Toggle(ctx context.Context, userUID, agentID string, enabled bool) error {
	if _, _, ok := s.registry.Describe(agentID); !ok {
		return ErrUnknownAgent
	}

	sub, err := s.activeSubscription(ctx, userUID)
	if err != nil {
		return err
	}
	tier := models.TierBasic
	if sub != nil {
		tier = sub.Tier
	}
	if !s.catalog.Includes(tier, agentID) {
		return ErrTierExcludesCapability
	}

	rows, err := s.repo.SetGrantEnabled(ctx, userUID, agentID, enabled)
	if err != nil {
		return err
	}
	if rows == 0 {
		// Записи ещё нет: выдаём и сразу выставляем запрошенное состояние.
		if err := s.repo.UpsertGrant(ctx, userUID, agentID); err != nil {
			return err
		}
		if !enabled {
			if _, err := s.repo.SetGrantEnabled(ctx, userUID, agentID, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// ListAgents возвращает каталог агентов с признаком доступности для пользователя.
func (s *EntitlementService) ListAgents(ctx context.Context, userUID string) ([]models.AgentInfo, error) {
	sub, err := s.activeSubscription(ctx, userUID)
	if err != nil {
		return nil, err
	}
	tier := models.TierBasic
	if sub != nil {
		tier = sub.Tier
	}

	grants, err := s.repo.ListGrants(ctx, userUID)
	if err != nil {
		return nil, err
	}
	disabled := make(map[string]bool, len(grants))
	for _, g := range grants {
		if !g.IsEnabled {
			disabled[g.AgentID] = true
		}
	}

	var result []models.AgentInfo
	for _, plan := range s.catalog.Plans() {
		for _, agentID := range plan.Agents {
			minTier, ok := s.catalog.MinTierFor(agentID)
			if !ok || minTier != plan.ID {
				continue
			}
			name, description, ok := s.registry.Describe(agentID)
			if !ok {
				continue
			}
			result = append(result, models.AgentInfo{
				ID:               agentID,
				Name:             name,
				Description:      description,
				SubscriptionTier: string(minTier),
				Enabled:          s.catalog.Includes(tier, agentID) && !disabled[agentID],
			})
		}
	}
	return result, nil
}

// activeSubscription возвращает активную подписку пользователя, используя кеш.
// Промах и ошибка кеша не фатальны, источником истины остаётся хранилище.
func (s *EntitlementService) activeSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	cacheKey := fmt.Sprintf("subscription:active:%s", userUID)

	var cached models.Subscription
	found, err := s.cache.Get(cacheKey, &cached)
	if err != nil {
		s.log.Warn("failed to read subscription from cache", slog.String("key", cacheKey), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	sub, err := s.repo.GetActiveSubscription(ctx, userUID)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		if err := s.cache.Set(cacheKey, sub, 5*time.Minute); err != nil {
			s.log.Warn("failed to cache subscription", slog.String("key", cacheKey), sl.Err(err))
		}
	}
	return sub, nil
}
