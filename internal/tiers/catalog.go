// Package tiers реализует каталог тарифов: сопоставление тарифного уровня
// с набором доступных агентов, ценой и внешним идентификатором цены
// платёжного провайдера. Каталог загружается один раз при старте процесса
// и далее не изменяется.
package tiers

import (
	"fmt"
	"sort"

	"github.com/magabrotheeeer/agent-marketplace/internal/config"
	"github.com/magabrotheeeer/agent-marketplace/internal/models"
)

// Plan описывает один тарифный уровень каталога.
type Plan struct {
	ID           models.Tier `json:"id"`
	Name         string      `json:"name"`
	MonthlyPrice float64     `json:"price"`
	Features     []string    `json:"features"`
	Agents       []string    `json:"agents"`
	PriceRef     string      `json:"price_id,omitempty"` // Пусто для бесплатного тарифа
}

// Catalog — неизменяемый каталог тарифов процесса.
type Catalog struct {
	plans      map[models.Tier]Plan
	byPriceRef map[string]models.Tier
	ordered    []Plan
}

// defaultPlans возвращает состав тарифов продукта. Внешние идентификаторы
// цен подставляются из конфигурации.
func defaultPlans(prices config.TierPrices) []Plan {
	return []Plan{
		{
			ID:           models.TierBasic,
			Name:         "Basic",
			MonthlyPrice: 0.00,
			Features: []string{
				"Access to Portfolio Analysis",
				"Limited API calls",
				"Single portfolio",
			},
			Agents: []string{"portfolio_agent"},
		},
		{
			ID:           models.TierProfessional,
			Name:         "Professional",
			MonthlyPrice: 29.99,
			Features: []string{
				"Everything in Basic",
				"Access to Stock Finder",
				"Access to Options Strategy Advisor",
				"Access to ETF Screener",
				"Access to Financial News Analyzer",
				"API access",
				"Up to 5 portfolios",
			},
			Agents: []string{
				"portfolio_agent",
				"stockfinder",
				"newsagent",
				"options_strategy_agent",
				"etf_screener_agent",
			},
			PriceRef: prices.ProfessionalPriceRef,
		},
		{
			ID:           models.TierEnterprise,
			Name:         "Enterprise",
			MonthlyPrice: 99.99,
			Features: []string{
				"Everything in Professional",
				"Access to Social Sentiment Analyzer",
				"Access to Macro & Sector Analyzer",
				"Access to Trading Agent",
				"Access to Portfolio Advisor",
				"Unlimited portfolios",
				"Priority support",
			},
			Agents: []string{
				"portfolio_agent",
				"stockfinder",
				"newsagent",
				"options_strategy_agent",
				"etf_screener_agent",
				"social_sentiment_agent",
				"macro_sector_agent",
				"tradeagent",
				"portfolioadvisoragent",
			},
			PriceRef: prices.EnterprisePriceRef,
		},
	}
}

// New собирает каталог тарифов и проверяет инвариант вложенности:
// набор агентов каждого тарифа обязан включать набор предыдущего
// (professional ⊇ basic, enterprise ⊇ professional). Нарушение — ошибка
// конфигурации, процесс не должен стартовать.
func New(prices config.TierPrices) (*Catalog, error) {
	return build(defaultPlans(prices))
}

func build(ordered []Plan) (*Catalog, error) {
	const op = "tiers.New"

	plans := make(map[models.Tier]Plan, len(ordered))
	byPriceRef := make(map[string]models.Tier)

	for _, p := range ordered {
		plans[p.ID] = p
		if p.PriceRef != "" {
			byPriceRef[p.PriceRef] = p.ID
		}
	}

	for i := 1; i < len(ordered); i++ {
		prev := toSet(ordered[i-1].Agents)
		for agentID := range prev {
			if !contains(ordered[i].Agents, agentID) {
				return nil, fmt.Errorf("%s: tier %s is missing agent %q from tier %s",
					op, ordered[i].ID, agentID, ordered[i-1].ID)
			}
		}
	}

	return &Catalog{
		plans:      plans,
		byPriceRef: byPriceRef,
		ordered:    ordered,
	}, nil
}

// CapabilitiesFor возвращает набор агентов, доступных тарифу.
// Неизвестный тариф трактуется как basic.
func (c *Catalog) CapabilitiesFor(tier models.Tier) map[string]struct{} {
	p, ok := c.plans[tier]
	if !ok {
		p = c.plans[models.TierBasic]
	}
	return toSet(p.Agents)
}

// Includes сообщает, доступен ли агент в заданном тарифе.
func (c *Catalog) Includes(tier models.Tier, agentID string) bool {
	_, ok := c.CapabilitiesFor(tier)[agentID]
	return ok
}

// TierForPriceRef возвращает тариф по внешнему идентификатору цены.
// Второе значение false означает, что идентификатор не сопоставлен каталогу.
func (c *Catalog) TierForPriceRef(ref string) (models.Tier, bool) {
	tier, ok := c.byPriceRef[ref]
	return tier, ok
}

// MinTierFor возвращает самый дешёвый тариф, включающий агента.
// Второе значение false означает, что агент не входит ни в один тариф.
func (c *Catalog) MinTierFor(agentID string) (models.Tier, bool) {
	for _, p := range c.ordered {
		if contains(p.Agents, agentID) {
			return p.ID, true
		}
	}
	return "", false
}

// Plans возвращает тарифы, отсортированные по цене.
func (c *Catalog) Plans() []Plan {
	result := make([]Plan, len(c.ordered))
	copy(result, c.ordered)
	sort.Slice(result, func(i, j int) bool {
		return result[i].MonthlyPrice < result[j].MonthlyPrice
	})
	return result
}

func toSet(agents []string) map[string]struct{} {
	set := make(map[string]struct{}, len(agents))
	for _, a := range agents {
		set[a] = struct{}{}
	}
	return set
}

func contains(agents []string, agentID string) bool {
	for _, a := range agents {
		if a == agentID {
			return true
		}
	}
	return false
}
