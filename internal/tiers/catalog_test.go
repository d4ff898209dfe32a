package tiers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/agent-marketplace/internal/config"
	"github.com/magabrotheeeer/agent-marketplace/internal/models"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	catalog, err := New(config.TierPrices{
		ProfessionalPriceRef: "price_pro",
		EnterprisePriceRef:   "price_ent",
	})
	require.NoError(t, err)
	return catalog
}

func TestCapabilitiesFor(t *testing.T) {
	catalog := testCatalog(t)

	tests := []struct {
		name       string
		tier       models.Tier
		wantAgent  string
		wantAbsent string
	}{
		{
			name:       "basic включает только portfolio_agent",
			tier:       models.TierBasic,
			wantAgent:  "portfolio_agent",
			wantAbsent: "stockfinder",
		},
		{
			name:       "professional включает stockfinder",
			tier:       models.TierProfessional,
			wantAgent:  "stockfinder",
			wantAbsent: "tradeagent",
		},
		{
			name:      "enterprise включает tradeagent",
			tier:      models.TierEnterprise,
			wantAgent: "tradeagent",
		},
		{
			name:       "неизвестный тариф трактуется как basic",
			tier:       models.Tier("unknown"),
			wantAgent:  "portfolio_agent",
			wantAbsent: "stockfinder",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := catalog.CapabilitiesFor(tt.tier)
			assert.Contains(t, caps, tt.wantAgent)
			if tt.wantAbsent != "" {
				assert.NotContains(t, caps, tt.wantAbsent)
			}
		})
	}
}

func TestSupersetInvariant(t *testing.T) {
	catalog := testCatalog(t)

	for agentID := range catalog.CapabilitiesFor(models.TierBasic) {
		assert.True(t, catalog.Includes(models.TierProfessional, agentID))
	}
	for agentID := range catalog.CapabilitiesFor(models.TierProfessional) {
		assert.True(t, catalog.Includes(models.TierEnterprise, agentID))
	}
}

func TestBuild_RejectsBrokenSuperset(t *testing.T) {
	_, err := build([]Plan{
		{ID: models.TierBasic, Agents: []string{"portfolio_agent"}},
		{ID: models.TierProfessional, Agents: []string{"stockfinder"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "portfolio_agent")
}

func TestTierForPriceRef(t *testing.T) {
	catalog := testCatalog(t)

	tier, ok := catalog.TierForPriceRef("price_pro")
	require.True(t, ok)
	assert.Equal(t, models.TierProfessional, tier)

	tier, ok = catalog.TierForPriceRef("price_ent")
	require.True(t, ok)
	assert.Equal(t, models.TierEnterprise, tier)

	_, ok = catalog.TierForPriceRef("price_unknown")
	assert.False(t, ok)
}

func TestMinTierFor(t *testing.T) {
	catalog := testCatalog(t)

	tier, ok := catalog.MinTierFor("portfolio_agent")
	require.True(t, ok)
	assert.Equal(t, models.TierBasic, tier)

	tier, ok = catalog.MinTierFor("stockfinder")
	require.True(t, ok)
	assert.Equal(t, models.TierProfessional, tier)

	tier, ok = catalog.MinTierFor("tradeagent")
	require.True(t, ok)
	assert.Equal(t, models.TierEnterprise, tier)

	_, ok = catalog.MinTierFor("nosuchagent")
	assert.False(t, ok)
}

func TestPlans_SortedByPrice(t *testing.T) {
	catalog := testCatalog(t)

	plans := catalog.Plans()
	require.Len(t, plans, 3)
	assert.Equal(t, models.TierBasic, plans[0].ID)
	assert.Equal(t, models.TierProfessional, plans[1].ID)
	assert.Equal(t, models.TierEnterprise, plans[2].ID)
}
