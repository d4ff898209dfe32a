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

	"github.com/magabrotheeeer/agent-marketplace/internal/models"
	services "github.com/magabrotheeeer/agent-marketplace/internal/services/usage"
)

// Мок для UsageRepository
type UsageRepoMock struct {
	mock.Mock
}

func (m *UsageRepoMock) IncrementUsage(ctx context.Context, rec models.UsageRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *UsageRepoMock) ListUsage(ctx context.Context, userUID string) ([]*models.MonthlyUsage, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MonthlyUsage), args.Error(1)
}

func newService(repo *UsageRepoMock) *services.UsageService {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return services.NewUsageService(repo, log)
}

func TestUsageService_Record(t *testing.T) {
	repo := new(UsageRepoMock)
	svc := newService(repo)

	repo.On("IncrementUsage", mock.Anything, mock.MatchedBy(func(rec models.UsageRecord) bool {
		now := time.Now().UTC()
		return rec.UserAgentID == 7 &&
			rec.SubscriptionID == 3 &&
			rec.RequestCount == 1 &&
			rec.TokenCount == 42 &&
			rec.Month == int(now.Month()) &&
			rec.Year == now.Year()
	})).Return(nil).Once()

	err := svc.Record(context.Background(), 7, 3, 42)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestUsageService_Record_RepositoryError(t *testing.T) {
	repo := new(UsageRepoMock)
	svc := newService(repo)

	repo.On("IncrementUsage", mock.Anything, mock.Anything).
		Return(errors.New("db down")).Once()

	err := svc.Record(context.Background(), 7, 3, 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestUsageService_Stats(t *testing.T) {
	repo := new(UsageRepoMock)
	svc := newService(repo)

	lastUsed := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	repo.On("ListUsage", mock.Anything, "uid-1").Return([]*models.MonthlyUsage{
		{AgentID: "stockfinder", Month: 2, Year: 2026, Requests: 5, Tokens: 500, LastUsed: lastUsed},
		{AgentID: "stockfinder", Month: 1, Year: 2026, Requests: 3, Tokens: 300, LastUsed: lastUsed},
		{AgentID: "portfolio_agent", Month: 2, Year: 2026, Requests: 1, Tokens: 40, LastUsed: lastUsed},
	}, nil).Once()

	stats, err := svc.Stats(context.Background(), "uid-1")
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "stockfinder", stats[0].AgentID)
	assert.Equal(t, 8, stats[0].TotalRequests)
	assert.Equal(t, 800, stats[0].TotalTokens)
	assert.Len(t, stats[0].Monthly, 2)

	assert.Equal(t, "portfolio_agent", stats[1].AgentID)
	assert.Equal(t, 1, stats[1].TotalRequests)
	assert.Equal(t, 40, stats[1].TotalTokens)
}

func TestUsageService_Stats_Empty(t *testing.T) {
	repo := new(UsageRepoMock)
	svc := newService(repo)

	repo.On("ListUsage", mock.Anything, "uid-2").Return([]*models.MonthlyUsage{}, nil).Once()

	stats, err := svc.Stats(context.Background(), "uid-2")
	require.NoError(t, err)
	assert.Empty(t, stats)
}
