package repository

import (
	"context"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/agent-marketplace/internal/models"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя
func (f *TestDataFactory) CreateUser(t *testing.T, userUID, username, email, passwordHash, role string) {
	_, err := f.storage.DB.Exec(`INSERT INTO users (uid, username, email, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5, true)`,
		userUID, username, email, passwordHash, role)
	require.NoError(t, err)
}

// CreateSubscription создает тестовую подписку и возвращает её ID
func (f *TestDataFactory) CreateSubscription(t *testing.T, userUID string, tier models.Tier,
	status models.SubscriptionStatus, isActive, autoRenew bool) int {
	var id int
	err := f.storage.DB.QueryRow(`INSERT INTO subscriptions
		(user_uid, tier, status, is_active, auto_renew, started_at)
		VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING id`,
		userUID, tier, status, isActive, autoRenew).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreatePaidSubscription создает тестовую подписку с внешними идентификаторами провайдера
func (f *TestDataFactory) CreatePaidSubscription(t *testing.T, userUID string, tier models.Tier,
	customerRef, subscriptionRef string) int {
	var id int
	err := f.storage.DB.QueryRow(`INSERT INTO subscriptions
		(user_uid, tier, status, is_active, auto_renew, stripe_customer_id, stripe_subscription_id, started_at)
		VALUES ($1, $2, $3, true, true, $4, $5, NOW()) RETURNING id`,
		userUID, tier, models.StatusActive, customerRef, subscriptionRef).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateGrant создает тестовую запись о выданном агенте и возвращает её ID
func (f *TestDataFactory) CreateGrant(t *testing.T, userUID, agentID string, enabled bool) int {
	var id int
	err := f.storage.DB.QueryRow(`INSERT INTO user_agents (user_uid, agent_id, is_enabled)
		VALUES ($1, $2, $3) RETURNING id`,
		userUID, agentID, enabled).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateListing создает тестовую публикацию каталога и возвращает её ID
func (f *TestDataFactory) CreateListing(t *testing.T, sellerUID, name, status string) int {
	var id int
	err := f.storage.DB.QueryRow(`INSERT INTO agent_listings
		(seller_uid, name, short_description, category, status)
		VALUES ($1, $2, 'test description', 'finance', $3) RETURNING id`,
		sellerUID, name, status).Scan(&id)
	require.NoError(t, err)
	return id
}

// TestVerification содержит общие функции для проверки результатов тестов
type TestVerification struct {
	storage *Storage
}

// NewTestVerification создает новый объект для проверки результатов
func NewTestVerification(storage *Storage) *TestVerification {
	return &TestVerification{storage: storage}
}

// VerifySubscriptionStatus проверяет статус и активность подписки
func (v *TestVerification) VerifySubscriptionStatus(t *testing.T, subscriptionID int,
	expectedStatus models.SubscriptionStatus, expectedActive bool) {
	var status string
	var isActive bool
	err := v.storage.DB.QueryRow("SELECT status, is_active FROM subscriptions WHERE id = $1", subscriptionID).
		Scan(&status, &isActive)
	require.NoError(t, err)
	require.Equal(t, string(expectedStatus), status)
	require.Equal(t, expectedActive, isActive)
}

// VerifyActiveSubscriptionCount проверяет количество активных подписок пользователя
func (v *TestVerification) VerifyActiveSubscriptionCount(t *testing.T, userUID string, expected int) {
	var count int
	err := v.storage.DB.QueryRow(
		"SELECT COUNT(*) FROM subscriptions WHERE user_uid = $1 AND is_active = true", userUID).
		Scan(&count)
	require.NoError(t, err)
	require.Equal(t, expected, count)
}

// NewTestUserUID возвращает случайный UID пользователя для тестов
func NewTestUserUID() string {
	return uuid.New().String()
}

// setupTestDatabase создает тестовую БД с контейнером PostgreSQL
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForListeningPort(nat.Port("5432/tcp")),
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2),
			).WithDeadline(3*time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	// Пробуем подключиться несколько раз с ретраями
	var storage *Storage
	for range 10 {
		storage, err = New(connStr)
		if err == nil {
			err = storage.DB.Ping()
			if err == nil {
				break
			}
		}
		time.Sleep(1 * time.Second)
	}
	require.NoError(t, err, "Failed to create storage after retries")

	// Создаем таблицы
	_, err = storage.DB.Exec(`
        CREATE EXTENSION IF NOT EXISTS "pgcrypto";

        CREATE TABLE users (
            uid UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            email TEXT NOT NULL UNIQUE,
            username TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'user',
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );

        CREATE TABLE subscriptions (
            id SERIAL PRIMARY KEY,
            user_uid UUID NOT NULL REFERENCES users(uid) ON DELETE CASCADE,
            tier TEXT NOT NULL,
            status TEXT NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT FALSE,
            auto_renew BOOLEAN NOT NULL DEFAULT FALSE,
            stripe_customer_id TEXT,
            stripe_subscription_id TEXT,
            started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            ended_at TIMESTAMPTZ
        );

        CREATE UNIQUE INDEX subscriptions_one_active_per_user
            ON subscriptions (user_uid) WHERE is_active;

        CREATE TABLE user_agents (
            id SERIAL PRIMARY KEY,
            user_uid UUID NOT NULL REFERENCES users(uid) ON DELETE CASCADE,
            agent_id TEXT NOT NULL,
            is_enabled BOOLEAN NOT NULL DEFAULT TRUE,
            settings JSONB NOT NULL DEFAULT '{}'::jsonb,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE (user_uid, agent_id)
        );

        CREATE TABLE agent_usage (
            id SERIAL PRIMARY KEY,
            user_agent_id INTEGER NOT NULL REFERENCES user_agents(id) ON DELETE CASCADE,
            subscription_id INTEGER NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
            request_count INTEGER NOT NULL DEFAULT 0,
            token_count INTEGER NOT NULL DEFAULT 0,
            last_used TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            month INTEGER NOT NULL,
            year INTEGER NOT NULL,
            UNIQUE (user_agent_id, subscription_id, month, year)
        );

        CREATE TABLE agent_listings (
            id SERIAL PRIMARY KEY,
            seller_uid UUID NOT NULL REFERENCES users(uid) ON DELETE CASCADE,
            name TEXT NOT NULL,
            short_description TEXT NOT NULL,
            category TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'draft',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );

        CREATE TABLE agent_purchases (
            id SERIAL PRIMARY KEY,
            listing_id INTEGER NOT NULL REFERENCES agent_listings(id) ON DELETE CASCADE,
            buyer_uid UUID NOT NULL REFERENCES users(uid) ON DELETE CASCADE,
            transaction_id TEXT NOT NULL,
            amount_cents INTEGER NOT NULL,
            currency TEXT NOT NULL DEFAULT 'usd',
            status TEXT NOT NULL DEFAULT 'completed',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );

        CREATE TABLE agent_reviews (
            id SERIAL PRIMARY KEY,
            listing_id INTEGER NOT NULL REFERENCES agent_listings(id) ON DELETE CASCADE,
            reviewer_uid UUID NOT NULL REFERENCES users(uid) ON DELETE CASCADE,
            purchase_id INTEGER NOT NULL REFERENCES agent_purchases(id) ON DELETE CASCADE,
            rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
            title TEXT NOT NULL DEFAULT '',
            content TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE (listing_id, reviewer_uid)
        );

        CREATE TABLE agent_wishlists (
            id SERIAL PRIMARY KEY,
            user_uid UUID NOT NULL REFERENCES users(uid) ON DELETE CASCADE,
            listing_id INTEGER NOT NULL REFERENCES agent_listings(id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE (user_uid, listing_id)
        );

        CREATE TABLE portfolios (
            id SERIAL PRIMARY KEY,
            user_uid UUID NOT NULL REFERENCES users(uid) ON DELETE CASCADE,
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            positions JSONB NOT NULL DEFAULT '[]'::jsonb,
            is_public BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );

        CREATE TABLE analysis_results (
            id SERIAL PRIMARY KEY,
            user_uid UUID NOT NULL REFERENCES users(uid) ON DELETE CASCADE,
            agent_id TEXT NOT NULL,
            result_type TEXT NOT NULL,
            input_data JSONB NOT NULL DEFAULT '{}'::jsonb,
            result_data JSONB NOT NULL DEFAULT '{}'::jsonb,
            is_saved BOOLEAN NOT NULL DEFAULT FALSE,
            name TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
    `)
	require.NoError(t, err, "Failed to create tables")

	cleanup := func() {
		if storage != nil && storage.DB != nil {
			_ = storage.DB.Close()
		}
		if pgContainer != nil {
			_ = pgContainer.Terminate(ctx)
		}
	}

	return storage, cleanup
}
