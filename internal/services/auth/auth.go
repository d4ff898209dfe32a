// Package services содержит логику бизнес-уровня для работы с пользователями и аутентификацией.
package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/magabrotheeeer/agent-marketplace/internal/lib/jwt"
	"github.com/magabrotheeeer/agent-marketplace/internal/lib/password"
	"github.com/magabrotheeeer/agent-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/agent-marketplace/internal/models"
	"github.com/magabrotheeeer/agent-marketplace/internal/tiers"
)

// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// RegisterUser сохраняет нового пользователя и возвращает его UID.
	RegisterUser(ctx context.Context, user models.User) (string, error)

	// GetUserByUsername возвращает пользователя по имени или ошибку, если не найден.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// ActivateBasicSubscription создаёт активную базовую подписку,
	// если активной подписки ещё нет.
	ActivateBasicSubscription(ctx context.Context, userUID string) (bool, error)

	// UpsertGrant выдаёт пользователю агента или включает уже выданного.
	UpsertGrant(ctx context.Context, userUID, agentID string) error
}

// AuthService отвечает за регистрацию, авторизацию и валидацию JWT.
type AuthService struct {
	users    UserRepository
	catalog  *tiers.Catalog
	jwtMaker jwt.Maker
	log      *slog.Logger
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, catalog *tiers.Catalog, jwtMaker jwt.Maker, log *slog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		catalog:  catalog,
		jwtMaker: jwtMaker,
		log:      log,
	}
}

// Register создает нового пользователя с хэшированием пароля и дефолтной ролью "user".
// Новому пользователю сразу активируется базовая подписка и выдаются агенты базового тарифа.
func (s *AuthService) Register(ctx context.Context, email, username, rawPassword string) (string, error) {
	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", err
	}
	user := models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hashed,
		Role:         "user", // дефолтная роль при регистрации
		IsActive:     true,
	}
	userUID, err := s.users.RegisterUser(ctx, user)
	if err != nil {
		return "", err
	}

	if _, err := s.users.ActivateBasicSubscription(ctx, userUID); err != nil {
		return "", err
	}
	for agentID := range s.catalog.CapabilitiesFor(models.TierBasic) {
		if err := s.users.UpsertGrant(ctx, userUID, agentID); err != nil {
			return "", err
		}
	}

	s.log.Info("registered new user", slog.String("username", username))
	return userUID, nil
}

// Login проверяет пароль пользователя и генерирует JWT.
func (s *AuthService) Login(ctx context.Context, username, rawPassword string) (token, role string, err error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return "", "", ErrInvalidCredentials
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return "", "", ErrInvalidCredentials
	}
	token, err = s.jwtMaker.GenerateToken(user.Username, user.Role, user.UID)
	if err != nil {
		s.log.Error("failed to generate token", sl.Err(err))
		return "", "", err
	}
	return token, user.Role, nil
}
