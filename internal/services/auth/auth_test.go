package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/magabrotheeeer/agent-marketplace/internal/config"
	customjwt "github.com/magabrotheeeer/agent-marketplace/internal/lib/jwt"
	"github.com/magabrotheeeer/agent-marketplace/internal/lib/password"
	"github.com/magabrotheeeer/agent-marketplace/internal/models"
	services "github.com/magabrotheeeer/agent-marketplace/internal/services/auth"
	"github.com/magabrotheeeer/agent-marketplace/internal/tiers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Мок для UserRepository
type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) RegisterUser(ctx context.Context, user models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *UserRepoMock) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) ActivateBasicSubscription(ctx context.Context, userUID string) (bool, error) {
	args := m.Called(ctx, userUID)
	return args.Bool(0), args.Error(1)
}

func (m *UserRepoMock) UpsertGrant(ctx context.Context, userUID, agentID string) error {
	args := m.Called(ctx, userUID, agentID)
	return args.Error(0)
}

// Мок для jwt.Maker
type JwtMakerMock struct {
	mock.Mock
}

func (m *JwtMakerMock) GenerateToken(username, role, useruid string) (string, error) {
	args := m.Called(username, role)
	return args.String(0), args.Error(1)
}

func (m *JwtMakerMock) ParseToken(token string) (*customjwt.CustomClaims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customjwt.CustomClaims), args.Error(1)
}

func newTestCatalog(t *testing.T) *tiers.Catalog {
	catalog, err := tiers.New(config.TierPrices{})
	require.NoError(t, err)
	return catalog
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAuthService_Register(t *testing.T) {
	tests := []struct {
		name        string
		email       string
		username    string
		password    string
		setupMocks  func(r *UserRepoMock)
		wantUserUID string
		wantErr     bool
		errMsg      string
	}{
		{
			name:     "successful registration provisions basic tier",
			email:    "test@example.com",
			username: "testuser",
			password: "password123",
			setupMocks: func(r *UserRepoMock) {
				r.On("RegisterUser", mock.Anything, mock.MatchedBy(func(user models.User) bool {
					return user.Email == "test@example.com" &&
						user.Username == "testuser" &&
						user.PasswordHash != "" &&
						user.Role == "user"
				})).Return("some-uuid-string", nil).Once()
				r.On("ActivateBasicSubscription", mock.Anything, "some-uuid-string").
					Return(true, nil).Once()
				r.On("UpsertGrant", mock.Anything, "some-uuid-string", "portfolio_agent").
					Return(nil).Once()
			},
			wantUserUID: "some-uuid-string",
			wantErr:     false,
		},
		{
			name:     "repository error",
			email:    "test@example.com",
			username: "testuser",
			password: "password123",
			setupMocks: func(r *UserRepoMock) {
				r.On("RegisterUser", mock.Anything, mock.Anything).Return("", errors.New("db error")).Once()
			},
			wantUserUID: "",
			wantErr:     true,
			errMsg:      "db error",
		},
		{
			name:     "grant provisioning error",
			email:    "test@example.com",
			username: "testuser",
			password: "password123",
			setupMocks: func(r *UserRepoMock) {
				r.On("RegisterUser", mock.Anything, mock.Anything).Return("some-uuid-string", nil).Once()
				r.On("ActivateBasicSubscription", mock.Anything, "some-uuid-string").
					Return(true, nil).Once()
				r.On("UpsertGrant", mock.Anything, "some-uuid-string", "portfolio_agent").
					Return(errors.New("db error")).Once()
			},
			wantUserUID: "",
			wantErr:     true,
			errMsg:      "db error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(UserRepoMock)
			jwtMock := new(JwtMakerMock)
			svc := services.NewAuthService(repo, newTestCatalog(t), jwtMock, discardLogger())

			tt.setupMocks(repo)

			got, err := svc.Register(context.Background(), tt.email, tt.username, tt.password)
			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantUserUID, got)
			}

			repo.AssertExpectations(t)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	rawPassword := "correctpassword"
	hashed, err := password.GetHash(rawPassword)
	require.NoError(t, err)

	user := &models.User{
		UID:          "uid-1",
		Username:     "testuser",
		PasswordHash: hashed,
		Role:         "user",
	}

	tests := []struct {
		name       string
		username   string
		password   string
		setupMocks func(r *UserRepoMock, j *JwtMakerMock)
		wantToken  string
		wantErr    error
	}{
		{
			name:     "successful login",
			username: "testuser",
			password: rawPassword,
			setupMocks: func(r *UserRepoMock, j *JwtMakerMock) {
				r.On("GetUserByUsername", mock.Anything, "testuser").Return(user, nil).Once()
				j.On("GenerateToken", "testuser", "user").Return("token-abc", nil).Once()
			},
			wantToken: "token-abc",
		},
		{
			name:     "wrong password",
			username: "testuser",
			password: "wrongpassword",
			setupMocks: func(r *UserRepoMock, _ *JwtMakerMock) {
				r.On("GetUserByUsername", mock.Anything, "testuser").Return(user, nil).Once()
			},
			wantErr: services.ErrInvalidCredentials,
		},
		{
			name:     "unknown user",
			username: "ghost",
			password: rawPassword,
			setupMocks: func(r *UserRepoMock, _ *JwtMakerMock) {
				r.On("GetUserByUsername", mock.Anything, "ghost").
					Return(nil, errors.New("no rows")).Once()
			},
			wantErr: services.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(UserRepoMock)
			jwtMock := new(JwtMakerMock)
			svc := services.NewAuthService(repo, newTestCatalog(t), jwtMock, discardLogger())

			tt.setupMocks(repo, jwtMock)

			token, role, err := svc.Login(context.Background(), tt.username, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantToken, token)
				assert.Equal(t, "user", role)
			}

			repo.AssertExpectations(t)
			jwtMock.AssertExpectations(t)
		})
	}
}
