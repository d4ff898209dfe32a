package login

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/agent-marketplace/internal/http/response"
	"github.com/magabrotheeeer/agent-marketplace/internal/models"
	authservice "github.com/magabrotheeeer/agent-marketplace/internal/services/auth"
)

type AuthServiceMock struct {
	mock.Mock
}

func (m *AuthServiceMock) Login(ctx context.Context, username, password string) (string, string, error) {
	args := m.Called(ctx, username, password)
	return args.String(0), args.String(1), args.Error(2)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestLoginHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    any
		setupMock      func(m *AuthServiceMock)
		wantStatusCode int
		wantStatus     string
		wantErrorPart  string
		wantToken      string
	}{
		{
			name:        "успешный вход",
			requestBody: models.LoginRequest{Username: "trader1", Password: "password123"},
			setupMock: func(m *AuthServiceMock) {
				m.On("Login", mock.Anything, "trader1", "password123").
					Return("tok-abc", "user", nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantStatus:     response.StatusOK,
			wantToken:      "tok-abc",
		},
		{
			name:        "неверные учётные данные",
			requestBody: models.LoginRequest{Username: "trader1", Password: "wrong"},
			setupMock: func(m *AuthServiceMock) {
				m.On("Login", mock.Anything, "trader1", "wrong").
					Return("", "", authservice.ErrInvalidCredentials).Once()
			},
			wantStatusCode: http.StatusUnauthorized,
			wantStatus:     response.StatusError,
			wantErrorPart:  "invalid username or password",
		},
		{
			name:           "без пароля не проходит валидацию",
			requestBody:    models.LoginRequest{Username: "trader1"},
			setupMock:      func(_ *AuthServiceMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantStatus:     response.StatusError,
			wantErrorPart:  "field Password is a required field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(AuthServiceMock)
			tt.setupMock(svc)
			handler := New(newNoopLogger(), svc)

			bodyBytes, err := json.Marshal(tt.requestBody)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(bodyBytes))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp["status"])
			if tt.wantErrorPart != "" {
				assert.Contains(t, resp["error"], tt.wantErrorPart)
			} else {
				data := resp["data"].(map[string]any)
				assert.Equal(t, tt.wantToken, data["token"])
				assert.Equal(t, "user", data["role"])
			}

			svc.AssertExpectations(t)
		})
	}
}
