package register

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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
)

type AuthServiceMock struct {
	mock.Mock
}

func (m *AuthServiceMock) Register(ctx context.Context, email, username, password string) (string, error) {
	args := m.Called(ctx, email, username, password)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestRegisterHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    any
		setupMock      func(m *AuthServiceMock)
		wantStatusCode int
		wantStatus     string
		wantErrorPart  string
	}{
		{
			name: "успешная регистрация",
			requestBody: models.RegisterRequest{
				Email:    "trader@example.com",
				Username: "trader1",
				Password: "password123",
			},
			setupMock: func(m *AuthServiceMock) {
				m.On("Register", mock.Anything, "trader@example.com", "trader1", "password123").
					Return("uid-1", nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantStatus:     response.StatusOK,
		},
		{
			name:           "некорректный json",
			requestBody:    "not a json",
			setupMock:      func(_ *AuthServiceMock) {},
			wantStatusCode: http.StatusBadRequest,
			wantStatus:     response.StatusError,
			wantErrorPart:  "invalid request body",
		},
		{
			name: "короткий пароль не проходит валидацию",
			requestBody: models.RegisterRequest{
				Email:    "trader@example.com",
				Username: "trader1",
				Password: "short",
			},
			setupMock:      func(_ *AuthServiceMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantStatus:     response.StatusError,
			wantErrorPart:  "field Password is too short",
		},
		{
			name: "ошибка сервиса",
			requestBody: models.RegisterRequest{
				Email:    "trader@example.com",
				Username: "trader1",
				Password: "password123",
			},
			setupMock: func(m *AuthServiceMock) {
				m.On("Register", mock.Anything, "trader@example.com", "trader1", "password123").
					Return("", errors.New("db down")).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
			wantStatus:     response.StatusError,
			wantErrorPart:  "could not register user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(AuthServiceMock)
			tt.setupMock(svc)
			handler := New(newNoopLogger(), svc)

			var bodyBytes []byte
			switch v := tt.requestBody.(type) {
			case string:
				bodyBytes = []byte(v)
			default:
				var err error
				bodyBytes, err = json.Marshal(v)
				require.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(bodyBytes))
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
				assert.Equal(t, "uid-1", data["uid"])
			}

			svc.AssertExpectations(t)
		})
	}
}
