package cancel

import (
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

	"github.com/magabrotheeeer/agent-marketplace/internal/http/middlewarectx"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/response"
	subservice "github.com/magabrotheeeer/agent-marketplace/internal/services/subscription"
)

type SubscriptionServiceMock struct {
	mock.Mock
}

func (m *SubscriptionServiceMock) Cancel(ctx context.Context, userUID string) error {
	args := m.Called(ctx, userUID)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestCancelHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		userUID        string
		setupMock      func(m *SubscriptionServiceMock)
		wantStatusCode int
		wantStatus     string
		wantErrorPart  string
	}{
		{
			name:    "успешная отмена",
			userUID: "uid-1",
			setupMock: func(m *SubscriptionServiceMock) {
				m.On("Cancel", mock.Anything, "uid-1").Return(nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantStatus:     response.StatusOK,
		},
		{
			name:    "нет платной подписки",
			userUID: "uid-1",
			setupMock: func(m *SubscriptionServiceMock) {
				m.On("Cancel", mock.Anything, "uid-1").
					Return(subservice.ErrNoActivePaidSubscription).Once()
			},
			wantStatusCode: http.StatusNotFound,
			wantStatus:     response.StatusError,
			wantErrorPart:  "no active paid subscription",
		},
		{
			name:           "без авторизации",
			userUID:        "",
			setupMock:      func(_ *SubscriptionServiceMock) {},
			wantStatusCode: http.StatusUnauthorized,
			wantStatus:     response.StatusError,
			wantErrorPart:  "unauthorized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(SubscriptionServiceMock)
			tt.setupMock(svc)
			handler := New(newNoopLogger(), svc)

			req := httptest.NewRequest(http.MethodDelete, "/subscriptions", nil)
			if tt.userUID != "" {
				ctx := context.WithValue(req.Context(), middlewarectx.UserUID, tt.userUID)
				req = req.WithContext(ctx)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp["status"])
			if tt.wantErrorPart != "" {
				assert.Contains(t, resp["error"], tt.wantErrorPart)
			}

			svc.AssertExpectations(t)
		})
	}
}
