package create

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

	"github.com/magabrotheeeer/agent-marketplace/internal/http/middlewarectx"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/response"
	"github.com/magabrotheeeer/agent-marketplace/internal/models"
	subservice "github.com/magabrotheeeer/agent-marketplace/internal/services/subscription"
)

type SubscriptionServiceMock struct {
	mock.Mock
}

func (m *SubscriptionServiceMock) Create(ctx context.Context, userUID string, req models.CreateSubscriptionRequest) (*subservice.CreateResult, error) {
	args := m.Called(ctx, userUID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subservice.CreateResult), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newRequest(t *testing.T, body any, userUID string) *http.Request {
	t.Helper()
	bodyBytes, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewReader(bodyBytes))
	if userUID != "" {
		ctx := context.WithValue(req.Context(), middlewarectx.UserUID, userUID)
		req = req.WithContext(ctx)
	}
	return req
}

func TestCreateHandler_ServeHTTP(t *testing.T) {
	validBody := models.CreateSubscriptionRequest{
		PriceRef:         "price_pro_monthly",
		PaymentMethodRef: "pm_card_visa",
	}

	tests := []struct {
		name           string
		body           any
		userUID        string
		setupMock      func(m *SubscriptionServiceMock)
		wantStatusCode int
		wantStatus     string
		wantErrorPart  string
	}{
		{
			name:    "успешное оформление",
			body:    validBody,
			userUID: "uid-1",
			setupMock: func(m *SubscriptionServiceMock) {
				m.On("Create", mock.Anything, "uid-1", validBody).
					Return(&subservice.CreateResult{
						SubscriptionID: 8,
						Tier:           models.TierProfessional,
						Status:         models.StatusActive,
					}, nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantStatus:     response.StatusOK,
		},
		{
			name:    "повторное оформление отклоняется",
			body:    validBody,
			userUID: "uid-1",
			setupMock: func(m *SubscriptionServiceMock) {
				m.On("Create", mock.Anything, "uid-1", validBody).
					Return(nil, subservice.ErrActiveSubscriptionExists).Once()
			},
			wantStatusCode: http.StatusConflict,
			wantStatus:     response.StatusError,
			wantErrorPart:  "already exists",
		},
		{
			name:           "без идентификатора цены не проходит валидацию",
			body:           models.CreateSubscriptionRequest{PaymentMethodRef: "pm_card_visa"},
			userUID:        "uid-1",
			setupMock:      func(_ *SubscriptionServiceMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantStatus:     response.StatusError,
			wantErrorPart:  "field PriceRef is a required field",
		},
		{
			name:           "без авторизации",
			body:           validBody,
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

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, newRequest(t, tt.body, tt.userUID))

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp["status"])
			if tt.wantErrorPart != "" {
				assert.Contains(t, resp["error"], tt.wantErrorPart)
			} else {
				data := resp["data"].(map[string]any)
				assert.Equal(t, float64(8), data["subscription_id"])
				assert.Equal(t, "professional", data["tier"])
			}

			svc.AssertExpectations(t)
		})
	}
}
