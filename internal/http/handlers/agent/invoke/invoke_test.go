package invoke

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

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/agent-marketplace/internal/agents"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/middlewarectx"
	"github.com/magabrotheeeer/agent-marketplace/internal/http/response"
	"github.com/magabrotheeeer/agent-marketplace/internal/models"
	entservice "github.com/magabrotheeeer/agent-marketplace/internal/services/entitlement"
)

type EntitlementsMock struct {
	mock.Mock
}

func (m *EntitlementsMock) CheckAccess(ctx context.Context, userUID, agentID string) (*entservice.Access, error) {
	args := m.Called(ctx, userUID, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entservice.Access), args.Error(1)
}

type RegistryMock struct {
	mock.Mock
}

func (m *RegistryMock) Get(agentID string) (agents.Backend, error) {
	args := m.Called(agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(agents.Backend), args.Error(1)
}

type BackendMock struct {
	mock.Mock
}

func (m *BackendMock) ID() string          { return "stockfinder" }
func (m *BackendMock) Name() string        { return "Stock Finder" }
func (m *BackendMock) Description() string { return "screener" }

func (m *BackendMock) Invoke(ctx context.Context, input map[string]any) (*agents.Result, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*agents.Result), args.Error(1)
}

type UsageRecorderMock struct {
	mock.Mock
}

func (m *UsageRecorderMock) Record(ctx context.Context, grantID, subscriptionID, tokens int) error {
	args := m.Called(ctx, grantID, subscriptionID, tokens)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func grantedAccess() *entservice.Access {
	return &entservice.Access{
		Tier:         models.TierProfessional,
		Subscription: &models.Subscription{ID: 3, UserUID: "uid-1"},
		Grant:        &models.CapabilityGrant{ID: 7, UserUID: "uid-1", AgentID: "stockfinder", IsEnabled: true},
	}
}

func doRequest(t *testing.T, handler *Handler, agentID, userUID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	bodyBytes, err := json.Marshal(body)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Post("/agents/{id}/invoke", handler.ServeHTTP)

	req := httptest.NewRequest(http.MethodPost, "/agents/"+agentID+"/invoke", bytes.NewReader(bodyBytes))
	if userUID != "" {
		ctx := context.WithValue(req.Context(), middlewarectx.UserUID, userUID)
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestInvokeHandler_ServeHTTP(t *testing.T) {
	input := map[string]any{"max_pe": 15.0}
	reqBody := models.InvokeAgentRequest{Input: input}

	tests := []struct {
		name           string
		setupMocks     func(e *EntitlementsMock, r *RegistryMock, b *BackendMock, u *UsageRecorderMock)
		wantStatusCode int
		wantStatus     string
		wantErrorPart  string
	}{
		{
			name: "успешный вызов учитывается в статистике",
			setupMocks: func(e *EntitlementsMock, r *RegistryMock, b *BackendMock, u *UsageRecorderMock) {
				e.On("CheckAccess", mock.Anything, "uid-1", "stockfinder").
					Return(grantedAccess(), nil).Once()
				b.On("Invoke", mock.Anything, input).
					Return(&agents.Result{AgentID: "stockfinder", Data: map[string]any{"matches": []any{}}}, nil).Once()
				r.On("Get", "stockfinder").Return(b, nil).Once()
				u.On("Record", mock.Anything, 7, 3, mock.Anything).Return(nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantStatus:     response.StatusOK,
		},
		{
			name: "агент вне тарифа",
			setupMocks: func(e *EntitlementsMock, _ *RegistryMock, _ *BackendMock, _ *UsageRecorderMock) {
				e.On("CheckAccess", mock.Anything, "uid-1", "stockfinder").
					Return(nil, entservice.ErrTierExcludesCapability).Once()
			},
			wantStatusCode: http.StatusForbidden,
			wantStatus:     response.StatusError,
			wantErrorPart:  "not available on your subscription tier",
		},
		{
			name: "агент выключен пользователем",
			setupMocks: func(e *EntitlementsMock, _ *RegistryMock, _ *BackendMock, _ *UsageRecorderMock) {
				e.On("CheckAccess", mock.Anything, "uid-1", "stockfinder").
					Return(nil, entservice.ErrCapabilityDisabled).Once()
			},
			wantStatusCode: http.StatusForbidden,
			wantStatus:     response.StatusError,
			wantErrorPart:  "disabled",
		},
		{
			name: "неизвестный агент",
			setupMocks: func(e *EntitlementsMock, _ *RegistryMock, _ *BackendMock, _ *UsageRecorderMock) {
				e.On("CheckAccess", mock.Anything, "uid-1", "stockfinder").
					Return(nil, entservice.ErrUnknownAgent).Once()
			},
			wantStatusCode: http.StatusNotFound,
			wantStatus:     response.StatusError,
			wantErrorPart:  "unknown agent",
		},
		{
			name: "ошибка бэкенда агента",
			setupMocks: func(e *EntitlementsMock, r *RegistryMock, b *BackendMock, _ *UsageRecorderMock) {
				e.On("CheckAccess", mock.Anything, "uid-1", "stockfinder").
					Return(grantedAccess(), nil).Once()
				b.On("Invoke", mock.Anything, input).
					Return(nil, errors.New("unknown outlook")).Once()
				r.On("Get", "stockfinder").Return(b, nil).Once()
			},
			wantStatusCode: http.StatusBadRequest,
			wantStatus:     response.StatusError,
			wantErrorPart:  "agent invocation failed",
		},
		{
			name: "сбой учёта не мешает ответу",
			setupMocks: func(e *EntitlementsMock, r *RegistryMock, b *BackendMock, u *UsageRecorderMock) {
				e.On("CheckAccess", mock.Anything, "uid-1", "stockfinder").
					Return(grantedAccess(), nil).Once()
				b.On("Invoke", mock.Anything, input).
					Return(&agents.Result{AgentID: "stockfinder", Data: map[string]any{}}, nil).Once()
				r.On("Get", "stockfinder").Return(b, nil).Once()
				u.On("Record", mock.Anything, 7, 3, mock.Anything).
					Return(errors.New("db down")).Once()
			},
			wantStatusCode: http.StatusOK,
			wantStatus:     response.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entitlements := new(EntitlementsMock)
			registry := new(RegistryMock)
			backend := new(BackendMock)
			usage := new(UsageRecorderMock)
			tt.setupMocks(entitlements, registry, backend, usage)

			handler := New(newNoopLogger(), entitlements, registry, usage)
			rec := doRequest(t, handler, "stockfinder", "uid-1", reqBody)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp["status"])
			if tt.wantErrorPart != "" {
				assert.Contains(t, resp["error"], tt.wantErrorPart)
			}

			entitlements.AssertExpectations(t)
			registry.AssertExpectations(t)
			usage.AssertExpectations(t)
		})
	}
}

func TestInvokeHandler_Unauthorized(t *testing.T) {
	handler := New(newNoopLogger(), new(EntitlementsMock), new(RegistryMock), new(UsageRecorderMock))
	rec := doRequest(t, handler, "stockfinder", "", models.InvokeAgentRequest{})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
