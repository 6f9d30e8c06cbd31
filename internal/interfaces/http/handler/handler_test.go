package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/application/event"
	"github.com/shopkit/backend/internal/application/saga"
	"github.com/shopkit/backend/internal/domain/procman"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/interfaces/http/dto"
	"github.com/shopkit/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

func serve(t *testing.T, r *gin.Engine, method, path string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set(middleware.RequestIDHeader, "req-test")
	r.ServeHTTP(w, req)
	var body response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w, body
}

func newEngine(register func(rg *gin.RouterGroup)) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	register(r.Group("/api/v1"))
	return r
}

// MockQuerier is a mock implementation of ProcessManagerQuerier
type MockQuerier struct {
	mock.Mock
}

func (m *MockQuerier) Get(ctx context.Context, id string) (saga.ProcessManagerView, bool, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(saga.ProcessManagerView), args.Bool(1), args.Error(2)
}

func (m *MockQuerier) History(ctx context.Context, id string) ([]saga.TransitionView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]saga.TransitionView), args.Error(1)
}

func (m *MockQuerier) Counts(ctx context.Context) ([]procman.StateCount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]procman.StateCount), args.Error(1)
}

func TestProcmanHandler_Get(t *testing.T) {
	q := new(MockQuerier)
	h := NewProcmanHandler(q, nil)
	r := newEngine(h.RegisterRoutes)

	view := saga.ProcessManagerView{
		ID:       "pm-1",
		SagaType: saga.SagaTypeShopRegistration,
		State:    "SHOP_CREATED",
		Version:  3,
	}
	q.On("Get", mock.Anything, "pm-1").Return(view, true, nil)
	q.On("Get", mock.Anything, "pm-404").Return(saga.ProcessManagerView{}, false, nil)
	q.On("Get", mock.Anything, "pm-err").Return(saga.ProcessManagerView{}, false, errors.New("db down"))

	w, body := serve(t, r, http.MethodGet, "/api/v1/procman/pm-1")
	assert.Equal(t, http.StatusOK, w.Code)
	var got saga.ProcessManagerView
	require.NoError(t, json.Unmarshal(body.Data, &got))
	assert.Equal(t, "SHOP_CREATED", got.State)
	assert.Equal(t, 3, got.Version)

	w, body = serve(t, r, http.MethodGet, "/api/v1/procman/pm-404")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, body.Error.Code)
	assert.Equal(t, "req-test", body.Error.RequestID)

	w, body = serve(t, r, http.MethodGet, "/api/v1/procman/pm-err")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, dto.ErrCodeInternal, body.Error.Code)
	assert.NotContains(t, body.Error.Message, "db down")
	q.AssertExpectations(t)
}

func TestProcmanHandler_HistoryAndStats(t *testing.T) {
	q := new(MockQuerier)
	h := NewProcmanHandler(q, nil)
	r := newEngine(h.RegisterRoutes)

	now := time.Now().UTC()
	q.On("History", mock.Anything, "pm-1").Return([]saga.TransitionView{
		{EventID: "e1", EventType: "ShopRegistrationCreated", FromState: saga.StateProcessStarted, ToState: "SHOP_CREATED", OccurredAt: now},
	}, nil)
	q.On("Counts", mock.Anything).Return([]procman.StateCount{
		{SagaType: saga.SagaTypeShopRegistration, State: procman.StateFinished, Count: 4},
	}, nil)

	w, body := serve(t, r, http.MethodGet, "/api/v1/procman/pm-1/history")
	assert.Equal(t, http.StatusOK, w.Code)
	var history []saga.TransitionView
	require.NoError(t, json.Unmarshal(body.Data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "SHOP_CREATED", history[0].ToState)

	w, body = serve(t, r, http.MethodGet, "/api/v1/procman/stats")
	assert.Equal(t, http.StatusOK, w.Code, "stats is not captured by /:id")
	var counts []procman.StateCount
	require.NoError(t, json.Unmarshal(body.Data, &counts))
	assert.Equal(t, int64(4), counts[0].Count)
	q.AssertExpectations(t)
}

// MockOutboxAdmin is a mock implementation of OutboxAdmin
type MockOutboxAdmin struct {
	mock.Mock
}

func (m *MockOutboxAdmin) ListDead(ctx context.Context, filter event.PageQuery) (*event.DeadLetterPage, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.DeadLetterPage), args.Error(1)
}

func (m *MockOutboxAdmin) Entry(ctx context.Context, id uuid.UUID) (*event.EntryView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.EntryView), args.Error(1)
}

func (m *MockOutboxAdmin) Requeue(ctx context.Context, id uuid.UUID) (*event.EntryView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.EntryView), args.Error(1)
}

func (m *MockOutboxAdmin) RequeueAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOutboxAdmin) Counts(ctx context.Context) (*event.StatusCounts, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.StatusCounts), args.Error(1)
}

func TestOutboxHandler_ListDead(t *testing.T) {
	admin := new(MockOutboxAdmin)
	r := newEngine(NewOutboxHandler(admin, nil).RegisterRoutes)

	admin.On("ListDead", mock.Anything, event.PageQuery{Page: 2, PageSize: 5}).
		Return(&event.DeadLetterPage{
			Entries:  []event.EntryView{{ID: uuid.New(), EventType: "PaymentCompleted", Status: "DEAD"}},
			Total:    6,
			Page:     2,
			PageSize: 5,
		}, nil)

	w, body := serve(t, r, http.MethodGet, "/api/v1/outbox/dead?page=2&page_size=5")
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, body.Meta)
	assert.Equal(t, int64(6), body.Meta.Total)
	assert.Equal(t, 2, body.Meta.TotalPages)

	w, body = serve(t, r, http.MethodGet, "/api/v1/outbox/dead?page_size=1000")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeBadRequest, body.Error.Code)
	admin.AssertExpectations(t)
}

func TestOutboxHandler_Retry(t *testing.T) {
	admin := new(MockOutboxAdmin)
	r := newEngine(NewOutboxHandler(admin, nil).RegisterRoutes)

	okID, missingID, liveID := uuid.New(), uuid.New(), uuid.New()
	admin.On("Requeue", mock.Anything, okID).
		Return(&event.EntryView{ID: okID, EventID: "evt-1", Status: "PENDING"}, nil)
	admin.On("Requeue", mock.Anything, missingID).
		Return(nil, shared.NewDomainError(event.CodeEntryNotFound, "outbox entry not found"))
	admin.On("Requeue", mock.Anything, liveID).
		Return(nil, fmt.Errorf("wrapped: %w", shared.NewDomainError(event.CodeNotDead, "entry is PENDING, not DEAD")))

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"requeued", "/api/v1/outbox/entries/" + okID.String() + "/retry", http.StatusOK, ""},
		{"unknown entry", "/api/v1/outbox/entries/" + missingID.String() + "/retry", http.StatusNotFound, dto.ErrCodeNotFound},
		{"not dead", "/api/v1/outbox/entries/" + liveID.String() + "/retry", http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"malformed id", "/api/v1/outbox/entries/nope/retry", http.StatusBadRequest, dto.ErrCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := serve(t, r, http.MethodPost, tt.path)
			assert.Equal(t, tt.status, w.Code)
			if tt.code == "" {
				assert.True(t, body.Success)
				return
			}
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
	admin.AssertExpectations(t)
}

func TestOutboxHandler_RetryAllAndStats(t *testing.T) {
	admin := new(MockOutboxAdmin)
	r := newEngine(NewOutboxHandler(admin, nil).RegisterRoutes)

	admin.On("RequeueAll", mock.Anything).Return(int64(7), nil)
	admin.On("Counts", mock.Anything).Return(&event.StatusCounts{Pending: 2, Dead: 1, Total: 3}, nil)

	w, body := serve(t, r, http.MethodPost, "/api/v1/outbox/dead/retry")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"retried":7}`, string(body.Data))

	w, body = serve(t, r, http.MethodGet, "/api/v1/outbox/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	var stats event.StatusCounts
	require.NoError(t, json.Unmarshal(body.Data, &stats))
	assert.Equal(t, int64(3), stats.Total)
}

func TestOutboxHandler_GetEntry(t *testing.T) {
	admin := new(MockOutboxAdmin)
	r := newEngine(NewOutboxHandler(admin, nil).RegisterRoutes)

	id := uuid.New()
	admin.On("Entry", mock.Anything, id).Return(&event.EntryView{ID: id, ProcmanID: "pm-9"}, nil)

	w, body := serve(t, r, http.MethodGet, "/api/v1/outbox/entries/"+id.String())
	assert.Equal(t, http.StatusOK, w.Code)
	var entry event.EntryView
	require.NoError(t, json.Unmarshal(body.Data, &entry))
	assert.Equal(t, "pm-9", entry.ProcmanID)
}

func TestHealthHandler(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	failing := func(context.Context) error { return errors.New("connection refused") }

	t.Run("live", func(t *testing.T) {
		r := gin.New()
		NewHealthHandler("1.2.3", 0, nil, nil).RegisterRoutes(r)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok","version":"1.2.3"}`, w.Body.String())
	})

	t.Run("ready", func(t *testing.T) {
		r := gin.New()
		NewHealthHandler("", time.Second, map[string]CheckFunc{"database": healthy, "redis": healthy}, nil).RegisterRoutes(r)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		var status HealthStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, map[string]string{"database": "ok", "redis": "ok"}, status.Checks)
	})

	t.Run("not ready", func(t *testing.T) {
		r := gin.New()
		NewHealthHandler("", time.Second, map[string]CheckFunc{"database": healthy, "redis": failing}, nil).RegisterRoutes(r)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var status HealthStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, "unavailable", status.Status)
		assert.Equal(t, "connection refused", status.Checks["redis"])
	})

	t.Run("check honours timeout", func(t *testing.T) {
		slow := func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}
		r := gin.New()
		NewHealthHandler("", 20*time.Millisecond, map[string]CheckFunc{"database": slow}, nil).RegisterRoutes(r)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
