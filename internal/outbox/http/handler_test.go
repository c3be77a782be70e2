package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/orders/internal/errors"
	"github.com/allisson/orders/internal/outbox/domain"
	"github.com/allisson/orders/internal/outbox/http/dto"
	"github.com/allisson/orders/internal/outbox/http/mocks"
	"github.com/allisson/orders/internal/outbox/usecase"
)

// setupTestHandler creates a test handler with mocked dependencies.
func setupTestHandler(t *testing.T) (*OutboxHandler, *mocks.MockOutboxQueryUseCase, *mocks.MockReconciler) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	queryUseCase := &mocks.MockOutboxQueryUseCase{}
	reconciler := &mocks.MockReconciler{}
	t.Cleanup(func() {
		queryUseCase.AssertExpectations(t)
		reconciler.AssertExpectations(t)
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewOutboxHandler(queryUseCase, reconciler, logger), queryUseCase, reconciler
}

func createTestContext(method, path string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, nil)
	return c, w
}

func newTestEvent(t *testing.T) *domain.OutboxEvent {
	t.Helper()

	event, err := domain.NewOutboxEvent("order_1", domain.EventTypeOrderCreated, json.RawMessage(`{"orderId":"order_1"}`))
	require.NoError(t, err)
	return event
}

func TestOutboxHandler_ListHandler(t *testing.T) {
	t.Run("Success_Defaults", func(t *testing.T) {
		handler, queryUseCase, _ := setupTestHandler(t)

		events := []*domain.OutboxEvent{newTestEvent(t), newTestEvent(t)}
		queryUseCase.On("List", mock.Anything, usecase.ListOutboxEventsInput{Limit: usecase.DefaultListLimit}).
			Return(events, nil).
			Once()

		c, w := createTestContext(http.MethodGet, "/v1/outbox/events")

		handler.ListHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.ListOutboxEventsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Len(t, response.Data, 2)
	})

	t.Run("Success_FiltersPassedThrough", func(t *testing.T) {
		handler, queryUseCase, _ := setupTestHandler(t)

		expected := usecase.ListOutboxEventsInput{
			Status:      domain.OutboxEventStatusFailed,
			AggregateID: "order_1",
			Limit:       10,
		}
		queryUseCase.On("List", mock.Anything, expected).Return([]*domain.OutboxEvent{}, nil).Once()

		c, w := createTestContext(http.MethodGet, "/v1/outbox/events?status=failed&aggregate_id=order_1&limit=10")

		handler.ListHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":[]}`, w.Body.String())
	})

	t.Run("Error_InvalidStatus", func(t *testing.T) {
		handler, _, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodGet, "/v1/outbox/events?status=LOST")

		handler.ListHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_InvalidLimit", func(t *testing.T) {
		handler, _, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodGet, "/v1/outbox/events?limit=5000")

		handler.ListHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "between 1 and 1000")
	})
}

func TestOutboxHandler_GetHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, queryUseCase, _ := setupTestHandler(t)

		event := newTestEvent(t)
		queryUseCase.On("Get", mock.Anything, event.ID).Return(event, nil).Once()

		c, w := createTestContext(http.MethodGet, "/v1/outbox/events/"+event.ID.String())
		c.Params = gin.Params{{Key: "id", Value: event.ID.String()}}

		handler.GetHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.OutboxEventResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, event.ID.String(), response.ID)
	})

	t.Run("Error_InvalidUUID", func(t *testing.T) {
		handler, _, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodGet, "/v1/outbox/events/not-a-uuid")
		c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}

		handler.GetHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		handler, queryUseCase, _ := setupTestHandler(t)

		id := uuid.Must(uuid.NewV7())
		queryUseCase.On("Get", mock.Anything, id).Return(nil, domain.ErrOutboxEventNotFound).Once()

		c, w := createTestContext(http.MethodGet, "/v1/outbox/events/"+id.String())
		c.Params = gin.Params{{Key: "id", Value: id.String()}}

		handler.GetHandler(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestOutboxHandler_RetryHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, queryUseCase, _ := setupTestHandler(t)

		event := newTestEvent(t)
		queryUseCase.On("Retry", mock.Anything, event.ID).Return(event, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/outbox/events/"+event.ID.String()+"/retry")
		c.Params = gin.Params{{Key: "id", Value: event.ID.String()}}

		handler.RetryHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.OutboxEventResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "PENDING", response.Status)
	})

	t.Run("Error_NotFailed", func(t *testing.T) {
		handler, queryUseCase, _ := setupTestHandler(t)

		id := uuid.Must(uuid.NewV7())
		queryUseCase.On("Retry", mock.Anything, id).Return(nil, domain.ErrNotFailed).Once()

		c, w := createTestContext(http.MethodPost, "/v1/outbox/events/"+id.String()+"/retry")
		c.Params = gin.Params{{Key: "id", Value: id.String()}}

		handler.RetryHandler(c)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestOutboxHandler_ReconcileHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, _, reconciler := setupTestHandler(t)

		reconciler.On("ReconcileFailed", mock.Anything).Return(3, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/outbox/reconcile")

		handler.ReconcileHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"requeued":3}`, w.Body.String())
	})

	t.Run("Error_StoreUnavailable", func(t *testing.T) {
		handler, _, reconciler := setupTestHandler(t)

		reconciler.On("ReconcileFailed", mock.Anything).
			Return(0, apperrors.Wrap(apperrors.ErrUnavailable, "database unavailable")).
			Once()

		c, w := createTestContext(http.MethodPost, "/v1/outbox/reconcile")

		handler.ReconcileHandler(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestOutboxHandler_StatsHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, queryUseCase, _ := setupTestHandler(t)

		queryUseCase.On("Stats", mock.Anything).
			Return(map[domain.OutboxEventStatus]int64{
				domain.OutboxEventStatusPending:   2,
				domain.OutboxEventStatusProcessed: 40,
			}, nil).
			Once()

		c, w := createTestContext(http.MethodGet, "/v1/outbox/stats")

		handler.StatsHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"pending":2,"processed":40,"failed":0}`, w.Body.String())
	})

	t.Run("Error", func(t *testing.T) {
		handler, queryUseCase, _ := setupTestHandler(t)

		queryUseCase.On("Stats", mock.Anything).Return(nil, errors.New("boom")).Once()

		c, w := createTestContext(http.MethodGet, "/v1/outbox/stats")

		handler.StatsHandler(c)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
