package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finvault/realtime-backend/internal/core/domain"
	apperrors "github.com/finvault/realtime-backend/internal/core/errors"
	"github.com/finvault/realtime-backend/internal/core/mocks"
	"github.com/finvault/realtime-backend/internal/core/ports"
)

func newBroadcastRouter(dispatcher ports.Dispatcher) stdhttp.Handler {
	handler := NewBroadcastHandler(dispatcher, slog.Default())
	r := chi.NewRouter()
	r.Route("/internal/v1", handler.RegisterRoutes)
	return r
}

func postBroadcast(t *testing.T, router stdhttp.Handler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(stdhttp.MethodPost, "/internal/v1/broadcast", &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestBroadcastHandler_HandleBroadcast(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()

	t.Run("accepted", func(t *testing.T) {
		dispatcher := mocks.NewMockDispatcher()
		router := newBroadcastRouter(dispatcher)

		var captured ports.BroadcastInput
		dispatcher.On("Broadcast", mock.Anything, mock.AnythingOfType("ports.BroadcastInput")).
			Run(func(args mock.Arguments) {
				captured = args.Get(1).(ports.BroadcastInput)
			}).Return(nil)

		rec := postBroadcast(t, router, BroadcastRequest{
			Type:       "transaction:created",
			TenantID:   tenantID.String(),
			UserID:     userID.String(),
			EntityType: "transaction",
			EntityID:   "tx-1",
			Payload:    map[string]interface{}{"amount": 10},
		})

		assert.Equal(t, stdhttp.StatusAccepted, rec.Code)
		assert.Equal(t, domain.EventTransactionCreated, captured.Type)
		assert.Equal(t, tenantID, captured.TenantID)
		assert.Equal(t, "tx-1", captured.EntityID)
		dispatcher.AssertExpectations(t)
	})

	t.Run("targeted user list is forwarded", func(t *testing.T) {
		dispatcher := mocks.NewMockDispatcher()
		router := newBroadcastRouter(dispatcher)

		target := uuid.New()
		var captured ports.BroadcastInput
		dispatcher.On("Broadcast", mock.Anything, mock.AnythingOfType("ports.BroadcastInput")).
			Run(func(args mock.Arguments) {
				captured = args.Get(1).(ports.BroadcastInput)
			}).Return(nil)

		rec := postBroadcast(t, router, BroadcastRequest{
			Type:     "user:role_changed",
			TenantID: tenantID.String(),
			UserID:   userID.String(),
			UserIDs:  []string{target.String()},
		})

		assert.Equal(t, stdhttp.StatusAccepted, rec.Code)
		assert.Equal(t, []uuid.UUID{target}, captured.UserIDs)
	})

	t.Run("malformed JSON is rejected", func(t *testing.T) {
		dispatcher := mocks.NewMockDispatcher()
		router := newBroadcastRouter(dispatcher)

		rec := postBroadcast(t, router, "{not json")

		assert.Equal(t, 422, rec.Code)
		dispatcher.AssertNotCalled(t, "Broadcast")
	})

	t.Run("invalid tenant ID is rejected", func(t *testing.T) {
		dispatcher := mocks.NewMockDispatcher()
		router := newBroadcastRouter(dispatcher)

		rec := postBroadcast(t, router, BroadcastRequest{
			Type:     "transaction:created",
			TenantID: "not-a-uuid",
			UserID:   userID.String(),
		})

		assert.Equal(t, 422, rec.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "VALIDATION_ERROR", resp.Code)
		dispatcher.AssertNotCalled(t, "Broadcast")
	})

	t.Run("dispatcher rejection is mapped to its status", func(t *testing.T) {
		dispatcher := mocks.NewMockDispatcher()
		router := newBroadcastRouter(dispatcher)

		dispatcher.On("Broadcast", mock.Anything, mock.AnythingOfType("ports.BroadcastInput")).
			Return(apperrors.NewDispatchError(apperrors.ErrUnknownEventType, "event type is not in the catalog"))

		rec := postBroadcast(t, router, BroadcastRequest{
			Type:     "made:up",
			TenantID: tenantID.String(),
			UserID:   userID.String(),
		})

		assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "DISPATCH_ERROR", resp.Code)
	})
}
