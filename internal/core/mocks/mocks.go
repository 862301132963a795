package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/finvault/realtime-backend/internal/core/domain"
	"github.com/finvault/realtime-backend/internal/core/ports"
)

// MockAuthService is a mock implementation of ports.AuthService
type MockAuthService struct {
	mock.Mock
}

func NewMockAuthService() *MockAuthService {
	return &MockAuthService{}
}

func (m *MockAuthService) VerifyAccessToken(token string) (*ports.TokenClaims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.TokenClaims), args.Error(1)
}

func (m *MockAuthService) GetCurrentUser(ctx context.Context, userID, tenantID uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, userID, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// MockUserRepository is a mock implementation of ports.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{}
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) TouchLastActive(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPresenceStore is a mock implementation of ports.PresenceStore
type MockPresenceStore struct {
	mock.Mock
}

func NewMockPresenceStore() *MockPresenceStore {
	return &MockPresenceStore{}
}

func (m *MockPresenceStore) SetOnline(ctx context.Context, conn domain.Connection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

func (m *MockPresenceStore) RemoveConnection(ctx context.Context, tenantID, userID uuid.UUID, socketID string) (bool, error) {
	args := m.Called(ctx, tenantID, userID, socketID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPresenceStore) SetOffline(ctx context.Context, tenantID, userID uuid.UUID) error {
	args := m.Called(ctx, tenantID, userID)
	return args.Error(0)
}

func (m *MockPresenceStore) Touch(ctx context.Context, tenantID, userID uuid.UUID, socketID string) error {
	args := m.Called(ctx, tenantID, userID, socketID)
	return args.Error(0)
}

func (m *MockPresenceStore) GetOnlineUsers(ctx context.Context, tenantID uuid.UUID) ([]*domain.UserPresence, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.UserPresence), args.Error(1)
}

func (m *MockPresenceStore) GetSocketInfo(ctx context.Context, socketID string) (*domain.SocketInfo, error) {
	args := m.Called(ctx, socketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SocketInfo), args.Error(1)
}

func (m *MockPresenceStore) CleanupStale(ctx context.Context, maxAge time.Duration) (int, error) {
	args := m.Called(ctx, maxAge)
	return args.Int(0), args.Error(1)
}

func (m *MockPresenceStore) ActiveTenants(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// MockDispatcher is a mock implementation of ports.Dispatcher
type MockDispatcher struct {
	mock.Mock
}

func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{}
}

func (m *MockDispatcher) Broadcast(ctx context.Context, input ports.BroadcastInput) error {
	args := m.Called(ctx, input)
	return args.Error(0)
}

// MockEventBroadcaster is a mock implementation of ports.EventBroadcaster
type MockEventBroadcaster struct {
	mock.Mock
}

func NewMockEventBroadcaster() *MockEventBroadcaster {
	return &MockEventBroadcaster{}
}

func (m *MockEventBroadcaster) EmitToRooms(roomNames []string, event domain.Event, excludeSocketID string) {
	m.Called(roomNames, event, excludeSocketID)
}
