// Package redis implements the presence store on a shared Redis instance so
// that presence survives gateway restarts and stays consistent across
// horizontally-scaled gateway processes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/finvault/realtime-backend/internal/core/domain"
	apperrors "github.com/finvault/realtime-backend/internal/core/errors"
	"github.com/finvault/realtime-backend/internal/core/ports"
)

// PresenceStore tracks online users in Redis. Records and reverse socket
// mappings carry a TTL so a crashed gateway's connections self-expire without
// manual cleanup; all writes are idempotent set/remove on a single
// per-(tenant, user) key, so concurrent connect/disconnect races are benign.
type PresenceStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.PresenceStore = (*PresenceStore)(nil)

// NewPresenceStore connects to Redis and verifies the connection.
func NewPresenceStore(ctx context.Context, redisURL string, ttl time.Duration) (*PresenceStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &PresenceStore{client: client, ttl: ttl}, nil
}

// NewPresenceStoreWithClient wraps an existing client, for tests.
func NewPresenceStoreWithClient(client *redis.Client, ttl time.Duration) *PresenceStore {
	return &PresenceStore{client: client, ttl: ttl}
}

// Close closes the Redis connection.
func (s *PresenceStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *PresenceStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// userKey returns the key for a user's presence record.
func userKey(tenantID, userID uuid.UUID) string {
	return fmt.Sprintf("presence:user:%s:%s", tenantID, userID)
}

// socketKey returns the key for a socket's reverse mapping.
func socketKey(socketID string) string {
	return fmt.Sprintf("presence:socket:%s", socketID)
}

// tenantKey returns the key for a tenant's active-user set.
func tenantKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("presence:tenant:%s", tenantID)
}

// tenantsIndexKey is the set of tenants with at least one online user.
const tenantsIndexKey = "presence:tenants"

func storeErr(err error) error {
	return apperrors.NewPresenceStoreError(err)
}

// SetOnline adds the socket to the user's presence record, creating the
// record on first connect, and refreshes every associated TTL.
func (s *PresenceStore) SetOnline(ctx context.Context, conn domain.Connection) error {
	key := userKey(conn.TenantID, conn.UserID)

	record, err := s.getRecord(ctx, key)
	if err != nil {
		return err
	}
	if record == nil {
		record = &domain.UserPresence{
			TenantID:    conn.TenantID,
			UserID:      conn.UserID,
			Email:       conn.Email,
			Role:        conn.Role,
			ConnectedAt: conn.ConnectedAt,
		}
	}
	record.AddSocket(conn.SocketID)
	record.LastSeen = conn.LastSeen
	record.Email = conn.Email
	record.Role = conn.Role

	if err := s.putRecord(ctx, key, record); err != nil {
		return err
	}

	info, err := json.Marshal(domain.SocketInfo{TenantID: conn.TenantID, UserID: conn.UserID})
	if err != nil {
		return storeErr(err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, socketKey(conn.SocketID), info, s.ttl)
	pipe.SAdd(ctx, tenantKey(conn.TenantID), conn.UserID.String())
	pipe.Expire(ctx, tenantKey(conn.TenantID), s.ttl)
	pipe.SAdd(ctx, tenantsIndexKey, conn.TenantID.String())
	pipe.Expire(ctx, tenantsIndexKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

// RemoveConnection removes one socket from the user's record. When the socket
// set becomes empty the record is fully evicted and false is returned; this
// is the authoritative multi-device rule.
func (s *PresenceStore) RemoveConnection(ctx context.Context, tenantID, userID uuid.UUID, socketID string) (bool, error) {
	if err := s.client.Del(ctx, socketKey(socketID)).Err(); err != nil {
		return false, storeErr(err)
	}

	key := userKey(tenantID, userID)
	record, err := s.getRecord(ctx, key)
	if err != nil {
		return false, err
	}
	if record == nil {
		// Record already expired; make sure the index agrees.
		if err := s.client.SRem(ctx, tenantKey(tenantID), userID.String()).Err(); err != nil {
			return false, storeErr(err)
		}
		return false, nil
	}

	if record.RemoveSocket(socketID) {
		record.LastSeen = time.Now().UTC()
		if err := s.putRecord(ctx, key, record); err != nil {
			return false, err
		}
		return true, nil
	}

	return false, s.SetOffline(ctx, tenantID, userID)
}

// SetOffline evicts the presence record, its reverse socket mappings and the
// tenant index membership. Idempotent: safe when parts have already expired.
func (s *PresenceStore) SetOffline(ctx context.Context, tenantID, userID uuid.UUID) error {
	key := userKey(tenantID, userID)

	record, err := s.getRecord(ctx, key)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	if record != nil {
		for _, socketID := range record.SocketIDs {
			pipe.Del(ctx, socketKey(socketID))
		}
	}
	pipe.Del(ctx, key)
	pipe.SRem(ctx, tenantKey(tenantID), userID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

// Touch refreshes lastSeen and every TTL for one socket's presence record.
// Driven by client heartbeats.
func (s *PresenceStore) Touch(ctx context.Context, tenantID, userID uuid.UUID, socketID string) error {
	key := userKey(tenantID, userID)

	record, err := s.getRecord(ctx, key)
	if err != nil {
		return err
	}
	if record == nil {
		// TTL already fired; the next roster sweep reconciles the client.
		return nil
	}

	record.AddSocket(socketID)
	record.LastSeen = time.Now().UTC()
	if err := s.putRecord(ctx, key, record); err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Expire(ctx, socketKey(socketID), s.ttl)
	pipe.Expire(ctx, tenantKey(tenantID), s.ttl)
	pipe.Expire(ctx, tenantsIndexKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

// GetOnlineUsers hydrates the tenant roster from the active-user index,
// skipping and pruning entries whose record already expired.
func (s *PresenceStore) GetOnlineUsers(ctx context.Context, tenantID uuid.UUID) ([]*domain.UserPresence, error) {
	members, err := s.client.SMembers(ctx, tenantKey(tenantID)).Result()
	if err != nil {
		return nil, storeErr(err)
	}

	online := make([]*domain.UserPresence, 0, len(members))
	for _, member := range members {
		userID, err := uuid.Parse(member)
		if err != nil {
			s.client.SRem(ctx, tenantKey(tenantID), member)
			continue
		}

		record, err := s.getRecord(ctx, userKey(tenantID, userID))
		if err != nil {
			return nil, err
		}
		if record == nil {
			// Self-healing: TTL evicted the record, drop the index entry.
			s.client.SRem(ctx, tenantKey(tenantID), member)
			continue
		}
		online = append(online, record)
	}
	return online, nil
}

// GetSocketInfo resolves a bare socket ID back to its (tenant, user) owner.
func (s *PresenceStore) GetSocketInfo(ctx context.Context, socketID string) (*domain.SocketInfo, error) {
	data, err := s.client.Get(ctx, socketKey(socketID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}

	var info domain.SocketInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, storeErr(err)
	}
	return &info, nil
}

// CleanupStale evicts presence records whose lastSeen exceeds maxAge even if
// their TTL has not fired yet. TTL is the primary expiry mechanism; this is
// the backstop against clock skew and missed renewals.
func (s *PresenceStore) CleanupStale(ctx context.Context, maxAge time.Duration) (int, error) {
	tenants, err := s.ActiveTenants(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	evicted := 0
	for _, tenantID := range tenants {
		records, err := s.GetOnlineUsers(ctx, tenantID)
		if err != nil {
			return evicted, err
		}
		for _, record := range records {
			if record.LastSeen.Before(cutoff) {
				if err := s.SetOffline(ctx, tenantID, record.UserID); err != nil {
					return evicted, err
				}
				evicted++
			}
		}
	}
	return evicted, nil
}

// ActiveTenants lists tenants with at least one online user.
func (s *PresenceStore) ActiveTenants(ctx context.Context) ([]uuid.UUID, error) {
	members, err := s.client.SMembers(ctx, tenantsIndexKey).Result()
	if err != nil {
		return nil, storeErr(err)
	}

	tenants := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		tenantID, err := uuid.Parse(member)
		if err != nil {
			s.client.SRem(ctx, tenantsIndexKey, member)
			continue
		}
		tenants = append(tenants, tenantID)
	}
	return tenants, nil
}

func (s *PresenceStore) getRecord(ctx context.Context, key string) (*domain.UserPresence, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}

	var record domain.UserPresence
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, storeErr(err)
	}
	return &record, nil
}

func (s *PresenceStore) putRecord(ctx context.Context, key string, record *domain.UserPresence) error {
	data, err := json.Marshal(record)
	if err != nil {
		return storeErr(err)
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return storeErr(err)
	}
	return nil
}
