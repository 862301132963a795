// Package ratelimit provides admission control for new socket connections.
// Two independent fixed-window limiters run in front of the handshake: one
// per client IP and one per (tenant, user) pair, so one abusive tenant behind
// a shared egress IP is still contained.
package ratelimit

import (
	"sync"
	"time"

	apperrors "github.com/finvault/realtime-backend/internal/core/errors"
)

// Clock returns the current time. Injected so tests can drive the window and
// block arithmetic deterministically.
type Clock func() time.Time

type ipWindow struct {
	count       int
	windowStart time.Time
	blocked     bool
	blockExpiry time.Time
}

// IPRateLimiter counts connection attempts per IP per fixed window. Exceeding
// the maximum flips the IP into a blocked state with an explicit expiry - one
// block decision per violation rather than silent per-request rejection. When
// the block expires the counter starts from zero.
type IPRateLimiter struct {
	mu            sync.Mutex
	windows       map[string]*ipWindow
	maxRequests   int
	window        time.Duration
	blockDuration time.Duration
	now           Clock
}

// NewIPRateLimiter creates an IP limiter. A nil clock means time.Now.
func NewIPRateLimiter(maxRequests int, window, blockDuration time.Duration, now Clock) *IPRateLimiter {
	if now == nil {
		now = time.Now
	}
	return &IPRateLimiter{
		windows:       make(map[string]*ipWindow),
		maxRequests:   maxRequests,
		window:        window,
		blockDuration: blockDuration,
		now:           now,
	}
}

// Allow records a connection attempt from ip and returns a RateLimitError if
// the attempt must be refused.
func (rl *IPRateLimiter) Allow(ip string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[ip]
	if !ok {
		rl.windows[ip] = &ipWindow{count: 1, windowStart: now}
		return nil
	}

	if w.blocked {
		if now.Before(w.blockExpiry) {
			return apperrors.NewRateLimitError(w.blockExpiry.Sub(now))
		}
		// Block elapsed: reset and count this attempt.
		*w = ipWindow{count: 1, windowStart: now}
		return nil
	}

	if now.Sub(w.windowStart) >= rl.window {
		*w = ipWindow{count: 1, windowStart: now}
		return nil
	}

	w.count++
	if w.count > rl.maxRequests {
		w.blocked = true
		w.blockExpiry = now.Add(rl.blockDuration)
		return apperrors.NewRateLimitError(rl.blockDuration)
	}
	return nil
}

// Cleanup evicts entries whose window and block have fully elapsed, bounding
// process memory. It is run periodically by the server lifecycle.
func (rl *IPRateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, w := range rl.windows {
		if w.blocked {
			if now.After(w.blockExpiry) {
				delete(rl.windows, ip)
			}
			continue
		}
		if now.Sub(w.windowStart) >= rl.window {
			delete(rl.windows, ip)
		}
	}
}

// Size returns the number of tracked IPs, for metrics.
func (rl *IPRateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

type socketWindow struct {
	count       int
	windowStart time.Time
	lastAttempt time.Time
}

// SocketRateLimiter bounds connection attempts per (tenant, user): a burst
// cap inside a fixed window plus a minimum spacing between successive
// attempts, independent of IP-level control.
type SocketRateLimiter struct {
	mu             sync.Mutex
	windows        map[string]*socketWindow
	maxConnections int
	window         time.Duration
	cooldown       time.Duration
	now            Clock
}

// NewSocketRateLimiter creates a per-user limiter. A nil clock means time.Now.
func NewSocketRateLimiter(maxConnections int, window, cooldown time.Duration, now Clock) *SocketRateLimiter {
	if now == nil {
		now = time.Now
	}
	return &SocketRateLimiter{
		windows:        make(map[string]*socketWindow),
		maxConnections: maxConnections,
		window:         window,
		cooldown:       cooldown,
		now:            now,
	}
}

// Key builds the limiter key for a (tenant, user) pair.
func Key(tenantID, userID string) string {
	return tenantID + ":" + userID
}

// Allow records a connection attempt for key and returns a RateLimitError if
// the attempt must be refused.
func (rl *SocketRateLimiter) Allow(key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok {
		rl.windows[key] = &socketWindow{count: 1, windowStart: now, lastAttempt: now}
		return nil
	}

	if since := now.Sub(w.lastAttempt); since < rl.cooldown {
		w.lastAttempt = now
		return apperrors.NewRateLimitError(rl.cooldown - since)
	}

	if now.Sub(w.windowStart) >= rl.window {
		*w = socketWindow{count: 1, windowStart: now, lastAttempt: now}
		return nil
	}

	w.lastAttempt = now
	w.count++
	if w.count > rl.maxConnections {
		return apperrors.NewRateLimitError(rl.window - now.Sub(w.windowStart))
	}
	return nil
}

// Cleanup evicts entries whose window has fully elapsed.
func (rl *SocketRateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, w := range rl.windows {
		if now.Sub(w.windowStart) >= rl.window && now.Sub(w.lastAttempt) >= rl.cooldown {
			delete(rl.windows, key)
		}
	}
}

// Size returns the number of tracked keys, for metrics.
func (rl *SocketRateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}
