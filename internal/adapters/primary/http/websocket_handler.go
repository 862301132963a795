package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	wsAdapter "github.com/finvault/realtime-backend/internal/adapters/primary/websocket"
	"github.com/finvault/realtime-backend/internal/config"
	"github.com/finvault/realtime-backend/internal/core/domain"
	apperrors "github.com/finvault/realtime-backend/internal/core/errors"
	"github.com/finvault/realtime-backend/internal/core/ports"
	"github.com/finvault/realtime-backend/internal/infrastructure/metrics"
	"github.com/finvault/realtime-backend/internal/realtime/ratelimit"
)

// WebSocketHandler admits new realtime connections. The admission order is
// strict: IP rate limit, token verification, live user-record re-check,
// per-user rate limit, and only then the upgrade - so a rejected connection
// never leaves partial room or presence state behind.
type WebSocketHandler struct {
	hub           *wsAdapter.Hub
	gateway       *wsAdapter.Gateway
	authService   ports.AuthService
	ipLimiter     *ratelimit.IPRateLimiter
	socketLimiter *ratelimit.SocketRateLimiter
	upgrader      websocket.Upgrader
	msgRate       float64
	msgBurst      int
	logger        *slog.Logger
}

// NewWebSocketHandler creates the connection-admission handler. Either
// limiter may be nil when rate limiting is disabled.
func NewWebSocketHandler(
	hub *wsAdapter.Hub,
	gateway *wsAdapter.Gateway,
	authService ports.AuthService,
	ipLimiter *ratelimit.IPRateLimiter,
	socketLimiter *ratelimit.SocketRateLimiter,
	cfg *config.Config,
	logger *slog.Logger,
) *WebSocketHandler {
	handler := &WebSocketHandler{
		hub:           hub,
		gateway:       gateway,
		authService:   authService,
		ipLimiter:     ipLimiter,
		socketLimiter: socketLimiter,
		msgRate:       cfg.WebSocket.MessageRate,
		msgBurst:      cfg.WebSocket.MessageBurst,
		logger:        logger,
	}

	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		CheckOrigin:     handler.makeOriginChecker(cfg),
	}

	return handler
}

// makeOriginChecker creates an origin checking function based on configuration
func (h *WebSocketHandler) makeOriginChecker(cfg *config.Config) func(r *http.Request) bool {
	allowedOrigins := cfg.WebSocket.AllowedOrigins

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// In development mode, allow all origins (but log a warning)
		if cfg.IsDevelopment() {
			if origin != "" {
				h.logger.Warn("allowing websocket connection in development mode",
					"origin", origin,
					"remote_addr", r.RemoteAddr,
				)
			}
			return true
		}

		// No origin header (same-origin request or non-browser client)
		if origin == "" {
			return true
		}

		parsedOrigin, err := url.Parse(origin)
		if err != nil {
			h.logger.Warn("failed to parse websocket origin",
				"origin", origin,
				"error", err,
			)
			return false
		}

		originHost := parsedOrigin.Host

		for _, allowed := range allowedOrigins {
			// Support wildcard subdomains like "*.example.com"
			if strings.HasPrefix(allowed, "*.") {
				suffix := allowed[1:] // Remove the "*", keep ".example.com"
				if strings.HasSuffix(originHost, suffix) || originHost == allowed[2:] {
					return true
				}
			} else if originHost == allowed {
				return true
			}
		}

		metrics.ConnectionsRejected.WithLabelValues("origin").Inc()
		h.logger.Warn("websocket connection rejected due to origin",
			"origin", origin,
			"remote_addr", r.RemoteAddr,
			"allowed_origins", allowedOrigins,
		)
		return false
	}
}

// extractToken pulls the bearer token off the handshake. The Authorization
// header wins over the query parameter; the query form exists for browser
// clients that cannot set headers on the upgrade request.
func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	return r.URL.Query().Get("token")
}

// ServeHTTP handles WebSocket connection requests
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	clientIP := ClientIP(r)

	// 1. IP-level admission control
	if h.ipLimiter != nil {
		if err := h.ipLimiter.Allow(clientIP); err != nil {
			metrics.ConnectionsRejected.WithLabelValues("rate_limit_ip").Inc()
			h.logger.Warn("websocket connection rejected: ip rate limited",
				"request_id", requestID,
				"remote_addr", r.RemoteAddr,
			)
			writeRateLimited(w, err)
			return
		}
	}

	// 2. Authenticate: token validity AND a live user-record check, because
	// revocation happens at the user record, not the token.
	claims, err := h.authService.VerifyAccessToken(extractToken(r))
	if err != nil {
		metrics.ConnectionsRejected.WithLabelValues("auth").Inc()
		h.logger.Warn("websocket connection rejected: invalid token",
			"request_id", requestID,
			"remote_addr", r.RemoteAddr,
			"error", err,
		)
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}

	user, err := h.authService.GetCurrentUser(r.Context(), claims.UserID, claims.TenantID)
	if err != nil {
		metrics.ConnectionsRejected.WithLabelValues("auth").Inc()
		h.logger.Warn("websocket connection rejected: user check failed",
			"request_id", requestID,
			"user_id", claims.UserID,
			"error", err,
		)
		http.Error(w, "User is not active", http.StatusUnauthorized)
		return
	}

	// 3. Per-user admission control, independent of IP
	if h.socketLimiter != nil {
		key := ratelimit.Key(claims.TenantID.String(), claims.UserID.String())
		if err := h.socketLimiter.Allow(key); err != nil {
			metrics.ConnectionsRejected.WithLabelValues("rate_limit_user").Inc()
			h.logger.Warn("websocket connection rejected: user rate limited",
				"request_id", requestID,
				"user_id", claims.UserID,
				"tenant_id", claims.TenantID,
			)
			writeRateLimited(w, err)
			return
		}
	}

	// 4. Upgrade the connection
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket connection",
			"request_id", requestID,
			"user_id", claims.UserID,
			"error", err,
		)
		return
	}

	now := time.Now().UTC()
	conn := domain.Connection{
		SocketID:    ulid.Make().String(),
		UserID:      user.ID,
		TenantID:    user.TenantID,
		Email:       user.Email,
		Role:        user.Role,
		ConnectedAt: now,
		LastSeen:    now,
	}

	h.logger.Info("websocket connection established",
		"request_id", requestID,
		"socket_id", conn.SocketID,
		"user_id", conn.UserID,
		"tenant_id", conn.TenantID,
		"remote_addr", r.RemoteAddr,
	)

	// 5. Register the client and start the I/O pumps
	client := wsAdapter.NewClient(h.hub, h.gateway, socket, conn, h.msgRate, h.msgBurst, h.logger)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	// 6. Join default rooms and register presence off the request goroutine;
	// the request context ends when this handler returns.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		h.gateway.OnConnect(ctx, client)
	}()
}

// writeRateLimited renders a 429 with the retry hint carried by the error.
func writeRateLimited(w http.ResponseWriter, err error) {
	retryAfter := "1"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Details != nil {
		if seconds, ok := appErr.Details["retryAfterSeconds"].(int); ok && seconds > 0 {
			retryAfter = strconv.Itoa(seconds)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", retryAfter)
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"Too many requests. Please try again later.","code":"RATE_LIMITED"}`))
}
