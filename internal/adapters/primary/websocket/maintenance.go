package websocket

import (
	"context"
	"log/slog"
	"time"
)

// Maintenance owns the periodic reconciliation tasks: roster rebroadcast,
// the stale-presence sweep and rate-limiter eviction. It runs under the
// server's start/stop lifecycle rather than as free-running timers, and the
// individual steps (Gateway.RebroadcastRosters, Gateway.SweepStale, the
// cleanup funcs) can be driven directly in tests.
type Maintenance struct {
	gateway *Gateway

	rosterInterval  time.Duration
	sweepInterval   time.Duration
	staleAfter      time.Duration
	cleanupInterval time.Duration

	// cleanups are the rate-limiter eviction hooks.
	cleanups []func()

	logger *slog.Logger
}

// MaintenanceConfig holds the task intervals.
type MaintenanceConfig struct {
	RosterInterval  time.Duration
	SweepInterval   time.Duration
	StaleAfter      time.Duration
	CleanupInterval time.Duration
}

func NewMaintenance(gateway *Gateway, cfg MaintenanceConfig, cleanups []func(), logger *slog.Logger) *Maintenance {
	return &Maintenance{
		gateway:         gateway,
		rosterInterval:  cfg.RosterInterval,
		sweepInterval:   cfg.SweepInterval,
		staleAfter:      cfg.StaleAfter,
		cleanupInterval: cfg.CleanupInterval,
		cleanups:        cleanups,
		logger:          logger.With("component", "realtime_maintenance"),
	}
}

// Run blocks until ctx is cancelled, firing each task on its interval.
// This MUST be run as a goroutine.
func (m *Maintenance) Run(ctx context.Context) {
	roster := time.NewTicker(m.rosterInterval)
	sweep := time.NewTicker(m.sweepInterval)
	cleanup := time.NewTicker(m.cleanupInterval)
	defer func() {
		roster.Stop()
		sweep.Stop()
		cleanup.Stop()
	}()

	m.logger.Info("maintenance started",
		"roster_interval", m.rosterInterval,
		"sweep_interval", m.sweepInterval,
		"cleanup_interval", m.cleanupInterval,
	)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("maintenance stopped")
			return

		case <-roster.C:
			m.gateway.RebroadcastRosters(ctx)

		case <-sweep.C:
			m.gateway.SweepStale(ctx, m.staleAfter)

		case <-cleanup.C:
			for _, fn := range m.cleanups {
				fn()
			}
		}
	}
}
