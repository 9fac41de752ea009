// Package netcheck tracks whether the AI service host is reachable.
package netcheck

import (
	"context"
	"log/slog"
	"net"
	"sync/atomic"
	"time"
)

const defaultTimeout = 3 * time.Second

// Monitor probes addr by TCP dial every interval
type Monitor struct {
	addr     string
	interval time.Duration
	timeout  time.Duration
	dialer   *net.Dialer
	logger   *slog.Logger
	offline  atomic.Bool
}

// NewMonitor creates a monitor. It reports online until a probe fails.
func NewMonitor(addr string, interval time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		addr:     addr,
		interval: interval,
		timeout:  defaultTimeout,
		dialer:   &net.Dialer{},
		logger:   logger,
	}
}

// Online reports the result of the latest probe
func (m *Monitor) Online() bool {
	return !m.offline.Load()
}

// Run probes until ctx is done
func (m *Monitor) Run(ctx context.Context) error {
	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Probe dials once and records the outcome
func (m *Monitor) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	conn, err := m.dialer.DialContext(ctx, "tcp", m.addr)
	online := err == nil
	if online {
		conn.Close()
	}

	if wasOffline := m.offline.Swap(!online); wasOffline == online {
		if online {
			m.logger.Info("network reachable", "addr", m.addr)
		} else {
			m.logger.Warn("network unreachable", "addr", m.addr, "error", err)
		}
	}
	return online
}
