package app

import (
	"log/slog"
	"sync/atomic"

	"github.com/BIGWOO/clawx-auth/internal/server"
)

// Health backs the /readyz probe the desktop app polls before sending logins.
// All methods are safe for concurrent use.
type Health struct {
	ready atomic.Bool
}

var _ server.ReadinessChecker = (*Health)(nil)

// NewHealth returns a Health that reports not ready.
func NewHealth() *Health {
	return &Health{}
}

// SetReady records the readiness state and logs transitions.
func (h *Health) SetReady(ready bool) {
	if h.ready.Swap(ready) != ready {
		slog.Debug("readiness changed", "ready", ready)
	}
}

// IsReady implements server.ReadinessChecker.
func (h *Health) IsReady() bool {
	return h.ready.Load()
}
