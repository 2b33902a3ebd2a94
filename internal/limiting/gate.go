package limiting

import (
	"sync"
	"time"

	"github.com/rtcbridge/rtcbridge/internal/conf"
	"github.com/rtcbridge/rtcbridge/internal/metrics"
	"github.com/rtcbridge/rtcbridge/internal/types"
	"github.com/rs/zerolog/log"
)

// RateLimitGate enforces a minimum interval between attempts of the same
// operation key and holds keys under a timed cooldown after the coordinator
// escalates them.
//
// The last-attempt timestamp is recorded only when a key passes the gate, so
// rapid calls while spaced out do not push the window forward.
type RateLimitGate struct {
	mu          sync.Mutex
	lastRequest map[types.OperationKey]time.Time
	blocked     map[types.OperationKey]*time.Timer
	config      conf.LimiterConfig
	closed      bool
}

func NewRateLimitGate(config conf.LimiterConfig) *RateLimitGate {
	return &RateLimitGate{
		lastRequest: make(map[types.OperationKey]time.Time),
		blocked:     make(map[types.OperationKey]*time.Timer),
		config:      config,
	}
}

// ShouldBlock determines whether the key has to wait before its next attempt,
// either because it's under cooldown or because the minimum interval since the
// last attempt has not elapsed. When it returns false the attempt time is
// recorded as a side effect.
func (g *RateLimitGate) ShouldBlock(subject string, op types.OperationType) bool {
	key := types.NewOperationKey(subject, op)

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.blocked[key]; ok {
		return true
	}

	interval := g.config.OperationInterval(op)
	if last, ok := g.lastRequest[key]; ok && time.Since(last) < interval {
		return true
	}

	g.lastRequest[key] = time.Now()
	return false
}

// IsBlocked determines whether the key is under cooldown, without any side effect.
func (g *RateLimitGate) IsBlocked(key types.OperationKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.blocked[key]
	return ok
}

// Block puts the key under cooldown. The entry auto-expires after the
// configured cooldown; the expiry timer is owned by the gate and cancelled on
// Close(), a late fire after Unblock() is a no-op.
func (g *RateLimitGate) Block(key types.OperationKey) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return
	}
	if timer, ok := g.blocked[key]; ok {
		timer.Stop()
	}

	cooldown := g.config.BlockCooldown()
	g.blocked[key] = time.AfterFunc(cooldown, func() {
		g.Unblock(key)
	})
	metrics.BlockedOperationKeys.Set(float64(len(g.blocked)))
	log.Warn().Msgf("Operation %s blocked for %s", key, cooldown)
}

// Unblock lifts the cooldown for the key, if any.
func (g *RateLimitGate) Unblock(key types.OperationKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unblock(key)
}

func (g *RateLimitGate) unblock(key types.OperationKey) {
	if timer, ok := g.blocked[key]; ok {
		timer.Stop()
		delete(g.blocked, key)
		metrics.BlockedOperationKeys.Set(float64(len(g.blocked)))
	}
}

// ClearSubject removes every gate entry keyed by the subject.
func (g *RateLimitGate) ClearSubject(subject string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for key := range g.lastRequest {
		if key.Subject == subject {
			delete(g.lastRequest, key)
		}
	}
	for key := range g.blocked {
		if key.Subject == subject {
			g.unblock(key)
		}
	}
}

// BlockedKeys returns a snapshot of the keys currently under cooldown.
func (g *RateLimitGate) BlockedKeys() []types.OperationKey {
	g.mu.Lock()
	defer g.mu.Unlock()

	result := make([]types.OperationKey, 0, len(g.blocked))
	for key := range g.blocked {
		result = append(result, key)
	}
	return result
}

// BlockedLen returns the amount of keys under cooldown.
func (g *RateLimitGate) BlockedLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.blocked)
}

// Close stops all pending expiry timers so they don't outlive the component.
func (g *RateLimitGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.closed = true
	for key, timer := range g.blocked {
		timer.Stop()
		delete(g.blocked, key)
	}
}
