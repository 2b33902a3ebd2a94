package limiting

import (
	"sync"
	"time"

	"github.com/rtcbridge/rtcbridge/internal/conf"
	"github.com/rtcbridge/rtcbridge/internal/types"
	"github.com/rs/zerolog/log"
)

// SocketAttemptGate caps the amount of connection attempts per
// (subject, connection type) inside a sliding window, independently of the
// generic rate limit gate. Only consulted for connection-establishing and
// video operation types.
type SocketAttemptGate struct {
	mu      sync.Mutex
	windows map[types.OperationKey]*attemptWindow
	config  conf.LimiterConfig
}

type attemptWindow struct {
	count int
	start time.Time
}

func NewSocketAttemptGate(config conf.LimiterConfig) *SocketAttemptGate {
	return &SocketAttemptGate{
		windows: make(map[types.OperationKey]*attemptWindow),
		config:  config,
	}
}

// ShouldBlockConnection determines whether a new connection attempt for the
// subject is allowed. An expired window is dropped and a fresh allowance
// granted; a full window blocks without incrementing the count.
func (g *SocketAttemptGate) ShouldBlockConnection(subject string, connType types.OperationType) bool {
	key := types.NewOperationKey(subject, connType)

	g.mu.Lock()
	defer g.mu.Unlock()

	w, ok := g.windows[key]
	if ok && time.Since(w.start) > g.config.ConnectionAttemptWindow() {
		delete(g.windows, key)
		w = nil
	}

	if w == nil {
		g.windows[key] = &attemptWindow{count: 1, start: time.Now()}
		return false
	}

	if w.count >= g.config.MaxConnectionAttempts() {
		log.Debug().Msgf("Connection attempts for %s exhausted (%d in window)", key, w.count)
		return true
	}

	w.count++
	return false
}

// ClearSubject removes every attempt window keyed by the subject.
func (g *SocketAttemptGate) ClearSubject(subject string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for key := range g.windows {
		if key.Subject == subject {
			delete(g.windows, key)
		}
	}
}
