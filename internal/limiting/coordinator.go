package limiting

import (
	"context"
	"fmt"
	"sync"

	"github.com/rtcbridge/rtcbridge/internal/conf"
	"github.com/rtcbridge/rtcbridge/internal/metrics"
	"github.com/rtcbridge/rtcbridge/internal/types"
	"github.com/rs/zerolog/log"
)

// Coordinator drives an arbitrary operation against the platform through the
// rate limit gates, retrying transient failures with capped exponential
// backoff and escalating to a timed cooldown once retries are exhausted.
//
// All state is owned by the instance: attempt counts per operation key, the
// gates and their expiry timers. A single coordinator is shared by every
// session of the process.
type Coordinator struct {
	gate       *RateLimitGate
	socketGate *SocketAttemptGate
	backoff    BackoffPolicy
	config     conf.LimiterConfig

	mu       sync.Mutex
	attempts map[types.OperationKey]int
}

func NewCoordinator(config conf.LimiterConfig) *Coordinator {
	return &Coordinator{
		gate:       NewRateLimitGate(config),
		socketGate: NewSocketAttemptGate(config),
		backoff: BackoffPolicy{
			Base:      config.BaseRetryDelay(),
			Cap:       config.MaxRetryDelay(),
			MaxJitter: config.MaxRetryJitter(),
		},
		config:   config,
		attempts: make(map[types.OperationKey]int),
	}
}

// Execute invokes fn under the retry policy for the given operation key.
//
// Both gates are re-checked before every attempt: an exhausted socket window
// or a key under cooldown fails fast without invoking fn. A gate interval
// miss is a scheduling decision, not a failure: the call waits out a backoff
// delay and proceeds. Transient failures (rate limit or connection class) are
// retried up to maxRetries with exponential backoff, doubled for connection
// failures; exhaustion puts the key under cooldown and yields the distinct
// terminal error. Unclassified errors propagate unmodified after a single
// invocation.
func (c *Coordinator) Execute(
	ctx context.Context,
	subject string,
	op types.OperationType,
	maxRetries int,
	fn func(ctx context.Context) error,
) error {
	key := types.NewOperationKey(subject, op)

	for {
		if op.IsConnection() && c.socketGate.ShouldBlockConnection(subject, op) {
			metrics.GateRejections.WithLabelValues("socket").Inc()
			return fmt.Errorf("%w: %s", types.ErrConnectionAttemptsExceeded, key)
		}

		if err := c.waitForGate(ctx, key); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			c.clearKey(key)
			return nil
		}

		rateLimited := IsRateLimitError(err)
		connection := IsConnectionError(err)
		if !rateLimited && !connection {
			// Hard failure: propagated unmodified, never retried by this layer
			return err
		}

		if c.attemptCount(key) >= maxRetries {
			c.blockKey(key)
			if connection {
				return fmt.Errorf("%w (%s): %v", types.ErrConnectionFailed, key, err)
			}
			return fmt.Errorf("%w (%s): %v", types.ErrRateLimitExceeded, key, err)
		}

		attempt := c.incrementAttempt(key)
		delay := c.backoff.Delay(attempt)
		if connection {
			delay *= 2
		}

		metrics.OperationRetries.WithLabelValues(string(op)).Inc()
		log.Debug().Msgf("Retrying %s after %s (attempt %d of %d): %v", key, delay, attempt, maxRetries, err)

		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
}

// waitForGate passes the rate limit gate, sleeping out the minimum interval
// when needed. A key under cooldown fails fast before fn is ever invoked.
func (c *Coordinator) waitForGate(ctx context.Context, key types.OperationKey) error {
	for {
		if c.gate.IsBlocked(key) {
			metrics.GateRejections.WithLabelValues("cooldown").Inc()
			return fmt.Errorf("%w: %s", types.ErrOperationBlocked, key)
		}

		if !c.gate.ShouldBlock(key.Subject, key.Operation) {
			return nil
		}

		// Throttled: wait using the backoff of the current stored attempt count
		metrics.ThrottleWaits.Inc()
		if err := c.sleep(ctx, c.backoff.Delay(c.attemptCount(key))); err != nil {
			return err
		}
	}
}

// ClearSubject removes every entry keyed by the subject across the attempt
// counts and both gates.
func (c *Coordinator) ClearSubject(subject string) {
	c.mu.Lock()
	for key := range c.attempts {
		if key.Subject == subject {
			delete(c.attempts, key)
		}
	}
	c.mu.Unlock()

	c.gate.ClearSubject(subject)
	c.socketGate.ClearSubject(subject)
	log.Info().Msgf("Cleared limiter state for subject %s", subject)
}

// BlockedKeys returns a snapshot of the keys currently under cooldown.
func (c *Coordinator) BlockedKeys() []types.OperationKey {
	return c.gate.BlockedKeys()
}

// Close stops the cooldown expiry timers.
func (c *Coordinator) Close() {
	c.gate.Close()
}

func (c *Coordinator) attemptCount(key types.OperationKey) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts[key]
}

func (c *Coordinator) incrementAttempt(key types.OperationKey) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[key]++
	return c.attempts[key]
}

func (c *Coordinator) clearKey(key types.OperationKey) {
	c.mu.Lock()
	delete(c.attempts, key)
	c.mu.Unlock()
	c.gate.Unblock(key)
}

func (c *Coordinator) blockKey(key types.OperationKey) {
	c.mu.Lock()
	delete(c.attempts, key)
	c.mu.Unlock()
	c.gate.Block(key)
}
