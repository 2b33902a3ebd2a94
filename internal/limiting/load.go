package limiting

import (
	"context"
	"time"

	"github.com/rtcbridge/rtcbridge/internal/metrics"
)

// IsOverloaded applies the aggregate load heuristic: the coordinator is
// considered overloaded when the sum of outstanding retry attempts or the
// amount of keys under cooldown crosses the configured thresholds.
//
// It's a damping signal, not a hard limit: it only stretches the sleeps.
func (c *Coordinator) IsOverloaded() bool {
	if c.gate.BlockedLen() > c.config.OverloadBlockedThreshold() {
		return true
	}
	return c.totalAttempts() > c.config.OverloadAttemptThreshold()
}

func (c *Coordinator) totalAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, count := range c.attempts {
		total += count
	}
	return total
}

// sleep waits out the delay or the context, whichever comes first. The delay
// is extended by half when the coordinator looks overloaded.
func (c *Coordinator) sleep(ctx context.Context, delay time.Duration) error {
	if c.IsOverloaded() {
		delay += delay / 2
		metrics.OverloadExtendedSleeps.Inc()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
