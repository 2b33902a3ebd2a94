package fakes

import (
	"time"

	"github.com/rtcbridge/rtcbridge/internal/types"
)

// LimiterConfig is a test configuration with short durations so gate and
// cooldown expiry can be observed within a test run.
type LimiterConfig struct {
	BaseRetryDelayValue          time.Duration
	MaxRetryDelayValue           time.Duration
	MaxRetryJitterValue          time.Duration
	BlockCooldownValue           time.Duration
	ConnectionAttemptWindowValue time.Duration
	MaxConnectionAttemptsValue   int
	OperationIntervalValue       time.Duration
	OverloadAttemptThresholdV    int
	OverloadBlockedThresholdV    int
	CallCreationTimeoutValue     time.Duration
	DefaultMaxRetriesValue       int
}

// NewLimiterConfig returns a config with millisecond-scale defaults.
func NewLimiterConfig() *LimiterConfig {
	return &LimiterConfig{
		BaseRetryDelayValue:          2 * time.Millisecond,
		MaxRetryDelayValue:           20 * time.Millisecond,
		MaxRetryJitterValue:          time.Millisecond,
		BlockCooldownValue:           200 * time.Millisecond,
		ConnectionAttemptWindowValue: 200 * time.Millisecond,
		MaxConnectionAttemptsValue:   5,
		OperationIntervalValue:       0,
		OverloadAttemptThresholdV:    50,
		OverloadBlockedThresholdV:    10,
		CallCreationTimeoutValue:     time.Second,
		DefaultMaxRetriesValue:       3,
	}
}

func (c *LimiterConfig) BaseRetryDelay() time.Duration {
	return c.BaseRetryDelayValue
}

func (c *LimiterConfig) MaxRetryDelay() time.Duration {
	return c.MaxRetryDelayValue
}

func (c *LimiterConfig) MaxRetryJitter() time.Duration {
	return c.MaxRetryJitterValue
}

func (c *LimiterConfig) BlockCooldown() time.Duration {
	return c.BlockCooldownValue
}

func (c *LimiterConfig) ConnectionAttemptWindow() time.Duration {
	return c.ConnectionAttemptWindowValue
}

func (c *LimiterConfig) MaxConnectionAttempts() int {
	return c.MaxConnectionAttemptsValue
}

func (c *LimiterConfig) OperationInterval(_ types.OperationType) time.Duration {
	return c.OperationIntervalValue
}

func (c *LimiterConfig) OverloadAttemptThreshold() int {
	return c.OverloadAttemptThresholdV
}

func (c *LimiterConfig) OverloadBlockedThreshold() int {
	return c.OverloadBlockedThresholdV
}

func (c *LimiterConfig) CallCreationTimeout() time.Duration {
	return c.CallCreationTimeoutValue
}

func (c *LimiterConfig) DefaultMaxRetries() int {
	return c.DefaultMaxRetriesValue
}
