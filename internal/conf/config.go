package conf

import (
	"os"
	"strconv"
	"time"

	"github.com/rtcbridge/rtcbridge/internal/types"
	"github.com/rs/zerolog/log"
)

// Config represents the application configuration
type Config interface {
	LimiterConfig
	SessionConfig
	PlatformConfig
	AdminPort() int
	MetricsPort() int
}

// LimiterConfig contains the knobs consumed by the rate limiting gates and the
// retry coordinator. Tests provide their own implementation with shorter durations.
type LimiterConfig interface {
	// BaseRetryDelay is the backoff delay for attempt zero.
	BaseRetryDelay() time.Duration
	// MaxRetryDelay caps the exponential backoff delay, jitter excluded.
	MaxRetryDelay() time.Duration
	// MaxRetryJitter bounds the additive random jitter.
	MaxRetryJitter() time.Duration
	// BlockCooldown determines how long an operation key stays blocked after
	// exhausting its retries.
	BlockCooldown() time.Duration
	// ConnectionAttemptWindow is the sliding window of the socket attempt gate.
	ConnectionAttemptWindow() time.Duration
	// MaxConnectionAttempts is the attempt ceiling per window.
	MaxConnectionAttempts() int
	// OperationInterval is the minimum spacing between two attempts of the same
	// operation key.
	OperationInterval(op types.OperationType) time.Duration
	OverloadAttemptThreshold() int
	OverloadBlockedThreshold() int
}

type SessionConfig interface {
	LimiterConfig
	// CallCreationTimeout is the hard ceiling on starting a call.
	CallCreationTimeout() time.Duration
	DefaultMaxRetries() int
}

type PlatformConfig interface {
	PlatformUrl() string
	// PlatformRps caps the requests per second issued to the platform.
	PlatformRps() int
}

func NewConfig() Config {
	return &config{}
}

type config struct {
}

func (c *config) AdminPort() int {
	return envInt("RTCBRIDGE_ADMIN_PORT", 8091)
}

func (c *config) MetricsPort() int {
	return envInt("RTCBRIDGE_METRICS_PORT", 9091)
}

func (c *config) BaseRetryDelay() time.Duration {
	return envDuration("RTCBRIDGE_BASE_RETRY_DELAY", baseRetryDelay)
}

func (c *config) MaxRetryDelay() time.Duration {
	return envDuration("RTCBRIDGE_MAX_RETRY_DELAY", maxRetryDelay)
}

func (c *config) MaxRetryJitter() time.Duration {
	return maxRetryJitter
}

func (c *config) BlockCooldown() time.Duration {
	return envDuration("RTCBRIDGE_BLOCK_COOLDOWN", blockCooldown)
}

func (c *config) ConnectionAttemptWindow() time.Duration {
	return envDuration("RTCBRIDGE_CONNECTION_ATTEMPT_WINDOW", connectionAttemptWindow)
}

func (c *config) MaxConnectionAttempts() int {
	return envInt("RTCBRIDGE_MAX_CONNECTION_ATTEMPTS", maxConnectionAttempts)
}

func (c *config) OperationInterval(op types.OperationType) time.Duration {
	if interval, ok := operationIntervals[op]; ok {
		return interval
	}
	return defaultOperationInterval
}

func (c *config) OverloadAttemptThreshold() int {
	return overloadAttemptThreshold
}

func (c *config) OverloadBlockedThreshold() int {
	return overloadBlockedThreshold
}

func (c *config) CallCreationTimeout() time.Duration {
	return envDuration("RTCBRIDGE_CALL_CREATION_TIMEOUT", callCreationTimeout)
}

func (c *config) DefaultMaxRetries() int {
	return envInt("RTCBRIDGE_DEFAULT_MAX_RETRIES", defaultMaxRetries)
}

func (c *config) PlatformUrl() string {
	if v := os.Getenv("RTCBRIDGE_PLATFORM_URL"); v != "" {
		return v
	}
	return "http://localhost:9400"
}

func (c *config) PlatformRps() int {
	return envInt("RTCBRIDGE_PLATFORM_RPS", 50)
}

func envInt(name string, defaultValue int) int {
	v := os.Getenv(name)
	if v == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Msgf("Invalid value for %s, using default %d", name, defaultValue)
		return defaultValue
	}
	return parsed
}

func envDuration(name string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Msgf("Invalid value for %s, using default %s", name, defaultValue)
		return defaultValue
	}
	return parsed
}
