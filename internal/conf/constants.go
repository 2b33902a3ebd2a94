package conf

import (
	"time"

	"github.com/rtcbridge/rtcbridge/internal/types"
)

const (
	StatusUrl = "/status"

	// Admin Urls

	// Url for listing the operation keys currently under cooldown
	BlockedKeysUrl = "/v1/limiter/blocked"
	// Url for listing live sessions
	SessionsUrl = "/v1/sessions"
	// Url for clearing all limiter state of a subject
	ClearSubjectUrl = "/v1/sessions/:subject/clear"
)

const (
	baseRetryDelay = 2 * time.Second
	maxRetryDelay  = 60 * time.Second
	maxRetryJitter = 1 * time.Second

	blockCooldown           = 5 * time.Minute
	connectionAttemptWindow = 5 * time.Minute
	maxConnectionAttempts   = 5

	callCreationTimeout = 10 * time.Second
	defaultMaxRetries   = 3

	overloadAttemptThreshold = 50
	overloadBlockedThreshold = 10
)

// Minimum spacing between attempts per operation type. Types not listed here
// fall back to defaultOperationInterval.
var operationIntervals = map[types.OperationType]time.Duration{
	types.OpVideoCall:     5 * time.Second,
	types.OpChannelCreate: 3 * time.Second,
	types.OpUserConnect:   2 * time.Second,
	types.OpUserInit:      2 * time.Second,
	types.OpSendMessage:   time.Second,
}

const defaultOperationInterval = time.Second
