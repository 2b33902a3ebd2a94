package limiting

import (
	"context"
	"errors"
	"strings"
)

// The platform SDK surfaces most failures as plain error strings, so
// classification is substring matching over the message (case-insensitive).
// The tables below are the policy: they enumerate the known phrases of the
// collaborator and can be extended when its wording changes. Coverage is
// asserted against the known strings in the classifier tests.

// rateLimitPatterns mark an error as a transient rate limit failure.
var rateLimitPatterns = []string{
	"too many requests",
	"rate limit",
	"429",
	"error code 9", // platform throttling code
	"quota exceeded",
	"limit exceeded",
	"failed to create channel",
}

// connectionPatterns mark an error as a transient connection/transport failure.
var connectionPatterns = []string{
	"websocket",
	"connection failed",
	"1006", // abnormal closure
	"timed out",
	"network error",
	"connection closed",
	"peerconnection",
	"ice connection",
}

// alreadyClosedPatterns identify teardown errors that mean the resource was
// already released on the platform side. Cleanup swallows these.
var alreadyClosedPatterns = []string{
	"already left",
	"already disconnected",
	"already closed",
	"not connected",
}

// IsRateLimitError determines whether the error message indicates platform throttling.
func IsRateLimitError(err error) bool {
	return matchesAny(err, rateLimitPatterns)
}

// IsConnectionError determines whether the error message indicates a
// connection/transport failure. Deadline expirations count as connection
// failures regardless of the message.
func IsConnectionError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return matchesAny(err, connectionPatterns)
}

// IsAlreadyClosedError determines whether a teardown error only reports that
// the resource was released before.
func IsAlreadyClosedError(err error) bool {
	return matchesAny(err, alreadyClosedPatterns)
}

func matchesAny(err error, patterns []string) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(message, p) {
			return true
		}
	}
	return false
}
