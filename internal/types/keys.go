package types

import (
	"fmt"
	"strings"
)

// OperationType classifies the kind of protected action performed against the
// chat/video platform. It selects the minimum request interval and the terminal
// error messaging used by the retry coordinator.
type OperationType string

const (
	OpVideoCall     OperationType = "video-call"
	OpChannelCreate OperationType = "channel-create"
	OpUserConnect   OperationType = "user-connect"
	OpUserInit      OperationType = "user-init"
	OpSendMessage   OperationType = "send-message"
	OpDefault       OperationType = "default"
)

// IsConnection determines whether the operation establishes a connection or a
// video session, which makes it subject to the socket attempt gate.
func (o OperationType) IsConnection() bool {
	switch o {
	case OpVideoCall, OpUserConnect, OpUserInit:
		return true
	}
	return false
}

// OperationKey identifies a rate-limited unit of work.
// It only lives in process memory for the lifetime of the coordinator.
type OperationKey struct {
	Subject   string
	Operation OperationType
}

func NewOperationKey(subject string, op OperationType) OperationKey {
	return OperationKey{Subject: subject, Operation: op}
}

func (k OperationKey) String() string {
	return fmt.Sprintf("%s/%s", k.Subject, k.Operation)
}

// ChannelKey builds the canonical channel id for a pair of subjects: both ids
// sorted and joined, so that (a, b) and (b, a) address the same channel.
func ChannelKey(a string, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + ":" + b
}
