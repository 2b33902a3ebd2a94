package platform

import (
	"context"

	"github.com/rtcbridge/rtcbridge/internal/types"
)

// Client is the surface of the managed chat/video platform consumed by the
// session manager.
//
// Error string contract: the platform reports most failures as plain message
// strings ("too many requests", "websocket connection closed (1006)", ...).
// Implementations must preserve those phrases in the errors they return, the
// limiting classifier matches on them. See limiting/classifier.go for the
// recognized tables.
type Client interface {
	types.Initializer

	// ConnectUser opens a chat session for the subject.
	ConnectUser(ctx context.Context, subject string) (UserSession, error)

	// CreateVideoClient provisions a video client bound to the subject.
	CreateVideoClient(ctx context.Context, subject string) (VideoClient, error)

	// CreateChannel creates or opens the channel with the given canonical id.
	CreateChannel(ctx context.Context, channelId string, members []string) (Channel, error)

	Close()
}

// UserSession is a live chat session handle.
type UserSession interface {
	Subject() string
	SendMessage(ctx context.Context, channelId string, text string) error
	Disconnect(ctx context.Context) error
}

// VideoClient is a live per-subject video handle. Observers registered on it
// fire on connection state transitions and on terminal connection errors.
type VideoClient interface {
	Subject() string
	OnStateChange(fn func(types.ConnectionState))
	OnConnectionError(fn func(error))
	StartCall(ctx context.Context, channelId string) (Call, error)
	Dispose(ctx context.Context) error
}

// Channel is an open channel handle.
type Channel interface {
	Id() string
	Members() []string
	Leave(ctx context.Context, subject string) error
}

// Call is a live video call handle.
type Call interface {
	Id() string
	ChannelId() string
	End(ctx context.Context) error
}
