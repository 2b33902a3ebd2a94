package types

type Initializer interface {
	Init() error
}

type Closer interface {
	Close()
}

// ConnectionState models the lifecycle of a chat or video session per subject:
// disconnected -> connecting -> connected -> (error | disconnected).
// An errored session goes back to disconnected only via explicit cleanup.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	}
	return "disconnected"
}
