package sessions

import (
	"sync/atomic"

	"github.com/rtcbridge/rtcbridge/internal/platform"
	"github.com/rtcbridge/rtcbridge/internal/types"
)

// ChatSession is the cached chat handle for a subject.
type ChatSession struct {
	subject string
	remote  platform.UserSession
	state   int32
}

func newChatSession(subject string) *ChatSession {
	return &ChatSession{subject: subject, state: int32(types.StateConnecting)}
}

func (s *ChatSession) Subject() string {
	return s.subject
}

func (s *ChatSession) State() types.ConnectionState {
	return types.ConnectionState(atomic.LoadInt32(&s.state))
}

func (s *ChatSession) setState(state types.ConnectionState) {
	atomic.StoreInt32(&s.state, int32(state))
}

// VideoSession is the cached video client handle for a subject.
type VideoSession struct {
	subject string
	remote  platform.VideoClient
	state   int32
}

func newVideoSession(subject string, remote platform.VideoClient) *VideoSession {
	return &VideoSession{subject: subject, remote: remote, state: int32(types.StateConnected)}
}

func (s *VideoSession) Subject() string {
	return s.subject
}

func (s *VideoSession) State() types.ConnectionState {
	return types.ConnectionState(atomic.LoadInt32(&s.state))
}

func (s *VideoSession) setState(state types.ConnectionState) {
	atomic.StoreInt32(&s.state, int32(state))
}

// valid determines whether the cached handle can be reused for the subject:
// the bound identity still matches and the handle is not in error state.
func (s *VideoSession) valid(subject string) bool {
	return s.remote != nil && s.remote.Subject() == subject && s.State() != types.StateError
}
