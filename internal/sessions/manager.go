package sessions

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rtcbridge/rtcbridge/internal/conf"
	"github.com/rtcbridge/rtcbridge/internal/limiting"
	"github.com/rtcbridge/rtcbridge/internal/metrics"
	"github.com/rtcbridge/rtcbridge/internal/platform"
	"github.com/rtcbridge/rtcbridge/internal/types"
	"github.com/rtcbridge/rtcbridge/internal/utils"
	"github.com/rs/zerolog/log"
)

// Manager owns every live connection resource of the process: chat sessions
// and video clients per subject, channels per canonical id, and the calls
// started through it. All platform operations go through the retry
// coordinator; successful results are memoized so repeated requests
// short-circuit.
//
// There is at most one active chat identity per process: connecting a second
// subject tears the previous session down first.
type Manager struct {
	config      conf.SessionConfig
	coordinator *limiting.Coordinator
	client      platform.Client

	mu           sync.Mutex
	chatSessions map[string]*ChatSession
	videoClients map[string]*VideoSession
	calls        map[string][]platform.Call
	inflight     map[string]*inflightCall
	closed       bool

	channels *utils.CopyOnWriteMap
}

func NewManager(config conf.SessionConfig, coordinator *limiting.Coordinator, client platform.Client) *Manager {
	return &Manager{
		config:       config,
		coordinator:  coordinator,
		client:       client,
		chatSessions: make(map[string]*ChatSession),
		videoClients: make(map[string]*VideoSession),
		calls:        make(map[string][]platform.Call),
		inflight:     make(map[string]*inflightCall),
		channels:     utils.NewCopyOnWriteMap(),
	}
}

// ConnectChat returns the chat session for the subject, connecting through
// the platform when there's no reusable one. A session in error state must be
// cleaned up explicitly before reconnecting.
func (m *Manager) ConnectChat(ctx context.Context, subject string) (*ChatSession, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, types.ErrSessionClosed
	}
	if existing, ok := m.chatSessions[subject]; ok {
		if existing.State() == types.StateConnected {
			m.mu.Unlock()
			return existing, nil
		}
		if existing.State() == types.StateError {
			m.mu.Unlock()
			return nil, fmt.Errorf("chat session for %s is in error state, cleanup is required before reconnecting", subject)
		}
	}
	// One active chat identity per process: a different subject evicts the rest
	previous := make([]string, 0, 1)
	for other := range m.chatSessions {
		if other != subject {
			previous = append(previous, other)
		}
	}
	m.mu.Unlock()

	for _, other := range previous {
		log.Info().Msgf("Disconnecting chat identity %s before connecting %s", other, subject)
		m.CleanupSubject(ctx, other)
	}

	value, err := m.dedupe("chat:"+subject, func() (interface{}, error) {
		session := newChatSession(subject)
		err := m.coordinator.Execute(ctx, subject, types.OpUserConnect, m.config.DefaultMaxRetries(), func(ctx context.Context) error {
			remote, err := m.client.ConnectUser(ctx, subject)
			if err != nil {
				return err
			}
			session.remote = remote
			return nil
		})
		if err != nil {
			return nil, err
		}

		session.setState(types.StateConnected)
		m.mu.Lock()
		m.chatSessions[subject] = session
		m.mu.Unlock()
		metrics.LiveChatSessions.Set(float64(m.chatSessionLen()))
		return session, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*ChatSession), nil
}

// SendMessage sends a message to the channel on behalf of the subject. The
// subject must have a connected chat session.
func (m *Manager) SendMessage(ctx context.Context, subject string, channelId string, text string) error {
	m.mu.Lock()
	session, ok := m.chatSessions[subject]
	m.mu.Unlock()
	if !ok || session.State() != types.StateConnected {
		return fmt.Errorf("no connected chat session for %s", subject)
	}

	err := m.coordinator.Execute(ctx, subject, types.OpSendMessage, m.config.DefaultMaxRetries(), func(ctx context.Context) error {
		return session.remote.SendMessage(ctx, channelId, text)
	})
	if err != nil && limiting.IsConnectionError(err) {
		session.setState(types.StateError)
	}
	return err
}

// OpenChannel returns the channel for the subject pair, creating it through
// the coordinator on first use and memoizing the handle on success.
func (m *Manager) OpenChannel(ctx context.Context, subject string, otherSubject string) (platform.Channel, error) {
	key := types.ChannelKey(subject, otherSubject)

	value, loaded, err := m.channels.LoadOrStore(key, func() (interface{}, error) {
		var channel platform.Channel
		err := m.coordinator.Execute(ctx, subject, types.OpChannelCreate, m.config.DefaultMaxRetries(), func(ctx context.Context) error {
			created, err := m.client.CreateChannel(ctx, key, []string{subject, otherSubject})
			if err != nil {
				return err
			}
			channel = created
			return nil
		})
		return channel, err
	})
	if err != nil {
		return nil, err
	}
	if loaded {
		metrics.ChannelCacheHits.Inc()
	}
	return value.(platform.Channel), nil
}

// StartCall opens (or reuses) the channel between both subjects and starts a
// call on it. Call creation is bounded by the configured ceiling; hitting it
// surfaces as a connection failure.
func (m *Manager) StartCall(ctx context.Context, subject string, otherSubject string) (platform.Call, error) {
	channel, err := m.OpenChannel(ctx, subject, otherSubject)
	if err != nil {
		return nil, err
	}

	video, err := m.ensureVideoClient(ctx, subject)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, m.config.CallCreationTimeout())
	defer cancel()

	var result platform.Call
	err = m.coordinator.Execute(callCtx, subject, types.OpVideoCall, m.config.DefaultMaxRetries(), func(ctx context.Context) error {
		call, err := video.remote.StartCall(ctx, channel.Id())
		if err != nil {
			return err
		}
		result = call
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls[subject] = append(m.calls[subject], result)
	m.mu.Unlock()
	return result, nil
}

// ensureVideoClient returns the cached video client for the subject after
// validating that its bound identity still matches; invalid entries are
// evicted and a fresh client is created with eviction observers attached.
func (m *Manager) ensureVideoClient(ctx context.Context, subject string) (*VideoSession, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, types.ErrSessionClosed
	}
	existing, ok := m.videoClients[subject]
	m.mu.Unlock()

	if ok {
		if existing.valid(subject) {
			return existing, nil
		}
		log.Debug().Msgf("Evicting stale video client for %s", subject)
		m.evictVideoClient(ctx, subject)
	}

	value, err := m.dedupe("video:"+subject, func() (interface{}, error) {
		var session *VideoSession
		err := m.coordinator.Execute(ctx, subject, types.OpUserInit, m.config.DefaultMaxRetries(), func(ctx context.Context) error {
			remote, err := m.client.CreateVideoClient(ctx, subject)
			if err != nil {
				return err
			}
			session = newVideoSession(subject, remote)
			return nil
		})
		if err != nil {
			return nil, err
		}

		session.remote.OnStateChange(session.setState)
		session.remote.OnConnectionError(func(err error) {
			log.Warn().Msgf("Video client for %s errored, evicting: %v", subject, err)
			session.setState(types.StateError)
			m.evictVideoClient(context.Background(), subject)
		})

		m.mu.Lock()
		m.videoClients[subject] = session
		videoLen := len(m.videoClients)
		m.mu.Unlock()
		metrics.LiveVideoClients.Set(float64(videoLen))
		return session, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*VideoSession), nil
}

// CleanupSubject releases every resource held for the subject: live calls,
// the video client, the chat session and the channel cache entries. Cleanup
// is idempotent; "already left/disconnected" responses from the platform are
// expected and swallowed, other teardown failures are logged and swallowed.
func (m *Manager) CleanupSubject(ctx context.Context, subject string) {
	m.mu.Lock()
	calls := m.calls[subject]
	delete(m.calls, subject)
	session, hadSession := m.chatSessions[subject]
	delete(m.chatSessions, subject)
	m.mu.Unlock()

	for _, call := range calls {
		m.swallowTeardownErr(call.End(ctx), "ending call", subject)
	}

	m.evictVideoClient(ctx, subject)

	if hadSession {
		if session.remote != nil {
			m.swallowTeardownErr(session.remote.Disconnect(ctx), "disconnecting chat", subject)
		}
		session.setState(types.StateDisconnected)
		metrics.LiveChatSessions.Set(float64(m.chatSessionLen()))
	}

	for _, key := range m.channels.Keys() {
		id := key.(string)
		if !channelInvolves(id, subject) {
			continue
		}
		if value, ok := m.channels.Delete(key); ok {
			if channel, ok := value.(platform.Channel); ok && channel != nil {
				m.swallowTeardownErr(channel.Leave(ctx, subject), "leaving channel", subject)
			}
		}
	}
}

// Close tears down every live resource. Idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	subjects := make([]string, 0, len(m.chatSessions)+len(m.videoClients))
	seen := map[string]bool{}
	for s := range m.chatSessions {
		seen[s] = true
		subjects = append(subjects, s)
	}
	for s := range m.videoClients {
		if !seen[s] {
			subjects = append(subjects, s)
		}
	}
	for s := range m.calls {
		if !seen[s] {
			subjects = append(subjects, s)
		}
	}
	m.mu.Unlock()

	for _, subject := range subjects {
		m.CleanupSubject(context.Background(), subject)
	}
	log.Info().Msg("Session manager closed")
}

// SessionInfo is the admin view of a live session.
type SessionInfo struct {
	Subject string `json:"subject"`
	Kind    string `json:"kind"`
	State   string `json:"state"`
}

// Sessions returns a snapshot of the live chat and video sessions.
func (m *Manager) Sessions() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]SessionInfo, 0, len(m.chatSessions)+len(m.videoClients))
	for subject, s := range m.chatSessions {
		result = append(result, SessionInfo{Subject: subject, Kind: "chat", State: s.State().String()})
	}
	for subject, v := range m.videoClients {
		result = append(result, SessionInfo{Subject: subject, Kind: "video", State: v.State().String()})
	}
	return result
}

func (m *Manager) evictVideoClient(ctx context.Context, subject string) {
	m.mu.Lock()
	session, ok := m.videoClients[subject]
	delete(m.videoClients, subject)
	videoLen := len(m.videoClients)
	m.mu.Unlock()

	if !ok {
		return
	}
	metrics.LiveVideoClients.Set(float64(videoLen))
	if session.remote != nil {
		m.swallowTeardownErr(session.remote.Dispose(ctx), "disposing video client", subject)
	}
}

// swallowTeardownErr logs a cleanup failure without propagating it: teardown
// must never mask the primary result of the surrounding operation.
func (m *Manager) swallowTeardownErr(err error, action string, subject string) {
	if err == nil {
		return
	}
	if limiting.IsAlreadyClosedError(err) {
		log.Debug().Msgf("Resource already released when %s for %s: %v", action, subject, err)
		return
	}
	log.Warn().Msgf("Error %s for %s (ignored): %v", action, subject, err)
}

func (m *Manager) chatSessionLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chatSessions)
}

func channelInvolves(channelId string, subject string) bool {
	for _, part := range strings.Split(channelId, ":") {
		if part == subject {
			return true
		}
	}
	return false
}
