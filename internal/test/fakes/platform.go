package fakes

import (
	"context"
	"sync"

	"github.com/rtcbridge/rtcbridge/internal/platform"
	"github.com/rtcbridge/rtcbridge/internal/types"
)

// PlatformClient is a scripted in-memory platform. Each operation fails with
// the errors queued for it (in order) and succeeds once the queue is drained.
type PlatformClient struct {
	mu sync.Mutex

	ConnectUserErrors       []error
	CreateVideoClientErrors []error
	CreateChannelErrors     []error

	ConnectUserCalls       int
	CreateVideoClientCalls int
	CreateChannelCalls     int

	Sessions []*UserSession
	Clients  []*VideoClient
	Channels []*Channel
}

func NewPlatformClient() *PlatformClient {
	return &PlatformClient{}
}

func (c *PlatformClient) Init() error {
	return nil
}

func (c *PlatformClient) Close() {}

func (c *PlatformClient) ConnectUser(_ context.Context, subject string) (platform.UserSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ConnectUserCalls++
	if err := popError(&c.ConnectUserErrors); err != nil {
		return nil, err
	}
	s := &UserSession{subject: subject}
	c.Sessions = append(c.Sessions, s)
	return s, nil
}

func (c *PlatformClient) CreateVideoClient(_ context.Context, subject string) (platform.VideoClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CreateVideoClientCalls++
	if err := popError(&c.CreateVideoClientErrors); err != nil {
		return nil, err
	}
	v := &VideoClient{subject: subject}
	c.Clients = append(c.Clients, v)
	return v, nil
}

func (c *PlatformClient) CreateChannel(_ context.Context, channelId string, members []string) (platform.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CreateChannelCalls++
	if err := popError(&c.CreateChannelErrors); err != nil {
		return nil, err
	}
	ch := &Channel{id: channelId, members: members}
	c.Channels = append(c.Channels, ch)
	return ch, nil
}

func popError(queue *[]error) error {
	if len(*queue) == 0 {
		return nil
	}
	err := (*queue)[0]
	*queue = (*queue)[1:]
	return err
}

type UserSession struct {
	mu sync.Mutex

	subject string

	SendMessageErrors []error
	SentMessages      []string
	Disconnected      bool
	DisconnectError   error
}

func (s *UserSession) Subject() string {
	return s.subject
}

func (s *UserSession) SendMessage(_ context.Context, _ string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := popError(&s.SendMessageErrors); err != nil {
		return err
	}
	s.SentMessages = append(s.SentMessages, text)
	return nil
}

func (s *UserSession) Disconnect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Disconnected = true
	return s.DisconnectError
}

type VideoClient struct {
	mu sync.Mutex

	subject string

	StartCallErrors []error
	Disposed        bool
	DisposeError    error

	stateObservers []func(types.ConnectionState)
	errorObservers []func(error)
	callCounter    int
}

func (v *VideoClient) Subject() string {
	return v.subject
}

func (v *VideoClient) OnStateChange(fn func(types.ConnectionState)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stateObservers = append(v.stateObservers, fn)
}

func (v *VideoClient) OnConnectionError(fn func(error)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errorObservers = append(v.errorObservers, fn)
}

// FireStateChange invokes the registered state observers.
func (v *VideoClient) FireStateChange(state types.ConnectionState) {
	v.mu.Lock()
	observers := append([]func(types.ConnectionState){}, v.stateObservers...)
	v.mu.Unlock()
	for _, fn := range observers {
		fn(state)
	}
}

// FireConnectionError invokes the registered error observers.
func (v *VideoClient) FireConnectionError(err error) {
	v.mu.Lock()
	observers := append([]func(error){}, v.errorObservers...)
	v.mu.Unlock()
	for _, fn := range observers {
		fn(err)
	}
}

func (v *VideoClient) StartCall(_ context.Context, channelId string) (platform.Call, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := popError(&v.StartCallErrors); err != nil {
		return nil, err
	}
	v.callCounter++
	return &Call{id: v.subject, channelId: channelId}, nil
}

func (v *VideoClient) Dispose(_ context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Disposed = true
	return v.DisposeError
}

type Channel struct {
	mu sync.Mutex

	id      string
	members []string

	LeftBy     []string
	LeaveError error
}

func (c *Channel) Id() string {
	return c.id
}

func (c *Channel) Members() []string {
	return c.members
}

func (c *Channel) Leave(_ context.Context, subject string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LeftBy = append(c.LeftBy, subject)
	return c.LeaveError
}

type Call struct {
	mu sync.Mutex

	id        string
	channelId string

	Ended    bool
	EndError error
}

func (c *Call) Id() string {
	return c.id
}

func (c *Call) ChannelId() string {
	return c.channelId
}

func (c *Call) End(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Ended = true
	return c.EndError
}
