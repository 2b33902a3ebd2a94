package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/rtcbridge/rtcbridge/internal/conf"
	"github.com/rtcbridge/rtcbridge/internal/metrics"
	"github.com/rtcbridge/rtcbridge/internal/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// burst is expressed as a multiple of the rps ceiling
const burstMultiplier = 2

// httpClient talks to the platform control plane over HTTP/2 with a
// process-wide requests-per-second ceiling.
type httpClient struct {
	config  conf.PlatformConfig
	client  *http.Client
	limiter *rate.Limiter

	isConnected    int32
	isReconnecting int32
	isClosed       int32

	mu           sync.Mutex
	videoClients map[string]*videoClient // registered handles, notified on transport errors
}

func NewClient(config conf.PlatformConfig) Client {
	rps := config.PlatformRps()
	return &httpClient{
		config:       config,
		limiter:      rate.NewLimiter(rate.Limit(rps), rps*burstMultiplier),
		videoClients: make(map[string]*videoClient),
	}
}

func (c *httpClient) Init() error {
	c.client = c.newPlatformTransport()
	if err := c.probe(); err != nil {
		// Not fatal: reconnection continues in the background via the transport
		log.Warn().Msgf("Initial platform probe failed: %v", err)
	}
	return nil
}

func (c *httpClient) Close() {
	atomic.StoreInt32(&c.isClosed, 1)
	c.client.CloseIdleConnections()
}

func (c *httpClient) ConnectUser(ctx context.Context, subject string) (UserSession, error) {
	var response connectUserResponse
	url := fmt.Sprintf(connectUserUrl, subject)
	if err := c.do(ctx, http.MethodPost, url, nil, &response); err != nil {
		return nil, err
	}
	return &userSession{client: c, subject: subject, sessionId: response.SessionId}, nil
}

func (c *httpClient) CreateVideoClient(ctx context.Context, subject string) (VideoClient, error) {
	var response createVideoClientResponse
	body := createVideoClientRequest{Subject: subject}
	if err := c.do(ctx, http.MethodPost, videoClientsUrl, body, &response); err != nil {
		return nil, err
	}

	v := &videoClient{client: c, subject: subject, clientId: response.ClientId}
	c.mu.Lock()
	c.videoClients[response.ClientId] = v
	c.mu.Unlock()
	return v, nil
}

func (c *httpClient) CreateChannel(ctx context.Context, channelId string, members []string) (Channel, error) {
	var response createChannelResponse
	body := createChannelRequest{ChannelId: channelId, Members: members}
	if err := c.do(ctx, http.MethodPost, channelsUrl, body, &response); err != nil {
		return nil, err
	}
	return &channel{client: c, id: response.ChannelId, members: response.Members}, nil
}

func (c *httpClient) probe() error {
	resp, err := c.client.Get(c.config.PlatformUrl() + statusUrl)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("platform status returned %d", resp.StatusCode)
	}
	return nil
}

// do issues a control request, waiting for the rps limiter first. Errors are
// normalized to messages carrying the platform phrases (see the Client docs).
func (c *httpClient) do(ctx context.Context, method string, path string, body interface{}, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader *bytes.Reader
	if body != nil {
		// Serialization of own wire models can't fail
		jsonBody, _ := json.Marshal(body)
		reader = bytes.NewReader(jsonBody)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.PlatformUrl()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.PlatformRequests.WithLabelValues("transport_error").Inc()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("platform connection failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.PlatformRequests.WithLabelValues("throttled").Inc()
		return fmt.Errorf("platform: too many requests (429)")
	}
	if resp.StatusCode >= 300 {
		metrics.PlatformRequests.WithLabelValues("error").Inc()
		var errResponse errorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errResponse); decodeErr == nil && errResponse.Message != "" {
			// The platform message carries the phrases the classifier matches
			return fmt.Errorf("platform: %s (error code %d)", errResponse.Message, errResponse.Code)
		}
		return fmt.Errorf("platform request to %s returned %d", path, resp.StatusCode)
	}

	metrics.PlatformRequests.WithLabelValues("ok").Inc()
	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

// notifyConnectionError fans a transport-level failure out to the registered
// video client observers.
func (c *httpClient) notifyConnectionError(err error) {
	c.mu.Lock()
	handles := make([]*videoClient, 0, len(c.videoClients))
	for _, v := range c.videoClients {
		handles = append(handles, v)
	}
	c.mu.Unlock()

	for _, v := range handles {
		v.fireConnectionError(err)
	}
}

func (c *httpClient) unregisterVideoClient(clientId string) {
	c.mu.Lock()
	delete(c.videoClients, clientId)
	c.mu.Unlock()
}

type userSession struct {
	client    *httpClient
	subject   string
	sessionId string
}

func (s *userSession) Subject() string {
	return s.subject
}

func (s *userSession) SendMessage(ctx context.Context, channelId string, text string) error {
	url := fmt.Sprintf(messagesUrl, channelId)
	return s.client.do(ctx, http.MethodPost, url, sendMessageRequest{Subject: s.subject, Text: text}, nil)
}

func (s *userSession) Disconnect(ctx context.Context) error {
	url := fmt.Sprintf(disconnectUrl, s.subject)
	return s.client.do(ctx, http.MethodPost, url, nil, nil)
}

type videoClient struct {
	client   *httpClient
	subject  string
	clientId string

	mu       sync.Mutex
	stateFns []func(types.ConnectionState)
	errorFns []func(error)
}

func (v *videoClient) Subject() string {
	return v.subject
}

func (v *videoClient) OnStateChange(fn func(types.ConnectionState)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stateFns = append(v.stateFns, fn)
}

func (v *videoClient) OnConnectionError(fn func(error)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errorFns = append(v.errorFns, fn)
}

func (v *videoClient) StartCall(ctx context.Context, channelId string) (Call, error) {
	var response createCallResponse
	body := createCallRequest{ClientId: v.clientId, ChannelId: channelId}
	if err := v.client.do(ctx, http.MethodPost, callsUrl, body, &response); err != nil {
		return nil, err
	}
	return &call{client: v.client, id: response.CallId, channelId: channelId}, nil
}

func (v *videoClient) Dispose(ctx context.Context) error {
	v.client.unregisterVideoClient(v.clientId)
	url := fmt.Sprintf(disposeClientUrl, v.clientId)
	return v.client.do(ctx, http.MethodDelete, url, nil, nil)
}

func (v *videoClient) fireConnectionError(err error) {
	v.mu.Lock()
	stateFns := v.stateFns
	errorFns := v.errorFns
	v.mu.Unlock()

	for _, fn := range stateFns {
		fn(types.StateError)
	}
	for _, fn := range errorFns {
		fn(err)
	}
}

type channel struct {
	client  *httpClient
	id      string
	members []string
}

func (c *channel) Id() string {
	return c.id
}

func (c *channel) Members() []string {
	return c.members
}

func (c *channel) Leave(ctx context.Context, subject string) error {
	url := fmt.Sprintf(leaveChannelUrl, c.id, subject)
	return c.client.do(ctx, http.MethodDelete, url, nil, nil)
}

type call struct {
	client    *httpClient
	id        string
	channelId string
}

func (c *call) Id() string {
	return c.id
}

func (c *call) ChannelId() string {
	return c.channelId
}

func (c *call) End(ctx context.Context) error {
	url := fmt.Sprintf(endCallUrl, c.id)
	return c.client.do(ctx, http.MethodDelete, url, nil, nil)
}
