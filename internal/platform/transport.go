package platform

import (
	"crypto/tls"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rtcbridge/rtcbridge/internal/utils"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
)

const (
	baseReconnectionDelayMs = 200
	maxReconnectionDelayMs  = 30_000
)

// newPlatformTransport builds the HTTP/2 client used for the platform control
// plane. The dialer hands out tracked connections so that a transport-level
// close marks the client as down and kicks off background reconnection.
func (c *httpClient) newPlatformTransport() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			StrictMaxConcurrentStreams: true, // Do not create additional connections
			AllowHTTP:                  true,
			DialTLS: func(network, addr string, cfg *tls.Config) (net.Conn, error) {
				// The platform control plane is plain h2c, pretend we are dialing TLS
				log.Debug().Msgf("Creating platform connection to %s", addr)
				conn, err := net.Dial(network, addr)
				if err != nil {
					c.startReconnection()
					return conn, err
				}

				atomic.StoreInt32(&c.isConnected, 1)
				log.Info().Msgf("Connected to platform at %s", addr)
				return newTrackedConn(conn, func(tc *trackedConn) {
					log.Warn().Msgf("Connection to platform at %s closed", addr)
					c.startReconnection()
				}), nil
			},
			// Eager health checks to detect half-open platform connections
			ReadIdleTimeout: time.Second,
			PingTimeout:     2 * time.Second,
		},
	}
}

// startReconnection probes the platform in the background until it answers,
// guarded so concurrent close handlers result in a single loop.
func (c *httpClient) startReconnection() {
	if !atomic.CompareAndSwapInt32(&c.isReconnecting, 0, 1) {
		return
	}

	if atomic.CompareAndSwapInt32(&c.isConnected, 1, 0) {
		log.Warn().Msg("Platform considered DOWN")
		// Message preserves the classifier phrase on purpose
		c.notifyConnectionError(fmt.Errorf("platform connection closed"))
	}

	go func() {
		i := 0
		for atomic.LoadInt32(&c.isClosed) == 0 {
			delayMs := math.Pow(2, float64(i)) * baseReconnectionDelayMs
			if delayMs > maxReconnectionDelayMs {
				delayMs = maxReconnectionDelayMs
			} else {
				i++
			}

			time.Sleep(utils.Jitter(time.Duration(delayMs) * time.Millisecond))

			if err := c.probe(); err == nil {
				break
			}
		}

		if atomic.CompareAndSwapInt32(&c.isConnected, 0, 1) {
			log.Info().Msg("Platform considered UP")
		}
		atomic.StoreInt32(&c.isReconnecting, 0)
	}()
}

// trackedConn wraps a net connection handed to the HTTP/2 transport. The
// transport invokes Close() when a request or ping fails, which fires the
// close handler exactly once.
type trackedConn struct {
	conn             net.Conn
	closeHandlerOnce sync.Once
	closeHandler     func(*trackedConn)
	id               uuid.UUID
}

func newTrackedConn(conn net.Conn, closeHandler func(*trackedConn)) *trackedConn {
	return &trackedConn{
		conn:         conn,
		closeHandler: closeHandler,
		id:           uuid.New(),
	}
}

func (c *trackedConn) Read(b []byte) (n int, err error) {
	return c.conn.Read(b)
}

func (c *trackedConn) Write(b []byte) (n int, err error) {
	return c.conn.Write(b)
}

func (c *trackedConn) Close() error {
	if c.closeHandler != nil {
		go c.closeHandlerOnce.Do(func() {
			c.closeHandler(c)
		})
	}
	return c.conn.Close()
}

func (c *trackedConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *trackedConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *trackedConn) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

func (c *trackedConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *trackedConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}
