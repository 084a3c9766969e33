// Package websocket streams fMP4 segments to a remote viewer over a
// gorilla/websocket connection, with automatic reconnect and backoff.
package websocket

import (
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/breeze-rmm/capture-sidecar/internal/logging"
)

var log = logging.L("websocket")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFactor   = 0.3

	outboundQueueSize = 64
)

// Config holds WebSocket client configuration.
type Config struct {
	ServerURL string
	SessionID string
	AuthToken string
}

// Client streams binary segment frames to a remote server and reconnects
// on disconnect. It never blocks the caller: Send drops a frame rather than
// wait for a slow or absent connection.
type Client struct {
	config    *Config
	conn      *websocket.Conn
	connMu    sync.RWMutex
	done      chan struct{}
	sendChan  chan []byte
	connected chan struct{}
	connOnce  sync.Once
	stopOnce  sync.Once
	isRunning bool
	runningMu sync.RWMutex
}

// New creates a new WebSocket client.
func New(cfg *Config) *Client {
	return &Client{
		config:    cfg,
		done:      make(chan struct{}),
		sendChan:  make(chan []byte, outboundQueueSize),
		connected: make(chan struct{}),
	}
}

// Start begins the reconnect loop. It blocks until Stop is called, so callers
// typically run it in its own goroutine.
func (c *Client) Start() {
	c.runningMu.Lock()
	if c.isRunning {
		c.runningMu.Unlock()
		return
	}
	c.isRunning = true
	c.runningMu.Unlock()

	c.reconnectLoop()
}

// WaitConnected blocks until the first successful handshake completes.
func (c *Client) WaitConnected() {
	<-c.connected
}

// Stop gracefully closes the connection.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.runningMu.Lock()
		c.isRunning = false
		c.runningMu.Unlock()

		close(c.done)

		c.connMu.Lock()
		if c.conn != nil {
			c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()

		log.Info("client stopped")
	})
}

// Send enqueues a binary segment for transmission. Non-blocking: if the
// outbound queue is full, the frame is dropped and an error is returned.
func (c *Client) Send(data []byte) error {
	select {
	case c.sendChan <- data:
		return nil
	case <-c.done:
		return fmt.Errorf("client is stopped")
	default:
		return fmt.Errorf("outbound queue full, dropping frame")
	}
}

func (c *Client) connect() error {
	wsURL, err := c.buildWSURL()
	if err != nil {
		return fmt.Errorf("failed to build WebSocket URL: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := make(map[string][]string)
	if c.config.AuthToken != "" {
		header["Authorization"] = []string{"Bearer " + c.config.AuthToken}
	}
	header["Session-Id"] = []string{c.config.SessionID}

	conn, _, err := dialer.Dial(wsURL, header)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	conn.SetReadLimit(maxMessageSize)

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	log.Info("connected", "server", c.config.ServerURL, "sessionId", c.config.SessionID)
	return nil
}

func (c *Client) buildWSURL() (string, error) {
	serverURL, err := url.Parse(c.config.ServerURL)
	if err != nil {
		return "", err
	}

	switch serverURL.Scheme {
	case "https":
		serverURL.Scheme = "wss"
	case "http":
		serverURL.Scheme = "ws"
	}

	q := serverURL.Query()
	q.Set("session", c.config.SessionID)
	serverURL.RawQuery = q.Encode()

	return serverURL.String(), nil
}

func (c *Client) reconnectLoop() {
	backoff := initialBackoff

	for {
		select {
		case <-c.done:
			return
		default:
		}

		if err := c.connect(); err != nil {
			log.Warn("connection failed", "error", err)

			jitter := time.Duration(float64(backoff) * jitterFactor * (rand.Float64()*2 - 1))
			sleep := backoff + jitter
			if sleep < 0 {
				sleep = backoff
			}

			log.Info("retrying", "delay", sleep)
			select {
			case <-c.done:
				return
			case <-time.After(sleep):
			}

			backoff = time.Duration(float64(backoff) * backoffFactor)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = initialBackoff
		c.connOnce.Do(func() { close(c.connected) })

		done := make(chan struct{})
		go c.writePump(done)
		c.readPump()
		close(done)

		c.runningMu.RLock()
		running := c.isRunning
		c.runningMu.RUnlock()
		if !running {
			return
		}
	}
}

// readPump drains (and discards) inbound traffic so pong control frames are
// processed; the protocol carries no meaningful inbound messages.
func (c *Client) readPump() {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("read error", "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump(done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.done:
			return

		case frame := <-c.sendChan:
			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()

			if conn == nil {
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				log.Warn("write error", "error", err)
				return
			}

		case <-ticker.C:
			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()

			if conn == nil {
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
