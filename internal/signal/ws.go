package signal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultMaxMessageBytes = int64(64 * 1024)
	DefaultWriteWait       = 10 * time.Second
	DefaultPongWait        = 60 * time.Second
)

// WSOptions configures a WebSocketChannel. Zero values pick the defaults
// above; PingInterval defaults to 9/10 of PongWait.
type WSOptions struct {
	Logger          *slog.Logger
	MaxMessageBytes int64
	WriteWait       time.Duration
	PongWait        time.Duration
	PingInterval    time.Duration
}

func (o WSOptions) withDefaults() WSOptions {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if o.WriteWait <= 0 {
		o.WriteWait = DefaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = DefaultPongWait
	}
	if o.PingInterval <= 0 {
		o.PingInterval = o.PongWait * 9 / 10
	}
	return o
}

// WebSocketChannel implements Channel over a gorilla/websocket connection to
// the signaling server. Malformed inbound frames are logged and dropped; they
// never terminate the connection.
type WebSocketChannel struct {
	conn   *websocket.Conn
	opts   WSOptions
	events chan Envelope
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// DialWebSocket connects to the signaling server at url and starts the read
// and keepalive loops.
func DialWebSocket(ctx context.Context, url string, opts WSOptions) (*WebSocketChannel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial signaling server: %w", err)
	}

	c := &WebSocketChannel{
		conn:   conn,
		opts:   opts.withDefaults(),
		events: make(chan Envelope, 16),
		done:   make(chan struct{}),
	}

	conn.SetReadLimit(c.opts.MaxMessageBytes)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

func (c *WebSocketChannel) Events() <-chan Envelope { return c.events }

func (c *WebSocketChannel) Send(env Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	return c.conn.WriteJSON(env)
}

func (c *WebSocketChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *WebSocketChannel) readLoop() {
	defer close(c.events)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			c.opts.Logger.Warn("dropping non-text signaling frame", "msg_type", msgType)
			continue
		}

		env, err := ParseEnvelope(data)
		if err != nil {
			c.opts.Logger.Warn("dropping malformed signaling envelope", "err", err)
			continue
		}

		select {
		case c.events <- env:
		case <-c.done:
			return
		}
	}
}

func (c *WebSocketChannel) pingLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
