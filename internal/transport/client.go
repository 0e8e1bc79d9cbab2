package transport

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/marsgrid/ticksync/internal/channel"
)

const instrumentationName = "github.com/marsgrid/ticksync/internal/transport"

type noticeKind int

const (
	noticeDialed noticeKind = iota
	noticeFrame
	noticeLost
)

// notice is what the dial and read goroutines hand to Poll. gen ties it to
// one connection attempt so stale notices can be ignored.
type notice struct {
	kind noticeKind
	gen  uint64
	conn *ws.Conn
	data []byte
	err  error
}

// Client owns one upstream socket. Poll, Send and Connect are meant to be
// called from the single driving loop; State and Disconnects are safe from
// any goroutine.
type Client struct {
	cfg    Config
	logger *slog.Logger
	dialer *ws.Dialer

	mu          sync.Mutex
	address     string
	state       State
	conn        *ws.Conn
	gen         uint64
	closed      bool
	disconnects int
	lastErr     error

	// reconnect timer, counted down by Poll
	armed       bool
	backoffLeft time.Duration
	backoff     retry.Backoff

	inbox  channel.Channel[notice]
	ctx    context.Context
	cancel context.CancelFunc

	reconnects metric.Int64Counter
}

// New creates a disconnected client.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		cfg:     cfg,
		logger:  logger,
		dialer:  &ws.Dialer{HandshakeTimeout: cfg.WriteWait},
		state:   Disconnected,
		backoff: cfg.newBackoff(),
		inbox:   channel.New[notice](cfg.InboxSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"transport.reconnects",
		metric.WithDescription("Reconnect attempts after a lost or failed connection"),
	)
	if err != nil {
		logger.Warn("Failed to create reconnect counter", "error", err)
	}
	c.reconnects = counter

	return c
}

// Connect starts dialing address in the background. It returns immediately;
// progress is observed through Poll and State.
func (c *Client) Connect(address string) error {
	u, err := url.Parse(address)
	if err != nil {
		return &ConnectError{Address: address, Err: err}
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return &ConnectError{Address: address, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.state == Connecting || c.state == Open {
		return nil
	}
	c.address = address
	c.startDialLocked()
	return nil
}

func (c *Client) startDialLocked() {
	c.gen++
	c.state = Connecting
	c.armed = false
	gen, address := c.gen, c.address

	c.logger.Info("Connecting to simulation", "address", address)

	go func() {
		conn, _, err := c.dialer.DialContext(c.ctx, address, nil)
		if !c.inbox.SendUntil(notice{kind: noticeDialed, gen: gen, conn: conn, err: err}, c.ctx.Done()) && conn != nil {
			_ = conn.Close()
		}
	}()
}

func (c *Client) readLoop(gen uint64, conn *ws.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.inbox.SendUntil(notice{kind: noticeLost, gen: gen, err: err}, c.ctx.Done())
			return
		}
		if msgType != ws.TextMessage {
			continue
		}
		if !c.inbox.SendUntil(notice{kind: noticeFrame, gen: gen, data: data}, c.ctx.Done()) {
			return
		}
	}
}

// Poll never blocks. It applies everything the background goroutines have
// reported since the last call, advances the reconnect timer by dt and
// returns the received text frames in arrival order. Empty and whitespace
// frames are dropped here.
func (c *Client) Poll(dt time.Duration) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	var frames [][]byte
	for drained := false; !drained; {
		select {
		case n := <-c.inbox.Receive():
			if frame := c.handleLocked(n); frame != nil {
				frames = append(frames, frame)
			}
		default:
			drained = true
		}
	}

	if c.armed {
		c.backoffLeft -= dt
		if c.backoffLeft <= 0 {
			if c.reconnects != nil {
				c.reconnects.Add(context.Background(), 1,
					metric.WithAttributes(attribute.Int("disconnects", c.disconnects)))
			}
			c.startDialLocked()
		}
	}

	return frames
}

func (c *Client) handleLocked(n notice) []byte {
	if n.gen != c.gen {
		if n.conn != nil {
			_ = n.conn.Close()
		}
		return nil
	}

	switch n.kind {
	case noticeDialed:
		if n.err != nil {
			c.lastErr = &ConnectError{Address: c.address, Err: n.err}
			c.state = Closed
			c.logger.Warn("Connect failed", "address", c.address, "error", n.err)
			c.armLocked()
			return nil
		}
		c.conn = n.conn
		c.state = Open
		c.lastErr = nil
		c.backoff = c.cfg.newBackoff()
		c.logger.Info("Connected to simulation", "address", c.address)
		go c.readLoop(n.gen, n.conn)

	case noticeFrame:
		if len(bytes.TrimSpace(n.data)) == 0 {
			return nil
		}
		return n.data

	case noticeLost:
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.lastErr = n.err
		c.state = Closed
		c.disconnects++
		c.logger.Warn("Connection lost", "address", c.address, "disconnects", c.disconnects, "error", n.err)
		c.armLocked()
	}
	return nil
}

func (c *Client) armLocked() {
	next, stop := c.backoff.Next()
	if stop {
		next = c.cfg.MaxBackoff
	}
	c.armed = true
	c.backoffLeft = next
	c.logger.Info("Reconnect scheduled", "in", next)
}

// Send writes one text frame. It fails with ErrNotOpen unless the socket is
// open and with ErrClosed after Close.
func (c *Client) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.state != Open || c.conn == nil {
		return ErrNotOpen
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(ws.TextMessage, []byte(text)); err != nil {
		// the read loop will observe the broken socket and report it
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close stops the client for good. Pending frames are discarded and no
// reconnect is attempted afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.armed = false
	c.state = Closing
	conn := c.conn
	c.conn = nil
	address := c.address
	c.cancel()

	var err error
	if conn != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
		_ = conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
		err = conn.Close()
	}
	c.state = Closed
	c.mu.Unlock()

	for drained := false; !drained; {
		select {
		case n := <-c.inbox.Receive():
			if n.conn != nil {
				_ = n.conn.Close()
			}
		default:
			drained = true
		}
	}
	c.logger.Info("Transport closed", "address", address)
	return err
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Disconnects counts how many times an open connection was lost.
func (c *Client) Disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

// LastError is the most recent connect or read failure, nil once connected.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Address is the endpoint passed to Connect.
func (c *Client) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}
