// Package transport is the poll-driven WebSocket client that carries tick
// snapshots in and acks out. It reconnects on its own after a backoff and
// never ends the process.
package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

var (
	// ErrNotOpen is returned by Send while the socket is not open.
	ErrNotOpen = errors.New("transport not open")
	// ErrClosed is returned after Close has been called.
	ErrClosed = errors.New("transport closed")
)

// ConnectError reports a failed dial. The client retries it after the
// backoff; it is never fatal.
type ConnectError struct {
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Address, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// State is the socket lifecycle.
type State int

const (
	Disconnected State = iota
	Connecting
	Open
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Open:
		return "Open"
	case Closing:
		return "Closing"
	case Closed:
		return "Closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Backoff modes.
const (
	BackoffConstant    = "constant"
	BackoffExponential = "exponential"
)

const (
	defaultBackoff   = 2 * time.Second
	defaultMaxBack   = 30 * time.Second
	defaultWriteWait = 10 * time.Second
	defaultInboxSize = 1024
)

// Config holds transport tuning.
type Config struct {
	Backoff     time.Duration
	BackoffMode string
	MaxBackoff  time.Duration
	WriteWait   time.Duration
	InboxSize   int
}

func (c Config) withDefaults() Config {
	if c.Backoff <= 0 {
		c.Backoff = defaultBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBack
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	if c.InboxSize <= 0 {
		c.InboxSize = defaultInboxSize
	}
	if c.BackoffMode == "" {
		c.BackoffMode = BackoffConstant
	}
	return c
}

// newBackoff builds a fresh reconnect policy. Exponential policies are
// rebuilt after every successful connect so the delay starts over.
func (c Config) newBackoff() retry.Backoff {
	if c.BackoffMode == BackoffExponential {
		return retry.WithCappedDuration(c.MaxBackoff, retry.NewExponential(c.Backoff))
	}
	return retry.NewConstant(c.Backoff)
}
