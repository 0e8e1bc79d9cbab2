// Package pacing implements stop-and-wait flow control: the peer holds
// tick N+1 until it receives the ack for tick N.
package pacing

import (
	"fmt"
	"log/slog"

	"github.com/marsgrid/ticksync/pkg/streaming"
)

// Sender is the outbound half of the transport.
type Sender interface {
	Send(text string) error
}

// Controller sends acks and remembers the last one that went out.
type Controller struct {
	sender    Sender
	logger    *slog.Logger
	lastAcked int
	hasAcked  bool
}

func NewController(sender Sender, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{sender: sender, logger: logger}
}

// Ack sends the decimal tick to the peer. The tick is remembered even when
// the send fails so a later Resend can restart the flow.
func (c *Controller) Ack(tick int) error {
	c.lastAcked = tick
	c.hasAcked = true
	if err := c.sender.Send(streaming.FormatAck(tick)); err != nil {
		return fmt.Errorf("ack tick %d: %w", tick, err)
	}
	c.logger.Debug("Sent ack", "tick", tick)
	return nil
}

// Resend repeats the last ack. It is a no-op before the first Ack.
func (c *Controller) Resend() error {
	if !c.hasAcked {
		return nil
	}
	return c.Ack(c.lastAcked)
}

// LastAcked returns the last acknowledged tick.
func (c *Controller) LastAcked() (int, bool) {
	return c.lastAcked, c.hasAcked
}
