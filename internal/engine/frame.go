package engine

import (
	"context"
	"errors"
	"fmt"
)

// HandleFrame decodes one raw frame, applies it and sends the ack before
// returning, so the peer is never left waiting past the current cycle.
//
// A frame that fails to decode is dropped: no ack, no state change, and the
// returned error wraps *parser.DecodeError. Invariant violations and ack
// send failures are returned as well but do not undo the applied snapshot.
func (e *Engine) HandleFrame(frame []byte) (Result, error) {
	snap, err := e.parser.Decode(frame)
	if err != nil {
		e.metrics.dropped.Add(context.Background(), 1)
		return Result{}, fmt.Errorf("dropped frame: %w", err)
	}

	res, applyErr := e.Apply(snap)
	if !res.HasAck {
		return res, applyErr
	}

	if err := e.pacer.Ack(res.Ack); err != nil {
		return res, errors.Join(applyErr, err)
	}
	return res, applyErr
}
