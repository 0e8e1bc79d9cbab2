package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/marsgrid/ticksync/pkg/core"
	"github.com/marsgrid/ticksync/pkg/streaming"
)

// ErrEmptyFrame is returned for frames that hold only whitespace.
var ErrEmptyFrame = errors.New("empty frame")

// DecodeError reports a frame that could not be turned into a snapshot.
// The caller drops the frame; the connection is unaffected.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode frame: %v", e.Err)
	}
	return fmt.Sprintf("decode frame: %s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Parser converts raw frames into core snapshots.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Decode parses one frame. Any structural problem or unknown enum name
// yields a *DecodeError.
func (p *Parser) Decode(frame []byte) (core.TickSnapshot, error) {
	var snap core.TickSnapshot

	if len(bytes.TrimSpace(frame)) == 0 {
		return snap, &DecodeError{Err: ErrEmptyFrame}
	}

	var msg streaming.TickMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return snap, &DecodeError{Err: err}
	}
	if msg.ExpectingTick == nil {
		return snap, &DecodeError{Field: "expectingTick", Err: errors.New("missing")}
	}
	snap.ExpectingTick = *msg.ExpectingTick

	if msg.MapPath != nil {
		snap.MapPath = *msg.MapPath
	}
	if msg.GameMode != nil {
		mode, err := core.ParseGameMode(*msg.GameMode)
		if err != nil {
			return snap, &DecodeError{Field: "gameMode", Err: err}
		}
		snap.GameMode = &mode
	}

	var err error
	if snap.Agents, err = p.parseAgents(msg.Agents); err != nil {
		return core.TickSnapshot{}, err
	}
	if snap.Items, err = p.parseItems(msg.Items); err != nil {
		return core.TickSnapshot{}, err
	}
	if snap.Barrels, err = p.parseBarrels(msg.Barrels); err != nil {
		return core.TickSnapshot{}, err
	}
	if snap.Scores, err = p.parseScores(msg.Scores); err != nil {
		return core.TickSnapshot{}, err
	}

	p.logger.Debug("Decoded snapshot",
		"expectingTick", snap.ExpectingTick,
		"agents", len(snap.Agents),
		"items", len(snap.Items),
		"barrels", len(snap.Barrels))

	return snap, nil
}
