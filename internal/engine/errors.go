package engine

import (
	"fmt"

	"github.com/marsgrid/ticksync/pkg/core"
)

// InvariantViolation is a snapshot that contradicts what the registry
// already knows, such as a dead agent coming back. It is reported but the
// rest of the snapshot is still applied.
type InvariantViolation struct {
	Tick   int
	Kind   core.EntityKind
	ID     string
	Reason string
	Err    error
}

func (v *InvariantViolation) Error() string {
	msg := fmt.Sprintf("tick %d: %s %q: %s", v.Tick, v.Kind, v.ID, v.Reason)
	if v.Err != nil {
		msg += ": " + v.Err.Error()
	}
	return msg
}

func (v *InvariantViolation) Unwrap() error {
	return v.Err
}
