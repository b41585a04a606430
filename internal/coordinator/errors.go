package coordinator

import (
	"errors"
	"fmt"
)

// ErrCallNotFound marks operations referencing a call that no longer exists.
// No state is mutated.
var ErrCallNotFound = errors.New("coordinator: call not found")

// ErrNoActiveAssignee marks operations that require an assigned driver on a
// call that has none.
var ErrNoActiveAssignee = errors.New("coordinator: call has no active assignee")

// ErrCallClosed marks operations on a call that is canceled or completed.
// Both states are terminal.
var ErrCallClosed = errors.New("coordinator: call is closed")

// ErrInvalidCall marks malformed input (unknown vehicle class, zero
// passengers, inverted schedule). Fatal to the single operation only.
var ErrInvalidCall = errors.New("coordinator: invalid call")

// AlreadyAssignedError reports a lost assignment race. This is an expected,
// routine outcome, surfaced to the requester as a rejection event rather
// than a failure.
type AlreadyAssignedError struct {
	CallID       string
	AssignedToID string
}

func (e *AlreadyAssignedError) Error() string {
	return fmt.Sprintf("coordinator: call %s already assigned to driver %s", e.CallID, e.AssignedToID)
}
