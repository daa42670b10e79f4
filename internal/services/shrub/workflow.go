package shrub

import "fmt"

// CreationState is a step of the shrub creation workflow
type CreationState int

const (
	StateValidating CreationState = iota
	StateCreating
	StateSelfVoting
	StateLinkingToOwner
	StatePersisted
)

func (s CreationState) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateCreating:
		return "creating"
	case StateSelfVoting:
		return "self_voting"
	case StateLinkingToOwner:
		return "linking_to_owner"
	case StatePersisted:
		return "persisted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CreationError reports the workflow state a creation failed in.
// errors.Is sees through it to the underlying sentinel.
type CreationError struct {
	State CreationState
	Err   error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("create shrub: %s: %v", e.State, e.Err)
}

func (e *CreationError) Unwrap() error {
	return e.Err
}
