package hsm

import "errors"

var (
	// ErrDuplicateState is returned when two siblings share a name.
	ErrDuplicateState = errors.New("duplicate state")

	// ErrInvalidName is returned for empty names or names containing reserved characters.
	ErrInvalidName = errors.New("invalid state name")

	// ErrUnresolvedInitial is returned when an initial does not name a descendant.
	ErrUnresolvedInitial = errors.New("unresolved initial state")

	// ErrInitialCycle is returned when initial resolution does not terminate.
	ErrInitialCycle = errors.New("initial state cycle")

	// ErrUnresolvedPath is returned when a transition source or destination does not exist.
	ErrUnresolvedPath = errors.New("unresolved state path")

	// ErrInvalidTransition is returned for transitions missing a trigger or carrying nil funcs.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrUnknownState is returned when a machine is started at a path the tree does not contain
	// and no invalid state is configured.
	ErrUnknownState = errors.New("unknown state")

	// ErrEpsilonChain is returned when epsilon chaining exceeds the configured limit.
	ErrEpsilonChain = errors.New("epsilon chain did not terminate")

	// ErrEpsilonCycle is reported by Validate for epsilon-only regions that loop.
	ErrEpsilonCycle = errors.New("epsilon cycle")
)
