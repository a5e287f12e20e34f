package hsm

import "context"

const (
	// Wildcard as a source means the declaring state itself, and so every state below it.
	// Declared on the root it matches any state.
	Wildcard = "*"

	// Internal as a destination keeps the current state and only runs callbacks.
	Internal = ""

	// Reflexive as a destination exits and re-enters the current state.
	Reflexive = "="

	// Epsilon is the trigger fired automatically while it is the only one available.
	Epsilon = "λ"
)

// Guard is a named predicate over a firing event.
type Guard[T any] struct {
	Name string
	Fn   func(*Event[T]) bool
}

// Callback is a named action run while a transition fires.
type Callback[T any] struct {
	Name string
	Fn   func(*Event[T])
}

// NewGuard is shorthand for Guard{Name: name, Fn: fn}.
func NewGuard[T any](name string, fn func(*Event[T]) bool) Guard[T] {
	return Guard[T]{Name: name, Fn: fn}
}

// NewCallback is shorthand for Callback{Name: name, Fn: fn}.
func NewCallback[T any](name string, fn func(*Event[T])) Callback[T] {
	return Callback[T]{Name: name, Fn: fn}
}

// Transition declares an edge. Sources and Dest are relative to the state declaring it.
type Transition[T any] struct {
	Trigger string
	Sources []string
	Dest    string
	Guards  []Guard[T]
	Unless  []Guard[T]
	Before  []Callback[T]
	After   []Callback[T]
}

// Event is what guards and callbacks observe while a transition is evaluated.
type Event[T any] struct {
	ctx     context.Context
	Trigger string
	// Source is the current path when the trigger was fired.
	Source string
	// Dest is the path the machine ends in. Equal to Source for internal and reflexive edges.
	Dest    string
	Args    []string
	Kwargs  map[string]string
	Model   T
	Machine *Machine[T]
}

// Context returns the context passed to Trigger.
func (e *Event[T]) Context() context.Context {
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

// Arg returns the i-th positional argument, or "".
func (e *Event[T]) Arg(i int) string {
	if i < 0 || i >= len(e.Args) {
		return ""
	}
	return e.Args[i]
}

// Kwarg returns a keyword argument, or "".
func (e *Event[T]) Kwarg(key string) string {
	return e.Kwargs[key]
}

// EdgeKind classifies a compiled transition by what it does to the current state.
type EdgeKind int

const (
	EdgeExternal EdgeKind = iota
	EdgeInternal
	EdgeReflexive
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeInternal:
		return "internal"
	case EdgeReflexive:
		return "reflexive"
	default:
		return "external"
	}
}
