package hsm

import (
	"context"
	"fmt"
	"slices"
)

// Step describes one fired transition, as reported to Hooks.
type Step struct {
	Trigger string
	Source  string
	Dest    string
	Kind    EdgeKind
}

// Hooks observe a machine without taking part in it. Any field may be nil.
type Hooks struct {
	OnEnter      func(ctx context.Context, path string)
	OnExit       func(ctx context.Context, path string)
	OnTransition func(ctx context.Context, step Step)
	// OnRejected runs when a trigger was available but every candidate was refused by its guards.
	OnRejected func(ctx context.Context, trigger, path string)
}

// MachineOption configures a Machine.
type MachineOption func(*machineConfig)

type machineConfig struct {
	hooks Hooks
}

// WithHooks attaches lifecycle hooks.
func WithHooks(h Hooks) MachineOption {
	return func(c *machineConfig) {
		c.hooks = h
	}
}

// Machine is one running instance over a shared Table. It is not safe for concurrent use.
type Machine[T any] struct {
	// Model is the instance-local data guards and callbacks work on.
	Model T

	table   *Table[T]
	current int
	hooks   Hooks
}

// NewMachine starts a machine at path, or at the initial state when path is empty.
// An unknown path falls back to the invalid state if the table has one.
func (t *Table[T]) NewMachine(model T, path string, opts ...MachineOption) (*Machine[T], error) {
	var cfg machineConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Machine[T]{Model: model, table: t, current: t.initial, hooks: cfg.hooks}
	if path == "" {
		return m, nil
	}
	id, ok := t.tree.Lookup(path)
	switch {
	case ok:
		m.current = t.tree.ResolveInitial(id)
	case t.invalid >= 0:
		m.current = t.invalid
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownState, path)
	}
	return m, nil
}

// Table returns the shared definition.
func (m *Machine[T]) Table() *Table[T] { return m.table }

// State returns the canonical path of the current state.
func (m *Machine[T]) State() string { return m.table.tree.Path(m.current) }

// Is reports whether the machine is exactly at path.
func (m *Machine[T]) Is(path string) bool { return m.State() == path }

// In reports whether the machine is at path or somewhere below it.
func (m *Machine[T]) In(path string) bool {
	id, ok := m.table.tree.Lookup(path)
	return ok && m.table.tree.IsAncestor(id, m.current)
}

// HasTag reports whether the current state carries tag.
func (m *Machine[T]) HasTag(tag string) bool { return m.table.tree.HasTag(m.current, tag) }

// Triggers returns the triggers available from the current state.
func (m *Machine[T]) Triggers() []string { return slices.Clone(m.table.available[m.current]) }

// Reset moves back to the initial state without running callbacks.
func (m *Machine[T]) Reset() { m.current = m.table.initial }

// Trigger fires name from the current state. It reports whether a transition was taken.
// A taken transition is followed by epsilon transitions for as long as epsilon is the only
// trigger available. An error means the chain did not settle, which is a definition problem.
func (m *Machine[T]) Trigger(ctx context.Context, name string, args []string, kwargs map[string]string) (bool, error) {
	if !m.fire(ctx, name, args, kwargs) {
		return false, nil
	}
	_, err := m.settle(ctx, kwargs)
	return true, err
}

// Settle runs the epsilon chain from the current state, as Trigger does after a transition.
// It is meant for machines restored at a state that only epsilon leaves, and reports whether
// anything fired.
func (m *Machine[T]) Settle(ctx context.Context) (bool, error) {
	return m.settle(ctx, nil)
}

func (m *Machine[T]) settle(ctx context.Context, kwargs map[string]string) (bool, error) {
	moved := false
	for n := 0; ; n++ {
		avail := m.table.available[m.current]
		if len(avail) != 1 || avail[0] != Epsilon {
			return moved, nil
		}
		if n >= m.table.epsilonLimit {
			return moved, fmt.Errorf("%w: still at %q after %d steps", ErrEpsilonChain, m.State(), n)
		}
		if !m.fire(ctx, Epsilon, nil, kwargs) {
			return moved, nil
		}
		moved = true
	}
}

func (m *Machine[T]) fire(ctx context.Context, name string, args []string, kwargs map[string]string) bool {
	cands := m.table.candidates(m.current, name)
	if len(cands) == 0 {
		return false
	}
	src := m.State()
	for _, id := range cands {
		e := &m.table.edges[id]
		ev := &Event[T]{
			ctx:     ctx,
			Trigger: name,
			Source:  src,
			Dest:    src,
			Args:    args,
			Kwargs:  kwargs,
			Model:   m.Model,
			Machine: m,
		}
		if e.kind == EdgeExternal {
			ev.Dest = m.table.tree.Path(e.dest)
		}
		if !e.allows(ev) {
			continue
		}
		m.take(ctx, e, ev)
		return true
	}
	if m.hooks.OnRejected != nil {
		m.hooks.OnRejected(ctx, name, src)
	}
	return false
}

func (m *Machine[T]) take(ctx context.Context, e *edge[T], ev *Event[T]) {
	tree := m.table.tree
	run(e.before, ev)

	switch e.kind {
	case EdgeInternal:
	case EdgeReflexive:
		m.exit(ctx, m.current, ev)
		m.enter(ctx, m.current, ev)
	default:
		anc := tree.lca(m.current, e.dest)
		for id := m.current; id != anc; id = tree.Parent(id) {
			m.exit(ctx, id, ev)
		}
		m.current = e.dest

		var down []int
		for id := e.dest; id != anc; id = tree.Parent(id) {
			down = append(down, id)
		}
		for _, id := range slices.Backward(down) {
			m.enter(ctx, id, ev)
		}
	}

	run(e.after, ev)
	if m.hooks.OnTransition != nil {
		m.hooks.OnTransition(ctx, Step{Trigger: ev.Trigger, Source: ev.Source, Dest: ev.Dest, Kind: e.kind})
	}
}

func (m *Machine[T]) exit(ctx context.Context, id int, ev *Event[T]) {
	run(m.table.onExit[id], ev)
	if m.hooks.OnExit != nil {
		m.hooks.OnExit(ctx, m.table.tree.Path(id))
	}
}

func (m *Machine[T]) enter(ctx context.Context, id int, ev *Event[T]) {
	run(m.table.onEnter[id], ev)
	if m.hooks.OnEnter != nil {
		m.hooks.OnEnter(ctx, m.table.tree.Path(id))
	}
}

func run[T any](cbs []Callback[T], ev *Event[T]) {
	for _, cb := range cbs {
		cb.Fn(ev)
	}
}
