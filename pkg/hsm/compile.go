package hsm

import (
	"fmt"
	"slices"
)

// DefaultEpsilonLimit bounds a single epsilon chain.
const DefaultEpsilonLimit = 64

type edge[T any] struct {
	trigger string
	sources []int
	dest    int
	kind    EdgeKind
	guards  []Guard[T]
	unless  []Guard[T]
	before  []Callback[T]
	after   []Callback[T]
}

func (e *edge[T]) allows(ev *Event[T]) bool {
	for _, g := range e.guards {
		if !g.Fn(ev) {
			return false
		}
	}
	for _, g := range e.unless {
		if g.Fn(ev) {
			return false
		}
	}
	return true
}

// Table is a compiled, immutable machine definition. It is safe to share between goroutines;
// all mutable state lives in the Machines created from it.
type Table[T any] struct {
	tree         *Tree
	edges        []edge[T]
	buckets      []map[string][]int
	available    [][]string
	onEnter      [][]Callback[T]
	onExit       [][]Callback[T]
	initial      int
	invalid      int
	epsilonLimit int
}

type compileConfig struct {
	initial      string
	invalid      string
	epsilonLimit int
}

// CompileOption configures Compile.
type CompileOption func(*compileConfig)

// WithInitial overrides the root's Initial as the start path.
func WithInitial(path string) CompileOption {
	return func(c *compileConfig) {
		c.initial = path
	}
}

// WithInvalidState sets the path machines fall back to when started at an unknown path.
func WithInvalidState(path string) CompileOption {
	return func(c *compileConfig) {
		c.invalid = path
	}
}

// WithEpsilonLimit bounds epsilon chains.
func WithEpsilonLimit(n int) CompileOption {
	return func(c *compileConfig) {
		c.epsilonLimit = n
	}
}

// Compile builds the tree, resolves every path and trigger, and returns the shared table.
func Compile[T any](root State[T], opts ...CompileOption) (*Table[T], error) {
	cfg := compileConfig{initial: root.Initial, epsilonLimit: DefaultEpsilonLimit}
	for _, opt := range opts {
		opt(&cfg)
	}

	tree, defs, err := buildTree(root)
	if err != nil {
		return nil, err
	}

	t := &Table[T]{
		tree:         tree,
		buckets:      make([]map[string][]int, tree.Len()),
		available:    make([][]string, tree.Len()),
		onEnter:      make([][]Callback[T], tree.Len()),
		onExit:       make([][]Callback[T], tree.Len()),
		invalid:      -1,
		epsilonLimit: cfg.epsilonLimit,
	}

	if t.initial, err = t.lookupResolved(cfg.initial); err != nil {
		return nil, fmt.Errorf("initial: %w", err)
	}
	if cfg.invalid != "" {
		if t.invalid, err = t.lookupResolved(cfg.invalid); err != nil {
			return nil, fmt.Errorf("invalid state: %w", err)
		}
	}

	for id, def := range defs {
		if err := checkCallbacks(def.OnEnter, tree.Path(id)); err != nil {
			return nil, err
		}
		if err := checkCallbacks(def.OnExit, tree.Path(id)); err != nil {
			return nil, err
		}
		t.onEnter[id] = def.OnEnter
		t.onExit[id] = def.OnExit
	}

	// Node ids are assigned in pre-order, so this is declaration order.
	for id, def := range defs {
		for _, tr := range def.Transitions {
			if err := t.add(id, tr); err != nil {
				return nil, err
			}
		}
	}

	for id := range t.available {
		t.available[id] = t.collectTriggers(id)
	}
	return t, nil
}

func (t *Table[T]) lookupResolved(path string) (int, error) {
	id, ok := t.tree.Lookup(path)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnresolvedPath, path)
	}
	return t.tree.ResolveInitial(id), nil
}

func (t *Table[T]) add(base int, tr Transition[T]) error {
	at := t.tree.Path(base)
	if tr.Trigger == "" {
		return fmt.Errorf("%w: empty trigger declared at %q", ErrInvalidTransition, at)
	}
	for _, g := range slices.Concat(tr.Guards, tr.Unless) {
		if g.Fn == nil {
			return fmt.Errorf("%w: guard %q on %q at %q has no func", ErrInvalidTransition, g.Name, tr.Trigger, at)
		}
	}
	if err := checkCallbacks(slices.Concat(tr.Before, tr.After), at); err != nil {
		return err
	}

	e := edge[T]{
		trigger: tr.Trigger,
		dest:    -1,
		guards:  tr.Guards,
		unless:  tr.Unless,
		before:  tr.Before,
		after:   tr.After,
	}
	switch tr.Dest {
	case Internal:
		e.kind = EdgeInternal
	case Reflexive:
		e.kind = EdgeReflexive
	default:
		id, ok := t.tree.Lookup(Join(at, tr.Dest))
		if !ok {
			return fmt.Errorf("%w: dest %q of %q at %q", ErrUnresolvedPath, tr.Dest, tr.Trigger, at)
		}
		e.dest = t.tree.ResolveInitial(id)
	}

	if len(tr.Sources) == 0 {
		return fmt.Errorf("%w: %q at %q has no source", ErrInvalidTransition, tr.Trigger, at)
	}
	for _, src := range tr.Sources {
		id := base
		if src != Wildcard {
			var ok bool
			if id, ok = t.tree.Lookup(Join(at, src)); !ok {
				return fmt.Errorf("%w: source %q of %q at %q", ErrUnresolvedPath, src, tr.Trigger, at)
			}
		}
		if !slices.Contains(e.sources, id) {
			e.sources = append(e.sources, id)
		}
	}

	edgeID := len(t.edges)
	t.edges = append(t.edges, e)
	for _, id := range e.sources {
		if t.buckets[id] == nil {
			t.buckets[id] = make(map[string][]int)
		}
		t.buckets[id][e.trigger] = append(t.buckets[id][e.trigger], edgeID)
	}
	return nil
}

func checkCallbacks[T any](cbs []Callback[T], at string) error {
	for _, cb := range cbs {
		if cb.Fn == nil {
			return fmt.Errorf("%w: callback %q at %q has no func", ErrInvalidTransition, cb.Name, at)
		}
	}
	return nil
}

func (t *Table[T]) collectTriggers(id int) []string {
	var out []string
	for cur := id; cur >= 0; cur = t.tree.Parent(cur) {
		for trig := range t.buckets[cur] {
			out = append(out, trig)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// candidates returns edge ids for trigger, closest bindings first, each edge once.
func (t *Table[T]) candidates(id int, trigger string) []int {
	var out []int
	for cur := id; cur >= 0; cur = t.tree.Parent(cur) {
		for _, e := range t.buckets[cur][trigger] {
			if !slices.Contains(out, e) {
				out = append(out, e)
			}
		}
	}
	return out
}

// Tree returns the compiled state tree.
func (t *Table[T]) Tree() *Tree { return t.tree }

// Initial returns the path machines start in.
func (t *Table[T]) Initial() string { return t.tree.Path(t.initial) }

// Triggers returns the sorted trigger names available at path, inherited ones included.
// An unknown path has none.
func (t *Table[T]) Triggers(path string) []string {
	id, ok := t.tree.Lookup(path)
	if !ok {
		return nil
	}
	return slices.Clone(t.available[id])
}

// Has reports whether trigger is available at path.
func (t *Table[T]) Has(path, trigger string) bool {
	id, ok := t.tree.Lookup(path)
	if !ok {
		return false
	}
	_, found := slices.BinarySearch(t.available[id], trigger)
	return found
}
