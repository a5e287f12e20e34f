package hsm

import (
	"fmt"
	"slices"
	"strings"
)

// Separator joins state names into canonical paths.
const Separator = "."

// maxInitialDepth bounds initial resolution on trees that were never compiled.
const maxInitialDepth = 256

// State declares one node of a state tree.
// A State with children is a composite; one without is a leaf.
type State[T any] struct {
	Name string
	// Initial names the state entered when this composite is a destination.
	// It is a direct child name or a relative path such as "init.standed".
	Initial     string
	Children    []State[T]
	Tags        []string
	OnEnter     []Callback[T]
	OnExit      []Callback[T]
	Transitions []Transition[T]
}

// Leaf returns a childless state.
func Leaf[T any](name string, tags ...string) State[T] {
	return State[T]{Name: name, Tags: tags}
}

// Leaves returns one leaf per name.
func Leaves[T any](names ...string) []State[T] {
	out := make([]State[T], 0, len(names))
	for _, n := range names {
		out = append(out, Leaf[T](n))
	}
	return out
}

// Composite returns a state holding children, entered through initial.
func Composite[T any](name, initial string, children ...State[T]) State[T] {
	return State[T]{Name: name, Initial: initial, Children: children}
}

// IsComposite reports whether the state has children.
func (s State[T]) IsComposite() bool {
	return len(s.Children) > 0
}

// Child returns the direct child with the given name.
func (s State[T]) Child(name string) (State[T], bool) {
	for _, c := range s.Children {
		if c.Name == name {
			return c, true
		}
	}
	return State[T]{}, false
}

// Join builds a canonical path, skipping empty segments.
func Join(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(Separator)
		}
		b.WriteString(p)
	}
	return b.String()
}

// Split breaks a canonical path into its names.
func Split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, Separator)
}

// ResolveInitial returns the path of the state actually entered when s is a destination.
// prefix is the path of s's parent. Leaves and composites without an initial resolve to
// themselves.
func ResolveInitial[T any](s State[T], prefix string) (string, error) {
	path := Join(prefix, s.Name)
	cur := s
	for depth := 0; ; depth++ {
		if depth > maxInitialDepth {
			return "", fmt.Errorf("%w: %s", ErrInitialCycle, path)
		}
		if !cur.IsComposite() || cur.Initial == "" {
			return path, nil
		}
		next := cur
		for _, seg := range Split(cur.Initial) {
			c, ok := next.Child(seg)
			if !ok {
				return "", fmt.Errorf("%w: %q under %q", ErrUnresolvedInitial, cur.Initial, path)
			}
			next = c
		}
		path = Join(path, cur.Initial)
		cur = next
	}
}

// MustResolveInitial is like ResolveInitial but panics on error.
// It is meant for generators running while a machine is being declared.
func MustResolveInitial[T any](s State[T], prefix string) string {
	p, err := ResolveInitial(s, prefix)
	if err != nil {
		panic(err)
	}
	return p
}

// StateNames lists every canonical path below root in pre-order. root itself is not listed.
func StateNames[T any](root State[T]) []string {
	var out []string
	var walk func(s State[T], prefix string)
	walk = func(s State[T], prefix string) {
		for _, c := range s.Children {
			p := Join(prefix, c.Name)
			out = append(out, p)
			walk(c, p)
		}
	}
	walk(root, "")
	return out
}

// IsDummyParent reports whether s is a composite that is never rested in because it declares
// an initial.
func IsDummyParent[T any](s State[T]) bool {
	return s.IsComposite() && s.Initial != ""
}

// Root is the arena index of the hidden tree root.
const Root = 0

type treeNode struct {
	name     string
	path     string
	parent   int
	children []int
	initial  string
	target   int
	depth    int
	tags     []string
}

// Tree is the compiled state tree. Nodes live in a single slice and refer to each other by index.
type Tree struct {
	title string
	nodes []treeNode
	index map[string]int
}

func buildTree[T any](root State[T]) (*Tree, []*State[T], error) {
	t := &Tree{title: root.Name, index: make(map[string]int)}
	var defs []*State[T]

	var add func(s *State[T], parent int, path string) error
	add = func(s *State[T], parent int, path string) error {
		id := len(t.nodes)
		depth := 0
		if parent >= 0 {
			depth = t.nodes[parent].depth + 1
		}
		t.nodes = append(t.nodes, treeNode{
			name:    s.Name,
			path:    path,
			parent:  parent,
			initial: s.Initial,
			target:  id,
			depth:   depth,
			tags:    s.Tags,
		})
		t.index[path] = id
		defs = append(defs, s)

		seen := make(map[string]bool, len(s.Children))
		for i := range s.Children {
			c := &s.Children[i]
			if c.Name == "" || strings.Contains(c.Name, Separator) || strings.Contains(c.Name, Wildcard) || c.Name == Reflexive {
				return fmt.Errorf("%w: %q under %q", ErrInvalidName, c.Name, path)
			}
			if seen[c.Name] {
				return fmt.Errorf("%w: %q under %q", ErrDuplicateState, c.Name, path)
			}
			seen[c.Name] = true
			childID := len(t.nodes)
			t.nodes[id].children = append(t.nodes[id].children, childID)
			if err := add(c, id, Join(path, c.Name)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := add(&root, -1, ""); err != nil {
		return nil, nil, err
	}

	for id := range t.nodes {
		target, err := t.resolve(id)
		if err != nil {
			return nil, nil, err
		}
		t.nodes[id].target = target
	}
	return t, defs, nil
}

func (t *Tree) resolve(id int) (int, error) {
	cur := id
	for steps := 0; ; steps++ {
		if steps > len(t.nodes) {
			return 0, fmt.Errorf("%w: %s", ErrInitialCycle, t.nodes[id].path)
		}
		n := t.nodes[cur]
		if len(n.children) == 0 || n.initial == "" {
			return cur, nil
		}
		next, ok := t.Lookup(Join(n.path, n.initial))
		if !ok || next == cur {
			return 0, fmt.Errorf("%w: %q under %q", ErrUnresolvedInitial, n.initial, n.path)
		}
		cur = next
	}
}

// Title is the name given to the root state.
func (t *Tree) Title() string { return t.title }

// Len returns the number of nodes, root included.
func (t *Tree) Len() int { return len(t.nodes) }

// Lookup returns the node index for a canonical path.
func (t *Tree) Lookup(path string) (int, bool) {
	id, ok := t.index[path]
	return id, ok
}

// Path returns the canonical path of a node.
func (t *Tree) Path(id int) string { return t.nodes[id].path }

// Name returns the local name of a node.
func (t *Tree) Name(id int) string { return t.nodes[id].name }

// Parent returns the parent index, or -1 for the root.
func (t *Tree) Parent(id int) int { return t.nodes[id].parent }

// Children returns the child indices of a node in declaration order.
func (t *Tree) Children(id int) []int { return t.nodes[id].children }

// IsComposite reports whether the node has children.
func (t *Tree) IsComposite(id int) bool { return len(t.nodes[id].children) > 0 }

// ResolveInitial returns the node actually entered when id is a destination.
func (t *Tree) ResolveInitial(id int) int { return t.nodes[id].target }

// IsDummyParent reports whether path names a composite with a declared initial.
func (t *Tree) IsDummyParent(path string) bool {
	id, ok := t.Lookup(path)
	if !ok {
		return false
	}
	n := t.nodes[id]
	return len(n.children) > 0 && n.initial != ""
}

// HasTag reports whether the node carries tag.
func (t *Tree) HasTag(id int, tag string) bool {
	return slices.Contains(t.nodes[id].tags, tag)
}

// StateNames lists every canonical path in pre-order, root excluded.
func (t *Tree) StateNames() []string {
	out := make([]string, 0, len(t.nodes)-1)
	for _, n := range t.nodes[1:] {
		out = append(out, n.path)
	}
	return out
}

// IsAncestor reports whether a is b or one of its ancestors.
func (t *Tree) IsAncestor(a, b int) bool {
	for id := b; id >= 0; id = t.nodes[id].parent {
		if id == a {
			return true
		}
	}
	return false
}

func (t *Tree) lca(a, b int) int {
	for t.nodes[a].depth > t.nodes[b].depth {
		a = t.nodes[a].parent
	}
	for t.nodes[b].depth > t.nodes[a].depth {
		b = t.nodes[b].parent
	}
	for a != b {
		a = t.nodes[a].parent
		b = t.nodes[b].parent
	}
	return a
}
