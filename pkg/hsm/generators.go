package hsm

import "strings"

// Entry is one member of a Domain. Key is what guards compare against; it is usually the
// state name.
type Entry[T any] struct {
	Key   string
	State State[T]
}

// Domain is an ordered set of reachable states.
type Domain[T any] []Entry[T]

// DomainOf keys each state by its name.
func DomainOf[T any](states ...State[T]) Domain[T] {
	d := make(Domain[T], 0, len(states))
	for _, s := range states {
		d = append(d, Entry[T]{Key: s.Name, State: s})
	}
	return d
}

// States returns the entries' states in order.
func (d Domain[T]) States() []State[T] {
	out := make([]State[T], 0, len(d))
	for _, e := range d {
		out = append(out, e.State)
	}
	return out
}

// Without returns the domain minus the given keys.
func (d Domain[T]) Without(keys ...string) Domain[T] {
	out := make(Domain[T], 0, len(d))
next:
	for _, e := range d {
		for _, k := range keys {
			if e.Key == k {
				continue next
			}
		}
		out = append(out, e)
	}
	return out
}

// Reach returns one transition per entry, from src to the entry's resolved initial,
// guarded by tag(entry.Key). Paths are relative to the state the result is declared on.
func Reach[T any](d Domain[T], src, trigger string, tag func(key string) Guard[T]) []Transition[T] {
	out := make([]Transition[T], 0, len(d))
	for _, e := range d {
		out = append(out, Transition[T]{
			Trigger: trigger,
			Sources: []string{src},
			Dest:    MustResolveInitial(e.State, ""),
			Guards:  []Guard[T]{tag(e.Key)},
		})
	}
	return out
}

// GoBack returns a single transition from every entry's resolved initial back to src.
func GoBack[T any](d Domain[T], src, trigger string) []Transition[T] {
	if len(d) == 0 {
		return nil
	}
	sources := make([]string, 0, len(d))
	for _, e := range d {
		sources = append(sources, MustResolveInitial(e.State, ""))
	}
	return []Transition[T]{{Trigger: trigger, Sources: sources, Dest: src}}
}

// BidirectionalReach is Reach followed by GoBack.
func BidirectionalReach[T any](d Domain[T], src, reach, back string, tag func(key string) Guard[T]) []Transition[T] {
	return append(Reach(d, src, reach, tag), GoBack(d, src, back)...)
}

// Toggle wires close, open and switch over a two-valued off/on sub-state. path maps "off" and
// "on" to the relative paths used; nil keeps them as is. invert swaps which value close and
// open lead to; switch always flips. guard builds the per-command guard, typically checking
// the target name.
func Toggle[T any](name string, invert bool, path func(state string) string, guard func(cmd, name string) Guard[T]) []Transition[T] {
	if path == nil {
		path = func(s string) string { return s }
	}
	pick := func(on bool) string {
		if on {
			return "on"
		}
		return "off"
	}

	var out []Transition[T]
	for _, on := range []bool{false, true} {
		src := path(pick(on))
		targets := []struct{ cmd, dest string }{
			{"close", pick(invert)},
			{"open", pick(!invert)},
			{"switch", pick(!on)},
		}
		for _, tg := range targets {
			tr := Transition[T]{Trigger: tg.cmd, Sources: []string{src}, Dest: path(tg.dest)}
			if guard != nil {
				tr.Guards = []Guard[T]{guard(tg.cmd, name)}
			}
			out = append(out, tr)
		}
	}
	return out
}

// Walk visits tree and every state below it in pre-order with its canonical path.
func Walk[T any](tree *State[T], fn func(path string, s *State[T])) {
	var visit func(s *State[T], path string)
	visit = func(s *State[T], path string) {
		fn(path, s)
		for i := range s.Children {
			visit(&s.Children[i], Join(path, s.Children[i].Name))
		}
	}
	visit(tree, "")
}

// AddResetters appends to the root one transition per trigger leading to dest from every
// state except the excluded subtrees. Ancestors of excluded states are skipped as well, since
// whatever they bind is inherited below them.
func AddResetters[T any](tree *State[T], triggers []string, dest string, exclude []string, guards ...Guard[T]) {
	var sources []string
	for _, p := range StateNames(*tree) {
		if !excluded(p, exclude) {
			sources = append(sources, p)
		}
	}
	if len(sources) == 0 {
		return
	}
	for _, trig := range triggers {
		tree.Transitions = append(tree.Transitions, Transition[T]{
			Trigger: trig,
			Sources: sources,
			Dest:    dest,
			Guards:  guards,
		})
	}
}

func excluded(path string, exclude []string) bool {
	for _, x := range exclude {
		if path == x || strings.HasPrefix(path, x+Separator) || strings.HasPrefix(x, path+Separator) {
			return true
		}
	}
	return false
}

// Ignore declares on every composite, the root included, a transition per trigger with the
// composite itself as source. dest is Internal or Reflexive.
func Ignore[T any](tree *State[T], triggers []string, dest string) {
	Walk(tree, func(_ string, s *State[T]) {
		if s != tree && !s.IsComposite() {
			return
		}
		for _, trig := range triggers {
			s.Transitions = append(s.Transitions, Transition[T]{
				Trigger: trig,
				Sources: []string{Wildcard},
				Dest:    dest,
			})
		}
	})
}

// SourcesOf returns the canonical source paths declared anywhere in tree for trigger.
func SourcesOf[T any](tree State[T], trigger string) []string {
	var out []string
	Walk(&tree, func(path string, s *State[T]) {
		for _, tr := range s.Transitions {
			if tr.Trigger != trigger {
				continue
			}
			for _, src := range tr.Sources {
				if src == Wildcard {
					out = append(out, path)
				} else {
					out = append(out, Join(path, src))
				}
			}
		}
	})
	return out
}
