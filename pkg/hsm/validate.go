package hsm

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate looks for regions the engine could chain through forever: states whose only trigger
// is epsilon and that reach each other through epsilon edges alone. Guards are not evaluated,
// so a reported cycle may be broken at runtime; it still deserves a look.
func (t *Table[T]) Validate() error {
	n := t.tree.Len()
	onlyEpsilon := make([]bool, n)
	for id := range n {
		avail := t.available[id]
		onlyEpsilon[id] = len(avail) == 1 && avail[0] == Epsilon
	}

	succ := make([][]int, n)
	for id := range n {
		if !onlyEpsilon[id] {
			continue
		}
		for _, eid := range t.candidates(id, Epsilon) {
			to := id
			if e := t.edges[eid]; e.kind == EdgeExternal {
				to = e.dest
			}
			if onlyEpsilon[to] && !slices.Contains(succ[id], to) {
				succ[id] = append(succ[id], to)
			}
		}
	}

	var errs []error
	for _, scc := range tarjan(succ, onlyEpsilon) {
		if len(scc) == 1 && !slices.Contains(succ[scc[0]], scc[0]) {
			continue
		}
		paths := make([]string, 0, len(scc))
		for _, id := range scc {
			paths = append(paths, t.tree.Path(id))
		}
		slices.Sort(paths)
		errs = append(errs, fmt.Errorf("%w: %s", ErrEpsilonCycle, strings.Join(paths, ", ")))
	}
	return errors.Join(errs...)
}

// tarjan returns the strongly connected components of the subgraph induced by include.
func tarjan(succ [][]int, include []bool) [][]int {
	var (
		index   = make([]int, len(succ))
		low     = make([]int, len(succ))
		onStack = make([]bool, len(succ))
		stack   []int
		next    = 1
		out     [][]int
	)

	var visit func(v int)
	visit = func(v int) {
		index[v], low[v] = next, next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range succ[v] {
			switch {
			case index[w] == 0:
				visit(w)
				low[v] = min(low[v], low[w])
			case onStack[w]:
				low[v] = min(low[v], index[w])
			}
		}

		if low[v] == index[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			out = append(out, scc)
		}
	}

	for v := range succ {
		if include[v] && index[v] == 0 {
			visit(v)
		}
	}
	return out
}
