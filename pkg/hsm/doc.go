/*
Package hsm implements a hierarchical finite-state machine engine.

A machine is declared as a tree of State values. Composite states hold children and may name an
initial child; leaves hold nothing. Transitions are declared on any node with sources and
destinations relative to it, and are compiled once into an immutable Table. Each conversation,
token stream or parse then gets its own cheap Machine over the shared Table.

	root := hsm.State[*Door]{
		Initial:  "closed",
		Children: hsm.Leaves[*Door]("closed", "open"),
		Transitions: []hsm.Transition[*Door]{
			{Trigger: "open", Sources: []string{"closed"}, Dest: "open"},
			{Trigger: "close", Sources: []string{"open"}, Dest: "closed"},
		},
	}
	table, err := hsm.Compile(root)
	// ...
	m, _ := table.NewMachine(&Door{}, "")
	ok, err := m.Trigger(ctx, "open", nil, nil)

Trigger names are resolved to per-state buckets at compile time. A transition declared on an
ancestor is inherited by every descendant; candidates bound closer to the current state are tried
first. After a successful trigger the engine keeps firing the epsilon trigger while it is the only
one available from the new state.
*/
package hsm
