package hsm_test

import (
	"context"
	"testing"

	"github.com/aretw0/duzhibot/pkg/hsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func traced(name string, children ...hsm.State[*recorder]) hsm.State[*recorder] {
	s := hsm.State[*recorder]{Name: name, Children: children}
	s.OnEnter = []hsm.Callback[*recorder]{hsm.NewCallback("enter", func(ev *hsm.Event[*recorder]) { ev.Model.add("enter " + name) })}
	s.OnExit = []hsm.Callback[*recorder]{hsm.NewCallback("exit", func(ev *hsm.Event[*recorder]) { ev.Model.add("exit " + name) })}
	return s
}

func always(name string, ok bool, calls *int) hsm.Guard[*recorder] {
	return hsm.NewGuard(name, func(*hsm.Event[*recorder]) bool {
		*calls++
		return ok
	})
}

func newMachine(t *testing.T, root hsm.State[*recorder], path string, opts ...hsm.CompileOption) *hsm.Machine[*recorder] {
	t.Helper()
	table, err := hsm.Compile(root, opts...)
	require.NoError(t, err)
	m, err := table.NewMachine(&recorder{}, path)
	require.NoError(t, err)
	return m
}

func TestTrigger_FirstSatisfiedWins(t *testing.T) {
	var rejected, accepted, never int
	root := hsm.State[*recorder]{
		Initial:  "a",
		Children: hsm.Leaves[*recorder]("a", "b", "c", "d"),
		Transitions: []hsm.Transition[*recorder]{
			{Trigger: "go", Sources: []string{"a"}, Dest: "b", Guards: []hsm.Guard[*recorder]{always("no", false, &rejected)}},
			{Trigger: "go", Sources: []string{"a"}, Dest: "c", Guards: []hsm.Guard[*recorder]{always("yes", true, &accepted)}},
			{Trigger: "go", Sources: []string{"a"}, Dest: "d", Guards: []hsm.Guard[*recorder]{always("later", true, &never)}},
		},
	}
	m := newMachine(t, root, "")

	ok, err := m.Trigger(context.Background(), "go", nil, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "c", m.State())
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 0, never, "candidates after the winner must not be evaluated")
}

func TestTrigger_AllRejected(t *testing.T) {
	var calls int
	root := hsm.State[*recorder]{
		Initial:  "a",
		Children: hsm.Leaves[*recorder]("a", "b"),
		Transitions: []hsm.Transition[*recorder]{
			{Trigger: "go", Sources: []string{"a"}, Dest: "b", Unless: []hsm.Guard[*recorder]{always("blocked", true, &calls)}},
		},
	}
	m := newMachine(t, root, "")

	ok, err := m.Trigger(context.Background(), "go", nil, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "a", m.State())

	ok, err = m.Trigger(context.Background(), "missing", nil, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTrigger_InheritedFromAncestor(t *testing.T) {
	root := hsm.State[*recorder]{
		Initial: "room.desk.drawer",
		Children: []hsm.State[*recorder]{
			{Name: "room", Children: []hsm.State[*recorder]{
				{Name: "desk", Children: hsm.Leaves[*recorder]("drawer")},
			}},
			hsm.Leaf[*recorder]("hell"),
			hsm.Leaf[*recorder]("lobby"),
		},
		Transitions: []hsm.Transition[*recorder]{
			{Trigger: "kill", Sources: []string{hsm.Wildcard}, Dest: "hell"},
			{Trigger: "leave", Sources: []string{"room"}, Dest: "lobby"},
		},
	}
	m := newMachine(t, root, "")
	assert.Equal(t, []string{"kill", "leave"}, m.Triggers())

	ok, err := m.Trigger(context.Background(), "leave", nil, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "lobby", m.State())
	assert.Equal(t, []string{"kill"}, m.Triggers())
}

func TestTrigger_CloserBindingFirst(t *testing.T) {
	root := hsm.State[*recorder]{
		Initial: "area.spot",
		Children: []hsm.State[*recorder]{
			{Name: "area", Children: hsm.Leaves[*recorder]("spot", "near")},
			hsm.Leaf[*recorder]("far"),
		},
		Transitions: []hsm.Transition[*recorder]{
			{Trigger: "move", Sources: []string{"area"}, Dest: "far"},
			{Trigger: "move", Sources: []string{"area.spot"}, Dest: "area.near"},
		},
	}
	m := newMachine(t, root, "")

	ok, err := m.Trigger(context.Background(), "move", nil, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "area.near", m.State())

	ok, err = m.Trigger(context.Background(), "move", nil, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "far", m.State())
}

func TestTrigger_ExitEnterAroundCommonAncestor(t *testing.T) {
	root := hsm.State[*recorder]{
		Initial: "room.desk.drawer",
		Children: []hsm.State[*recorder]{
			traced("room",
				traced("desk", traced("drawer")),
				traced("chair", traced("seat")),
			),
		},
		Transitions: []hsm.Transition[*recorder]{
			{
				Trigger: "sit",
				Sources: []string{"room.desk.drawer"},
				Dest:    "room.chair.seat",
				Before:  []hsm.Callback[*recorder]{hsm.NewCallback("before", func(ev *hsm.Event[*recorder]) { ev.Model.add("before") })},
				After:   []hsm.Callback[*recorder]{hsm.NewCallback("after", func(ev *hsm.Event[*recorder]) { ev.Model.add("after") })},
			},
		},
	}
	m := newMachine(t, root, "")

	ok, err := m.Trigger(context.Background(), "sit", nil, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{
		"before",
		"exit drawer", "exit desk",
		"enter chair", "enter seat",
		"after",
	}, m.Model.log)
}

func TestTrigger_InternalAndReflexive(t *testing.T) {
	root := hsm.State[*recorder]{
		Initial:  "a",
		Children: []hsm.State[*recorder]{traced("a")},
		Transitions: []hsm.Transition[*recorder]{
			{Trigger: "noop", Sources: []string{hsm.Wildcard}, Dest: hsm.Internal},
			{Trigger: "again", Sources: []string{hsm.Wildcard}, Dest: hsm.Reflexive},
		},
	}
	m := newMachine(t, root, "")
	ctx := context.Background()

	ok, err := m.Trigger(ctx, "noop", nil, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, m.Model.log)

	ok, err = m.Trigger(ctx, "again", nil, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", m.State())
	assert.Equal(t, []string{"exit a", "enter a"}, m.Model.log)
}

func TestTrigger_ArgumentsReachGuards(t *testing.T) {
	root := hsm.State[*recorder]{
		Initial:  "init",
		Children: hsm.Leaves[*recorder]("init", "window", "door"),
		Transitions: hsm.Reach(
			hsm.DomainOf(hsm.Leaf[*recorder]("window"), hsm.Leaf[*recorder]("door")),
			"init", "advance",
			func(key string) hsm.Guard[*recorder] {
				return hsm.NewGuard("is_dst_"+key, func(ev *hsm.Event[*recorder]) bool { return ev.Arg(0) == key })
			},
		),
	}
	m := newMachine(t, root, "")

	ok, err := m.Trigger(context.Background(), "advance", []string{"door"}, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "door", m.State())
}

func epsilonRoot(extra ...hsm.Transition[*recorder]) hsm.State[*recorder] {
	root := hsm.State[*recorder]{
		Initial:  "start",
		Children: hsm.Leaves[*recorder]("start", "falling", "bottom", "rest"),
		Transitions: []hsm.Transition[*recorder]{
			{Trigger: "jump", Sources: []string{"start"}, Dest: "falling"},
			{Trigger: hsm.Epsilon, Sources: []string{"falling"}, Dest: "bottom"},
			{Trigger: hsm.Epsilon, Sources: []string{"bottom"}, Dest: "rest"},
		},
	}
	root.Transitions = append(root.Transitions, extra...)
	return root
}

func TestTrigger_EpsilonChain(t *testing.T) {
	m := newMachine(t, epsilonRoot(), "")

	ok, err := m.Trigger(context.Background(), "jump", nil, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "rest", m.State())
}

func TestTrigger_EpsilonNotChainedAlongsideOtherTriggers(t *testing.T) {
	m := newMachine(t, epsilonRoot(hsm.Transition[*recorder]{Trigger: "climb", Sources: []string{"bottom"}, Dest: "start"}), "")

	ok, err := m.Trigger(context.Background(), "jump", nil, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bottom", m.State())
	assert.ElementsMatch(t, []string{hsm.Epsilon, "climb"}, m.Triggers())
}

func TestSettle(t *testing.T) {
	table, err := hsm.Compile(epsilonRoot())
	require.NoError(t, err)

	m, err := table.NewMachine(&recorder{}, "falling")
	require.NoError(t, err)
	moved, err := m.Settle(context.Background())
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, "rest", m.State())

	moved, err = m.Settle(context.Background())
	require.NoError(t, err)
	assert.False(t, moved, "rest has no epsilon edge")
}

func TestTrigger_EpsilonLoopIsAnError(t *testing.T) {
	root := epsilonRoot(hsm.Transition[*recorder]{Trigger: hsm.Epsilon, Sources: []string{"rest"}, Dest: "falling"})
	m := newMachine(t, root, "", hsm.WithEpsilonLimit(10))

	ok, err := m.Trigger(context.Background(), "jump", nil, nil)
	assert.True(t, ok)
	assert.ErrorIs(t, err, hsm.ErrEpsilonChain)

	table, err := hsm.Compile(root)
	require.NoError(t, err)
	err = table.Validate()
	assert.ErrorIs(t, err, hsm.ErrEpsilonCycle)
	assert.Contains(t, err.Error(), "bottom, falling, rest")
}

func TestValidate_Clean(t *testing.T) {
	table, err := hsm.Compile(epsilonRoot())
	require.NoError(t, err)
	assert.NoError(t, table.Validate())
}

func TestNewMachine_UnknownPath(t *testing.T) {
	root := hsm.State[*recorder]{
		Initial: "init",
		Children: []hsm.State[*recorder]{
			hsm.Leaf[*recorder]("init"),
			hsm.Composite("hell", "hacker", hsm.Leaves[*recorder]("hacker", "fini")...),
		},
	}

	strict, err := hsm.Compile(root)
	require.NoError(t, err)
	_, err = strict.NewMachine(&recorder{}, "nowhere")
	assert.ErrorIs(t, err, hsm.ErrUnknownState)

	lenient, err := hsm.Compile(root, hsm.WithInvalidState("hell"))
	require.NoError(t, err)
	m, err := lenient.NewMachine(&recorder{}, "nowhere")
	require.NoError(t, err)
	assert.Equal(t, "hell.hacker", m.State())
	assert.True(t, m.In("hell"))

	m, err = lenient.NewMachine(&recorder{}, "hell.fini")
	require.NoError(t, err)
	assert.True(t, m.Is("hell.fini"))
	m.Reset()
	assert.Equal(t, "init", m.State())
}

func TestCompile_TransitionErrors(t *testing.T) {
	base := func(tr hsm.Transition[*recorder]) hsm.State[*recorder] {
		return hsm.State[*recorder]{
			Initial:     "a",
			Children:    hsm.Leaves[*recorder]("a", "b"),
			Transitions: []hsm.Transition[*recorder]{tr},
		}
	}
	tests := []struct {
		name string
		tr   hsm.Transition[*recorder]
		want error
	}{
		{"unknown source", hsm.Transition[*recorder]{Trigger: "x", Sources: []string{"zz"}, Dest: "b"}, hsm.ErrUnresolvedPath},
		{"unknown dest", hsm.Transition[*recorder]{Trigger: "x", Sources: []string{"a"}, Dest: "zz"}, hsm.ErrUnresolvedPath},
		{"no source", hsm.Transition[*recorder]{Trigger: "x", Dest: "b"}, hsm.ErrInvalidTransition},
		{"no trigger", hsm.Transition[*recorder]{Sources: []string{"a"}, Dest: "b"}, hsm.ErrInvalidTransition},
		{"nil guard", hsm.Transition[*recorder]{Trigger: "x", Sources: []string{"a"}, Dest: "b", Guards: []hsm.Guard[*recorder]{{Name: "broken"}}}, hsm.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := hsm.Compile(base(tt.tr))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHooks(t *testing.T) {
	table, err := hsm.Compile(epsilonRoot())
	require.NoError(t, err)

	var steps []hsm.Step
	var entered []string
	m, err := table.NewMachine(&recorder{}, "", hsm.WithHooks(hsm.Hooks{
		OnTransition: func(_ context.Context, s hsm.Step) { steps = append(steps, s) },
		OnEnter:      func(_ context.Context, p string) { entered = append(entered, p) },
	}))
	require.NoError(t, err)

	_, err = m.Trigger(context.Background(), "jump", nil, nil)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, hsm.Step{Trigger: hsm.Epsilon, Source: "bottom", Dest: "rest", Kind: hsm.EdgeExternal}, steps[2])
	assert.Equal(t, []string{"falling", "bottom", "rest"}, entered)
}
