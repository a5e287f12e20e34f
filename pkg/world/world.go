// Package world is the game: a hierarchical machine of areas, rooms and puzzles driven by the
// commands the parser recognizes.
//
// The definition is static. Definition builds the tree, Table compiles it once, and every player
// gets a Machine over it with their own Session as the model.
package world

import (
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/aretw0/duzhibot/pkg/hsm"
)

// Areas, the top-level states.
const (
	AreaInit    = "init"
	AreaRoomOff = "room_off"
	AreaRoomOn  = "room_on"
	AreaHall    = "hall"
	AreaLobby   = "lobby"
	AreaSquare  = "square"
	AreaMaze    = "maze"
	AreaWarp    = "warp"
	AreaHell    = "hell"
)

// Triggers. They are the command names the default parser grammar produces.
const (
	Advance              = "advance"
	GoBack               = "go_back"
	GoNorth              = "go_north"
	GoSouth              = "go_south"
	GoEast               = "go_east"
	GoWest               = "go_west"
	Register             = "register"
	Hello                = "hello"
	Sit                  = "sit"
	Stand                = "stand"
	Open                 = "open"
	Close                = "close"
	Switch               = "switch"
	Input                = "input"
	CheckBodyTemperature = "check_body_temperature"
	Circle               = "circle"
	Triangle             = "triangle"
	Square               = "square"
	Yes                  = "yes"
	No                   = "no"
	Plugh                = "plugh"
	Kill                 = "kill"
	ForceKill            = "force_kill"
	Resuscitate          = "resuscitate"
)

const (
	// InitialState is where new players start.
	InitialState = "init.init"
	// InvalidState is where a player with an unknown persisted path is sent.
	InvalidState = "hell.hacker"
)

const (
	mazeRows = 10
	mazeCols = 10
)

func leaf(name string) state { return hsm.Leaf[*Session](name) }

func leaves(names ...string) []state { return hsm.Leaves[*Session](names...) }

func area(name, initial string, children ...state) state {
	return hsm.Composite(name, initial, children...)
}

func areaInit() state {
	s := area(AreaInit, "init", leaves("init", "registered")...)
	s.Transitions = []transition{{
		Trigger: Register,
		Sources: []string{hsm.Wildcard},
		Dest:    "registered",
		Guards:  []guard{checkUsernick},
		After:   []callback{saveNick},
	}}
	return s
}

func chair() state {
	positions := []string{"standed", "sat"}
	var children []state
	for _, name := range []string{"init", "off", "on", "wrong"} {
		children = append(children, hsm.Composite(name, "standed", leaves(positions...)...))
	}
	// The chair asks again every time the player lands in init.
	for i := range children[0].Children {
		children[0].Children[i].OnEnter = []callback{rollChair}
	}

	s := state{Name: "chair", Initial: "init.standed", Children: children}
	for _, p := range positions {
		s.Transitions = append(s.Transitions,
			transition{Trigger: Sit, Sources: []string{"on." + p}, Dest: "init.sat"},
			transition{Trigger: Sit, Sources: []string{"off." + p}, Dest: "wrong.sat"},
			transition{Trigger: Stand, Sources: []string{"on." + p}, Dest: "wrong.standed"},
			transition{Trigger: Stand, Sources: []string{"off." + p}, Dest: "init.standed"},
			transition{Trigger: hsm.Epsilon, Sources: []string{"init." + p}, Dest: "on." + p, Guards: []guard{should(ExpectSit)}},
			transition{Trigger: hsm.Epsilon, Sources: []string{"init." + p}, Dest: "off." + p, Guards: []guard{should(ExpectStand)}},
		)
	}
	s.Transitions = append(s.Transitions, transition{Trigger: GoBack, Sources: []string{"on.standed"}, Dest: "wrong.standed"})
	return s
}

const drawerTries = 3

func drawer() state {
	s := state{Name: "drawer", Initial: "try0"}
	var guessing []string
	for k := range drawerTries + 1 {
		s.Children = append(s.Children, leaf(tryName(k)))
		if k < drawerTries {
			guessing = append(guessing, tryName(k))
		}
	}
	s.Children = append(s.Children, leaf("open"))

	for k := range drawerTries {
		s.Transitions = append(s.Transitions, transition{
			Trigger: Input,
			Sources: []string{tryName(k)},
			Dest:    tryName(k + 1),
			Unless:  []guard{checkDeskPassword},
		})
	}
	s.Transitions = append(s.Transitions, transition{
		Trigger: Input,
		Sources: guessing,
		Dest:    "open",
		Guards:  []guard{checkDeskPassword},
	})
	return s
}

func tryName(k int) string { return "try" + strconv.Itoa(k) }

func desk() state {
	d := hsm.DomainOf(leaf("computer"), drawer())
	s := area("desk", "init", slices.Concat([]state{leaf("init")}, d.States())...)
	s.Transitions = hsm.BidirectionalReach(d, "init", Advance, GoBack, isDst)
	return s
}

// room builds one of the two identical rooms; only the light differs.
func room(name string) state {
	d := hsm.DomainOf(leaf("window"), leaf("door"), chair(), desk())
	s := area(name, "init", slices.Concat([]state{leaf("init")}, d.States())...)
	s.Transitions = slices.Concat(
		hsm.Reach(d, "init", Advance, isDst),
		// The chair has its own way out.
		hsm.GoBack(d.Without("chair"), "init", GoBack),
	)
	return s
}

func autoShut(name string) state {
	s := area(name, "off", leaves("off", "on")...)
	s.Transitions = hsm.Toggle(name, false, nil, willDo)
	return s
}

func lobby() state {
	d := hsm.DomainOf(autoShut("door"), autoShut("doorer"), leaf("clock"), leaf("vending_machine"), leaf("engine_room"))
	s := area(AreaLobby, "init", slices.Concat([]state{leaf("init")}, d.States())...)
	s.Transitions = hsm.BidirectionalReach(d, "init", Advance, GoBack, isDst)
	return s
}

var (
	squarePlaces = []string{"lobby", "hospital", "restaurant", "school"}
	shapes       = []string{Circle, Triangle, Square}
)

func checkpoint(place string) string { return place + "_chkpt" }

func square() state {
	var checkpoints hsm.Domain[*Session]
	for _, p := range squarePlaces {
		checkpoints = append(checkpoints, hsm.Entry[*Session]{Key: p, State: leaf(checkpoint(p))})
	}
	places := hsm.DomainOf(leaves(squarePlaces...)...)

	s := area(AreaSquare, "init", slices.Concat(
		[]state{leaf("init")},
		checkpoints.States(),
		places.States(),
		leaves(shapes...),
	)...)

	s.Transitions = slices.Concat(
		hsm.BidirectionalReach(checkpoints, "init", Advance, GoBack, isDst),
		// square.lobby only passes through to the lobby area.
		hsm.GoBack(places.Without("lobby"), "init", GoBack),
	)
	for _, p := range squarePlaces {
		s.Transitions = append(s.Transitions, transition{
			Trigger: CheckBodyTemperature,
			Sources: []string{checkpoint(p)},
			Dest:    p,
			Guards:  []guard{checkBodyTemperature},
		})
	}
	s.Transitions = append(s.Transitions,
		transition{Trigger: GoEast, Sources: []string{"init"}, Dest: checkpoint("hospital")},
		transition{Trigger: Yes, Sources: []string{"school"}, Dest: "init", Guards: []guard{checkInroll}},
		transition{Trigger: No, Sources: []string{"school"}, Dest: "init"},
	)
	s.Transitions = append(s.Transitions, shapePuzzle()...)
	return s
}

// shapePuzzle wants circle, triangle, square in that order. A circle always starts over and
// a square too early sends the player back to init.
func shapePuzzle() []transition {
	next := map[string]string{"init": Circle, Circle: Triangle, Triangle: Square}
	var out []transition
	for _, src := range []string{"init", Circle, Triangle} {
		for _, cmd := range []string{Circle, Square} {
			dest := "init"
			switch {
			case next[src] == cmd:
				dest = cmd
			case cmd == Circle:
				dest = Circle
			}
			out = append(out, transition{Trigger: cmd, Sources: []string{src}, Dest: dest})
		}
	}
	return append(out,
		transition{Trigger: Triangle, Sources: []string{Circle}, Dest: Triangle},
		transition{Trigger: hsm.Epsilon, Sources: []string{Square}, Dest: "init"},
	)
}

func cell(r, c int) string { return fmt.Sprintf("m%d.%d", r, c) }

func maze() state {
	s := state{Name: AreaMaze, Initial: cell(0, 0)}
	var rows []string
	for r := range mazeRows {
		row := state{Name: "m" + strconv.Itoa(r), Initial: "0"}
		for c := range mazeCols {
			row.Children = append(row.Children, leaf(strconv.Itoa(c)))
		}
		s.Children = append(s.Children, row)
		rows = append(rows, row.Name)
	}
	s.Children = append(s.Children,
		area("m13", "37", leaf("37")),
		area("mt199", "37", leaf("37")),
	)

	moves := []struct {
		trigger string
		dr, dc  int
	}{
		{GoNorth, -1, 0},
		{GoSouth, 1, 0},
		{GoWest, 0, -1},
		{GoEast, 0, 1},
	}
	for _, mv := range moves {
		for r := range mazeRows {
			for c := range mazeCols {
				nr, nc := r+mv.dr, c+mv.dc
				if nr < 0 || nr >= mazeRows || nc < 0 || nc >= mazeCols {
					continue
				}
				s.Transitions = append(s.Transitions, transition{Trigger: mv.trigger, Sources: []string{cell(r, c)}, Dest: cell(nr, nc)})
			}
		}
	}
	s.Transitions = append(s.Transitions,
		transition{Trigger: GoEast, Sources: []string{cell(mazeRows-1, mazeCols-1)}, Dest: "m13.37"},
		transition{Trigger: GoSouth, Sources: []string{"m13.37"}, Dest: "mt199.37"},
		transition{Trigger: Plugh, Sources: rows, Dest: cell(0, 0)},
	)
	return s
}

var hellDomains = []string{"door", "chair", "drawer", "illuminati", "fall", "killed", "force_killed", "hell", "hacker"}

func hell() state {
	s := state{Name: AreaHell, Initial: "hacker", Children: []state{leaf("fini")}}
	var dying []string
	for _, d := range hellDomains {
		if d == "chair" {
			s.Children = append(s.Children, state{Name: d, Children: leaves("standed", "sat")})
		} else {
			s.Children = append(s.Children, leaf(d))
		}
		if d != "force_killed" {
			dying = append(dying, d)
		}
	}
	s.Transitions = []transition{{Trigger: hsm.Epsilon, Sources: dying, Dest: "fini"}}
	return s
}

// crossings are the transitions between areas, declared on the root with canonical paths.
func crossings() []transition {
	var out []transition
	out = append(out, transition{
		Trigger: Hello,
		Sources: []string{"init.registered"},
		Dest:    AreaRoomOff,
		Guards:  []guard{checkHello},
	})

	for _, r := range []string{AreaRoomOff, AreaRoomOn} {
		for _, p := range []string{"standed", "sat"} {
			out = append(out, transition{
				Trigger: hsm.Epsilon,
				Sources: []string{hsm.Join(r, "chair.wrong", p)},
				Dest:    hsm.Join("hell.chair", p),
			})
		}
		out = append(out,
			transition{Trigger: GoBack, Sources: []string{hsm.Join(r, "chair.off.standed")}, Dest: hsm.Join(r, "init")},
			transition{Trigger: hsm.Epsilon, Sources: []string{hsm.Join(r, "desk.drawer", tryName(drawerTries))}, Dest: "hell.drawer"},
		)
	}

	// Doors and windows carry the player between the dark and the lit room.
	for _, t := range []struct {
		name   string
		invert bool
	}{{"door", false}, {"window", true}} {
		out = append(out, hsm.Toggle(t.name, t.invert, func(st string) string {
			return hsm.Join("room_"+st, t.name)
		}, willDo)...)
	}
	out = append(out,
		transition{Trigger: Advance, Sources: []string{"room_on.door"}, Dest: AreaLobby, Guards: []guard{isDst(AreaLobby)}},
		transition{Trigger: Advance, Sources: []string{"room_off.door"}, Dest: "hell.door", Guards: []guard{isDst(AreaLobby)}},

		transition{Trigger: Advance, Sources: []string{"hall.init"}, Dest: AreaRoomOn, Guards: []guard{isDst("room")}},
		transition{Trigger: Advance, Sources: []string{"hall.init"}, Dest: AreaLobby, Guards: []guard{isDst(AreaLobby)}},

		transition{Trigger: Advance, Sources: []string{"lobby.door.on"}, Dest: AreaHall, Guards: []guard{isDst(AreaHall)}},
		transition{Trigger: Advance, Sources: []string{"lobby.doorer.on"}, Dest: AreaSquare, Guards: []guard{isDst(AreaSquare)}},

		transition{Trigger: hsm.Epsilon, Sources: []string{"square.lobby"}, Dest: AreaLobby},
		transition{Trigger: Advance, Sources: []string{"square.init"}, Dest: AreaMaze, Guards: []guard{isDst(AreaMaze)}},
		transition{Trigger: Triangle, Sources: []string{"square.init", "square.triangle"}, Dest: "hell.illuminati"},

		transition{Trigger: GoBack, Sources: []string{"maze." + cell(0, 0)}, Dest: AreaSquare},
		transition{Trigger: GoEast, Sources: []string{"maze.m13.37"}, Dest: "hell.fall"},
		transition{Trigger: hsm.Epsilon, Sources: []string{"maze.mt199.37"}, Dest: AreaWarp, After: []callback{rollWarp}},
	)

	for _, dest := range WarpDestinations {
		out = append(out, transition{Trigger: hsm.Epsilon, Sources: []string{AreaWarp}, Dest: dest, Guards: []guard{isRandomDst(dest)}})
	}
	out = append(out,
		transition{Trigger: hsm.Epsilon, Sources: []string{AreaWarp}, Dest: AreaSquare},
		transition{Trigger: hsm.Epsilon, Sources: []string{"hell.force_killed"}, Dest: AreaInit},
		transition{Trigger: Resuscitate, Sources: []string{"hell.fini"}, Dest: "init.registered"},
	)
	return out
}

// Definition returns the world state tree.
func Definition() state {
	root := state{
		Name:    "world",
		Initial: AreaInit,
		Children: []state{
			areaInit(),
			room(AreaRoomOff),
			room(AreaRoomOn),
			area(AreaHall, "init", leaf("init")),
			lobby(),
			square(),
			maze(),
			leaf(AreaWarp),
			hell(),
		},
		Transitions: crossings(),
	}

	// Resetters reach from everywhere except hell and the states only epsilon leaves;
	// a resetter there would stop the chain.
	passing := hsm.SourcesOf(root, hsm.Epsilon)
	hsm.AddResetters(&root, []string{Advance}, "hell.hell", append(slices.Clone(passing), AreaHell, AreaInit), isDst(AreaHell))
	hsm.AddResetters(&root, []string{Kill}, "hell.killed", append(slices.Clone(passing), AreaHell, InitialState))
	hsm.AddResetters(&root, []string{ForceKill}, "hell.force_killed", append(slices.Clone(passing), AreaHell, InitialState))

	narrate(&root)
	return root
}

// Table returns the compiled world, shared by every player.
var Table = sync.OnceValues(func() (*hsm.Table[*Session], error) {
	return hsm.Compile(Definition(), hsm.WithInvalidState(InvalidState))
})
