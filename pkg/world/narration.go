package world

import (
	"strings"

	"github.com/aretw0/duzhibot/pkg/hsm"
)

// narration is what the player reads on arriving at a state. Paths under the rooms are keyed
// without the room prefix. Placeholders: {nick}, {password}.
var narration = map[string]string{
	"init.init":       "Who are you? Tell me with /register <nick>.",
	"init.registered": "Nice to meet you, {nick}. When you are ready, say /hello {nick}.",

	"room.init":             "You are in a room. There is a window, a door, a chair and a desk.",
	"room.window":           "A window. It can be opened, closed or switched.",
	"room.door":             "A door. Where it leads is another matter.",
	"room.chair.on":         "The chair whispers: sit.",
	"room.chair.off":        "The chair whispers: stand.",
	"room.desk.init":        "A desk with a computer and a drawer.",
	"room.desk.computer":    "A note is stuck to the screen: {password}.",
	"room.desk.drawer":      "The drawer is locked. /input the password.",
	"room.desk.drawer.open": "The drawer slides open. Inside is a map of the lobby.",

	"hall.init": "A long hall. A room on one side, the lobby on the other.",

	"lobby.init":            "The lobby. A door, a doorer, a clock, a vending machine and the engine room.",
	"lobby.door.off":        "The door is shut.",
	"lobby.door.on":         "The door is open. The hall lies beyond it.",
	"lobby.doorer.off":      "The doorer is shut.",
	"lobby.doorer.on":       "The doorer is open. You can see the square.",
	"lobby.clock":           "It is always a quarter past something.",
	"lobby.vending_machine": "Out of order.",
	"lobby.engine_room":     "Something hums behind the wall.",

	"square.init":       "The square. Checkpoints lead to the lobby, the hospital, the restaurant and the school. A maze yawns to the side.",
	"square.hospital":   "The hospital. Everyone here looks healthy enough.",
	"square.restaurant": "The restaurant is closed for a private party.",
	"square.school":     "Would you like to enrol? /yes or /no.",
	"square.circle":     "A circle is drawn in the dust.",
	"square.triangle":   "A triangle joins the circle.",
	"square.square":     "The shapes glow and fade away.",
	"square.lobby":      "The checkpoint waves you through.",
	"maze.m13.37":       "A corridor that should not exist.",
	"maze.mt199.37":     "The walls start to twist.",
	"warp":              "Everything spins.",

	"hell.fini":         "Game over. /resuscitate to try again.",
	"hell.door":         "The door opens onto nothing. You fall.",
	"hell.chair":        "The chair was not pleased.",
	"hell.drawer":       "The drawer locks for good, and so do you.",
	"hell.illuminati":   "You have seen too much.",
	"hell.fall":         "You fall off the edge of the maze.",
	"hell.killed":       "You are dead.",
	"hell.force_killed": "Everything goes dark. You wake up somewhere familiar.",
	"hell.hell":         "You asked for it.",
	"hell.hacker":       "You are not supposed to be here.",
}

// narrationKey maps a canonical path to its narration entry, trying the path and then its
// ancestors.
func narrationKey(path string) (string, bool) {
	for _, r := range []string{AreaRoomOff, AreaRoomOn} {
		if rest, ok := strings.CutPrefix(path, r+hsm.Separator); ok {
			path = hsm.Join("room", rest)
		}
	}
	for p := path; p != ""; {
		if _, ok := narration[p]; ok {
			return p, true
		}
		i := strings.LastIndex(p, hsm.Separator)
		if i < 0 {
			break
		}
		p = p[:i]
	}
	return "", false
}

// Maze cells have no narration of their own.
func isCell(path string) bool {
	return strings.HasPrefix(path, AreaMaze+".m") && !strings.HasPrefix(path, "maze.m13.") && !strings.HasPrefix(path, "maze.mt199.")
}

// narrate attaches an enter callback to every leaf that tells the player where they are.
func narrate(root *state) {
	hsm.Walk(root, func(path string, s *state) {
		if s.IsComposite() || path == "" {
			return
		}
		var text string
		switch key, ok := narrationKey(path); {
		case isCell(path):
			text = "You are lost in the maze, at " + strings.TrimPrefix(path, AreaMaze+".") + "."
		case ok:
			text = narration[key]
		default:
			return
		}
		s.OnEnter = append(s.OnEnter, hsm.NewCallback("narrate", func(ev *event) {
			sess := ev.Model
			sess.logger().Debug("entering", "path", path)
			sess.Say(strings.NewReplacer("{nick}", sess.Nick, "{password}", sess.Options.DeskPassword).Replace(text))
		}))
	})
}
