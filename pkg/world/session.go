package world

import (
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/duzhibot/pkg/domain"
	"github.com/aretw0/duzhibot/pkg/hsm"
)

// Options are the tunable puzzle answers.
type Options struct {
	// DeskPassword opens the drawer.
	DeskPassword string
	// MinBodyTemp and MaxBodyTemp bound the temperature the checkpoints let through.
	MinBodyTemp float64
	MaxBodyTemp float64
}

// DefaultOptions returns the settings of the shipped game.
func DefaultOptions() Options {
	return Options{DeskPassword: "0451", MinBodyTemp: 35.0, MaxBodyTemp: 37.5}
}

// Dice is the randomness a session rolls with. *rand.Rand satisfies it.
type Dice interface {
	IntN(n int) int
}

type globalDice struct{}

func (globalDice) IntN(n int) int { return rand.IntN(n) }

// Session is the model of one player's world machine: the reply sink plus everything the
// guards remember between messages.
type Session struct {
	Reply   domain.ReplyFunc
	Logger  *slog.Logger
	Dice    Dice
	Options Options

	Nick string
	// Expect is what the chair asks for, "sit" or "stand".
	Expect string
	// WarpDest is the area the warp will drop the player in.
	WarpDest string
}

// Keys of the persisted session data.
const (
	KeyNick   = "nick"
	KeyExpect = "expect"
	KeyWarp   = "warp"
)

// NewSession returns a session with default options that replies through reply.
func NewSession(reply domain.ReplyFunc) *Session {
	return &Session{Reply: reply, Options: DefaultOptions()}
}

// Load restores the remembered fields from persisted data.
func (s *Session) Load(data map[string]string) {
	s.Nick = data[KeyNick]
	s.Expect = data[KeyExpect]
	s.WarpDest = data[KeyWarp]
}

// Dump returns the remembered fields for persistence. Empty fields are left out.
func (s *Session) Dump() map[string]string {
	out := make(map[string]string)
	for k, v := range map[string]string{KeyNick: s.Nick, KeyExpect: s.Expect, KeyWarp: s.WarpDest} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Say sends text messages to the player.
func (s *Session) Say(texts ...string) {
	if s.Reply == nil || len(texts) == 0 {
		return
	}
	msgs := make([]domain.Message, 0, len(texts))
	for _, t := range texts {
		msgs = append(msgs, domain.Text(t))
	}
	s.Reply(msgs...)
}

func (s *Session) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

func (s *Session) roll(n int) int {
	if s.Dice == nil {
		return globalDice{}.IntN(n)
	}
	return s.Dice.IntN(n)
}

type (
	state      = hsm.State[*Session]
	transition = hsm.Transition[*Session]
	guard      = hsm.Guard[*Session]
	callback   = hsm.Callback[*Session]
	event      = hsm.Event[*Session]
)

var keyReplacer = strings.NewReplacer(" ", "_", "-", "_")

// normalize turns a typed destination like "Vending machine" into a domain key.
func normalize(arg string) string {
	return keyReplacer.Replace(strings.ToLower(strings.TrimSpace(arg)))
}

// isDst is the reach guard: the first argument names key.
func isDst(key string) guard {
	return hsm.NewGuard("is_dst_"+key, func(ev *event) bool {
		return normalize(ev.Arg(0)) == key
	})
}

// willDo guards a toggle command aimed at name.
func willDo(cmd, name string) guard {
	return hsm.NewGuard("will_"+cmd+"_"+name, func(ev *event) bool {
		return normalize(ev.Arg(0)) == name
	})
}

var nickPattern = regexp.MustCompile(`^[\p{L}\p{N}_]{1,20}$`)

var checkUsernick = hsm.NewGuard("check_usernick", func(ev *event) bool {
	ok := nickPattern.MatchString(ev.Kwarg(KeyNick))
	if !ok {
		ev.Model.Say("A nickname is 1 to 20 letters, digits or underscores.")
	}
	return ok
})

var saveNick = hsm.NewCallback("save_nick", func(ev *event) {
	ev.Model.Nick = ev.Kwarg(KeyNick)
})

var checkHello = hsm.NewGuard("check_hello", func(ev *event) bool {
	return ev.Model.Nick != "" && strings.EqualFold(ev.Arg(0), ev.Model.Nick)
})

var checkDeskPassword = hsm.NewGuard("check_desk_pw", func(ev *event) bool {
	return ev.Arg(0) == ev.Model.Options.DeskPassword
})

var checkBodyTemperature = hsm.NewGuard("check_body_temperature", func(ev *event) bool {
	t, err := strconv.ParseFloat(strings.TrimSuffix(ev.Arg(0), "c"), 64)
	if err != nil {
		ev.Model.Say("That is not a temperature.")
		return false
	}
	opts := ev.Model.Options
	if t < opts.MinBodyTemp || t > opts.MaxBodyTemp {
		ev.Model.Say("The guard shakes their head. You may not pass.")
		return false
	}
	return true
})

var checkInroll = hsm.NewGuard("check_inroll", func(ev *event) bool {
	return ev.Model.Nick != ""
})

// Chair expectations.
const (
	ExpectSit   = "sit"
	ExpectStand = "stand"
)

func should(expect string) guard {
	return hsm.NewGuard("should_"+expect, func(ev *event) bool {
		return ev.Model.Expect == expect
	})
}

var rollChair = hsm.NewCallback("roll_chair", func(ev *event) {
	s := ev.Model
	s.Expect = []string{ExpectSit, ExpectStand}[s.roll(2)]
	s.logger().Debug("chair rolled", "expect", s.Expect)
})

// WarpDestinations are the areas the warp may drop a player in.
var WarpDestinations = []string{AreaRoomOn, AreaHall, AreaLobby, AreaSquare, AreaMaze}

var rollWarp = hsm.NewCallback("do_mt19937", func(ev *event) {
	s := ev.Model
	s.WarpDest = WarpDestinations[s.roll(len(WarpDestinations))]
	s.logger().Debug("warp rolled", "dest", s.WarpDest)
})

func isRandomDst(area string) guard {
	return hsm.NewGuard("is_random_dst_"+area, func(ev *event) bool {
		return ev.Model.WarpDest == area
	})
}
