// Package duzhibot is a text adventure chat bot.
//
// A Bot turns one chat message into a world transition: the lexer splits the text into tokens,
// the parser walks them to a command, and the command fires on the player's world machine. All
// three are hierarchical state machines from package hsm.
//
// The Bot keeps nothing between messages. Callers pass the session's domain.State in and store
// the State they get back, usually through session.Manager:
//
//	bot, err := duzhibot.New()
//	if err != nil {
//		return err
//	}
//	state := bot.NewState("U123")
//	state, ok, err := bot.Exec(ctx, state, "register duzhi", reply)
package duzhibot
