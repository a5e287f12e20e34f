/*
Package runner drives a chat session from a terminal or a pipe.

A Runner reads one message per line, hands it to a session.Manager and prints the replies. How
lines are read and replies shown is up to the IOHandler: TextHandler for people, JSONHandler
for programs that speak JSON Lines.

# Usage

	r := runner.NewRunner(
		runner.WithManager(session.NewManager(store, bot)),
		runner.WithSessionID("cli"),
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)
	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}

SanitizeInput is shared with the bot: every message is size-limited and stripped of control
characters before it reaches the lexer.
*/
package runner
