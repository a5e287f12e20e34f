package duzhibot_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/duzhibot"
	"github.com/aretw0/duzhibot/pkg/adapters/memory"
	"github.com/aretw0/duzhibot/pkg/domain"
	"github.com/aretw0/duzhibot/pkg/session"
)

// ExampleBot_Exec walks a new player through registration and into the first room.
func ExampleBot_Exec() {
	bot, err := duzhibot.New()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	state := bot.NewState("U123")
	for _, text := range []string{"/register Alice", "hello alice", "dance"} {
		var replies domain.Replies
		next, ok, err := bot.Exec(ctx, state, text, replies.Add)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(next.Path, ok)
		state = next
	}
	// Output:
	// init.registered true
	// room_off.init true
	// room_off.init false
}

// ExampleNew_session keeps the state between messages with a session.Manager.
func ExampleNew_session() {
	bot, err := duzhibot.New()
	if err != nil {
		log.Fatal(err)
	}
	manager := session.NewManager(memory.NewStore(), bot)

	ctx := context.Background()
	if _, _, err := manager.Handle(ctx, "U123", "register alice", nil); err != nil {
		log.Fatal(err)
	}
	state, err := manager.Load(ctx, "U123")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(state.Path, state.Data["nick"])
	// Output:
	// init.registered alice
}
