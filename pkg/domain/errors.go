package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrUnknownMachine is returned when a diagram is requested for a machine the bot does not have.
var ErrUnknownMachine = errors.New("unknown machine")
