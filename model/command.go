package model

import (
	"errors"
	"fmt"
	"strings"
)

// Command is a control action accepted by the bench. Applying a known
// command always succeeds: transitions that make no sense in the
// current mode degrade to the nearest sensible one (for example,
// charging while already charging pauses instead).
type Command string

const (
	CommandCharge    Command = "charge"
	CommandDischarge Command = "discharge"
	CommandStop      Command = "stop"
	CommandReset     Command = "reset"
)

// ErrUnknownCommand marks a control string that is not a Command.
var ErrUnknownCommand = errors.New("unknown command")

// ParseCommand maps a wire string onto a Command. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseCommand(s string) (Command, error) {
	switch c := Command(strings.ToLower(strings.TrimSpace(s))); c {
	case CommandCharge, CommandDischarge, CommandStop, CommandReset:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
	}
}
