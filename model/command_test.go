package model

import (
	"errors"
	"testing"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in   string
		want Command
	}{
		{"charge", CommandCharge},
		{"DISCHARGE", CommandDischarge},
		{"  stop ", CommandStop},
		{"Reset", CommandReset},
	}
	for _, tc := range cases {
		got, err := ParseCommand(tc.in)
		if err != nil {
			t.Fatalf("ParseCommand(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseCommand(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseCommandRejectsUnknown(t *testing.T) {
	for _, in := range []string{"", "charge!", "explode", "pause"} {
		if _, err := ParseCommand(in); !errors.Is(err, ErrUnknownCommand) {
			t.Fatalf("ParseCommand(%q) = %v, want ErrUnknownCommand", in, err)
		}
	}
}
