package main

import (
	"io"
	"strings"
	"testing"
)

func TestRootCommand_UnknownCommand(t *testing.T) {
	root := newRootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"bogus"})

	err := root.Execute()
	if err == nil {
		t.Fatal("unknown command accepted")
	}
	if !strings.HasPrefix(err.Error(), "unknown command") {
		t.Errorf("err = %v, want unknown command", err)
	}

	// The error path prints the usage string; it must name the commands.
	usage := root.UsageString()
	for _, want := range []string{"master-key", "user"} {
		if !strings.Contains(usage, want) {
			t.Errorf("usage missing %q:\n%s", want, usage)
		}
	}
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	root := newRootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"user", "ls", "-f", "whatever", "-F", "xml"})

	if err := root.Execute(); err == nil {
		t.Fatal("invalid output format accepted")
	}
}
