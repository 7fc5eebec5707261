package main

import (
	"strings"
	"testing"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "gauntlet" {
			t.Errorf("expected use 'gauntlet', got %q", cmd.Use)
		}
	})

	t.Run("has version", func(t *testing.T) {
		t.Parallel()
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has config flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.PersistentFlags().Lookup("config")
		if flag == nil {
			t.Fatal("expected config flag")
		}
		if flag.Shorthand != "c" {
			t.Errorf("expected shorthand 'c', got %q", flag.Shorthand)
		}
	})

	t.Run("has expected subcommands", func(t *testing.T) {
		t.Parallel()
		want := map[string]bool{"solve": false, "serve": false, "version": false}
		for _, sub := range cmd.Commands() {
			name := strings.Fields(sub.Use)[0]
			if _, ok := want[name]; ok {
				want[name] = true
			}
		}
		for name, found := range want {
			if !found {
				t.Errorf("expected subcommand %q", name)
			}
		}
	})
}

// TestSolveCmdRequiresArgs tests that solve demands a start URL.
func TestSolveCmdRequiresArgs(t *testing.T) {
	t.Parallel()

	cmd := NewSolveCmd()
	if cmd.Args == nil {
		t.Fatal("expected positional arg validation")
	}
	if err := cmd.Args(cmd, []string{}); err == nil {
		t.Error("expected error for missing start URL")
	}
	if err := cmd.Args(cmd, []string{"https://example.com/task/1"}); err != nil {
		t.Errorf("unexpected error for valid args: %v", err)
	}
}
