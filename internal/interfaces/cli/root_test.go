package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	if cmd == nil {
		t.Fatal("NewRootCommand should return a command")
	}
	if cmd.Use != "dockprep" {
		t.Errorf("expected Use='dockprep', got %q", cmd.Use)
	}
	if cmd.Short == "" {
		t.Error("Short should not be empty")
	}
	if cmd.Long == "" {
		t.Error("Long should not be empty")
	}
}

func TestNewRootCommand_SubcommandRegistration(t *testing.T) {
	cmd := NewRootCommand()
	subs := cmd.Commands()

	subNames := make(map[string]bool)
	for _, sub := range subs {
		subNames[sub.Name()] = true
	}

	expected := []string{
		"fetch", "prepare-receptor", "prepare-ligand", "box", "dock",
		"worker", "runs",
	}
	for _, name := range expected {
		if !subNames[name] {
			t.Errorf("expected subcommand %q not found", name)
		}
	}
}

func TestNewRootCommand_GlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	pf := cmd.PersistentFlags()

	configFlag := pf.Lookup("config")
	if configFlag == nil {
		t.Fatal("config flag should exist")
	}
	if configFlag.Shorthand != "c" {
		t.Errorf("config flag shorthand should be 'c', got %q", configFlag.Shorthand)
	}

	outputFlag := pf.Lookup("output")
	if outputFlag == nil {
		t.Fatal("output flag should exist")
	}
	if outputFlag.DefValue != "text" {
		t.Errorf("output flag default should be 'text', got %q", outputFlag.DefValue)
	}

	verboseFlag := pf.Lookup("verbose")
	if verboseFlag == nil {
		t.Fatal("verbose flag should exist")
	}
	if verboseFlag.Shorthand != "v" {
		t.Errorf("verbose flag shorthand should be 'v', got %q", verboseFlag.Shorthand)
	}

	if pf.Lookup("log-level") == nil {
		t.Error("log-level flag should exist")
	}
}

func TestGetCLIContext_NotInitialized(t *testing.T) {
	cmd := &cobra.Command{Use: "probe"}
	cmd.SetContext(context.Background())

	if _, err := GetCLIContext(cmd); err == nil {
		t.Error("GetCLIContext should fail when persistentPreRun never ran")
	}
}

// newTestCommand builds a command with a CLIContext carrying the requested
// output format, the way persistentPreRun would.
func newTestCommand(t *testing.T, format string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{Use: "probe"}
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cliCtx := &CLIContext{OutputFormat: format}
	cmd.SetContext(context.WithValue(context.Background(), cliContextKey{}, cliCtx))
	return cmd, out
}

type stringerResult struct{ text string }

func (s stringerResult) String() string { return s.text }

func TestPrintResult_Text(t *testing.T) {
	cmd, out := newTestCommand(t, "text")

	if err := PrintResult(cmd, stringerResult{text: "hello"}); err != nil {
		t.Fatalf("PrintResult failed: %v", err)
	}
	if got := out.String(); got != "hello\n" {
		t.Errorf("expected %q, got %q", "hello\n", got)
	}
}

func TestPrintResult_JSON(t *testing.T) {
	cmd, out := newTestCommand(t, "json")

	payload := map[string]int{"poses": 9}
	if err := PrintResult(cmd, payload); err != nil {
		t.Fatalf("PrintResult failed: %v", err)
	}
	if !strings.Contains(out.String(), `"poses": 9`) {
		t.Errorf("expected indented JSON, got %q", out.String())
	}
}
