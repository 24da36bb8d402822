package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nao1215/harvester/internal/plugins"
	"github.com/nao1215/harvester/internal/plugins/foo"
)

func TestUnitsCmd(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cmd := NewUnitsCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"NAME", foo.Name, foo.StartingAddress, "128"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got %q", want, output)
		}
	}
}

func TestUnitsCmd_RejectsArgs(t *testing.T) {
	t.Parallel()

	cmd := NewUnitsCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"foo"})
	if err := cmd.Execute(); err == nil {
		t.Error("expected error for positional argument")
	}
}

func TestListUnits_Empty(t *testing.T) {
	t.Parallel()

	reg, err := plugins.NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := listUnits(&buf, reg); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 1 {
		t.Errorf("expected header only, got %q", buf.String())
	}
}
