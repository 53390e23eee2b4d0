package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedRender(t *testing.T) {
	c := Default()
	got, err := c.Render("card.target_occupied", map[string]any{"Square": "e4"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "e4 is occupied." {
		t.Fatalf("got %q", got)
	}
}

func TestMissingKeyIsError(t *testing.T) {
	c := Default()
	if _, err := c.Render("card.target_occupied", map[string]any{}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if got := c.Text("card.target_occupied", map[string]any{}); got != "card.target_occupied" {
		t.Fatalf("fallback = %q", got)
	}
	if got := c.Text("nope.nothing", nil); got != "nope.nothing" {
		t.Fatalf("unknown key fallback = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("move:\n  not_your_turn: \"Wait.\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Text("move.not_your_turn", nil); got != "Wait." {
		t.Fatalf("override not applied: %q", got)
	}
	if !c.Has("move.illegal") {
		t.Fatalf("defaults lost after override")
	}
}

func TestDuplicateOverrideKeys(t *testing.T) {
	dir := t.TempDir()
	body := []byte("card:\n  ok: \"x\"\n")
	_ = os.WriteFile(filepath.Join(dir, "a.yaml"), body, 0o644)
	_ = os.WriteFile(filepath.Join(dir, "b.yml"), body, 0o644)
	_, err := New(dir)
	if err == nil || !strings.Contains(err.Error(), "duplicate override key") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}
