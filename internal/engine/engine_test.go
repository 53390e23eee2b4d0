package engine

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/park285/cardchess/internal/engine/uci"
)

func TestSearcherFindsBackRankMate(t *testing.T) {
	s := NewSearcher(2)
	mv, err := s.GetNextMove(context.Background(), "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if mv != "a1a8" {
		t.Fatalf("move = %q, want a1a8", mv)
	}
}

func TestSearcherNoMoves(t *testing.T) {
	s := NewSearcher(0)
	if s.MaxDepth != DefaultSearchDepth {
		t.Fatalf("default depth = %d", s.MaxDepth)
	}
	mv, err := s.GetNextMove(context.Background(), "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", 3)
	if err != nil || mv != "" {
		t.Fatalf("stalemate = %q %v", mv, err)
	}
	if _, err := s.GetNextMove(context.Background(), "not a fen", 1); err == nil {
		t.Fatalf("bad fen accepted")
	}
}

func TestSearcherTakesHangingQueen(t *testing.T) {
	mv, err := NewSearcher(1).GetNextMove(context.Background(), "4k3/8/8/3q4/8/8/8/3RK3 w - - 0 1", 1)
	if err != nil || mv != "d1d5" {
		t.Fatalf("move = %q %v", mv, err)
	}
}

type oracleFunc func(ctx context.Context, fen string, depth int) (string, error)

func (f oracleFunc) GetNextMove(ctx context.Context, fen string, depth int) (string, error) {
	return f(ctx, fen, depth)
}

func TestChainFallsBack(t *testing.T) {
	broken := oracleFunc(func(context.Context, string, int) (string, error) {
		return "", errors.New("engine crashed")
	})
	steady := oracleFunc(func(context.Context, string, int) (string, error) {
		return "e2e4", nil
	})

	mv, err := Chain{broken, steady}.GetNextMove(context.Background(), "", 4)
	if err != nil || mv != "e2e4" {
		t.Fatalf("chain = %q %v", mv, err)
	}
	if _, err := (Chain{broken, broken}).GetNextMove(context.Background(), "", 4); err == nil {
		t.Fatalf("all-broken chain returned no error")
	}
	if _, err := (Chain{}).GetNextMove(context.Background(), "", 4); err == nil {
		t.Fatalf("empty chain returned no error")
	}
}

func TestLookupPreset(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "normal"},
		{"default", "normal"},
		{"Beginner", "easy"},
		{" expert ", "master"},
		{"hard", "hard"},
	}
	for _, tt := range tests {
		p, err := LookupPreset(tt.in)
		if err != nil || p.Name != tt.want {
			t.Fatalf("LookupPreset(%q) = %q %v", tt.in, p.Name, err)
		}
	}
	if _, err := LookupPreset("grandmaster"); err == nil {
		t.Fatalf("unknown preset accepted")
	}

	p, _ := LookupPreset("easy")
	p.Weights[0] = 99
	again, _ := LookupPreset("easy")
	if again.Weights[0] == 99 {
		t.Fatalf("preset weights shared between lookups")
	}
}

func TestPresetForDepth(t *testing.T) {
	if names := PresetNames(); len(names) != 4 || names[0] != "easy" || names[3] != "master" {
		t.Fatalf("names = %v", names)
	}
	p := PresetForDepth(10)
	if p.Name != "hard" || p.Depth != 10 {
		t.Fatalf("depth 10 -> %s/%d", p.Name, p.Depth)
	}
	if p := PresetForDepth(40); p.Name != "master" || p.Depth != 40 {
		t.Fatalf("depth 40 -> %s/%d", p.Name, p.Depth)
	}
	if p := PresetForDepth(0); p.Name != "easy" || p.Depth != 4 {
		t.Fatalf("depth 0 -> %s/%d", p.Name, p.Depth)
	}
}

func TestSelectCandidate(t *testing.T) {
	cands := []uci.Candidate{{Move: "e2e4"}, {Move: "d2d4"}, {Move: "c2c4"}}

	if _, err := selectCandidate(nil, nil, nil); !errors.Is(err, errNoCandidates) {
		t.Fatalf("empty candidates: %v", err)
	}
	if c, _ := selectCandidate(nil, cands, rand.New(rand.NewSource(1))); c.Move != "e2e4" {
		t.Fatalf("no weights picked %s", c.Move)
	}
	if c, _ := selectCandidate([]float64{0, 1}, cands, rand.New(rand.NewSource(1))); c.Move != "d2d4" {
		t.Fatalf("weighted pick = %s", c.Move)
	}

	seen := map[string]bool{}
	r := rand.New(rand.NewSource(7))
	for range 200 {
		c, _ := selectCandidate([]float64{0.5, 0.3, 0.2}, cands, r)
		seen[c.Move] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected every line to be picked at least once, got %v", seen)
	}
}
