package rules

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

const (
	startFEN    = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	kiwipeteFEN = "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1"
	endgameFEN  = "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1"
	mirrorFEN   = "r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1"
	promoFEN    = "rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8"
)

func legalFor(b *Board, side Color) []Move {
	var out []Move
	for _, p := range b.Pieces(side) {
		for _, m := range b.CandidateMoves(p) {
			if m.IsLegal(b) {
				out = append(out, m)
			}
		}
	}
	return out
}

func perft(b *Board, side Color, depth int) int {
	moves := legalFor(b, side)
	if depth == 1 {
		return len(moves)
	}
	n := 0
	for _, m := range moves {
		cp := b.Copy()
		m.Execute(&cp)
		n += perft(&cp, side.Opponent(), depth-1)
	}
	return n
}

func TestPerft(t *testing.T) {
	cases := []struct {
		name  string
		fen   string
		depth int
		want  int
	}{
		{"start d1", startFEN, 1, 20},
		{"start d2", startFEN, 2, 400},
		{"start d3", startFEN, 3, 8902},
		{"kiwipete d1", kiwipeteFEN, 1, 48},
		{"kiwipete d2", kiwipeteFEN, 2, 2039},
		{"endgame d2", endgameFEN, 2, 191},
		{"endgame d3", endgameFEN, 3, 2812},
		{"mirror d2", mirrorFEN, 2, 264},
		{"promo d2", promoFEN, 2, 1486},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, side, _, _, err := ParseFEN(tc.fen)
			if err != nil {
				t.Fatalf("ParseFEN: %v", err)
			}
			if got := perft(&b, side, tc.depth); got != tc.want {
				t.Fatalf("perft(%d) = %d, want %d", tc.depth, got, tc.want)
			}
		})
	}
}

func TestLegalMovesMatchLibrary(t *testing.T) {
	for _, fen := range []string{startFEN, kiwipeteFEN, endgameFEN, mirrorFEN, promoFEN} {
		b, side, _, _, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("ParseFEN(%q): %v", fen, err)
		}
		var ours []string
		for _, m := range legalFor(&b, side) {
			ours = append(ours, m.UCI())
		}

		opt, err := nchess.FEN(fen)
		if err != nil {
			t.Fatalf("library FEN(%q): %v", fen, err)
		}
		lib := nchess.NewGame(opt).ValidMoves()
		theirs := make([]string, 0, len(lib))
		for i := range lib {
			theirs = append(theirs, lib[i].String())
		}

		sort.Strings(ours)
		sort.Strings(theirs)
		if len(ours) != len(theirs) {
			t.Fatalf("%s: %d moves, library %d\nours:   %v\ntheirs: %v", fen, len(ours), len(theirs), ours, theirs)
		}
		for i := range ours {
			if ours[i] != theirs[i] {
				t.Fatalf("%s: move %d differs: %s vs %s", fen, i, ours[i], theirs[i])
			}
		}
	}
}

func TestPinnedPieceHasNoMoves(t *testing.T) {
	g, err := NewGameStateFromFEN("4k3/4r3/8/8/8/8/4B3/4K3 w - - 0 1")
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	if moves := g.LegalMovesForPiece(MustPosition("e2")); len(moves) != 0 {
		t.Fatalf("pinned bishop should have no legal moves, got %v", moves)
	}
	if cands := g.Board().CandidateMoves(MustPosition("e2")); len(cands) == 0 {
		t.Fatalf("candidate generation should still offer geometric moves")
	}
}

func TestCastlingThroughCheckRejected(t *testing.T) {
	// f1 is covered by the bishop on c4.
	g, err := NewGameStateFromFEN("4k3/8/8/8/2b5/8/8/R3K2R w KQ - 0 1")
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	var ks, qs bool
	for _, m := range g.LegalMovesForPiece(MustPosition("e1")) {
		switch m.Kind {
		case CastleKingSide:
			ks = true
		case CastleQueenSide:
			qs = true
		}
	}
	if ks {
		t.Fatalf("king-side castling through an attacked square must be illegal")
	}
	if !qs {
		t.Fatalf("queen-side castling should be available")
	}
}

func TestCastlingRightLostAfterRookMoves(t *testing.T) {
	g, err := NewGameStateFromFEN("4k3/8/8/8/8/8/8/R3K2R w KQ - 0 1")
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	play(t, g, "h1h2", "e8d8", "h2h1", "d8e8")
	if g.Board().CanCastleKingSide(White) {
		t.Fatalf("rook returned to h1 must not restore the right")
	}
	if !g.Board().CanCastleQueenSide(White) {
		t.Fatalf("queen-side right should survive")
	}
	m, ok := g.FindMove(MustPosition("e1"), MustPosition("c1"), NoPiece)
	if !ok || m.Kind != CastleQueenSide {
		t.Fatalf("expected queen-side castle, got %+v ok=%v", m, ok)
	}
	if _, err := g.MakeMove(m, false); err != nil {
		t.Fatalf("castle: %v", err)
	}
	if g.Board().At(MustPosition("d1")).Kind != Rook || g.Board().At(MustPosition("c1")).Kind != King {
		t.Fatalf("castle did not relocate king and rook: %v", g.Board().Ranks())
	}
}

func TestPromotionVariants(t *testing.T) {
	g, err := NewGameStateFromFEN("7k/P7/8/8/8/8/8/K7 w - - 0 1")
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	moves := g.LegalMovesForPiece(MustPosition("a7"))
	if len(moves) != 4 {
		t.Fatalf("expected 4 promotion candidates, got %d", len(moves))
	}
	seen := map[PieceKind]bool{}
	for _, m := range moves {
		if m.Kind != Promotion {
			t.Fatalf("expected promotion kind, got %s", m.Kind)
		}
		seen[m.Promotion] = true
	}
	for _, k := range []PieceKind{Queen, Rook, Bishop, Knight} {
		if !seen[k] {
			t.Fatalf("missing promotion to %s", k)
		}
	}
	m, ok := g.FindMove(MustPosition("a7"), MustPosition("a8"), Knight)
	if !ok {
		t.Fatalf("underpromotion not found")
	}
	if _, err := g.MakeMove(m, false); err != nil {
		t.Fatalf("MakeMove: %v", err)
	}
	if pc := g.Board().At(MustPosition("a8")); pc.Kind != Knight || pc.Color != White {
		t.Fatalf("expected white knight on a8, got %+v", pc)
	}
}

func TestEnPassantLastsOnePly(t *testing.T) {
	g := NewGameState()
	play(t, g, "e2e4", "a7a6", "e4e5", "d7d5")

	if _, ok := g.FindMove(MustPosition("e5"), MustPosition("d6"), NoPiece); !ok {
		t.Fatalf("en passant should be available right after the double step")
	}

	play(t, g, "g1f3", "h7h6")
	if _, ok := g.FindMove(MustPosition("e5"), MustPosition("d6"), NoPiece); ok {
		t.Fatalf("en passant must not reappear later")
	}
}

func TestEnPassantCapturesPawn(t *testing.T) {
	g := NewGameState()
	play(t, g, "e2e4", "a7a6", "e4e5", "d7d5", "e5d6")
	if !g.Board().IsEmpty(MustPosition("d5")) {
		t.Fatalf("captured pawn should be removed from d5")
	}
	if g.HalfMoveClock() != 0 {
		t.Fatalf("capture should reset half-move clock")
	}
}

func TestNoLegalMoveLeavesKingInCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for game := 0; game < 20; game++ {
		g := NewGameState()
		for ply := 0; ply < 120 && !g.IsOver(); ply++ {
			side := g.CurrentPlayer()
			moves := g.LegalMoves(side)
			for _, m := range moves {
				cp := g.Board().Copy()
				m.Execute(&cp)
				if cp.IsInCheck(side) {
					t.Fatalf("move %s leaves %s in check (fen %s)", m, side, g.FEN())
				}
			}
			if _, err := g.MakeMove(moves[rng.Intn(len(moves))], false); err != nil {
				t.Fatalf("MakeMove: %v", err)
			}
		}
	}
}

func TestParsePosition(t *testing.T) {
	p, err := ParsePosition("e2")
	if err != nil {
		t.Fatalf("ParsePosition: %v", err)
	}
	if p.Row != 6 || p.Col != 4 {
		t.Fatalf("e2 = %+v", p)
	}
	if p.String() != "e2" {
		t.Fatalf("round trip: %s", p)
	}
	for _, bad := range []string{"", "e9", "i1", "e", "e22", "a0"} {
		if _, err := ParsePosition(bad); !errors.Is(err, ErrInvalidSquare) {
			t.Fatalf("ParsePosition(%q) err = %v", bad, err)
		}
	}
}

func TestHomeSquares(t *testing.T) {
	got := HomeSquares(Knight, Black)
	if len(got) != 2 || got[0] != MustPosition("b8") || got[1] != MustPosition("g8") {
		t.Fatalf("black knight homes: %v", got)
	}
	if q := HomeSquares(Queen, White); len(q) != 1 || q[0] != MustPosition("d1") {
		t.Fatalf("white queen home: %v", q)
	}
}

func play(t *testing.T, g *GameState, moves ...string) {
	t.Helper()
	for _, s := range moves {
		from, to, promo, err := ParseUCI(s)
		if err != nil {
			t.Fatalf("ParseUCI(%q): %v", s, err)
		}
		m, ok := g.FindMove(from, to, promo)
		if !ok {
			t.Fatalf("move %s not legal in %s", s, g.FEN())
		}
		if _, err := g.MakeMove(m, false); err != nil {
			t.Fatalf("MakeMove(%s): %v", s, err)
		}
	}
}
