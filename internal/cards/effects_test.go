package cards

import (
	"testing"
	"time"

	"github.com/park285/cardchess/internal/clock"
	"github.com/park285/cardchess/internal/rules"
)

type fixture struct {
	m     *Manager
	game  *rules.GameState
	timer *clock.Timer
}

func newFixture(t *testing.T, fen string) *fixture {
	t.Helper()
	g := rules.NewGameState()
	if fen != "" {
		var err error
		g, err = rules.NewGameStateFromFEN(fen)
		if err != nil {
			t.Fatalf("fen: %v", err)
		}
	}
	return &fixture{m: newTestManager(t), game: g, timer: clock.New(10*time.Minute, clock.WithoutTicker())}
}

func (f *fixture) play(t *testing.T, id CardID, p Params) (Result, Card) {
	t.Helper()
	player := f.game.CurrentPlayer()
	card := give(f.m, player, id)
	c, def, err := f.m.Validate(player, player, card.InstanceID)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	res, err := f.m.Apply(&EffectContext{Player: player, Card: c, Definition: def, Game: f.game, Clock: f.timer, Params: p})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return res, card
}

func (f *fixture) inHand(c rules.Color, instance string) bool { return f.m.findInHand(c, instance) >= 0 }

func TestTeleport(t *testing.T) {
	f := newFixture(t, "")
	res, card := f.play(t, Teleport, Params{From: "g1", To: "e4"})
	if !res.Success || !res.BoardMutated || !res.EndsTurn {
		t.Fatalf("unexpected result %+v", res)
	}
	b := f.game.Board()
	if !b.IsEmpty(rules.MustPosition("g1")) || b.At(rules.MustPosition("e4")).Kind != rules.Knight {
		t.Fatalf("knight not relocated: %v", b.Ranks())
	}
	if f.inHand(rules.White, card.InstanceID) {
		t.Fatalf("card should be consumed")
	}
	if f.game.HalfMoveClock() != 0 {
		t.Fatalf("teleport must not touch the half-move clock")
	}
}

func TestTeleportRejections(t *testing.T) {
	cases := []struct {
		name string
		fen  string
		p    Params
		code string
	}{
		{"occupied", "", Params{From: "g1", To: "e2"}, CodeTargetOccupied},
		{"opponent piece", "", Params{From: "g8", To: "e4"}, CodeNotOwnPiece},
		{"king", "", Params{From: "e1", To: "e4"}, CodeKingNotAllowed},
		{"off board", "", Params{From: "g1", To: "z9"}, CodeBadSquare},
		{"pawn to own back rank", "4k3/8/8/8/8/8/P7/4K3 w - - 0 1", Params{From: "a2", To: "b1"}, CodePawnBackRank},
		{"pinned piece", "4k3/4r3/8/8/8/8/4B3/4K3 w - - 0 1", Params{From: "e2", To: "a6"}, CodeSelfCheck},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.fen)
			before := f.game.FEN()
			res, card := f.play(t, Teleport, tc.p)
			if res.Success || res.Code != tc.code {
				t.Fatalf("got %+v, want code %s", res, tc.code)
			}
			if !f.inHand(rules.White, card.InstanceID) {
				t.Fatalf("inert failure must keep the card")
			}
			if f.game.FEN() != before {
				t.Fatalf("board changed on failure")
			}
		})
	}
}

func TestPositionSwap(t *testing.T) {
	f := newFixture(t, "")
	res, _ := f.play(t, PositionSwap, Params{From: "b1", To: "c1"})
	if !res.Success || !res.EndsTurn {
		t.Fatalf("unexpected %+v", res)
	}
	b := f.game.Board()
	if b.At(rules.MustPosition("b1")).Kind != rules.Bishop || b.At(rules.MustPosition("c1")).Kind != rules.Knight {
		t.Fatalf("swap failed: %v", b.Ranks())
	}

	f = newFixture(t, "")
	if res, _ := f.play(t, PositionSwap, Params{From: "b1", To: "b8"}); res.Success || res.Code != CodeNotOwnPiece {
		t.Fatalf("swapping with the opponent must fail: %+v", res)
	}
}

func TestRebirth(t *testing.T) {
	f := newFixture(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/R1BQKBNR w KQkq - 0 1")
	f.m.RecordCapture(rules.Piece{Kind: rules.Knight, Color: rules.White})

	res, _ := f.play(t, Rebirth, Params{PieceType: "knight", To: "b1"})
	if !res.Success || !res.EndsTurn {
		t.Fatalf("unexpected %+v", res)
	}
	if pc := f.game.Board().At(rules.MustPosition("b1")); pc.Kind != rules.Knight || pc.Color != rules.White {
		t.Fatalf("knight not reborn: %+v", pc)
	}
	if len(f.m.Captured(rules.White)) != 0 {
		t.Fatalf("captured list should be consumed")
	}
}

func TestRebirthFailures(t *testing.T) {
	cases := []struct {
		name     string
		fen      string
		captured rules.PieceKind
		p        Params
		code     string
		consumes bool
	}{
		{"not captured", "", rules.Rook, Params{PieceType: "knight", To: "b1"}, CodeNotCaptured, false},
		{"pawn", "", rules.Pawn, Params{PieceType: "pawn", To: "a2"}, CodeNotCaptured, false},
		{"not a home square", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/R1BQKBNR w KQkq - 0 1", rules.Knight, Params{PieceType: "knight", To: "c3"}, CodeNotHomeSquare, false},
		{"target occupied", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/R1BQKBNR w KQkq - 0 1", rules.Knight, Params{PieceType: "knight", To: "g1"}, CodeRebirthOccupied, true},
		{"no free home", "", rules.Knight, Params{PieceType: "knight", To: "b1"}, CodeRebirthNoFreeSquare, true},
		{"no free home, off-home target", "", rules.Knight, Params{PieceType: "knight", To: "c3"}, CodeRebirthNoFreeSquare, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.fen)
			f.m.RecordCapture(rules.Piece{Kind: tc.captured, Color: rules.White})
			res, card := f.play(t, Rebirth, tc.p)
			if res.Success || res.Code != tc.code {
				t.Fatalf("got %+v, want %s", res, tc.code)
			}
			if res.ConsumesCardOnFailure != tc.consumes || res.EndsTurn != tc.consumes {
				t.Fatalf("consume/end turn = %v/%v, want %v", res.ConsumesCardOnFailure, res.EndsTurn, tc.consumes)
			}
			if f.inHand(rules.White, card.InstanceID) == tc.consumes {
				t.Fatalf("hand membership wrong for consumes=%v", tc.consumes)
			}
		})
	}
}

func TestSacrifice(t *testing.T) {
	f := newFixture(t, "")
	handBefore := len(f.m.Hand(rules.White))
	res, _ := f.play(t, Sacrifice, Params{From: "a2"})
	if !res.Success || res.EndsTurn || !res.BoardMutated {
		t.Fatalf("unexpected %+v", res)
	}
	if !f.game.Board().IsEmpty(rules.MustPosition("a2")) {
		t.Fatalf("pawn not removed")
	}
	// +1 given, -1 consumed, +1 drawn
	if got := len(f.m.Hand(rules.White)); got != handBefore+1 {
		t.Fatalf("hand = %d, want %d", got, handBefore+1)
	}
	if len(res.Drawn) != 1 {
		t.Fatalf("expected one drawn card")
	}
}

func TestSacrificeRefusesExposingKing(t *testing.T) {
	f := newFixture(t, "4k3/4r3/8/8/8/8/4P3/4K3 w - - 0 1")
	res, _ := f.play(t, Sacrifice, Params{From: "e2"})
	if res.Success || res.Code != CodeSelfCheck {
		t.Fatalf("got %+v", res)
	}
	if res, _ := f.play(t, Sacrifice, Params{From: "e1"}); res.Code != CodeNotPawn {
		t.Fatalf("king sacrifice: %+v", res)
	}
}

func TestCardSwap(t *testing.T) {
	f := newFixture(t, "")
	mine := give(f.m, rules.White, AddTime)
	res, _ := f.play(t, CardSwap, Params{TargetInstance: mine.InstanceID})
	if !res.Success || len(res.Exchanged) != 2 {
		t.Fatalf("unexpected %+v", res)
	}
	if f.inHand(rules.White, mine.InstanceID) || !f.inHand(rules.Black, mine.InstanceID) {
		t.Fatalf("given card should now be in black's hand")
	}
	if !f.inHand(rules.White, res.Exchanged[1].InstanceID) {
		t.Fatalf("received card should be in white's hand")
	}
}

func TestCardSwapEmptyOpponentIsNoop(t *testing.T) {
	f := newFixture(t, "")
	f.m.decks[rules.Black].hand = nil
	mine := give(f.m, rules.White, AddTime)
	res, _ := f.play(t, CardSwap, Params{TargetInstance: mine.InstanceID})
	if !res.Success || res.Code != CodeOpponentHandEmpty || len(res.Exchanged) != 0 {
		t.Fatalf("unexpected %+v", res)
	}
	if !f.inHand(rules.White, mine.InstanceID) {
		t.Fatalf("own card must stay")
	}
}

func TestTimeCards(t *testing.T) {
	f := newFixture(t, "")
	if res, _ := f.play(t, AddTime, Params{}); !res.Success || res.EndsTurn {
		t.Fatalf("add: %+v", res)
	}
	if got := f.timer.Snapshot().White; got != 12*time.Minute {
		t.Fatalf("white = %v", got)
	}
	f.play(t, SubtractTime, Params{})
	if got := f.timer.Snapshot().Black; got != 8*time.Minute {
		t.Fatalf("black = %v", got)
	}
	f.play(t, TimeSwap, Params{})
	s := f.timer.Snapshot()
	if s.White != 8*time.Minute || s.Black != 12*time.Minute {
		t.Fatalf("swap = %+v", s)
	}
}

func TestExtraTurnFlag(t *testing.T) {
	f := newFixture(t, "")
	res, _ := f.play(t, ExtraTurn, Params{})
	if !res.Success || !res.ExtraTurn || res.EndsTurn {
		t.Fatalf("unexpected %+v", res)
	}
}
