package rules

import "fmt"

type Reason uint8

const (
	ReasonNone Reason = iota
	Checkmate
	Stalemate
	FiftyMoveRule
	ThreefoldRepetition
	InsufficientMaterial
	TimeOut
	Resignation
)

func (r Reason) String() string {
	switch r {
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case FiftyMoveRule:
		return "fifty_move_rule"
	case ThreefoldRepetition:
		return "threefold_repetition"
	case InsufficientMaterial:
		return "insufficient_material"
	case TimeOut:
		return "timeout"
	case Resignation:
		return "resignation"
	}
	return "none"
}

// Result is the terminal outcome. Decisive is false for draws.
type Result struct {
	Reason   Reason
	Winner   Color
	Decisive bool
}

func (r Result) String() string {
	if !r.Decisive {
		return "draw by " + r.Reason.String()
	}
	return fmt.Sprintf("%s wins by %s", r.Winner, r.Reason)
}

func win(c Color, reason Reason) *Result { return &Result{Reason: reason, Winner: c, Decisive: true} }
func draw(reason Reason) *Result        { return &Result{Reason: reason} }

const fiftyMoveLimit = 100

// GameState owns the board and the turn/termination machine. It is not safe for
// concurrent use; the owning session serializes access.
type GameState struct {
	board       Board
	current     Color
	halfMoves   int
	fullMoves   int
	repetitions map[string]int
	result      *Result
}

func NewGameState() *GameState {
	g := &GameState{
		board:       NewBoard(),
		current:     White,
		fullMoves:   1,
		repetitions: make(map[string]int),
	}
	g.repetitions[g.Fingerprint()] = 1
	return g
}

// NewGameStateFromFEN builds a state from a six-field FEN string.
func NewGameStateFromFEN(fen string) (*GameState, error) {
	b, side, half, full, err := ParseFEN(fen)
	if err != nil {
		return nil, err
	}
	g := &GameState{
		board:       b,
		current:     side,
		halfMoves:   half,
		fullMoves:   full,
		repetitions: make(map[string]int),
	}
	g.repetitions[g.Fingerprint()] = 1
	return g, nil
}

// Board exposes the live board for card effects running under the session lock.
func (g *GameState) Board() *Board { return &g.board }

func (g *GameState) CurrentPlayer() Color { return g.current }
func (g *GameState) HalfMoveClock() int   { return g.halfMoves }
func (g *GameState) FullMoveNumber() int  { return g.fullMoves }
func (g *GameState) IsOver() bool         { return g.result != nil }

func (g *GameState) Result() (Result, bool) {
	if g.result == nil {
		return Result{}, false
	}
	return *g.result, true
}

func (g *GameState) IsInCheck(c Color) bool { return g.board.IsInCheck(c) }

// LegalMovesForPiece returns the generated moves of the piece at pos that do not
// leave its own king in check.
func (g *GameState) LegalMovesForPiece(pos Position) []Move {
	cands := g.board.CandidateMoves(pos)
	out := cands[:0]
	for _, m := range cands {
		if m.IsLegal(&g.board) {
			out = append(out, m)
		}
	}
	return out
}

// LegalMoves returns every legal move for c.
func (g *GameState) LegalMoves(c Color) []Move {
	var out []Move
	for _, p := range g.board.Pieces(c) {
		out = append(out, g.LegalMovesForPiece(p)...)
	}
	return out
}

func (g *GameState) hasLegalMove(c Color) bool {
	for _, p := range g.board.Pieces(c) {
		for _, m := range g.board.CandidateMoves(p) {
			if m.IsLegal(&g.board) {
				return true
			}
		}
	}
	return false
}

// FindMove resolves a (from, to, promotion) request against the legal moves of
// the piece on from. A missing promotion on a promoting move defaults to queen.
func (g *GameState) FindMove(from, to Position, promo PieceKind) (Move, bool) {
	for _, m := range g.LegalMovesForPiece(from) {
		if m.To != to {
			continue
		}
		if m.Kind == Promotion {
			want := promo
			if want == NoPiece {
				want = Queen
			}
			if m.Promotion != want {
				continue
			}
		}
		return m, true
	}
	return Move{}, false
}

// GivesCheck reports whether playing m would put the opponent in check.
func (g *GameState) GivesCheck(m Move) bool {
	pc := g.board.At(m.From)
	cp := g.board.Copy()
	m.Execute(&cp)
	return cp.IsInCheck(pc.Color.Opponent())
}

// MoveOutcome describes what MakeMove did.
type MoveOutcome struct {
	Move     Move
	Captured Piece
	// CapturedAt is meaningful only when Captured is not zero.
	CapturedAt Position
}

// MakeMove plays m for the side to move. With keepTurn the same side stays to
// move (extra turn). Terminal states are evaluated afterward.
func (g *GameState) MakeMove(m Move, keepTurn bool) (MoveOutcome, error) {
	if g.result != nil {
		return MoveOutcome{}, ErrGameOver
	}
	pc := g.board.At(m.From)
	if pc.IsZero() || pc.Color != g.current {
		return MoveOutcome{}, ErrNotYourPiece
	}
	out := MoveOutcome{Move: m}
	if !m.IsCardMove() {
		out.CapturedAt = m.CaptureSquare()
		out.Captured = g.board.At(out.CapturedAt)
	}
	if m.Execute(&g.board) {
		g.halfMoves = 0
	} else if !m.IsCardMove() {
		g.halfMoves++
	}
	g.advance(keepTurn)
	return out, nil
}

// PassTurn ends the current player's turn without a chess move (a card resolved
// the turn). The half-move clock is untouched.
func (g *GameState) PassTurn() {
	if g.result != nil {
		return
	}
	g.board.ClearEnPassant()
	g.advance(false)
}

func (g *GameState) advance(keepTurn bool) {
	if !keepTurn {
		if g.current == Black {
			g.fullMoves++
		}
		g.current = g.current.Opponent()
	}
	g.RecordPosition()
	if g.result != nil {
		return
	}
	g.evaluate()
}

// RecordPosition counts the current fingerprint for repetition only. It is the
// narrow path used by card effects that leave the turn open.
func (g *GameState) RecordPosition() {
	if g.result != nil {
		return
	}
	fp := g.Fingerprint()
	g.repetitions[fp]++
	if g.repetitions[fp] >= 3 {
		g.result = draw(ThreefoldRepetition)
	}
}

// RepetitionCount returns how often the current position has been recorded.
func (g *GameState) RepetitionCount() int { return g.repetitions[g.Fingerprint()] }

func (g *GameState) evaluate() {
	side := g.current
	if !g.hasLegalMove(side) {
		if g.board.IsInCheck(side) {
			g.result = win(side.Opponent(), Checkmate)
		} else {
			g.result = draw(Stalemate)
		}
		return
	}
	if g.halfMoves >= fiftyMoveLimit {
		g.result = draw(FiftyMoveRule)
		return
	}
	if g.InsufficientMaterial() {
		g.result = draw(InsufficientMaterial)
	}
}

// InsufficientMaterial: K v K, K+minor v K, or only same-square-color bishops.
func (g *GameState) InsufficientMaterial() bool {
	var minors []Piece
	var bishopSquares []int
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			pc := g.board.cells[row][col]
			switch pc.Kind {
			case NoPiece, King:
			case Pawn, Rook, Queen:
				return false
			case Knight:
				minors = append(minors, pc)
			case Bishop:
				minors = append(minors, pc)
				bishopSquares = append(bishopSquares, (row+col)%2)
			}
		}
	}
	if len(minors) <= 1 {
		return true
	}
	if len(bishopSquares) != len(minors) {
		return false
	}
	for _, sq := range bishopSquares[1:] {
		if sq != bishopSquares[0] {
			return false
		}
	}
	return true
}

// Timeout ends the game on time for loser.
func (g *GameState) Timeout(loser Color) {
	if g.result == nil {
		g.result = win(loser.Opponent(), TimeOut)
	}
}

func (g *GameState) Resign(loser Color) {
	if g.result == nil {
		g.result = win(loser.Opponent(), Resignation)
	}
}

// Reevaluate checks terminal conditions for the side to move without recording
// a position; used after a board edit that does not change the turn.
func (g *GameState) Reevaluate() {
	if g.result == nil {
		g.evaluate()
	}
}
