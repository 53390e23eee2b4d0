package rules

import "strings"

// Board is an 8x8 grid of value cells. Copying a Board copies every cell.
type Board struct {
	cells [8][8]Piece
	// skip holds the square a color's pawn passed over on its last double step.
	skip    [2]Position
	hasSkip [2]bool
}

var backRankOrder = [8]PieceKind{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// NewBoard returns the standard starting setup.
func NewBoard() Board {
	var b Board
	for col := 0; col < 8; col++ {
		b.cells[0][col] = Piece{Kind: backRankOrder[col], Color: Black}
		b.cells[1][col] = Piece{Kind: Pawn, Color: Black}
		b.cells[6][col] = Piece{Kind: Pawn, Color: White}
		b.cells[7][col] = Piece{Kind: backRankOrder[col], Color: White}
	}
	return b
}

func (b *Board) Copy() Board { return *b }

// At returns the cell at p; positions off the board read as empty.
func (b *Board) At(p Position) Piece {
	if !p.Valid() {
		return Piece{}
	}
	return b.cells[p.Row][p.Col]
}

func (b *Board) Set(p Position, pc Piece) {
	if p.Valid() {
		b.cells[p.Row][p.Col] = pc
	}
}

func (b *Board) Clear(p Position) { b.Set(p, Piece{}) }

func (b *Board) IsEmpty(p Position) bool { return b.At(p).IsZero() }

// EnPassantTarget returns the square mover may capture en passant onto, if any.
func (b *Board) EnPassantTarget(mover Color) (Position, bool) {
	opp := mover.Opponent()
	return b.skip[opp], b.hasSkip[opp]
}

func (b *Board) setSkip(c Color, p Position) {
	b.skip[c] = p
	b.hasSkip[c] = true
}

// ClearEnPassant drops any pending en-passant opportunity.
func (b *Board) ClearEnPassant() {
	b.hasSkip = [2]bool{}
	b.skip = [2]Position{}
}

func (b *Board) KingPosition(c Color) (Position, bool) {
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			pc := b.cells[row][col]
			if pc.Kind == King && pc.Color == c {
				return Position{Row: row, Col: col}, true
			}
		}
	}
	return Position{}, false
}

// Pieces lists the squares occupied by c in row-major order.
func (b *Board) Pieces(c Color) []Position {
	out := make([]Position, 0, 16)
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			pc := b.cells[row][col]
			if !pc.IsZero() && pc.Color == c {
				out = append(out, Position{Row: row, Col: col})
			}
		}
	}
	return out
}

// IsAttacked reports whether any piece of color by could capture on target.
func (b *Board) IsAttacked(target Position, by Color) bool {
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			pc := b.cells[row][col]
			if pc.IsZero() || pc.Color != by {
				continue
			}
			if canCapture(pc, Position{Row: row, Col: col}, target, b) {
				return true
			}
		}
	}
	return false
}

// IsInCheck reports whether c's king is attacked. A side without a king is never in check.
func (b *Board) IsInCheck(c Color) bool {
	king, ok := b.KingPosition(c)
	if !ok {
		return false
	}
	return b.IsAttacked(king, c.Opponent())
}

// CanCastleKingSide reports the right only (unmoved king and h-rook), not legality.
func (b *Board) CanCastleKingSide(c Color) bool { return b.castleRight(c, 7) }

func (b *Board) CanCastleQueenSide(c Color) bool { return b.castleRight(c, 0) }

func (b *Board) castleRight(c Color, rookCol int) bool {
	row := backRank(c)
	king := b.cells[row][4]
	rook := b.cells[row][rookCol]
	return king.Kind == King && king.Color == c && !king.HasMoved &&
		rook.Kind == Rook && rook.Color == c && !rook.HasMoved
}

// PromotablePawn returns a pawn of c sitting on its promotion row, if any.
func (b *Board) PromotablePawn(c Color) (Position, bool) {
	row := PromotionRow(c)
	for col := 0; col < 8; col++ {
		pc := b.cells[row][col]
		if pc.Kind == Pawn && pc.Color == c {
			return Position{Row: row, Col: col}, true
		}
	}
	return Position{}, false
}

// Ranks renders the board as eight strings from rank 8 down, '.' for empty.
func (b *Board) Ranks() []string {
	out := make([]string, 8)
	for row := 0; row < 8; row++ {
		var sb strings.Builder
		for col := 0; col < 8; col++ {
			sb.WriteByte(b.cells[row][col].Letter())
		}
		out[row] = sb.String()
	}
	return out
}

// Material counts pieces of kind k for color c.
func (b *Board) Material(c Color, k PieceKind) int {
	n := 0
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			pc := b.cells[row][col]
			if pc.Kind == k && pc.Color == c {
				n++
			}
		}
	}
	return n
}
