package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// FEN serializes the state as the six-field exchange string understood by UCI engines.
func (g *GameState) FEN() string {
	ep := "-"
	if p, ok := g.board.EnPassantTarget(g.current); ok {
		ep = p.String()
	}
	return fmt.Sprintf("%s %s %s %s %d %d",
		g.board.placement(), sideLetter(g.current), g.board.castlingField(), ep, g.halfMoves, g.fullMoves)
}

// Fingerprint is the repetition key: placement, side, castling rights and an
// en-passant target only when a capture onto it is actually available.
func (g *GameState) Fingerprint() string {
	ep := "-"
	if p, ok := g.board.EnPassantTarget(g.current); ok && g.canCaptureEnPassant(p) {
		ep = p.String()
	}
	return g.board.placement() + " " + sideLetter(g.current) + " " + g.board.castlingField() + " " + ep
}

func (g *GameState) canCaptureEnPassant(target Position) bool {
	for _, p := range g.board.Pieces(g.current) {
		if g.board.At(p).Kind != Pawn {
			continue
		}
		for _, m := range g.board.CandidateMoves(p) {
			if m.Kind == EnPassant && m.To == target && m.IsLegal(&g.board) {
				return true
			}
		}
	}
	return false
}

func sideLetter(c Color) string {
	if c == White {
		return "w"
	}
	return "b"
}

func (b *Board) placement() string {
	var sb strings.Builder
	for row := 0; row < 8; row++ {
		empty := 0
		for col := 0; col < 8; col++ {
			pc := b.cells[row][col]
			if pc.IsZero() {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(pc.Letter())
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if row < 7 {
			sb.WriteByte('/')
		}
	}
	return sb.String()
}

func (b *Board) castlingField() string {
	var sb strings.Builder
	if b.CanCastleKingSide(White) {
		sb.WriteByte('K')
	}
	if b.CanCastleQueenSide(White) {
		sb.WriteByte('Q')
	}
	if b.CanCastleKingSide(Black) {
		sb.WriteByte('k')
	}
	if b.CanCastleQueenSide(Black) {
		sb.WriteByte('q')
	}
	if sb.Len() == 0 {
		return "-"
	}
	return sb.String()
}

// ParseFEN decodes a FEN string. HasMoved flags are inferred: pawns off their
// start row have moved, kings and rooks have moved unless a castling right keeps them.
func ParseFEN(fen string) (Board, Color, int, int, error) {
	var b Board
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return b, White, 0, 0, fmt.Errorf("%w: want at least 4 fields, got %d", ErrInvalidFEN, len(fields))
	}
	rows := strings.Split(fields[0], "/")
	if len(rows) != 8 {
		return b, White, 0, 0, fmt.Errorf("%w: want 8 ranks", ErrInvalidFEN)
	}
	for row, r := range rows {
		col := 0
		for i := 0; i < len(r); i++ {
			ch := r[i]
			if ch >= '1' && ch <= '8' {
				col += int(ch - '0')
				continue
			}
			kind, ok := ParsePieceKind(string(ch))
			if !ok || col > 7 {
				return b, White, 0, 0, fmt.Errorf("%w: bad rank %q", ErrInvalidFEN, r)
			}
			color := Black
			if ch >= 'A' && ch <= 'Z' {
				color = White
			}
			pc := Piece{Kind: kind, Color: color, HasMoved: true}
			if kind == Pawn && row == pawnStartRow(color) {
				pc.HasMoved = false
			}
			b.cells[row][col] = pc
			col++
		}
		if col != 8 {
			return b, White, 0, 0, fmt.Errorf("%w: rank %q has %d files", ErrInvalidFEN, r, col)
		}
	}

	side, ok := ParseColor(fields[1])
	if !ok {
		return b, White, 0, 0, fmt.Errorf("%w: side %q", ErrInvalidFEN, fields[1])
	}

	if fields[2] != "-" {
		for _, ch := range fields[2] {
			color, rookCol := White, 7
			switch ch {
			case 'K':
			case 'Q':
				rookCol = 0
			case 'k':
				color = Black
			case 'q':
				color, rookCol = Black, 0
			default:
				return b, White, 0, 0, fmt.Errorf("%w: castling %q", ErrInvalidFEN, fields[2])
			}
			row := backRank(color)
			if k := b.cells[row][4]; k.Kind == King && k.Color == color {
				b.cells[row][4].HasMoved = false
			}
			if r := b.cells[row][rookCol]; r.Kind == Rook && r.Color == color {
				b.cells[row][rookCol].HasMoved = false
			}
		}
	}

	if fields[3] != "-" {
		p, err := ParsePosition(fields[3])
		if err != nil {
			return b, White, 0, 0, fmt.Errorf("%w: en passant %q", ErrInvalidFEN, fields[3])
		}
		b.setSkip(side.Opponent(), p)
	}

	half, full := 0, 1
	if len(fields) >= 5 {
		n, err := strconv.Atoi(fields[4])
		if err != nil || n < 0 {
			return b, White, 0, 0, fmt.Errorf("%w: half-move clock %q", ErrInvalidFEN, fields[4])
		}
		half = n
	}
	if len(fields) >= 6 {
		n, err := strconv.Atoi(fields[5])
		if err != nil || n < 1 {
			return b, White, 0, 0, fmt.Errorf("%w: move number %q", ErrInvalidFEN, fields[5])
		}
		full = n
	}
	return b, side, half, full, nil
}
