package rules

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSquare = errors.New("square outside the board")
	ErrInvalidFEN    = errors.New("invalid FEN")
	ErrGameOver      = errors.New("game is over")
	ErrNotYourPiece  = errors.New("piece does not belong to side to move")
	ErrIllegalMove   = errors.New("illegal move")
)

// Color identifies a side.
type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// ParseColor accepts "white"/"black" and the single letters w/b.
func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, true
	case "black", "b":
		return Black, true
	}
	return White, false
}

type PieceKind uint8

const (
	NoPiece PieceKind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var kindNames = [...]string{"", "pawn", "knight", "bishop", "rook", "queen", "king"}

func (k PieceKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParsePieceKind accepts full names ("queen") or FEN letters ("q", "N").
func ParsePieceKind(s string) (PieceKind, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "p":
		return Pawn, true
	case "n":
		return Knight, true
	case "b":
		return Bishop, true
	case "r":
		return Rook, true
	case "q":
		return Queen, true
	case "k":
		return King, true
	}
	for i := 1; i < len(kindNames); i++ {
		if kindNames[i] == v {
			return PieceKind(i), true
		}
	}
	return NoPiece, false
}

var kindLetters = [...]byte{0, 'p', 'n', 'b', 'r', 'q', 'k'}

// Piece is a board cell value. The zero value is an empty square.
type Piece struct {
	Kind     PieceKind
	Color    Color
	HasMoved bool
}

func (p Piece) IsZero() bool { return p.Kind == NoPiece }

// Letter returns the FEN letter, upper-case for White; '.' for an empty cell.
func (p Piece) Letter() byte {
	if p.Kind == NoPiece || int(p.Kind) >= len(kindLetters) {
		return '.'
	}
	l := kindLetters[p.Kind]
	if p.Color == White {
		l -= 'a' - 'A'
	}
	return l
}

// Position is a board coordinate. Row 0 is rank 8, column 0 is file a.
type Position struct {
	Row int
	Col int
}

func (p Position) Valid() bool {
	return p.Row >= 0 && p.Row < 8 && p.Col >= 0 && p.Col < 8
}

func (p Position) String() string {
	if !p.Valid() {
		return "-"
	}
	return string([]byte{byte('a' + p.Col), byte('8' - p.Row)})
}

func (p Position) offset(dr, dc int) Position { return Position{Row: p.Row + dr, Col: p.Col + dc} }

// ParsePosition parses an algebraic square such as "e2".
func ParsePosition(s string) (Position, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return Position{}, fmt.Errorf("%w: %q", ErrInvalidSquare, s)
	}
	p := Position{Row: int('8') - int(s[1]), Col: int(s[0]) - int('a')}
	if !p.Valid() {
		return Position{}, fmt.Errorf("%w: %q", ErrInvalidSquare, s)
	}
	return p, nil
}

// MustPosition panics on a malformed square; intended for literals.
func MustPosition(s string) Position {
	p, err := ParsePosition(s)
	if err != nil {
		panic(err)
	}
	return p
}

// backRank is the row a color's pieces start on.
func backRank(c Color) int {
	if c == White {
		return 7
	}
	return 0
}

// PromotionRow is the row where a pawn of c promotes.
func PromotionRow(c Color) int { return backRank(c.Opponent()) }

func pawnStartRow(c Color) int {
	if c == White {
		return 6
	}
	return 1
}

func pawnDir(c Color) int {
	if c == White {
		return -1
	}
	return 1
}
