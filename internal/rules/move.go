package rules

import "strings"

type MoveKind uint8

const (
	Normal MoveKind = iota
	DoublePawn
	EnPassant
	CastleKingSide
	CastleQueenSide
	Promotion
	// Teleport and PositionSwap are produced by cards only. They never come out of
	// move generation and never reset the half-move clock.
	Teleport
	PositionSwap
)

func (k MoveKind) String() string {
	switch k {
	case Normal:
		return "normal"
	case DoublePawn:
		return "double_pawn"
	case EnPassant:
		return "en_passant"
	case CastleKingSide:
		return "castle_ks"
	case CastleQueenSide:
		return "castle_qs"
	case Promotion:
		return "promotion"
	case Teleport:
		return "teleport"
	case PositionSwap:
		return "position_swap"
	}
	return "unknown"
}

type Move struct {
	Kind      MoveKind
	From      Position
	To        Position
	Promotion PieceKind
}

func (m Move) IsCardMove() bool { return m.Kind == Teleport || m.Kind == PositionSwap }

// UCI renders the move in engine notation, e.g. "e7e8q".
func (m Move) UCI() string {
	s := m.From.String() + m.To.String()
	if m.Kind == Promotion && m.Promotion != NoPiece {
		s += string(kindLetters[m.Promotion])
	}
	return s
}

func (m Move) String() string { return m.UCI() }

// CaptureSquare is where a captured piece would stand (differs from To for en passant).
func (m Move) CaptureSquare() Position {
	if m.Kind == EnPassant {
		return Position{Row: m.From.Row, Col: m.To.Col}
	}
	return m.To
}

// Execute applies m to b and reports whether it was a capture or pawn move.
func (m Move) Execute(b *Board) bool {
	pc := b.At(m.From)
	b.ClearEnPassant()

	switch m.Kind {
	case Teleport:
		pc.HasMoved = true
		b.Clear(m.From)
		b.Set(m.To, pc)
		return false
	case PositionSwap:
		other := b.At(m.To)
		pc.HasMoved = true
		other.HasMoved = true
		b.Set(m.To, pc)
		b.Set(m.From, other)
		return false
	case CastleKingSide, CastleQueenSide:
		row := m.From.Row
		rookFrom, rookTo := Position{row, 7}, Position{row, 5}
		if m.Kind == CastleQueenSide {
			rookFrom, rookTo = Position{row, 0}, Position{row, 3}
		}
		rook := b.At(rookFrom)
		rook.HasMoved = true
		pc.HasMoved = true
		b.Clear(m.From)
		b.Clear(rookFrom)
		b.Set(m.To, pc)
		b.Set(rookTo, rook)
		return false
	}

	captured := !b.At(m.CaptureSquare()).IsZero()
	if m.Kind == EnPassant {
		b.Clear(m.CaptureSquare())
	}
	pawnMove := pc.Kind == Pawn
	pc.HasMoved = true
	if m.Kind == Promotion {
		pc.Kind = m.Promotion
	}
	b.Clear(m.From)
	b.Set(m.To, pc)
	if m.Kind == DoublePawn {
		b.setSkip(pc.Color, Position{Row: (m.From.Row + m.To.Row) / 2, Col: m.From.Col})
	}
	return captured || pawnMove
}

// IsLegal executes m on a copy of b and checks the mover's king is safe. Castling
// additionally requires the king not to start in or pass through check.
func (m Move) IsLegal(b *Board) bool {
	pc := b.At(m.From)
	if pc.IsZero() {
		return false
	}
	if m.Kind == CastleKingSide || m.Kind == CastleQueenSide {
		if b.IsInCheck(pc.Color) {
			return false
		}
		step := 1
		if m.Kind == CastleQueenSide {
			step = -1
		}
		if b.IsAttacked(m.From.offset(0, step), pc.Color.Opponent()) {
			return false
		}
	}
	cp := b.Copy()
	m.Execute(&cp)
	return !cp.IsInCheck(pc.Color)
}

// ParseUCI decodes a 4 or 5 character engine move into squares and an optional promotion.
func ParseUCI(s string) (from, to Position, promo PieceKind, err error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return Position{}, Position{}, NoPiece, ErrIllegalMove
	}
	if from, err = ParsePosition(s[:2]); err != nil {
		return
	}
	if to, err = ParsePosition(s[2:4]); err != nil {
		return
	}
	if len(s) == 5 {
		k, ok := ParsePieceKind(s[4:])
		if !ok || k == Pawn || k == King {
			return Position{}, Position{}, NoPiece, ErrIllegalMove
		}
		promo = k
	}
	return from, to, promo, nil
}
