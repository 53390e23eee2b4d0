package rules

var (
	knightOffsets = [8][2]int{{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2}, {1, -2}, {1, 2}, {2, -1}, {2, 1}}
	kingOffsets   = [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	rookDirs      = [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	bishopDirs    = [][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	queenDirs     = append(append([][2]int{}, rookDirs...), bishopDirs...)

	promotionKinds = [4]PieceKind{Queen, Rook, Bishop, Knight}
)

// CandidateMoves returns the geometrically possible moves of the piece at from.
// Self-check is not filtered here; see Move.IsLegal.
func (b *Board) CandidateMoves(from Position) []Move {
	pc := b.At(from)
	if pc.IsZero() {
		return nil
	}
	return movesFor(pc.Kind, from, b)
}

func movesFor(kind PieceKind, from Position, b *Board) []Move {
	switch kind {
	case Pawn:
		return pawnMoves(from, b)
	case Knight:
		return stepMoves(from, b, knightOffsets[:])
	case Bishop:
		return slideMoves(from, b, bishopDirs)
	case Rook:
		return slideMoves(from, b, rookDirs)
	case Queen:
		return slideMoves(from, b, queenDirs)
	case King:
		return append(stepMoves(from, b, kingOffsets[:]), castleMoves(from, b)...)
	}
	return nil
}

func stepMoves(from Position, b *Board, offsets [][2]int) []Move {
	me := b.At(from).Color
	out := make([]Move, 0, len(offsets))
	for _, o := range offsets {
		to := from.offset(o[0], o[1])
		if !to.Valid() {
			continue
		}
		if t := b.At(to); !t.IsZero() && t.Color == me {
			continue
		}
		out = append(out, Move{Kind: Normal, From: from, To: to})
	}
	return out
}

func slideMoves(from Position, b *Board, dirs [][2]int) []Move {
	me := b.At(from).Color
	out := make([]Move, 0, 14)
	for _, d := range dirs {
		to := from.offset(d[0], d[1])
		for to.Valid() {
			t := b.At(to)
			if !t.IsZero() {
				if t.Color != me {
					out = append(out, Move{Kind: Normal, From: from, To: to})
				}
				break
			}
			out = append(out, Move{Kind: Normal, From: from, To: to})
			to = to.offset(d[0], d[1])
		}
	}
	return out
}

func pawnMoves(from Position, b *Board) []Move {
	pc := b.At(from)
	dir := pawnDir(pc.Color)
	lastRow := PromotionRow(pc.Color)
	var out []Move

	addAdvance := func(to Position, kind MoveKind) {
		if to.Row == lastRow {
			for _, k := range promotionKinds {
				out = append(out, Move{Kind: Promotion, From: from, To: to, Promotion: k})
			}
			return
		}
		out = append(out, Move{Kind: kind, From: from, To: to})
	}

	one := from.offset(dir, 0)
	if one.Valid() && b.IsEmpty(one) {
		addAdvance(one, Normal)
		two := one.offset(dir, 0)
		if !pc.HasMoved && from.Row == pawnStartRow(pc.Color) && two.Valid() && b.IsEmpty(two) {
			out = append(out, Move{Kind: DoublePawn, From: from, To: two})
		}
	}

	ep, hasEP := b.EnPassantTarget(pc.Color)
	for _, dc := range [2]int{-1, 1} {
		to := from.offset(dir, dc)
		if !to.Valid() {
			continue
		}
		t := b.At(to)
		switch {
		case !t.IsZero() && t.Color != pc.Color:
			addAdvance(to, Normal)
		case t.IsZero() && hasEP && ep == to:
			victim := b.At(Position{Row: from.Row, Col: to.Col})
			if victim.Kind == Pawn && victim.Color != pc.Color {
				out = append(out, Move{Kind: EnPassant, From: from, To: to})
			}
		}
	}
	return out
}

// castleMoves offers castling when rights hold, the path is empty and the king is not in check.
// Passing through attacked squares is rejected by IsLegal.
func castleMoves(from Position, b *Board) []Move {
	king := b.At(from)
	row := backRank(king.Color)
	if king.HasMoved || from.Row != row || from.Col != 4 {
		return nil
	}
	if b.IsInCheck(king.Color) {
		return nil
	}
	var out []Move
	if b.CanCastleKingSide(king.Color) && b.IsEmpty(Position{row, 5}) && b.IsEmpty(Position{row, 6}) {
		out = append(out, Move{Kind: CastleKingSide, From: from, To: Position{row, 6}})
	}
	if b.CanCastleQueenSide(king.Color) && b.IsEmpty(Position{row, 1}) && b.IsEmpty(Position{row, 2}) && b.IsEmpty(Position{row, 3}) {
		out = append(out, Move{Kind: CastleQueenSide, From: from, To: Position{row, 2}})
	}
	return out
}

// canCapture is the cheap attack test: could pc standing on from capture on target.
func canCapture(pc Piece, from, target Position, b *Board) bool {
	dr := target.Row - from.Row
	dc := target.Col - from.Col
	if dr == 0 && dc == 0 {
		return false
	}
	switch pc.Kind {
	case Pawn:
		return dr == pawnDir(pc.Color) && (dc == 1 || dc == -1)
	case Knight:
		adr, adc := abs(dr), abs(dc)
		return (adr == 1 && adc == 2) || (adr == 2 && adc == 1)
	case King:
		return abs(dr) <= 1 && abs(dc) <= 1
	case Rook:
		return (dr == 0 || dc == 0) && pathClear(from, target, b)
	case Bishop:
		return abs(dr) == abs(dc) && pathClear(from, target, b)
	case Queen:
		return (dr == 0 || dc == 0 || abs(dr) == abs(dc)) && pathClear(from, target, b)
	}
	return false
}

// pathClear checks the squares strictly between from and target on a line.
func pathClear(from, target Position, b *Board) bool {
	sr, sc := sign(target.Row-from.Row), sign(target.Col-from.Col)
	p := from.offset(sr, sc)
	for p != target {
		if !b.IsEmpty(p) {
			return false
		}
		p = p.offset(sr, sc)
	}
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// HomeSquares lists the starting squares of kind for color c.
func HomeSquares(kind PieceKind, c Color) []Position {
	if kind == Pawn {
		out := make([]Position, 8)
		for col := range out {
			out[col] = Position{Row: pawnStartRow(c), Col: col}
		}
		return out
	}
	var out []Position
	row := backRank(c)
	for col, k := range backRankOrder {
		if k == kind {
			out = append(out, Position{Row: row, Col: col})
		}
	}
	return out
}
