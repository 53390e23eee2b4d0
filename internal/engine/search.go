package engine

import (
	"context"
	"fmt"
	"math"
	"sort"

	nchess "github.com/corentings/chess/v2"
)

// DefaultSearchDepth is the Searcher's ply cap; it is a fallback, not a player.
const DefaultSearchDepth = 3

var pieceValue = map[nchess.PieceType]int{
	nchess.Pawn:   100,
	nchess.Knight: 320,
	nchess.Bishop: 330,
	nchess.Rook:   500,
	nchess.Queen:  900,
}

const mateValue = 1_000_000

// Searcher is an in-process material negamax used when no external engine is
// configured or the engine fails.
type Searcher struct {
	MaxDepth int
}

func NewSearcher(maxDepth int) *Searcher {
	if maxDepth <= 0 {
		maxDepth = DefaultSearchDepth
	}
	return &Searcher{MaxDepth: maxDepth}
}

func (s *Searcher) GetNextMove(ctx context.Context, fen string, depth int) (string, error) {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return "", fmt.Errorf("searcher: %w", err)
	}
	game := nchess.NewGame(opt)
	if game.Outcome() != nchess.NoOutcome {
		return "", nil
	}
	depth = min(max(depth, 1), s.MaxDepth)

	moves := orderMoves(game.ValidMoves())
	if len(moves) == 0 {
		return "", nil
	}
	best := moves[0].String()
	alpha := -math.MaxInt32
	for i := range moves {
		if err := ctx.Err(); err != nil {
			return best, nil
		}
		child := game.Clone()
		if err := child.Move(&moves[i], nil); err != nil {
			continue
		}
		score := -negamax(ctx, child, depth-1, -math.MaxInt32, -alpha, 1)
		if score > alpha {
			alpha = score
			best = moves[i].String()
		}
	}
	return best, nil
}

func negamax(ctx context.Context, g *nchess.Game, depth, alpha, beta, ply int) int {
	if g.Outcome() != nchess.NoOutcome {
		if g.Method() == nchess.Checkmate {
			// side to move is mated; prefer faster mates
			return -mateValue + ply
		}
		return 0
	}
	if depth <= 0 || ctx.Err() != nil {
		return evaluate(g)
	}
	moves := orderMoves(g.ValidMoves())
	for i := range moves {
		child := g.Clone()
		if err := child.Move(&moves[i], nil); err != nil {
			continue
		}
		score := -negamax(ctx, child, depth-1, -beta, -alpha, ply+1)
		if score >= beta {
			return beta
		}
		if score > alpha {
			alpha = score
		}
	}
	return alpha
}

// evaluate scores material from the side to move's point of view.
func evaluate(g *nchess.Game) int {
	pos := g.Position()
	score := 0
	for _, pc := range pos.Board().SquareMap() {
		v := pieceValue[pc.Type()]
		if pc.Color() == pos.Turn() {
			score += v
		} else {
			score -= v
		}
	}
	return score
}

// orderMoves puts captures and promotions first to tighten alpha-beta cutoffs.
// The UCI string breaks ties so results are deterministic.
func orderMoves(moves []nchess.Move) []nchess.Move {
	sort.SliceStable(moves, func(i, j int) bool {
		ci, cj := moveRank(moves[i]), moveRank(moves[j])
		if ci != cj {
			return ci > cj
		}
		return moves[i].String() < moves[j].String()
	})
	return moves
}

func moveRank(m nchess.Move) int {
	r := 0
	if m.HasTag(nchess.Capture) {
		r += 2
	}
	// UCI promotions carry the piece letter as a fifth character
	if len(m.String()) == 5 {
		r++
	}
	return r
}
