package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/park285/cardchess/internal/engine/uci"
	"github.com/park285/cardchess/internal/obslog"
	"go.uber.org/zap"
)

// Oracle returns a move for a FEN, or "" when the side to move has none.
type Oracle interface {
	GetNextMove(ctx context.Context, fen string, depth int) (string, error)
}

// UCIOracle asks a pooled external engine (Stockfish) for moves.
type UCIOracle struct {
	pool    *uci.Pool
	threads int

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewUCIOracle starts a pool for binaryPath. Processes are spawned lazily.
func NewUCIOracle(binaryPath string, threads int) (*UCIOracle, error) {
	pool, err := uci.NewPool(uci.PoolConfig{BinaryPath: binaryPath})
	if err != nil {
		return nil, err
	}
	return &UCIOracle{pool: pool, threads: threads, rand: rand.New(rand.NewSource(time.Now().UnixNano()))}, nil
}

func (o *UCIOracle) GetNextMove(ctx context.Context, fen string, depth int) (string, error) {
	return o.Move(ctx, fen, PresetForDepth(depth))
}

// Move searches fen with preset p and picks among the returned lines.
func (o *UCIOracle) Move(ctx context.Context, fen string, p Preset) (string, error) {
	s, err := o.pool.Acquire(ctx, p.options(o.threads))
	if err != nil {
		return "", fmt.Errorf("acquire engine: %w", err)
	}
	var releaseErr error
	defer func() { o.pool.Release(s, releaseErr) }()

	// card effects make consecutive positions unrelated, so every search starts fresh
	if err := s.NewGame(ctx); err != nil {
		releaseErr = err
		return "", err
	}
	started := time.Now()
	resp, err := s.Search(ctx, uci.SearchRequest{FEN: fen, Limits: p.limits()})
	if err != nil {
		releaseErr = err
		return "", err
	}
	if resp.BestMove == "" {
		return "", nil
	}
	choice, err := selectCandidate(p.Weights, resp.Candidates, o.random())
	if errors.Is(err, errNoCandidates) {
		return resp.BestMove, nil
	}
	obslog.L().Debug("engine_move",
		zap.String("preset", p.Name),
		zap.String("best", resp.BestMove),
		zap.String("chosen", choice.Move),
		zap.Int("eval_cp", choice.EvalCP),
		zap.Duration("took", time.Since(started)),
	)
	return choice.Move, nil
}

func (o *UCIOracle) random() *rand.Rand {
	o.randMu.Lock()
	seed := o.rand.Int63()
	o.randMu.Unlock()
	return rand.New(rand.NewSource(seed))
}

func (o *UCIOracle) Close() error { return o.pool.Close() }

// Chain tries each oracle in order and returns the first answer without error.
type Chain []Oracle

func (c Chain) GetNextMove(ctx context.Context, fen string, depth int) (string, error) {
	var errs []error
	for _, o := range c {
		mv, err := o.GetNextMove(ctx, fen, depth)
		if err == nil {
			return mv, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
		if errors.Is(err, ErrOutOfBook) {
			continue
		}
		obslog.L().Warn("oracle_fallback", zap.Error(err))
	}
	if len(errs) == 0 {
		return "", errors.New("no oracle configured")
	}
	return "", errors.Join(errs...)
}
