package session

import (
	"context"
	"time"

	"github.com/park285/cardchess/internal/obslog"
	"github.com/park285/cardchess/internal/rules"
	"go.uber.org/zap"
)

const computerMoveTimeout = 30 * time.Second

// maybeComputer starts the computer's turn in the background when it is due.
// At most one computer turn runs per session.
func (s *GameSession) maybeComputer() {
	if s.deps.Oracle == nil || s.opts.Mode != ModeComputer {
		return
	}
	s.mu.Lock()
	due := s.computerDueLocked()
	s.mu.Unlock()
	if !due || !s.computerBusy.CompareAndSwap(false, true) {
		return
	}
	s.goBackground(func() {
		defer s.computerBusy.Store(false)
		s.runComputerTurn()
	})
}

// Nudge retries a computer turn that passed earlier (oracle failure).
func (s *GameSession) Nudge() { s.maybeComputer() }

func (s *GameSession) computerDueLocked() bool {
	return s.started && !s.closed && !s.game.IsOver() && s.promotion == nil && !s.cardInFlight &&
		s.players.IsComputer(s.game.CurrentPlayer())
}

// runComputerTurn asks the oracle for a move and submits it through MakeMove
// like any other player. Failures leave the turn with the computer.
func (s *GameSession) runComputerTurn() {
	s.mu.Lock()
	if !s.computerDueLocked() {
		s.mu.Unlock()
		return
	}
	color := s.game.CurrentPlayer()
	me, _ := s.players.At(color)
	fen := s.game.FEN()
	delay := s.opts.ComputerDelay
	paused := false
	if delay > 0 {
		paused = s.timer.PauseTimer()
	}
	s.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-s.done:
			t.Stop()
			return
		}
		if paused {
			s.mu.Lock()
			if !s.game.IsOver() {
				s.timer.ResumeTimer()
			}
			s.mu.Unlock()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), computerMoveTimeout)
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	log := obslog.L().With(zap.String("session_id", s.id), zap.String("color", color.String()))
	started := time.Now()
	uci, err := s.deps.Oracle.GetNextMove(ctx, fen, s.opts.ComputerDepth)
	if err != nil {
		log.Warn("computer_oracle_failed", zap.Error(err))
		return
	}
	if uci == "" {
		log.Warn("computer_no_move", zap.String("fen", fen))
		return
	}
	from, to, promo, err := rules.ParseUCI(uci)
	if err != nil {
		log.Warn("computer_bad_move", zap.String("uci", uci), zap.Error(err))
		return
	}
	promoName := ""
	if promo != rules.NoPiece {
		promoName = promo.String()
	}
	res, err := s.MakeMove(ctx, me.ID, from.String(), to.String(), promoName)
	switch {
	case err != nil:
		log.Warn("computer_move_failed", zap.String("uci", uci), zap.Error(err))
	case !res.IsValid:
		log.Warn("computer_move_rejected", zap.String("uci", uci), zap.String("code", res.Code))
	default:
		log.Debug("computer_moved", zap.String("uci", uci), zap.Duration("took", time.Since(started)))
	}
}
