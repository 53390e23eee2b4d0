package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/park285/cardchess/internal/domain"
	"github.com/park285/cardchess/internal/history"
	"github.com/park285/cardchess/internal/obslog"
	"github.com/park285/cardchess/internal/rules"
	"go.uber.org/zap"
)

const (
	CodeMoveOK             = "move.ok"
	CodeMoveGameOver       = "move.game_over"
	CodeMoveNotYourTurn    = "move.not_your_turn"
	CodeMoveCardInProgress = "move.card_in_progress"
	CodeMovePromotion      = "move.promotion_pending"
	CodeMoveNoPiece        = "move.no_piece"
	CodeMoveNotYourPiece   = "move.not_your_piece"
	CodeMoveIllegal        = "move.illegal"
	CodeMoveExtraTurnCheck = "move.extra_turn_check"

	CodePromotionOK      = "promotion.ok"
	CodePromotionNone    = "promotion.none_pending"
	CodePromotionInvalid = "promotion.invalid_piece"

	CodeResigned = "session.resigned"
)

// MakeMove validates and plays a chess move for playerID. Malformed squares are
// errors; every rule violation is a rejected MoveResult with a code.
func (s *GameSession) MakeMove(ctx context.Context, playerID, from, to, promotion string) (MoveResult, error) {
	fromPos, err := rules.ParsePosition(from)
	if err != nil {
		return MoveResult{}, fmt.Errorf("%w: from: %w", ErrMalformedRequest, err)
	}
	toPos, err := rules.ParsePosition(to)
	if err != nil {
		return MoveResult{}, fmt.Errorf("%w: to: %w", ErrMalformedRequest, err)
	}
	promo := rules.NoPiece
	if strings.TrimSpace(promotion) != "" {
		k, ok := rules.ParsePieceKind(promotion)
		if !ok || k == rules.Pawn || k == rules.King {
			return MoveResult{}, fmt.Errorf("%w: promotion %q", ErrMalformedRequest, promotion)
		}
		promo = k
	}
	if err := ctx.Err(); err != nil {
		return MoveResult{}, err
	}

	s.mu.Lock()
	res, out, rec := s.makeMoveLocked(playerID, fromPos, toPos, promo)
	s.mu.Unlock()

	s.flush(out)
	s.archive(rec)
	s.maybeComputer()
	return res, nil
}

func (s *GameSession) makeMoveLocked(playerID string, from, to rules.Position, promo rules.PieceKind) (MoveResult, outbox, *domain.GameRecord) {
	color, code := s.actorLocked(playerID, "move")
	switch {
	case code != "":
	case s.cardInFlight:
		code = CodeMoveCardInProgress
	case s.promotion != nil:
		code = CodeMovePromotion
	case color != s.game.CurrentPlayer():
		code = CodeMoveNotYourTurn
	}
	if code != "" {
		return s.moveRejectLocked(playerID, code, nil), nil, nil
	}

	pc := s.game.Board().At(from)
	if pc.IsZero() {
		return s.moveRejectLocked(playerID, CodeMoveNoPiece, map[string]any{"Square": from.String()}), nil, nil
	}
	if pc.Color != color {
		return s.moveRejectLocked(playerID, CodeMoveNotYourPiece, map[string]any{"Square": from.String()}), nil, nil
	}
	m, ok := s.game.FindMove(from, to, promo)
	if !ok {
		return s.moveRejectLocked(playerID, CodeMoveIllegal, map[string]any{"From": from.String(), "To": to.String()}), nil, nil
	}
	keepTurn := s.extraTurn
	if keepTurn && s.game.GivesCheck(m) {
		return s.moveRejectLocked(playerID, CodeMoveExtraTurnCheck, nil), nil, nil
	}

	think := s.timer.StopAndCalculateElapsedTime()
	if s.flaggedLocked() {
		out := outbox{s.turnEventLocked("", "", nil)}
		rec := s.finishLocked()
		return s.moveRejectLocked(playerID, CodeMoveGameOver, nil), out, rec
	}

	fenBefore := s.game.FEN()
	outcome, err := s.game.MakeMove(m, keepTurn)
	if err != nil {
		// FindMove vetted it; only reachable if the state moved under us.
		obslog.L().Error("move_apply_failed", zap.String("session_id", s.id), zap.Error(err))
		s.timer.StartPlayerTimer(color)
		return s.moveRejectLocked(playerID, CodeMoveIllegal, map[string]any{"From": from.String(), "To": to.String()}), nil, nil
	}
	s.extraTurn = false

	captured := ""
	if !outcome.Captured.IsZero() {
		s.cards.RecordCapture(outcome.Captured)
		captured = outcome.Captured.Kind.String()
	}
	_, drew := s.cards.RecordMove(color)

	san := sanFor(fenBefore, m.UCI())
	clk := s.timer.Snapshot()
	s.history.RecordMove(history.Entry{
		Player:         color.String(),
		PlayerID:       playerID,
		ThinkTime:      think,
		UCI:            m.UCI(),
		SAN:            san,
		Captured:       captured,
		WhiteRemaining: clk.White,
		BlackRemaining: clk.Black,
	})

	var rec *domain.GameRecord
	if s.game.IsOver() {
		rec = s.finishLocked()
	} else {
		s.timer.StartPlayerTimer(s.game.CurrentPlayer())
	}

	out := outbox{s.turnEventLocked(m.From.String(), m.To.String(), affectedSquares(m, outcome))}
	if drew {
		out = append(out, s.handEventLocked(color))
	}

	obslog.L().Debug("move_applied",
		zap.String("session_id", s.id),
		zap.String("player", color.String()),
		zap.String("uci", m.UCI()),
		zap.Duration("think", think),
		zap.Bool("extra_turn", keepTurn),
	)

	res := MoveResult{
		IsValid:  true,
		Code:     CodeMoveOK,
		Message:  s.text(CodeMoveOK, map[string]any{"Move": san}),
		Snapshot: s.snapshotLocked(playerID),
	}
	return res, out, rec
}

// Promote resolves a promotion left pending by a card relocation and ends the turn.
func (s *GameSession) Promote(ctx context.Context, playerID, piece string) (MoveResult, error) {
	kind, ok := rules.ParsePieceKind(piece)
	if !ok {
		return MoveResult{}, fmt.Errorf("%w: piece %q", ErrMalformedRequest, piece)
	}
	if err := ctx.Err(); err != nil {
		return MoveResult{}, err
	}

	s.mu.Lock()
	color, code := s.actorLocked(playerID, "move")
	if code == "" && (s.promotion == nil || color != s.game.CurrentPlayer()) {
		code = CodePromotionNone
	}
	if code == "" && (kind == rules.Pawn || kind == rules.King) {
		res := s.moveRejectLocked(playerID, CodePromotionInvalid, map[string]any{"Piece": kind.String()})
		s.mu.Unlock()
		return res, nil
	}
	if code != "" {
		res := s.moveRejectLocked(playerID, code, nil)
		s.mu.Unlock()
		return res, nil
	}

	think := s.timer.StopAndCalculateElapsedTime()
	if s.flaggedLocked() {
		out := outbox{s.turnEventLocked("", "", nil)}
		rec := s.finishLocked()
		res := s.moveRejectLocked(playerID, CodeMoveGameOver, nil)
		s.mu.Unlock()
		s.flush(out)
		s.archive(rec)
		return res, nil
	}

	at := *s.promotion
	s.promotion = nil
	s.extraTurn = false
	s.game.Board().Set(at, rules.Piece{Kind: kind, Color: color, HasMoved: true})
	s.game.PassTurn()
	clk := s.timer.Snapshot()
	s.history.RecordCard(history.Entry{
		Player:         color.String(),
		PlayerID:       playerID,
		ThinkTime:      think,
		CardID:         "promotion",
		CardName:       "Promotion",
		CardSuccess:    true,
		CardDetail:     fmt.Sprintf("%s=%c", at, kindLetter(kind)),
		WhiteRemaining: clk.White,
		BlackRemaining: clk.Black,
	})
	var rec *domain.GameRecord
	if s.game.IsOver() {
		rec = s.finishLocked()
	} else {
		s.timer.StartPlayerTimer(s.game.CurrentPlayer())
	}
	out := outbox{s.turnEventLocked("", at.String(), []rules.Position{at})}
	res := MoveResult{
		IsValid:  true,
		Code:     CodePromotionOK,
		Message:  s.text(CodePromotionOK, map[string]any{"Piece": kind.String()}),
		Snapshot: s.snapshotLocked(playerID),
	}
	s.mu.Unlock()

	s.flush(out)
	s.archive(rec)
	s.maybeComputer()
	return res, nil
}

func (s *GameSession) moveRejectLocked(viewerID, code string, data map[string]any) MoveResult {
	return MoveResult{
		Code:     code,
		Message:  s.text(code, data),
		Snapshot: s.snapshotLocked(viewerID),
	}
}

// affectedSquares lists every square a move touched, rook included for castling.
func affectedSquares(m rules.Move, out rules.MoveOutcome) []rules.Position {
	sq := []rules.Position{m.From, m.To}
	if !out.Captured.IsZero() && out.CapturedAt != m.To {
		sq = append(sq, out.CapturedAt)
	}
	row := m.From.Row
	switch m.Kind {
	case rules.CastleKingSide:
		sq = append(sq, rules.Position{Row: row, Col: 7}, rules.Position{Row: row, Col: 5})
	case rules.CastleQueenSide:
		sq = append(sq, rules.Position{Row: row, Col: 0}, rules.Position{Row: row, Col: 3})
	}
	return sq
}

func kindLetter(k rules.PieceKind) byte {
	return rules.Piece{Kind: k, Color: rules.White}.Letter()
}
