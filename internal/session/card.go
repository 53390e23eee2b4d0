package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cardchess/internal/cards"
	"github.com/park285/cardchess/internal/domain"
	"github.com/park285/cardchess/internal/history"
	"github.com/park285/cardchess/internal/obslog"
	"github.com/park285/cardchess/internal/rules"
	"go.uber.org/zap"
)

const (
	CodeCardPromotionPending = "card.promotion_pending"
	CodeCardNotYourTurn      = "card.not_your_turn"
	CodeCardNotInHand        = "card.not_in_hand"
	CodeCardUnknown          = "card.unknown"
	CodeCardAlreadyUsed      = "card.already_used"
)

// ActivateCard plays a card from playerID's hand. Only one activation is in
// flight per session; concurrent callers block on the gate until it is free or
// ctx is done. The clock is paused while the effect resolves and the animation
// delay runs.
func (s *GameSession) ActivateCard(ctx context.Context, playerID string, req CardRequest) (CardResult, error) {
	if strings.TrimSpace(req.InstanceID) == "" {
		return CardResult{}, fmt.Errorf("%w: missing card instance", ErrMalformedRequest)
	}
	for name, sq := range map[string]string{"from": req.Params.From, "to": req.Params.To} {
		if strings.TrimSpace(sq) == "" {
			continue
		}
		if _, err := rules.ParsePosition(sq); err != nil {
			return CardResult{}, fmt.Errorf("%w: %s: %w", ErrMalformedRequest, name, err)
		}
	}
	if err := s.cards.AcquireGate(ctx); err != nil {
		return CardResult{}, err
	}
	defer s.cards.ReleaseGate()

	s.mu.Lock()
	color, code := s.actorLocked(playerID, "card")
	if code == "" && s.promotion != nil {
		code = CodeCardPromotionPending
	}
	var (
		card cards.Card
		def  cards.Definition
	)
	if code == "" {
		var err error
		card, def, err = s.cards.Validate(color, s.game.CurrentPlayer(), req.InstanceID)
		code = validationCode(err)
	}
	if code != "" {
		res := CardResult{Code: code, Message: s.text(code, nil), Snapshot: s.snapshotLocked(playerID)}
		s.mu.Unlock()
		return res, nil
	}

	paused := s.timer.PauseTimer()
	s.cardInFlight = true
	eff, err := s.cards.Apply(&cards.EffectContext{
		Player:     color,
		Card:       card,
		Definition: def,
		Game:       s.game,
		Clock:      s.timer,
		Params:     req.Params,
	})
	if err != nil {
		s.cardInFlight = false
		if paused {
			s.timer.ResumeTimer()
		}
		s.mu.Unlock()
		return CardResult{}, err
	}

	data := map[string]any{"Card": card.Name}
	for k, v := range eff.Data {
		data[k] = v
	}
	msg := s.text(eff.Code, data)
	if !eff.Success && !eff.ConsumesCardOnFailure {
		// inert failure: nothing changed, the card stays in hand
		s.cardInFlight = false
		if paused {
			s.timer.ResumeTimer()
		}
		res := CardResult{Code: eff.Code, Message: msg, Card: card, Snapshot: s.snapshotLocked(playerID)}
		s.mu.Unlock()
		return res, nil
	}

	clk := s.timer.Snapshot()
	entry := s.history.RecordCard(history.Entry{
		Player:         color.String(),
		PlayerID:       playerID,
		CardID:         string(card.ID),
		CardName:       card.Name,
		CardSuccess:    eff.Success,
		CardDetail:     msg,
		WhiteRemaining: clk.White,
		BlackRemaining: clk.Black,
	})
	id := s.id
	out := outbox{
		func(n Notifier) { n.NotifyCardPlayed(id, playerID, card) },
		func(n Notifier) { n.NotifyCardActivationAnimation(id, card, playerID, color) },
		s.handEventLocked(color),
	}
	if len(eff.Exchanged) > 0 {
		out = append(out, s.handEventLocked(color.Opponent()))
	}
	obslog.L().Info("card_activated",
		zap.String("session_id", s.id),
		zap.String("player", color.String()),
		zap.String("card", string(card.ID)),
		zap.Bool("success", eff.Success),
		zap.String("code", eff.Code),
	)
	s.mu.Unlock()
	s.flush(out)

	s.waitAnimation(ctx, card)

	s.mu.Lock()
	out, rec := s.settleCardLocked(color, eff, paused, entry.Seq)
	res := CardResult{
		Success:  eff.Success,
		Consumed: true,
		Code:     eff.Code,
		Message:  msg,
		Card:     card,
		Snapshot: s.snapshotLocked(playerID),
	}
	s.mu.Unlock()

	s.flush(out)
	s.archive(rec)
	s.maybeComputer()
	return res, nil
}

// settleCardLocked applies the turn consequences of a resolved card: extra
// turn flag, pending promotion, turn hand-off and the clock.
func (s *GameSession) settleCardLocked(color rules.Color, eff cards.Result, paused bool, seq int) (outbox, *domain.GameRecord) {
	s.cardInFlight = false
	if s.game.IsOver() || s.flaggedLocked() {
		return outbox{s.turnEventLocked("", "", nil)}, s.finishLocked()
	}
	if eff.ExtraTurn {
		s.extraTurn = true
	}
	if eff.BoardMutated {
		if pos, ok := s.game.Board().PromotablePawn(color); ok {
			s.promotion = &pos
		}
	}

	switch {
	case s.promotion != nil:
		if paused {
			s.timer.ResumeTimer()
		}
	case eff.EndsTurn:
		s.history.SetThinkTime(seq, s.timer.StopAndCalculateElapsedTime())
		s.extraTurn = false
		s.game.PassTurn()
	default:
		if eff.BoardMutated {
			s.game.RecordPosition()
			s.game.Reevaluate()
		}
		if paused {
			s.timer.ResumeTimer()
		}
	}

	var lastFrom, lastTo string
	if eff.Move != nil {
		lastFrom, lastTo = eff.Move.From.String(), eff.Move.To.String()
	}
	out := outbox{s.turnEventLocked(lastFrom, lastTo, eff.Highlight)}
	if s.game.IsOver() {
		return out, s.finishLocked()
	}
	if eff.EndsTurn && s.promotion == nil {
		s.timer.StartPlayerTimer(s.game.CurrentPlayer())
	}
	return out, nil
}

func (s *GameSession) waitAnimation(ctx context.Context, card cards.Card) {
	if s.opts.SkipAnimations || card.AnimationDelay <= 0 {
		return
	}
	t := time.NewTimer(card.AnimationDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	case <-s.done:
	}
}

func validationCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, cards.ErrNotYourTurn):
		return CodeCardNotYourTurn
	case errors.Is(err, cards.ErrCardNotInHand):
		return CodeCardNotInHand
	case errors.Is(err, cards.ErrCardAlreadyUsed):
		return CodeCardAlreadyUsed
	}
	return CodeCardUnknown
}
