package chesspresenter

import (
	"time"

	"github.com/park285/cardchess/internal/cards"
	"github.com/park285/cardchess/internal/history"
	"github.com/park285/cardchess/internal/rules"
	"github.com/park285/cardchess/internal/session"
	"github.com/park285/cardchess/pkg/chessdto"
)

func ToDTOState(s session.Snapshot) *chessdto.SessionState {
	players := make([]chessdto.Player, 0, len(s.Players))
	for _, p := range s.Players {
		players = append(players, chessdto.Player{
			ID:       p.ID,
			Name:     p.Name,
			Color:    p.Color.String(),
			Computer: p.Computer,
		})
	}
	return &chessdto.SessionState{
		SessionID: s.SessionID,
		Mode:      string(s.Mode),
		Status:    s.Status,
		Message:   s.Message,
		FEN:       s.FEN,
		Ranks:     append([]string(nil), s.Ranks...),
		Turn:      s.Turn.String(),
		InCheck:   s.InCheck,
		Result:    s.Result,
		Reason:    s.Reason,
		Winner:    s.Winner,
		Players:   players,
		Clock: chessdto.Clock{
			WhiteMillis: s.WhiteTime.Milliseconds(),
			BlackMillis: s.BlackTime.Milliseconds(),
			Active:      s.ActiveClock,
		},
		Hand:             ToDTOCards(s.Hand),
		DrawPile:         s.DrawPile,
		OpponentHandSize: s.OpponentHandSize,
		Captured: chessdto.CapturedPieces{
			White: nonNil(s.CapturedWhite),
			Black: nonNil(s.CapturedBlack),
		},
		ExtraTurnPending: s.ExtraTurnPending,
		PromotionPending: s.PromotionPending,
		MoveCount:        s.MoveCount,
		CardInProgress:   s.CardInProgress,
	}
}

func ToDTOCard(c cards.Card) chessdto.Card {
	return chessdto.Card{
		InstanceID:       c.InstanceID,
		ID:               string(c.ID),
		Name:             c.Name,
		AnimationDelayMs: c.AnimationDelay.Milliseconds(),
	}
}

// ToDTOCards never returns nil so an empty hand encodes as [].
func ToDTOCards(list []cards.Card) []chessdto.Card {
	out := make([]chessdto.Card, 0, len(list))
	for _, c := range list {
		out = append(out, ToDTOCard(c))
	}
	return out
}

func ToDTOMove(r session.MoveResult) *chessdto.MoveResponse {
	return &chessdto.MoveResponse{
		Valid:   r.IsValid,
		Code:    r.Code,
		Message: r.Message,
		State:   ToDTOState(r.Snapshot),
	}
}

func ToDTOCardResult(r session.CardResult) *chessdto.CardResponse {
	resp := &chessdto.CardResponse{
		Success:  r.Success,
		Consumed: r.Consumed,
		Code:     r.Code,
		Message:  r.Message,
		State:    ToDTOState(r.Snapshot),
	}
	if r.Card.InstanceID != "" {
		c := ToDTOCard(r.Card)
		resp.Card = &c
	}
	return resp
}

func ToDTOTurn(ev session.TurnChanged) chessdto.TurnChangedPayload {
	return chessdto.TurnChangedPayload{
		FEN:        ev.FEN,
		Ranks:      append([]string(nil), ev.Ranks...),
		NextPlayer: ev.NextPlayer.String(),
		Status:     ev.Status,
		Result:     ev.Result,
		LastFrom:   ev.LastFrom,
		LastTo:     ev.LastTo,
		Affected:   append([]string(nil), ev.Affected...),
		InCheck:    ev.InCheck,
	}
}

func ToDTOClock(ev session.TimeUpdate) chessdto.Clock {
	return chessdto.Clock{
		WhiteMillis: ev.White.Milliseconds(),
		BlackMillis: ev.Black.Milliseconds(),
		Active:      ev.Active,
	}
}

func ToDTOAnimation(card cards.Card, playerID string, color rules.Color) chessdto.CardAnimationPayload {
	return chessdto.CardAnimationPayload{PlayerID: playerID, Color: color.String(), Card: ToDTOCard(card)}
}

func ToDTOHistory(entries []history.Entry) []chessdto.HistoryEntry {
	out := make([]chessdto.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, chessdto.HistoryEntry{
			Seq:         e.Seq,
			Kind:        string(e.Kind),
			Player:      e.Player,
			At:          e.At.UTC().Truncate(time.Millisecond),
			ThinkMillis: e.ThinkTime.Milliseconds(),
			UCI:         e.UCI,
			SAN:         e.SAN,
			Captured:    e.Captured,
			CardID:      e.CardID,
			CardName:    e.CardName,
			CardSuccess: e.CardSuccess,
			CardDetail:  e.CardDetail,
			WhiteMillis: e.WhiteRemaining.Milliseconds(),
			BlackMillis: e.BlackRemaining.Milliseconds(),
		})
	}
	return out
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
