package cards

import (
	"github.com/park285/cardchess/internal/rules"
)

func init() {
	mustRegister(ExtraTurn, applyExtraTurn)
	mustRegister(Teleport, applyTeleport)
	mustRegister(PositionSwap, applyPositionSwap)
	mustRegister(Rebirth, applyRebirth)
	mustRegister(Sacrifice, applySacrifice)
	mustRegister(CardSwap, applyCardSwap)
	mustRegister(AddTime, applyAddTime)
	mustRegister(SubtractTime, applySubtractTime)
	mustRegister(TimeSwap, applyTimeSwap)
}

// Failure codes double as message catalog keys.
const (
	CodeOK                  = "card.ok"
	CodeBadSquare           = "card.bad_square"
	CodeNotOwnPiece         = "card.not_own_piece"
	CodeTargetOccupied      = "card.target_occupied"
	CodeKingNotAllowed      = "card.king_not_allowed"
	CodePawnBackRank        = "card.pawn_back_rank"
	CodeSelfCheck           = "card.self_check"
	CodeSameSquare          = "card.same_square"
	CodeNotCaptured         = "card.not_captured"
	CodeNotHomeSquare       = "card.not_home_square"
	CodeRebirthOccupied     = "card.rebirth_occupied"
	CodeRebirthNoFreeSquare = "card.rebirth_no_free_square"
	CodeNotPawn             = "card.not_pawn"
	CodeSwapTargetMissing   = "card.swap_target_missing"
	CodeOpponentHandEmpty   = "card.opponent_hand_empty"
)

func ok(data map[string]any) Result { return Result{Success: true, Code: CodeOK, Data: data} }

func applyExtraTurn(ctx *EffectContext) Result {
	r := ok(nil)
	r.ExtraTurn = true
	return r
}

// ownPiece parses s and checks that it holds one of the player's pieces.
func ownPiece(ctx *EffectContext, s string) (rules.Position, rules.Piece, *Result) {
	p, err := rules.ParsePosition(s)
	if err != nil {
		r := fail(CodeBadSquare, map[string]any{"Square": s})
		return p, rules.Piece{}, &r
	}
	pc := ctx.Game.Board().At(p)
	if pc.IsZero() || pc.Color != ctx.Player {
		r := fail(CodeNotOwnPiece, map[string]any{"Square": p.String()})
		return p, pc, &r
	}
	return p, pc, nil
}

// pawnOnOwnBackRank reports a pawn placed where it could never legally stand.
func pawnOnOwnBackRank(pc rules.Piece, at rules.Position) bool {
	return pc.Kind == rules.Pawn && at.Row == rules.PromotionRow(pc.Color.Opponent())
}

// relocate validates m on a board copy and applies it when the king stays safe.
func relocate(ctx *EffectContext, m rules.Move) Result {
	b := ctx.Game.Board()
	if !m.IsLegal(b) {
		return fail(CodeSelfCheck, nil)
	}
	m.Execute(b)
	r := ok(map[string]any{"From": m.From.String(), "To": m.To.String()})
	r.BoardMutated = true
	r.EndsTurn = true
	r.Highlight = []rules.Position{m.From, m.To}
	r.Move = &m
	return r
}

func applyTeleport(ctx *EffectContext) Result {
	from, pc, bad := ownPiece(ctx, ctx.Params.From)
	if bad != nil {
		return *bad
	}
	if pc.Kind == rules.King {
		return fail(CodeKingNotAllowed, nil)
	}
	to, err := rules.ParsePosition(ctx.Params.To)
	if err != nil {
		return fail(CodeBadSquare, map[string]any{"Square": ctx.Params.To})
	}
	if !ctx.Game.Board().IsEmpty(to) {
		return fail(CodeTargetOccupied, map[string]any{"Square": to.String()})
	}
	if pawnOnOwnBackRank(pc, to) {
		return fail(CodePawnBackRank, nil)
	}
	return relocate(ctx, rules.Move{Kind: rules.Teleport, From: from, To: to})
}

func applyPositionSwap(ctx *EffectContext) Result {
	a, pa, bad := ownPiece(ctx, ctx.Params.From)
	if bad != nil {
		return *bad
	}
	b, pb, bad := ownPiece(ctx, ctx.Params.To)
	if bad != nil {
		return *bad
	}
	if a == b {
		return fail(CodeSameSquare, nil)
	}
	if pawnOnOwnBackRank(pa, b) || pawnOnOwnBackRank(pb, a) {
		return fail(CodePawnBackRank, nil)
	}
	return relocate(ctx, rules.Move{Kind: rules.PositionSwap, From: a, To: b})
}

func applyRebirth(ctx *EffectContext) Result {
	kind, valid := rules.ParsePieceKind(ctx.Params.PieceType)
	if !valid || kind == rules.Pawn || kind == rules.King {
		return fail(CodeNotCaptured, map[string]any{"Piece": ctx.Params.PieceType})
	}
	if !hasCaptured(ctx.Cards, ctx.Player, kind) {
		return fail(CodeNotCaptured, map[string]any{"Piece": kind.String()})
	}
	to, err := rules.ParsePosition(ctx.Params.To)
	if err != nil {
		return fail(CodeBadSquare, map[string]any{"Square": ctx.Params.To})
	}
	homes := rules.HomeSquares(kind, ctx.Player)
	isHome := false
	anyFree := false
	b := ctx.Game.Board()
	for _, h := range homes {
		if h == to {
			isHome = true
		}
		if b.IsEmpty(h) {
			anyFree = true
		}
	}
	if !anyFree {
		return burn(CodeRebirthNoFreeSquare, map[string]any{"Piece": kind.String()})
	}
	if !isHome {
		return fail(CodeNotHomeSquare, map[string]any{"Square": to.String(), "Piece": kind.String()})
	}
	if !b.IsEmpty(to) {
		return burn(CodeRebirthOccupied, map[string]any{"Square": to.String()})
	}
	ctx.Cards.takeCaptured(ctx.Player, kind)
	b.Set(to, rules.Piece{Kind: kind, Color: ctx.Player, HasMoved: true})
	r := ok(map[string]any{"Piece": kind.String(), "Square": to.String()})
	r.BoardMutated = true
	r.EndsTurn = true
	r.Highlight = []rules.Position{to}
	return r
}

func hasCaptured(m *Manager, c rules.Color, k rules.PieceKind) bool {
	for _, kind := range m.captured[c] {
		if kind == k {
			return true
		}
	}
	return false
}

func applySacrifice(ctx *EffectContext) Result {
	at, pc, bad := ownPiece(ctx, ctx.Params.From)
	if bad != nil {
		return *bad
	}
	if pc.Kind != rules.Pawn {
		return fail(CodeNotPawn, nil)
	}
	b := ctx.Game.Board()
	cp := b.Copy()
	cp.Clear(at)
	if cp.IsInCheck(ctx.Player) {
		return fail(CodeSelfCheck, nil)
	}
	b.Clear(at)
	drawn := ctx.Cards.Draw(ctx.Player)
	r := ok(map[string]any{"Square": at.String()})
	r.BoardMutated = true
	r.Highlight = []rules.Position{at}
	r.Drawn = []Card{drawn}
	return r
}

func applyCardSwap(ctx *EffectContext) Result {
	target := ctx.Params.TargetInstance
	if target == "" || target == ctx.Card.InstanceID || ctx.Cards.findInHand(ctx.Player, target) < 0 {
		return fail(CodeSwapTargetMissing, nil)
	}
	if len(ctx.Cards.decks[ctx.Player.Opponent()].hand) == 0 {
		r := ok(nil)
		r.Code = CodeOpponentHandEmpty
		return r
	}
	given, received, _ := ctx.Cards.exchange(ctx.Player, target)
	r := ok(map[string]any{"Given": given.Name, "Received": received.Name})
	r.Exchanged = []Card{given, received}
	return r
}

func applyAddTime(ctx *EffectContext) Result {
	snap := ctx.Clock.AddTime(ctx.Player, ctx.Definition.Amount())
	return ok(map[string]any{"Remaining": snap.Remaining(ctx.Player).String()})
}

func applySubtractTime(ctx *EffectContext) Result {
	opp := ctx.Player.Opponent()
	snap := ctx.Clock.SubtractTime(opp, ctx.Definition.Amount())
	return ok(map[string]any{"Remaining": snap.Remaining(opp).String()})
}

func applyTimeSwap(ctx *EffectContext) Result {
	ctx.Clock.SwapTimes()
	return ok(nil)
}
