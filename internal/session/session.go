package session

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/park285/cardchess/internal/cards"
	"github.com/park285/cardchess/internal/clock"
	"github.com/park285/cardchess/internal/domain"
	"github.com/park285/cardchess/internal/history"
	"github.com/park285/cardchess/internal/obslog"
	"github.com/park285/cardchess/internal/rules"
	"go.uber.org/zap"
)

const archiveTimeout = 10 * time.Second

// GameSession is one live game. A single mutex guards the rules state, the
// card manager, the seats and the session flags. Notifications are collected
// into an outbox while locked and delivered after unlock.
type GameSession struct {
	id        string
	opts      Options
	deps      Deps
	createdAt time.Time

	mu        sync.Mutex
	game      *rules.GameState
	timer     *clock.Timer
	cards     *cards.Manager
	history   *history.Manager
	players   *PlayerManager
	started   bool
	startedAt time.Time
	closed    bool
	archived  bool
	endedAt   time.Time

	extraTurn    bool
	promotion    *rules.Position
	cardInFlight bool

	computerBusy atomic.Bool
	timeFeed     chan clock.Snapshot
	done         chan struct{}
	closeOnce    sync.Once
	wg           sync.WaitGroup
}

type outbox []func(n Notifier)

// New builds a session. The clock does not run until both seats are filled.
func New(id string, opts Options, deps Deps) (*GameSession, error) {
	opts = opts.withDefaults()
	game := rules.NewGameState()
	if strings.TrimSpace(opts.FEN) != "" {
		g, err := rules.NewGameStateFromFEN(opts.FEN)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", id, err)
		}
		game = g
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	s := &GameSession{
		id:        id,
		opts:      opts,
		deps:      deps,
		createdAt: opts.Now(),
		game:      game,
		cards:     cards.NewManager(opts.Catalog, rng),
		history:   history.NewManager(opts.Now),
		players:   NewPlayerManager(rng),
		timeFeed:  make(chan clock.Snapshot, 16),
		done:      make(chan struct{}),
	}
	clockOpts := []clock.Option{clock.WithNow(opts.Now), clock.WithInterval(opts.TickInterval), clock.WithListener(clockBridge{s})}
	if opts.ManualClock {
		clockOpts = append(clockOpts, clock.WithoutTicker())
	}
	s.timer = clock.New(opts.InitialTime, clockOpts...)
	s.goBackground(s.pumpTime)
	return s, nil
}

func (s *GameSession) ID() string { return s.id }

func (s *GameSession) Mode() Mode { return s.opts.Mode }

func (s *GameSession) CreatedAt() time.Time { return s.createdAt }

// Clock exposes the session timer (tests and diagnostics).
func (s *GameSession) Clock() *clock.Timer { return s.timer }

func (s *GameSession) computerID() string { return "computer:" + s.id }

// Join seats a player. In computer mode the computer takes the other seat as
// soon as the first human sits down. The clock starts once both seats are filled.
func (s *GameSession) Join(playerID, name string, pref ColorPreference) (rules.Color, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return rules.White, fmt.Errorf("%w: empty player id", ErrMalformedRequest)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return rules.White, ErrSessionClosed
	}
	color, err := s.players.Join(playerID, name, pref, false)
	if err != nil {
		s.mu.Unlock()
		return color, err
	}
	if s.opts.Mode == ModeComputer && !s.players.Full() {
		if _, err := s.players.Join(s.computerID(), s.opts.ComputerName, PreferAny, true); err != nil {
			s.mu.Unlock()
			return color, err
		}
	}
	var out outbox
	if s.players.Full() && !s.started {
		s.started = true
		s.startedAt = s.opts.Now()
		s.timer.StartPlayerTimer(s.game.CurrentPlayer())
		out = append(out, s.turnEventLocked("", "", nil))
		for _, c := range []rules.Color{rules.White, rules.Black} {
			out = append(out, s.handEventLocked(c))
		}
		obslog.L().Info("session_started",
			zap.String("session_id", s.id),
			zap.String("mode", string(s.opts.Mode)),
		)
	}
	s.mu.Unlock()

	s.flush(out)
	s.maybeComputer()
	return color, nil
}

// Snapshot returns the session as seen by viewerID. Hands are only filled in
// for a seated viewer.
func (s *GameSession) Snapshot(viewerID string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(viewerID)
}

// Seated reports whether playerID holds a seat.
func (s *GameSession) Seated(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.players.ColorOf(playerID)
	return ok
}

// LegalMoves lists destination squares for the piece on square. It is empty
// unless the piece belongs to playerID and it is their turn.
func (s *GameSession) LegalMoves(playerID, square string) ([]string, error) {
	pos, err := rules.ParsePosition(square)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	color, ok := s.players.ColorOf(playerID)
	if !ok || !s.started || s.game.IsOver() || s.promotion != nil || color != s.game.CurrentPlayer() {
		return []string{}, nil
	}
	if pc := s.game.Board().At(pos); pc.IsZero() || pc.Color != color {
		return []string{}, nil
	}
	seen := make(map[rules.Position]bool)
	out := []string{}
	for _, m := range s.game.LegalMovesForPiece(pos) {
		if s.extraTurn && s.game.GivesCheck(m) {
			continue
		}
		if !seen[m.To] {
			seen[m.To] = true
			out = append(out, m.To.String())
		}
	}
	return out, nil
}

// Resign ends the game in the opponent's favor.
func (s *GameSession) Resign(playerID string) (MoveResult, error) {
	s.mu.Lock()
	color, code := s.actorLocked(playerID, "move")
	if code != "" {
		res := s.moveRejectLocked(playerID, code, nil)
		s.mu.Unlock()
		return res, nil
	}
	s.game.Resign(color)
	s.extraTurn = false
	s.promotion = nil
	out := outbox{s.turnEventLocked("", "", nil)}
	rec := s.finishLocked()
	p, _ := s.players.At(color)
	res := MoveResult{
		IsValid:  true,
		Code:     CodeResigned,
		Message:  s.text(CodeResigned, map[string]any{"Player": p.Name}),
		Snapshot: s.snapshotLocked(playerID),
	}
	s.mu.Unlock()

	s.flush(out)
	s.archive(rec)
	return res, nil
}

// History returns the game log.
func (s *GameSession) History() []history.Entry { return s.history.Entries() }

// IsOver reports whether the game has ended.
func (s *GameSession) IsOver() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game.IsOver()
}

// staleBefore reports whether the game finished at or before cutoff, or was
// created at or before cutoff and never got both seats filled.
func (s *GameSession) staleBefore(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return !s.createdAt.After(cutoff)
	}
	return s.archived && !s.endedAt.After(cutoff)
}

// Close stops the clock and background pumps. It does not wait for them.
func (s *GameSession) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.timer.Close()
		close(s.done)
	})
}

// Wait blocks until background work (computer turns, archiving, the time pump)
// has finished. Call it after Close.
func (s *GameSession) Wait() { s.wg.Wait() }

func (s *GameSession) goBackground(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// actorLocked resolves playerID to a color and reports the rejection code, if
// any, for acting right now. prefix selects the "move" or "card" code family.
func (s *GameSession) actorLocked(playerID, prefix string) (rules.Color, string) {
	color, ok := s.players.ColorOf(playerID)
	switch {
	case !ok:
		return color, prefix + ".unknown_player"
	case !s.started:
		return color, prefix + ".not_started"
	case s.closed || s.game.IsOver():
		return color, prefix + ".game_over"
	}
	return color, ""
}

// flaggedLocked ends the game when the clock ran out underneath us.
func (s *GameSession) flaggedLocked() bool {
	if s.game.IsOver() || s.timer.State() != clock.GameOver {
		return false
	}
	snap := s.timer.Snapshot()
	loser := rules.White
	if snap.Black <= 0 {
		loser = rules.Black
	}
	s.game.Timeout(loser)
	return true
}

// finishLocked stops the clock and builds the archive record once per game.
func (s *GameSession) finishLocked() *domain.GameRecord {
	if !s.game.IsOver() || s.archived {
		return nil
	}
	s.archived = true
	s.endedAt = s.opts.Now()
	s.timer.MarkGameOver()
	s.extraTurn = false
	s.promotion = nil
	r, _ := s.game.Result()
	obslog.L().Info("game_over",
		zap.String("session_id", s.id),
		zap.String("result", r.String()),
	)
	return s.recordLocked()
}

func (s *GameSession) recordLocked() *domain.GameRecord {
	rec := &domain.GameRecord{
		SessionID: s.id,
		Mode:      string(s.opts.Mode),
		StartFEN:  s.opts.FEN,
		FinalFEN:  s.game.FEN(),
		StartedAt: s.startedAt,
		EndedAt:   s.opts.Now(),
	}
	if p, ok := s.players.At(rules.White); ok {
		rec.WhiteID, rec.WhiteName = p.ID, p.Name
	}
	if p, ok := s.players.At(rules.Black); ok {
		rec.BlackID, rec.BlackName = p.ID, p.Name
	}
	if r, ok := s.game.Result(); ok {
		rec.Result = resultName(r)
		rec.Reason = r.Reason.String()
	}
	for _, e := range s.history.Entries() {
		rec.Log = append(rec.Log, domain.LogLine{
			Kind:     string(e.Kind),
			Color:    e.Player,
			UCI:      e.UCI,
			SAN:      e.SAN,
			CardID:   e.CardID,
			CardName: e.CardName,
			Success:  e.CardSuccess,
			Detail:   e.CardDetail,
			At:       e.At,
		})
	}
	return rec
}

func (s *GameSession) archive(rec *domain.GameRecord) {
	if rec == nil || s.deps.Archiver == nil {
		return
	}
	s.goBackground(func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := s.deps.Archiver.SaveGame(ctx, rec); err != nil {
			obslog.L().Warn("archive_failed", zap.String("session_id", s.id), zap.Error(err))
		}
	})
}

func (s *GameSession) flush(out outbox) {
	n := s.deps.Notifier
	if n == nil {
		return
	}
	for _, fn := range out {
		fn(n)
	}
}

func (s *GameSession) text(code string, data map[string]any) string {
	if data == nil {
		data = map[string]any{}
	}
	return s.deps.Messages.Text(code, data)
}

func (s *GameSession) statusLocked() string {
	switch {
	case s.game.IsOver():
		return StatusOver
	case !s.started:
		return StatusWaiting
	}
	return StatusOngoing
}

func (s *GameSession) statusMessageLocked() string {
	turn := s.game.CurrentPlayer()
	switch s.statusLocked() {
	case StatusWaiting:
		return s.text("status.waiting", nil)
	case StatusOver:
		r, _ := s.game.Result()
		return s.text("status.over", map[string]any{"Result": r.String()})
	}
	if s.game.IsInCheck(turn) {
		return s.text("status.check", map[string]any{"Turn": turn.String()})
	}
	return s.text("status.ongoing", map[string]any{"Turn": turn.String()})
}

func (s *GameSession) snapshotLocked(viewerID string) Snapshot {
	b := s.game.Board()
	turn := s.game.CurrentPlayer()
	clk := s.timer.Snapshot()
	snap := Snapshot{
		SessionID:        s.id,
		Mode:             s.opts.Mode,
		Status:           s.statusLocked(),
		Message:          s.statusMessageLocked(),
		FEN:              s.game.FEN(),
		Ranks:            b.Ranks(),
		Turn:             turn,
		InCheck:          s.game.IsInCheck(turn),
		Players:          s.players.Players(),
		WhiteTime:        clk.White,
		BlackTime:        clk.Black,
		ActiveClock:      activeName(clk),
		CapturedWhite:    kindNames(s.cards.Captured(rules.White)),
		CapturedBlack:    kindNames(s.cards.Captured(rules.Black)),
		ExtraTurnPending: s.extraTurn,
		MoveCount:        len(s.history.Moves()),
		CardInProgress:   s.cardInFlight,
	}
	if r, ok := s.game.Result(); ok {
		snap.Result = resultName(r)
		snap.Reason = r.Reason.String()
		if r.Decisive {
			snap.Winner = r.Winner.String()
		}
	}
	if s.promotion != nil {
		snap.PromotionPending = s.promotion.String()
	}
	if c, ok := s.players.ColorOf(viewerID); ok {
		snap.Hand = s.cards.Hand(c)
		snap.DrawPile = s.cards.DrawPileCount(c)
		snap.OpponentHandSize = len(s.cards.Hand(c.Opponent()))
	}
	return snap
}

func (s *GameSession) turnEventLocked(lastFrom, lastTo string, affected []rules.Position) func(Notifier) {
	turn := s.game.CurrentPlayer()
	ev := TurnChanged{
		FEN:        s.game.FEN(),
		Ranks:      s.game.Board().Ranks(),
		NextPlayer: turn,
		Status:     s.statusLocked(),
		LastFrom:   lastFrom,
		LastTo:     lastTo,
		InCheck:    s.game.IsInCheck(turn),
	}
	if r, ok := s.game.Result(); ok {
		ev.Result = r.String()
	}
	for _, p := range affected {
		ev.Affected = append(ev.Affected, p.String())
	}
	id := s.id
	return func(n Notifier) { n.NotifyTurnChanged(id, ev) }
}

func (s *GameSession) handEventLocked(c rules.Color) func(Notifier) {
	p, ok := s.players.At(c)
	if !ok || p.Computer {
		return func(Notifier) {}
	}
	hand := s.cards.Hand(c)
	pile := s.cards.DrawPileCount(c)
	id := s.id
	return func(n Notifier) { n.NotifyHandUpdated(id, p.ID, hand, pile) }
}

// clockBridge adapts timer callbacks. Updates go through the feed so that a
// callback raised under the session lock never reaches the notifier directly.
type clockBridge struct{ s *GameSession }

func (b clockBridge) OnTimeUpdated(snap clock.Snapshot) {
	select {
	case b.s.timeFeed <- snap:
		return
	default:
	}
	// full: drop the oldest, the newest is what matters
	select {
	case <-b.s.timeFeed:
	default:
	}
	select {
	case b.s.timeFeed <- snap:
	default:
	}
}

func (b clockBridge) OnTimeExpired(loser rules.Color) {
	b.s.goBackground(func() { b.s.handleExpiry(loser) })
}

func (s *GameSession) pumpTime() {
	for {
		select {
		case <-s.done:
			return
		case snap := <-s.timeFeed:
			if n := s.deps.Notifier; n != nil {
				n.NotifyTimeUpdate(s.id, TimeUpdate{White: snap.White, Black: snap.Black, Active: activeName(snap)})
			}
		}
	}
}

func (s *GameSession) handleExpiry(loser rules.Color) {
	s.mu.Lock()
	if s.game.IsOver() {
		s.mu.Unlock()
		return
	}
	s.game.Timeout(loser)
	obslog.L().Info("player_flagged", zap.String("session_id", s.id), zap.String("loser", loser.String()))
	out := outbox{s.turnEventLocked("", "", nil)}
	rec := s.finishLocked()
	s.mu.Unlock()

	s.flush(out)
	s.archive(rec)
}

func activeName(snap clock.Snapshot) string {
	if !snap.HasActive || snap.State != clock.Running {
		return ""
	}
	return snap.Active.String()
}

func resultName(r rules.Result) string {
	if !r.Decisive {
		return "draw"
	}
	return r.Winner.String()
}

func kindNames(kinds []rules.PieceKind) []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k.String())
	}
	return out
}
