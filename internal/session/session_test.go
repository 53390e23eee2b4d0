package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/park285/cardchess/internal/cards"
	"github.com/park285/cardchess/internal/clock"
	"github.com/park285/cardchess/internal/domain"
	"github.com/park285/cardchess/internal/history"
	"github.com/park285/cardchess/internal/msgcat"
	"github.com/park285/cardchess/internal/rules"
)

type recorder struct {
	mu    sync.Mutex
	turns []TurnChanged
	times []TimeUpdate
	plays []string
	anims []string
	hands map[string]int
}

func newRecorder() *recorder { return &recorder{hands: make(map[string]int)} }

func (r *recorder) NotifyTurnChanged(_ string, ev TurnChanged) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, ev)
}

func (r *recorder) NotifyTimeUpdate(_ string, ev TimeUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.times = append(r.times, ev)
}

func (r *recorder) NotifyCardPlayed(_, playerID string, card cards.Card) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plays = append(r.plays, playerID+":"+string(card.ID))
}

func (r *recorder) NotifyHandUpdated(_, playerID string, hand []cards.Card, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hands[playerID] = len(hand)
}

func (r *recorder) NotifyCardActivationAnimation(_ string, card cards.Card, playerID string, _ rules.Color) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anims = append(r.anims, playerID+":"+string(card.ID))
}

func (r *recorder) lastTurn() TurnChanged {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.turns) == 0 {
		return TurnChanged{}
	}
	return r.turns[len(r.turns)-1]
}

type archiveSpy struct {
	mu   sync.Mutex
	recs []*domain.GameRecord
}

func (a *archiveSpy) SaveGame(_ context.Context, rec *domain.GameRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recs = append(a.recs, rec)
	return nil
}

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func catalogOf(t *testing.T, yaml string) *cards.Catalog {
	t.Helper()
	c, err := cards.ParseCatalog([]byte(yaml))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	return c
}

const (
	teleportOnly  = "cards:\n  - id: teleport\n    name: Teleport\n    copies: 2\n"
	extraTurnOnly = "cards:\n  - id: extra_turn\n    name: Extra Turn\n    global: true\n"
)

type harness struct {
	s   *GameSession
	rec *recorder
	arc *archiveSpy
	now *fakeNow
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{rec: newRecorder(), arc: &archiveSpy{}, now: &fakeNow{t: time.Unix(1_700_000_000, 0)}}
	opts.ManualClock = true
	opts.SkipAnimations = true
	opts.Now = h.now.Now
	if opts.Seed == 0 {
		opts.Seed = 7
	}
	s, err := New("test", opts, Deps{Notifier: h.rec, Archiver: h.arc, Messages: msgcat.Default()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.s = s
	t.Cleanup(func() {
		s.Close()
		s.Wait()
	})
	return h
}

// seat joins alice as white and bob as black.
func (h *harness) seat(t *testing.T) {
	t.Helper()
	if c, err := h.s.Join("alice", "Alice", PreferWhite); err != nil || c != rules.White {
		t.Fatalf("join alice: %v %v", c, err)
	}
	if c, err := h.s.Join("bob", "Bob", PreferAny); err != nil || c != rules.Black {
		t.Fatalf("join bob: %v %v", c, err)
	}
}

func (h *harness) move(t *testing.T, player, from, to string) MoveResult {
	t.Helper()
	res, err := h.s.MakeMove(context.Background(), player, from, to, "")
	if err != nil {
		t.Fatalf("MakeMove %s%s: %v", from, to, err)
	}
	return res
}

func (h *harness) mustMove(t *testing.T, player, from, to string) {
	t.Helper()
	if res := h.move(t, player, from, to); !res.IsValid {
		t.Fatalf("%s%s rejected: %s (%s)", from, to, res.Code, res.Message)
	}
}

func handCard(t *testing.T, s *GameSession, player string, id cards.CardID) cards.Card {
	t.Helper()
	for _, c := range s.Snapshot(player).Hand {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("%s has no %s", player, id)
	return cards.Card{}
}

func TestJoinStartsClock(t *testing.T) {
	h := newHarness(t, Options{})
	if snap := h.s.Snapshot(""); snap.Status != StatusWaiting {
		t.Fatalf("status = %s", snap.Status)
	}
	h.seat(t)
	if _, err := h.s.Join("carol", "", PreferAny); !errors.Is(err, ErrSessionFull) {
		t.Fatalf("third join: %v", err)
	}
	if _, err := h.s.Join("alice", "", PreferAny); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("rejoin: %v", err)
	}
	snap := h.s.Snapshot("alice")
	if snap.Status != StatusOngoing || snap.ActiveClock != "white" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap.Hand) != cards.InitialHandSize {
		t.Fatalf("hand = %d", len(snap.Hand))
	}
	if h.s.Clock().State() != clock.Running {
		t.Fatalf("clock = %s", h.s.Clock().State())
	}
	if len(h.s.Snapshot("stranger").Hand) != 0 {
		t.Fatalf("spectators must not see a hand")
	}
	if !h.s.Seated("bob") || h.s.Seated("stranger") {
		t.Fatalf("seat lookup is wrong")
	}
}

func TestMoveValidation(t *testing.T) {
	h := newHarness(t, Options{})
	if res := h.move(t, "alice", "e2", "e4"); res.IsValid || res.Code != "move.unknown_player" {
		t.Fatalf("before join: %+v", res.Code)
	}
	h.seat(t)
	if res := h.move(t, "alice", "e7", "e5"); res.Code != CodeMoveNotYourPiece {
		t.Fatalf("opponent piece: %s", res.Code)
	}
	if res := h.move(t, "bob", "e7", "e5"); res.Code != CodeMoveNotYourTurn {
		t.Fatalf("out of turn: %s", res.Code)
	}
	if res := h.move(t, "alice", "e3", "e4"); res.Code != CodeMoveNoPiece {
		t.Fatalf("empty square: %s", res.Code)
	}
	if res := h.move(t, "alice", "e2", "e5"); res.Code != CodeMoveIllegal || res.Message == "" {
		t.Fatalf("illegal: %+v", res)
	}
	if _, err := h.s.MakeMove(context.Background(), "alice", "e9", "e4", ""); !errors.Is(err, ErrMalformedRequest) {
		t.Fatalf("malformed square: %v", err)
	}
	if _, err := h.s.MakeMove(context.Background(), "alice", "e2", "e4", "king"); !errors.Is(err, ErrMalformedRequest) {
		t.Fatalf("malformed promotion: %v", err)
	}

	h.now.Advance(3 * time.Second)
	res := h.move(t, "alice", "e2", "e4")
	if !res.IsValid || res.Snapshot.Turn != rules.Black {
		t.Fatalf("e2e4: %+v", res)
	}
	if res.Message != "e4 played." {
		t.Fatalf("message = %q", res.Message)
	}
	last := h.rec.lastTurn()
	if last.LastFrom != "e2" || last.LastTo != "e4" || last.NextPlayer != rules.Black {
		t.Fatalf("turn event = %+v", last)
	}
	hist := h.s.History()
	if len(hist) != 1 || hist[0].ThinkTime != 3*time.Second || hist[0].SAN != "e4" {
		t.Fatalf("history = %+v", hist)
	}
}

func TestCheckmateArchives(t *testing.T) {
	h := newHarness(t, Options{})
	h.seat(t)
	for _, mv := range [][3]string{
		{"alice", "e2", "e4"}, {"bob", "e7", "e5"},
		{"alice", "f1", "c4"}, {"bob", "b8", "c6"},
		{"alice", "d1", "h5"}, {"bob", "g8", "f6"},
		{"alice", "h5", "f7"},
	} {
		h.mustMove(t, mv[0], mv[1], mv[2])
	}
	snap := h.s.Snapshot("bob")
	if snap.Status != StatusOver || snap.Winner != "white" || snap.Reason != rules.Checkmate.String() {
		t.Fatalf("snapshot = %+v", snap)
	}
	if res := h.move(t, "bob", "a7", "a6"); res.Code != CodeMoveGameOver {
		t.Fatalf("move after mate: %s", res.Code)
	}
	if h.s.Clock().State() != clock.GameOver {
		t.Fatalf("clock not stopped")
	}
	h.s.Close()
	h.s.Wait()
	h.arc.mu.Lock()
	defer h.arc.mu.Unlock()
	if len(h.arc.recs) != 1 {
		t.Fatalf("archived %d records", len(h.arc.recs))
	}
	rec := h.arc.recs[0]
	if rec.Result != "white" || len(rec.UCIMoves()) != 7 || !strings.HasPrefix(rec.SANMoves()[6], "Qxf7") {
		t.Fatalf("record = %+v", rec)
	}
}

func TestLegalMovesAndResign(t *testing.T) {
	h := newHarness(t, Options{})
	h.seat(t)
	got, err := h.s.LegalMoves("alice", "e2")
	if err != nil || len(got) != 2 {
		t.Fatalf("e2 targets = %v %v", got, err)
	}
	if got, _ := h.s.LegalMoves("alice", "e7"); len(got) != 0 {
		t.Fatalf("opponent piece targets = %v", got)
	}
	if _, err := h.s.LegalMoves("alice", "x1"); !errors.Is(err, ErrMalformedRequest) {
		t.Fatalf("malformed: %v", err)
	}
	res, err := h.s.Resign("bob")
	if err != nil || !res.IsValid || res.Snapshot.Winner != "white" {
		t.Fatalf("resign: %+v %v", res, err)
	}
	if res.Snapshot.Reason != rules.Resignation.String() {
		t.Fatalf("reason = %s", res.Snapshot.Reason)
	}
}

func TestFlagOnMove(t *testing.T) {
	h := newHarness(t, Options{InitialTime: time.Minute})
	h.seat(t)
	h.now.Advance(61 * time.Second)
	res := h.move(t, "alice", "e2", "e4")
	if res.IsValid || res.Code != CodeMoveGameOver {
		t.Fatalf("late move accepted: %+v", res)
	}
	if res.Snapshot.Winner != "black" || res.Snapshot.Reason != rules.TimeOut.String() {
		t.Fatalf("snapshot = %+v", res.Snapshot)
	}
}

func TestTeleportEndsTurn(t *testing.T) {
	h := newHarness(t, Options{Catalog: catalogOf(t, teleportOnly)})
	h.seat(t)
	card := handCard(t, h.s, "alice", cards.Teleport)
	h.now.Advance(2 * time.Second)
	res, err := h.s.ActivateCard(context.Background(), "alice", CardRequest{
		InstanceID: card.InstanceID,
		Params:     cards.Params{From: "g1", To: "e4"},
	})
	if err != nil || !res.Success {
		t.Fatalf("teleport: %+v %v", res, err)
	}
	hist := h.s.History()
	if len(hist) != 1 || hist[0].Kind != history.KindCard || hist[0].ThinkTime != 2*time.Second {
		t.Fatalf("history = %+v", hist)
	}
	if !hist[0].At.Equal(h.now.Now()) {
		t.Fatalf("entry stamped %v, session clock %v", hist[0].At, h.now.Now())
	}
	if res.Snapshot.Turn != rules.Black || res.Snapshot.ActiveClock != "black" {
		t.Fatalf("turn not passed: %+v", res.Snapshot)
	}
	if len(res.Snapshot.Hand) != 1 {
		t.Fatalf("card not consumed: %d left", len(res.Snapshot.Hand))
	}
	last := h.rec.lastTurn()
	if last.LastFrom != "g1" || last.LastTo != "e4" {
		t.Fatalf("turn event = %+v", last)
	}
	h.rec.mu.Lock()
	plays, anims := len(h.rec.plays), len(h.rec.anims)
	h.rec.mu.Unlock()
	if plays != 1 || anims != 1 {
		t.Fatalf("card events = %d/%d", plays, anims)
	}
	if res.Snapshot.MoveCount != 0 {
		t.Fatalf("a card is not a chess move")
	}
}

func TestInertCardFailure(t *testing.T) {
	h := newHarness(t, Options{Catalog: catalogOf(t, teleportOnly)})
	h.seat(t)
	card := handCard(t, h.s, "alice", cards.Teleport)
	res, err := h.s.ActivateCard(context.Background(), "alice", CardRequest{
		InstanceID: card.InstanceID,
		Params:     cards.Params{From: "g1", To: "e2"},
	})
	if err != nil {
		t.Fatalf("ActivateCard: %v", err)
	}
	if res.Success || res.Consumed || res.Code != cards.CodeTargetOccupied {
		t.Fatalf("result = %+v", res)
	}
	if res.Snapshot.Turn != rules.White || len(res.Snapshot.Hand) != 2 {
		t.Fatalf("state changed on inert failure: %+v", res.Snapshot)
	}
	if h.s.Clock().State() != clock.Running {
		t.Fatalf("clock should resume, got %s", h.s.Clock().State())
	}
	if _, err := h.s.ActivateCard(context.Background(), "alice", CardRequest{}); !errors.Is(err, ErrMalformedRequest) {
		t.Fatalf("empty instance: %v", err)
	}
	_, err = h.s.ActivateCard(context.Background(), "alice", CardRequest{
		InstanceID: card.InstanceID,
		Params:     cards.Params{From: "g1", To: "z9"},
	})
	if !errors.Is(err, ErrMalformedRequest) {
		t.Fatalf("off-board card square: %v", err)
	}
	if got := len(h.s.Snapshot("alice").Hand); got != 2 {
		t.Fatalf("hand after malformed card = %d", got)
	}
	res, _ = h.s.ActivateCard(context.Background(), "bob", CardRequest{InstanceID: card.InstanceID})
	if res.Code != CodeCardNotYourTurn {
		t.Fatalf("off turn card: %s", res.Code)
	}
}

func TestConcurrentActivationsSerialize(t *testing.T) {
	h := newHarness(t, Options{Catalog: catalogOf(t, teleportOnly)})
	h.seat(t)
	hand := h.s.Snapshot("alice").Hand
	if len(hand) != 2 {
		t.Fatalf("hand = %d", len(hand))
	}
	params := []cards.Params{{From: "g1", To: "e4"}, {From: "b1", To: "d4"}}
	results := make([]CardResult, 2)
	var wg sync.WaitGroup
	for i := range hand {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.s.ActivateCard(context.Background(), "alice", CardRequest{InstanceID: hand[i].InstanceID, Params: params[i]})
			if err != nil {
				t.Errorf("ActivateCard: %v", err)
			}
			results[i] = res
		}(i)
	}
	wg.Wait()
	wins := 0
	for _, r := range results {
		if r.Success {
			wins++
		} else if r.Code != CodeCardNotYourTurn {
			t.Fatalf("loser code = %s", r.Code)
		}
	}
	if wins != 1 {
		t.Fatalf("%d activations succeeded", wins)
	}
}

func TestExtraTurn(t *testing.T) {
	h := newHarness(t, Options{Catalog: catalogOf(t, extraTurnOnly), FEN: "4k3/8/8/8/8/8/8/R3K3 w - - 0 1"})
	h.seat(t)
	card := handCard(t, h.s, "alice", cards.ExtraTurn)
	res, err := h.s.ActivateCard(context.Background(), "alice", CardRequest{InstanceID: card.InstanceID})
	if err != nil || !res.Success || !res.Snapshot.ExtraTurnPending {
		t.Fatalf("extra turn: %+v %v", res, err)
	}
	if got := h.move(t, "alice", "a1", "a8"); got.Code != CodeMoveExtraTurnCheck {
		t.Fatalf("checking first move: %s", got.Code)
	}
	h.mustMove(t, "alice", "a1", "a7")
	snap := h.s.Snapshot("alice")
	if snap.Turn != rules.White || snap.ExtraTurnPending {
		t.Fatalf("after first move: %+v", snap)
	}
	h.mustMove(t, "alice", "a7", "a8")
	if h.s.Snapshot("").Turn != rules.Black {
		t.Fatalf("second move should pass the turn")
	}
}

func TestTeleportToLastRankPromotes(t *testing.T) {
	h := newHarness(t, Options{Catalog: catalogOf(t, teleportOnly), FEN: "7k/8/8/8/8/8/P7/4K3 w - - 0 1"})
	h.seat(t)
	card := handCard(t, h.s, "alice", cards.Teleport)
	res, err := h.s.ActivateCard(context.Background(), "alice", CardRequest{
		InstanceID: card.InstanceID,
		Params:     cards.Params{From: "a2", To: "a8"},
	})
	if err != nil || !res.Success {
		t.Fatalf("teleport: %+v %v", res, err)
	}
	if res.Snapshot.PromotionPending != "a8" || res.Snapshot.Turn != rules.White {
		t.Fatalf("promotion not pending: %+v", res.Snapshot)
	}
	if got := h.move(t, "alice", "e1", "e2"); got.Code != CodeMovePromotion {
		t.Fatalf("move while promoting: %s", got.Code)
	}
	if got, _ := h.s.Promote(context.Background(), "alice", "king"); got.Code != CodePromotionInvalid {
		t.Fatalf("king promotion: %s", got.Code)
	}
	got, err := h.s.Promote(context.Background(), "alice", "rook")
	if err != nil || !got.IsValid {
		t.Fatalf("promote: %+v %v", got, err)
	}
	if got.Snapshot.Turn != rules.Black || got.Snapshot.Ranks[0] != "R......k" {
		t.Fatalf("after promotion: %+v", got.Snapshot)
	}
	if got, _ := h.s.Promote(context.Background(), "bob", "queen"); got.Code != CodePromotionNone {
		t.Fatalf("nothing pending: %s", got.Code)
	}
}

type scriptedOracle struct {
	mu    sync.Mutex
	moves []string
	err   error
	calls int
}

func (o *scriptedOracle) GetNextMove(_ context.Context, _ string, _ int) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return "", o.err
	}
	if len(o.moves) == 0 {
		return "", nil
	}
	mv := o.moves[0]
	o.moves = o.moves[1:]
	return mv, nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestComputerReplies(t *testing.T) {
	oracle := &scriptedOracle{moves: []string{"e7e5"}}
	s, err := New("cpu", Options{Mode: ModeComputer, ManualClock: true, Seed: 3}, Deps{Oracle: oracle})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { s.Close(); s.Wait() }()
	if _, err := s.Join("alice", "Alice", PreferWhite); err != nil {
		t.Fatalf("Join: %v", err)
	}
	snap := s.Snapshot("alice")
	if len(snap.Players) != 2 || !snap.Players[1].Computer {
		t.Fatalf("computer not seated: %+v", snap.Players)
	}
	if _, err := s.MakeMove(context.Background(), "alice", "e2", "e4", ""); err != nil {
		t.Fatalf("MakeMove: %v", err)
	}
	waitFor(t, "computer reply", func() bool { return s.Snapshot("alice").MoveCount == 2 })
	if s.Snapshot("alice").Turn != rules.White {
		t.Fatalf("turn should be back with white")
	}
}

func TestComputerFailurePasses(t *testing.T) {
	oracle := &scriptedOracle{err: errors.New("engine down")}
	s, err := New("cpu", Options{Mode: ModeComputer, ManualClock: true, Seed: 3}, Deps{Oracle: oracle})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { s.Close(); s.Wait() }()
	if _, err := s.Join("alice", "Alice", PreferBlack); err != nil {
		t.Fatalf("Join: %v", err)
	}
	waitFor(t, "oracle call", func() bool {
		oracle.mu.Lock()
		defer oracle.mu.Unlock()
		return oracle.calls >= 1
	})
	waitFor(t, "computer idle", func() bool { return !s.computerBusy.Load() })
	snap := s.Snapshot("alice")
	if snap.Turn != rules.White || snap.MoveCount != 0 || snap.Status != StatusOngoing {
		t.Fatalf("snapshot = %+v", snap)
	}

	oracle.mu.Lock()
	oracle.err = nil
	oracle.moves = []string{"d2d4"}
	oracle.mu.Unlock()
	s.Nudge()
	waitFor(t, "retry", func() bool { return s.Snapshot("alice").MoveCount == 1 })
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(2, Options{ManualClock: true}, Deps{})
	defer r.CloseAll()
	a, err := r.Create(Options{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.Create(Options{Mode: ModeComputer}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.Create(Options{}); !errors.Is(err, ErrTooManySessions) {
		t.Fatalf("limit: %v", err)
	}
	got, err := r.Get(a.ID())
	if err != nil || got != a {
		t.Fatalf("Get: %v", err)
	}
	if _, err := r.Get("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get missing: %v", err)
	}
	if err := r.Remove(a.ID()); err != nil || r.Len() != 1 {
		t.Fatalf("Remove: %v len=%d", err, r.Len())
	}
	if _, err := r.Create(Options{FEN: "not a fen"}); err == nil {
		t.Fatalf("bad FEN accepted")
	}

	c, err := r.Create(Options{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := c.Join("alice", "", PreferWhite); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := c.Join("bob", "", PreferAny); err != nil {
		t.Fatalf("join: %v", err)
	}
	// only the computer session nobody joined goes
	if n := r.Reap(0); n != 1 || r.Len() != 1 {
		t.Fatalf("reap = %d, len = %d", n, r.Len())
	}
	if _, err := c.Resign("bob"); err != nil {
		t.Fatalf("resign: %v", err)
	}
	if n := r.Reap(time.Hour); n != 0 {
		t.Fatalf("reaped %d games inside retention", n)
	}
	if n := r.Reap(0); n != 1 || r.Len() != 0 {
		t.Fatalf("reap = %d, len = %d", n, r.Len())
	}
}

func TestRegistryReapsUnstartedSessions(t *testing.T) {
	now := &fakeNow{t: time.Unix(1_700_000_000, 0)}
	r := NewRegistry(2, Options{ManualClock: true, Now: now.Now}, Deps{})
	defer r.CloseAll()
	var gone []string
	r.OnRemove(func(id string) { gone = append(gone, id) })

	lonely, err := r.Create(Options{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := lonely.Join("alice", "", PreferWhite); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := r.Create(Options{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.Create(Options{}); !errors.Is(err, ErrTooManySessions) {
		t.Fatalf("limit: %v", err)
	}

	now.Advance(10 * time.Minute)
	if n := r.Reap(30 * time.Minute); n != 0 {
		t.Fatalf("reaped %d sessions inside retention", n)
	}
	now.Advance(24 * time.Hour)
	if n := r.Reap(30 * time.Minute); n != 2 || r.Len() != 0 {
		t.Fatalf("reap = %d, len = %d", n, r.Len())
	}
	if len(gone) != 2 {
		t.Fatalf("remove hooks ran %d times", len(gone))
	}
	if _, err := r.Get(lonely.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get reaped: %v", err)
	}
	if _, err := r.Create(Options{}); err != nil {
		t.Fatalf("Create after reap: %v", err)
	}
}

func TestRegistryReapKeepsStartedGames(t *testing.T) {
	now := &fakeNow{t: time.Unix(1_700_000_000, 0)}
	r := NewRegistry(0, Options{ManualClock: true, Now: now.Now}, Deps{})
	defer r.CloseAll()
	s, err := r.Create(Options{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Join("alice", "", PreferWhite); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := s.Join("bob", "", PreferAny); err != nil {
		t.Fatalf("join: %v", err)
	}
	now.Advance(24 * time.Hour)
	if n := r.Reap(30 * time.Minute); n != 0 {
		t.Fatalf("reaped %d games in progress", n)
	}
	var gone string
	r.OnRemove(func(id string) { gone = id })
	if err := r.Remove(s.ID()); err != nil || gone != s.ID() {
		t.Fatalf("Remove: %v hook=%q", err, gone)
	}
}

func TestRegistryNudgeRetriesComputer(t *testing.T) {
	oracle := &scriptedOracle{err: errors.New("engine down")}
	r := NewRegistry(0, Options{ManualClock: true, Seed: 3}, Deps{Oracle: oracle})
	defer r.CloseAll()
	s, err := r.Create(Options{Mode: ModeComputer})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Join("alice", "Alice", PreferBlack); err != nil {
		t.Fatalf("Join: %v", err)
	}
	waitFor(t, "oracle call", func() bool {
		oracle.mu.Lock()
		defer oracle.mu.Unlock()
		return oracle.calls >= 1
	})
	waitFor(t, "computer idle", func() bool { return !s.computerBusy.Load() })

	oracle.mu.Lock()
	oracle.err = nil
	oracle.moves = []string{"e2e4"}
	oracle.mu.Unlock()
	r.Nudge()
	waitFor(t, "retry", func() bool { return s.Snapshot("alice").MoveCount == 1 })
}

func TestParseHelpers(t *testing.T) {
	if m, ok := ParseMode("ai"); !ok || m != ModeComputer {
		t.Fatalf("ParseMode ai")
	}
	if _, ok := ParseMode("chess960"); ok {
		t.Fatalf("unknown mode accepted")
	}
	if p, ok := ParseColorPreference(" Black "); !ok || p != PreferBlack {
		t.Fatalf("ParseColorPreference")
	}
}
