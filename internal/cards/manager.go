package cards

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cardchess/internal/rules"
	"golang.org/x/sync/semaphore"
)

type CardID string

const (
	ExtraTurn    CardID = "extra_turn"
	Teleport     CardID = "teleport"
	PositionSwap CardID = "position_swap"
	Rebirth      CardID = "rebirth"
	Sacrifice    CardID = "sacrifice"
	CardSwap     CardID = "card_swap"
	AddTime      CardID = "add_time"
	SubtractTime CardID = "subtract_time"
	TimeSwap     CardID = "time_swap"

	// NoMoreCards is handed out instead of failing when a draw pile is empty.
	NoMoreCards CardID = "no_more_cards"
)

var noMoreCardsDef = Definition{ID: NoMoreCards, Name: "No More Cards", Description: "Your draw pile is empty."}

const (
	InitialHandSize = 3
	// DrawEvery is the number of completed moves between automatic draws.
	DrawEvery = 5
)

var (
	ErrNotYourTurn     = errors.New("not your turn")
	ErrCardNotInHand   = errors.New("card not in hand")
	ErrCardAlreadyUsed = errors.New("card already used this game")
)

// Card is one drawn instance of a catalog entry.
type Card struct {
	InstanceID     string
	ID             CardID
	Name           string
	AnimationDelay time.Duration
}

func (c Card) IsSentinel() bool { return c.ID == NoMoreCards }

type deck struct {
	hand       []Card
	pile       []Card
	moveCount  int
	usedGlobal map[CardID]bool
}

// Manager owns both players' decks, hands and captured pieces plus the
// single-slot activation gate. Hand/pile/capture state is guarded by the
// owning session's lock; the gate is independent of it.
type Manager struct {
	catalog  *Catalog
	rng      *rand.Rand
	decks    [2]*deck
	captured [2][]rules.PieceKind
	gate     *semaphore.Weighted
}

// NewManager builds and shuffles both decks and deals the opening hands.
func NewManager(catalog *Catalog, rng *rand.Rand) *Manager {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	m := &Manager{
		catalog: catalog,
		rng:     rng,
		gate:    semaphore.NewWeighted(1),
	}
	for _, c := range []rules.Color{rules.White, rules.Black} {
		d := &deck{usedGlobal: make(map[CardID]bool)}
		for _, id := range catalog.IDs() {
			def, _ := catalog.Lookup(id)
			for i := 0; i < def.Copies; i++ {
				d.pile = append(d.pile, m.instance(def))
			}
		}
		m.shuffle(d.pile)
		m.decks[c] = d
		for i := 0; i < InitialHandSize; i++ {
			m.Draw(c)
		}
	}
	return m
}

func (m *Manager) instance(def Definition) Card {
	return Card{InstanceID: uuid.NewString(), ID: def.ID, Name: def.Name, AnimationDelay: def.AnimationDelay()}
}

// shuffle is Fisher-Yates over the seeded source.
func (m *Manager) shuffle(cards []Card) {
	for i := len(cards) - 1; i > 0; i-- {
		j := m.rng.Intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

func (m *Manager) Catalog() *Catalog { return m.catalog }

// Draw moves the top of c's pile into the hand. An empty pile yields the
// NoMoreCards sentinel, which is not added to the hand.
func (m *Manager) Draw(c rules.Color) Card {
	d := m.decks[c]
	if len(d.pile) == 0 {
		return m.instance(noMoreCardsDef)
	}
	top := d.pile[0]
	d.pile = d.pile[1:]
	d.hand = append(d.hand, top)
	return top
}

// RecordMove counts a completed move for c and draws on every DrawEvery-th move.
func (m *Manager) RecordMove(c rules.Color) (Card, bool) {
	d := m.decks[c]
	d.moveCount++
	if d.moveCount%DrawEvery != 0 {
		return Card{}, false
	}
	return m.Draw(c), true
}

func (m *Manager) MoveCount(c rules.Color) int { return m.decks[c].moveCount }

// Hand returns a copy of c's hand.
func (m *Manager) Hand(c rules.Color) []Card { return append([]Card(nil), m.decks[c].hand...) }

func (m *Manager) DrawPileCount(c rules.Color) int { return len(m.decks[c].pile) }

func (m *Manager) findInHand(c rules.Color, instanceID string) int {
	for i, card := range m.decks[c].hand {
		if card.InstanceID == instanceID {
			return i
		}
	}
	return -1
}

// Validate checks an activation request before any state is touched.
func (m *Manager) Validate(player, toMove rules.Color, instanceID string) (Card, Definition, error) {
	if player != toMove {
		return Card{}, Definition{}, ErrNotYourTurn
	}
	idx := m.findInHand(player, instanceID)
	if idx < 0 {
		return Card{}, Definition{}, ErrCardNotInHand
	}
	card := m.decks[player].hand[idx]
	def, ok := m.catalog.Lookup(card.ID)
	if !ok || !IsRegistered(card.ID) {
		return Card{}, Definition{}, ErrUnknownCard
	}
	if def.Global && m.decks[player].usedGlobal[card.ID] {
		return Card{}, Definition{}, ErrCardAlreadyUsed
	}
	return card, def, nil
}

// Consume removes the instance from c's hand and marks global cards as used.
func (m *Manager) Consume(c rules.Color, instanceID string) {
	d := m.decks[c]
	idx := m.findInHand(c, instanceID)
	if idx < 0 {
		return
	}
	card := d.hand[idx]
	d.hand = append(d.hand[:idx], d.hand[idx+1:]...)
	if def, ok := m.catalog.Lookup(card.ID); ok && def.Global {
		d.usedGlobal[card.ID] = true
	}
}

// exchange swaps own (by instance) with a random card from the opponent's hand.
func (m *Manager) exchange(c rules.Color, ownInstance string) (given, received Card, ok bool) {
	mine, theirs := m.decks[c], m.decks[c.Opponent()]
	i := m.findInHand(c, ownInstance)
	if i < 0 || len(theirs.hand) == 0 {
		return Card{}, Card{}, false
	}
	j := m.rng.Intn(len(theirs.hand))
	given, received = mine.hand[i], theirs.hand[j]
	mine.hand[i], theirs.hand[j] = received, given
	return given, received, true
}

// RecordCapture files a piece removed from the board under its owner's color.
func (m *Manager) RecordCapture(p rules.Piece) {
	if p.IsZero() || p.Kind == rules.King {
		return
	}
	m.captured[p.Color] = append(m.captured[p.Color], p.Kind)
}

// Captured lists c's pieces that have been taken, in capture order.
func (m *Manager) Captured(c rules.Color) []rules.PieceKind {
	return append([]rules.PieceKind(nil), m.captured[c]...)
}

func (m *Manager) takeCaptured(c rules.Color, k rules.PieceKind) bool {
	for i, kind := range m.captured[c] {
		if kind == k {
			m.captured[c] = append(m.captured[c][:i], m.captured[c][i+1:]...)
			return true
		}
	}
	return false
}

// AcquireGate blocks until no other activation is in flight.
func (m *Manager) AcquireGate(ctx context.Context) error { return m.gate.Acquire(ctx, 1) }

// TryAcquireGate reports false when an activation is already in flight.
func (m *Manager) TryAcquireGate() bool { return m.gate.TryAcquire(1) }

func (m *Manager) ReleaseGate() { m.gate.Release(1) }

// Apply runs the effect for an already validated card. On success, or on a
// failure that consumes the card, the card leaves the hand.
func (m *Manager) Apply(ctx *EffectContext) (Result, error) {
	eff, err := Resolve(ctx.Card.ID)
	if err != nil {
		return Result{}, err
	}
	ctx.Cards = m
	res := eff.Apply(ctx)
	if res.Success || res.ConsumesCardOnFailure {
		m.Consume(ctx.Player, ctx.Card.InstanceID)
	}
	return res, nil
}
