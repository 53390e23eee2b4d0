package cards

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/park285/cardchess/internal/clock"
	"github.com/park285/cardchess/internal/rules"
)

var (
	ErrDuplicateRegistration = errors.New("card effect already registered")
	ErrUnknownCard           = errors.New("unknown card")
)

// TimeControl is the part of the session clock card effects may touch.
type TimeControl interface {
	AddTime(rules.Color, time.Duration) clock.Snapshot
	SubtractTime(rules.Color, time.Duration) clock.Snapshot
	SwapTimes() clock.Snapshot
}

// Params carries the decoded request arguments. Which fields matter depends on the card.
type Params struct {
	From           string
	To             string
	PieceType      string
	TargetInstance string
}

// EffectContext is everything an effect may read or mutate. It is only valid
// while the session lock is held.
type EffectContext struct {
	Player     rules.Color
	Card       Card
	Definition Definition
	Game       *rules.GameState
	Clock      TimeControl
	Cards      *Manager
	Params     Params
}

// Result reports what an effect did. Code is a message catalog key.
type Result struct {
	Success bool
	Code    string
	Data    map[string]any

	BoardMutated bool
	EndsTurn     bool
	ExtraTurn    bool
	Highlight    []rules.Position
	// Move is set for relocations so the UI can animate From/To.
	Move *rules.Move
	// Exchanged holds (given, received) for a card swap.
	Exchanged []Card
	Drawn     []Card
	// ConsumesCardOnFailure burns the card and ends the turn even though Success is false.
	ConsumesCardOnFailure bool
}

func fail(code string, data map[string]any) Result { return Result{Code: code, Data: data} }

// burn is a failure that still consumes the card and passes the turn.
func burn(code string, data map[string]any) Result {
	return Result{Code: code, Data: data, ConsumesCardOnFailure: true, EndsTurn: true}
}

// Effect is one card implementation.
type Effect interface {
	Apply(ctx *EffectContext) Result
}

// EffectFunc adapts a plain function to Effect.
type EffectFunc func(ctx *EffectContext) Result

func (f EffectFunc) Apply(ctx *EffectContext) Result { return f(ctx) }

// Factory constructs a fresh Effect for one activation.
type Factory func() Effect

var (
	registryMu sync.RWMutex
	registry   = make(map[CardID]Factory)
)

// Register binds a card id to its effect. Registering an id twice fails.
func Register(id CardID, factory Factory) error {
	if id == "" || factory == nil {
		return fmt.Errorf("register %q: empty id or nil factory", id)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRegistration, id)
	}
	registry[id] = factory
	return nil
}

func IsRegistered(id CardID) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[id]
	return ok
}

// Resolve returns a new effect for id.
func Resolve(id CardID) (Effect, error) {
	registryMu.RLock()
	factory, ok := registry[id]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCard, id)
	}
	return factory(), nil
}

// Registered lists every bound id, sorted.
func Registered() []CardID {
	registryMu.RLock()
	out := make([]CardID, 0, len(registry))
	for id := range registry {
		out = append(out, id)
	}
	registryMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func mustRegister(id CardID, f EffectFunc) {
	if err := Register(id, func() Effect { return f }); err != nil {
		panic(err)
	}
}
