package session

import (
	"math/rand"
	"strings"

	"github.com/park285/cardchess/internal/rules"
)

// ColorPreference is what a joining player asks for.
type ColorPreference int

const (
	PreferAny ColorPreference = iota
	PreferWhite
	PreferBlack
)

// ParseColorPreference accepts "white", "black", "random" or "".
func ParseColorPreference(s string) (ColorPreference, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "random":
		return PreferAny, true
	case "white", "w":
		return PreferWhite, true
	case "black", "b":
		return PreferBlack, true
	}
	return PreferAny, false
}

type seat struct {
	id       string
	name     string
	computer bool
}

// PlayerManager seats up to two players, one per color.
// Guarded by the owning session's lock.
type PlayerManager struct {
	seats [2]*seat
	rng   *rand.Rand
}

func NewPlayerManager(rng *rand.Rand) *PlayerManager { return &PlayerManager{rng: rng} }

// Join seats id. The first player gets their preference (random for PreferAny);
// later players take whatever slot is left.
func (pm *PlayerManager) Join(id, name string, pref ColorPreference, computer bool) (rules.Color, error) {
	if _, ok := pm.ColorOf(id); ok {
		return rules.White, ErrAlreadyJoined
	}
	var free []rules.Color
	for _, c := range []rules.Color{rules.White, rules.Black} {
		if pm.seats[c] == nil {
			free = append(free, c)
		}
	}
	if len(free) == 0 {
		return rules.White, ErrSessionFull
	}
	color := free[0]
	switch {
	case len(free) == 1:
	case pref == PreferWhite:
		color = rules.White
	case pref == PreferBlack:
		color = rules.Black
	default:
		if pm.rng != nil && pm.rng.Intn(2) == 1 {
			color = rules.Black
		}
	}
	if strings.TrimSpace(name) == "" {
		name = id
	}
	pm.seats[color] = &seat{id: id, name: name, computer: computer}
	return color, nil
}

// ColorOf returns the seat color of id.
func (pm *PlayerManager) ColorOf(id string) (rules.Color, bool) {
	for _, c := range []rules.Color{rules.White, rules.Black} {
		if s := pm.seats[c]; s != nil && s.id == id {
			return c, true
		}
	}
	return rules.White, false
}

// At returns who sits at c.
func (pm *PlayerManager) At(c rules.Color) (PlayerView, bool) {
	s := pm.seats[c]
	if s == nil {
		return PlayerView{}, false
	}
	return PlayerView{ID: s.id, Name: s.name, Color: c, Computer: s.computer}, true
}

func (pm *PlayerManager) IsComputer(c rules.Color) bool {
	s := pm.seats[c]
	return s != nil && s.computer
}

func (pm *PlayerManager) Full() bool { return pm.seats[0] != nil && pm.seats[1] != nil }

// Players lists the seated players, white first.
func (pm *PlayerManager) Players() []PlayerView {
	var out []PlayerView
	for _, c := range []rules.Color{rules.White, rules.Black} {
		if p, ok := pm.At(c); ok {
			out = append(out, p)
		}
	}
	return out
}
