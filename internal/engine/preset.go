package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/park285/cardchess/internal/engine/uci"
)

// Preset is a difficulty level: engine strength, search limits and how often
// the computer strays from the best line.
type Preset struct {
	Name           string
	Depth          int
	SkillLevel     int
	Elo            int
	HashMB         int
	MultiPV        int
	MoveTimeMillis int
	// Weights picks among the top len(Weights) lines; nil always plays the best.
	Weights []float64
}

var presets = map[string]Preset{
	"easy":   {Name: "easy", Depth: 4, SkillLevel: 0, Elo: 800, HashMB: 16, MultiPV: 3, Weights: []float64{0.5, 0.3, 0.2}},
	"normal": {Name: "normal", Depth: 8, SkillLevel: 5, Elo: 1300, HashMB: 32, MultiPV: 2, Weights: []float64{0.8, 0.2}},
	"hard":   {Name: "hard", Depth: 14, SkillLevel: 12, Elo: 1800, HashMB: 64, MultiPV: 1},
	"master": {Name: "master", Depth: 20, SkillLevel: 20, HashMB: 128, MultiPV: 1},
}

// LookupPreset resolves a difficulty name. Aliases: beginner, intermediate, expert.
func LookupPreset(name string) (Preset, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "", "default":
		key = "normal"
	case "beginner":
		key = "easy"
	case "intermediate":
		key = "normal"
	case "expert":
		key = "master"
	}
	p, ok := presets[key]
	if !ok {
		return Preset{}, fmt.Errorf("unknown difficulty %q", name)
	}
	return p.clone(), nil
}

// PresetNames lists the difficulty names, sorted by depth.
func PresetNames() []string {
	out := make([]string, 0, len(presets))
	for name := range presets {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return presets[out[i]].Depth < presets[out[j]].Depth })
	return out
}

// PresetForDepth returns the weakest preset whose depth reaches depth, with
// Depth overridden to exactly depth.
func PresetForDepth(depth int) Preset {
	var chosen Preset
	for _, name := range PresetNames() {
		chosen = presets[name]
		if chosen.Depth >= depth {
			break
		}
	}
	chosen = chosen.clone()
	if depth > 0 {
		chosen.Depth = depth
	}
	return chosen
}

func (p Preset) clone() Preset {
	p.Weights = append([]float64(nil), p.Weights...)
	return p
}

func (p Preset) options(threads int) uci.Options {
	return uci.Options{
		Threads:    threads,
		SkillLevel: p.SkillLevel,
		HashMB:     p.HashMB,
		MultiPV:    max(p.MultiPV, 1),
		Elo:        p.Elo,
	}
}

func (p Preset) limits() uci.Limits {
	return uci.Limits{Depth: p.Depth, MoveTimeMillis: p.MoveTimeMillis}
}
