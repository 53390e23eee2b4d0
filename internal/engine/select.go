package engine

import (
	"errors"
	"math/rand"

	"github.com/park285/cardchess/internal/engine/uci"
)

var errNoCandidates = errors.New("no candidates to choose from")

// selectCandidate picks one of the top lines by weight so weaker presets do not
// always play the engine's first choice.
func selectCandidate(weights []float64, candidates []uci.Candidate, r *rand.Rand) (uci.Candidate, error) {
	if len(candidates) == 0 {
		return uci.Candidate{}, errNoCandidates
	}
	limit := min(len(weights), len(candidates))
	if limit <= 1 || r == nil {
		return candidates[0], nil
	}
	total := 0.0
	for _, w := range weights[:limit] {
		total += w
	}
	if total <= 0 {
		return candidates[0], nil
	}
	threshold := r.Float64() * total
	for i, w := range weights[:limit] {
		threshold -= w
		if threshold <= 0 {
			return candidates[i], nil
		}
	}
	return candidates[limit-1], nil
}
