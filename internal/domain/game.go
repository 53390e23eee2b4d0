package domain

import "time"

// GameRecord is a finished session as handed to the archive.
type GameRecord struct {
	SessionID string
	Mode      string

	WhiteID   string
	WhiteName string
	BlackID   string
	BlackName string

	// Result is "white", "black" or "draw".
	Result   string
	Reason   string
	// StartFEN is empty for games from the standard position.
	StartFEN string
	FinalFEN string

	Log []LogLine

	StartedAt time.Time
	EndedAt   time.Time
}

// LogLine is one archived history entry.
type LogLine struct {
	Kind     string
	Color    string
	UCI      string
	SAN      string
	CardID   string
	CardName string
	Success  bool
	Detail   string
	At       time.Time
}

// SANMoves returns the SAN of chess moves, falling back to UCI.
func (g *GameRecord) SANMoves() []string {
	var out []string
	for _, l := range g.Log {
		if l.Kind != "move" {
			continue
		}
		if l.SAN != "" {
			out = append(out, l.SAN)
		} else {
			out = append(out, l.UCI)
		}
	}
	return out
}

// UCIMoves returns the engine notation of chess moves in order.
func (g *GameRecord) UCIMoves() []string {
	var out []string
	for _, l := range g.Log {
		if l.Kind == "move" {
			out = append(out, l.UCI)
		}
	}
	return out
}
