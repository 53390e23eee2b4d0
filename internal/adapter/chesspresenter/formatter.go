package chesspresenter

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/cardchess/pkg/chessdto"
)

const (
	fileLabels    = "  a b c d e f g h"
	historyRecent = 10
)

// Formatter renders DTOs as plain text for terminals and the text API.
type Formatter struct {
	// Unicode switches piece letters to chess glyphs.
	Unicode bool
}

func NewFormatter(unicode bool) *Formatter {
	return &Formatter{Unicode: unicode}
}

var glyphs = map[rune]string{
	'K': "♔", 'Q': "♕", 'R': "♖", 'B': "♗", 'N': "♘", 'P': "♙",
	'k': "♚", 'q': "♛", 'r': "♜", 'b': "♝", 'n': "♞", 'p': "♟",
}

// Board draws eight rank strings (rank 8 first, '.' for empty) as a labelled grid.
func (f *Formatter) Board(ranks []string) string {
	var sb strings.Builder
	for i, rank := range ranks {
		fmt.Fprintf(&sb, "%d", 8-i)
		for _, ch := range rank {
			sb.WriteByte(' ')
			sb.WriteString(f.square(ch))
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(fileLabels)
	return sb.String()
}

func (f *Formatter) square(ch rune) string {
	if f != nil && f.Unicode {
		if g, ok := glyphs[ch]; ok {
			return g
		}
	}
	return string(ch)
}

func (f *Formatter) Status(state *chessdto.SessionState) string {
	if state == nil {
		return "no session"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "session %s (%s)\n", state.SessionID, state.Mode)
	sb.WriteString(f.Board(state.Ranks))
	sb.WriteString("\n\n")
	for _, p := range state.Players {
		label := p.Name
		if p.Computer {
			label += " [computer]"
		}
		fmt.Fprintf(&sb, "%s: %s\n", p.Color, label)
	}
	fmt.Fprintf(&sb, "clock: white %s | black %s", FormatClock(state.Clock.WhiteMillis), FormatClock(state.Clock.BlackMillis))
	if state.Clock.Active != "" {
		fmt.Fprintf(&sb, " (%s running)", state.Clock.Active)
	}
	sb.WriteByte('\n')
	if len(state.Hand) > 0 {
		names := make([]string, 0, len(state.Hand))
		for _, c := range state.Hand {
			names = append(names, c.Name)
		}
		fmt.Fprintf(&sb, "hand: %s (pile %d)\n", strings.Join(names, ", "), state.DrawPile)
	}
	appendCapturedLine(&sb, state.Captured)
	if state.Message != "" {
		sb.WriteString(state.Message)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func appendCapturedLine(sb *strings.Builder, captured chessdto.CapturedPieces) {
	if len(captured.White) == 0 && len(captured.Black) == 0 {
		return
	}
	fmt.Fprintf(sb, "captured by white: %s | by black: %s\n", joinOrDash(captured.White), joinOrDash(captured.Black))
}

// History lists the most recent entries, oldest first.
func (f *Formatter) History(entries []chessdto.HistoryEntry) string {
	if len(entries) > historyRecent {
		entries = entries[len(entries)-historyRecent:]
	}
	var sb strings.Builder
	for _, e := range entries {
		switch e.Kind {
		case "move":
			move := e.SAN
			if move == "" {
				move = e.UCI
			}
			fmt.Fprintf(&sb, "%3d. %-5s %s", e.Seq, e.Player, move)
			if e.Captured != "" {
				fmt.Fprintf(&sb, " (x%s)", e.Captured)
			}
		default:
			outcome := "ok"
			if !e.CardSuccess {
				outcome = "failed"
			}
			fmt.Fprintf(&sb, "%3d. %-5s card %s %s", e.Seq, e.Player, e.CardName, outcome)
			if e.CardDetail != "" {
				fmt.Fprintf(&sb, ": %s", e.CardDetail)
			}
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatClock renders milliseconds as m:ss, or h:mm:ss past an hour.
func FormatClock(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	d := time.Duration(ms) * time.Millisecond
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func joinOrDash(list []string) string {
	if len(list) == 0 {
		return "-"
	}
	return strings.Join(list, " ")
}
