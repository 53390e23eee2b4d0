package archive

import (
	"fmt"
	"strings"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
	"github.com/park285/cardchess/internal/domain"
)

var ecoBook = sync.OnceValue(opening.NewBookECO)

func mapResultToPGN(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders a record as PGN. Card plays become {card: ...} comments
// between the moves they were played around.
func BuildPGN(rec *domain.GameRecord) string {
	if rec == nil {
		return ""
	}
	var b strings.Builder
	date := rec.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	pgnResult := mapResultToPGN(rec.Result)
	b.WriteString("[Event \"Card Chess\"]\n")
	b.WriteString("[Site \"cardchess\"]\n")
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[White \"%s\"]\n", sanitizePGN(rec.WhiteName))
	fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitizePGN(rec.BlackName))
	if strings.TrimSpace(rec.Mode) != "" {
		fmt.Fprintf(&b, "[Mode \"%s\"]\n", sanitizePGN(rec.Mode))
	}
	if strings.TrimSpace(rec.Reason) != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(rec.Reason)))
	}
	if rec.StartFEN != "" {
		b.WriteString("[SetUp \"1\"]\n")
		fmt.Fprintf(&b, "[FEN \"%s\"]\n", sanitizePGN(rec.StartFEN))
	} else if code, title := ClassifyOpening(rec); code != "" {
		fmt.Fprintf(&b, "[ECO \"%s\"]\n", code)
		fmt.Fprintf(&b, "[Opening \"%s\"]\n", sanitizePGN(title))
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", pgnResult)

	var tokens []string
	number := 1
	afterWhite := false
	lastColor := ""
	for _, l := range rec.Log {
		if l.Kind != "move" {
			tokens = append(tokens, cardComment(l))
			afterWhite = false
			continue
		}
		move := strings.TrimSpace(l.SAN)
		if move == "" {
			move = l.UCI
		}
		if l.Color == "white" {
			// a second white move in a row is an extra turn
			if lastColor == "white" {
				number++
			}
			tokens = append(tokens, fmt.Sprintf("%d. %s", number, move))
			afterWhite = true
		} else {
			if afterWhite {
				tokens = append(tokens, move)
			} else {
				tokens = append(tokens, fmt.Sprintf("%d... %s", number, move))
			}
			number++
			afterWhite = false
		}
		lastColor = l.Color
	}
	tokens = append(tokens, pgnResult)
	b.WriteString(strings.Join(tokens, " "))
	return b.String()
}

// ClassifyOpening names the opening of a game from the standard position. Only
// the moves before the first successful card count; after that the board no
// longer follows the move list.
func ClassifyOpening(rec *domain.GameRecord) (code, title string) {
	if rec == nil || rec.StartFEN != "" {
		return "", ""
	}
	game := nchess.NewGame()
	for _, l := range rec.Log {
		if l.Kind != "move" {
			if l.Success {
				break
			}
			continue
		}
		if l.UCI == "" || game.PushNotationMove(l.UCI, nchess.UCINotation{}, nil) != nil {
			break
		}
	}
	if len(game.Moves()) == 0 {
		return "", ""
	}
	eco := ecoBook().Find(game.Moves())
	if eco == nil {
		return "", ""
	}
	return eco.Code(), eco.Title()
}

func cardComment(l domain.LogLine) string {
	name := l.CardName
	if name == "" {
		name = l.CardID
	}
	text := name
	if !l.Success {
		text += " failed"
	}
	if d := strings.TrimSpace(l.Detail); d != "" {
		text += ": " + d
	}
	// braces would end the comment early
	text = strings.NewReplacer("{", "(", "}", ")").Replace(text)
	return fmt.Sprintf("{card: %s %s}", l.Color, sanitizePGN(text))
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
