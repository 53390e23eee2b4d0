package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
)

// ErrOutOfBook means the position has no usable book move. Chain treats it as
// a quiet miss.
var ErrOutOfBook = errors.New("position not in opening book")

// Book answers from a polyglot opening book. Card effects quickly lead to
// positions no book knows, so it always sits in front of a real oracle.
type Book struct {
	book      *nchess.PolyglotBook
	minWeight uint16

	mu   sync.Mutex
	rand *rand.Rand
}

// LoadBook opens a polyglot .bin file.
func LoadBook(path string, minWeight uint16) (*Book, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("polyglot book path required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open polyglot book %q: %w", path, err)
	}
	defer f.Close()
	return NewBook(f, minWeight, time.Now().UnixNano())
}

func NewBook(r io.Reader, minWeight uint16, seed int64) (*Book, error) {
	book, err := nchess.LoadFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("load polyglot book: %w", err)
	}
	return &Book{book: book, minWeight: minWeight, rand: rand.New(rand.NewSource(seed))}, nil
}

// GetNextMove picks a book move for fen, weighted by the book's move weights.
// depth is ignored.
func (b *Book) GetNextMove(_ context.Context, fen string, _ int) (string, error) {
	hashStr, err := nchess.NewZobristHasher().HashPosition(fen)
	if err != nil {
		return "", fmt.Errorf("compute polyglot hash: %w", err)
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return "", fmt.Errorf("book: %w", err)
	}

	type weighted struct {
		move   string
		weight int
	}
	var candidates []weighted
	total := 0
	for _, entry := range b.book.FindMoves(nchess.ZobristHashToUint64(hashStr)) {
		if entry.Weight < b.minWeight || entry.Weight == 0 {
			continue
		}
		move := nchess.DecodeMove(entry.Move).ToMove()
		uci := move.String()
		// hash collisions and stale books: only keep moves legal here
		verify := nchess.NewGame(opt)
		if err := verify.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
			continue
		}
		candidates = append(candidates, weighted{move: uci, weight: int(entry.Weight)})
		total += int(entry.Weight)
	}
	if len(candidates) == 0 {
		return "", ErrOutOfBook
	}

	b.mu.Lock()
	pick := b.rand.Intn(total)
	b.mu.Unlock()
	for _, c := range candidates {
		if pick < c.weight {
			return c.move, nil
		}
		pick -= c.weight
	}
	return candidates[len(candidates)-1].move, nil
}
