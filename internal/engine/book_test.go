package engine

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// polyglotMove packs from/to squares given as (file, rank) with rank 0 = rank 1.
func polyglotMove(fromFile, fromRank, toFile, toRank int) uint16 {
	return uint16(toFile | toRank<<3 | fromFile<<6 | fromRank<<9)
}

func testBook(t *testing.T) *Book {
	t.Helper()
	hashStr, err := nchess.NewZobristHasher().HashPosition(startFEN)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	key := nchess.ZobristHashToUint64(hashStr)

	var buf bytes.Buffer
	for _, e := range []struct {
		move   uint16
		weight uint16
	}{
		{polyglotMove(4, 1, 4, 3), 3},   // e2e4
		{polyglotMove(3, 1, 3, 3), 1},   // d2d4
		{polyglotMove(4, 1, 4, 4), 100}, // e2e5, illegal
	} {
		_ = binary.Write(&buf, binary.BigEndian, key)
		_ = binary.Write(&buf, binary.BigEndian, e.move)
		_ = binary.Write(&buf, binary.BigEndian, e.weight)
		_ = binary.Write(&buf, binary.BigEndian, uint32(0))
	}
	b, err := NewBook(&buf, 1, 7)
	if err != nil {
		t.Fatalf("NewBook: %v", err)
	}
	return b
}

func TestBookPicksWeightedLegalMoves(t *testing.T) {
	b := testBook(t)
	seen := map[string]int{}
	for range 50 {
		mv, err := b.GetNextMove(context.Background(), startFEN, 0)
		if err != nil {
			t.Fatalf("book: %v", err)
		}
		seen[mv]++
	}
	if seen["e2e5"] > 0 {
		t.Fatalf("illegal book move returned")
	}
	if seen["e2e4"] == 0 || seen["d2d4"] == 0 || seen["e2e4"]+seen["d2d4"] != 50 {
		t.Fatalf("distribution = %v", seen)
	}
}

func TestBookMissFallsThroughChain(t *testing.T) {
	b := testBook(t)
	afterCard := "rnbqkbnr/pppppppp/8/8/8/2N5/PPPPPPPP/R1BQKBNR b KQkq - 0 1"
	if _, err := b.GetNextMove(context.Background(), afterCard, 0); !errors.Is(err, ErrOutOfBook) {
		t.Fatalf("expected out of book, got %v", err)
	}

	chain := Chain{b, NewSearcher(1)}
	mv, err := chain.GetNextMove(context.Background(), afterCard, 1)
	if err != nil || len(mv) < 4 {
		t.Fatalf("chain move = %q, %v", mv, err)
	}
}
