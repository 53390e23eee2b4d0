package session

import (
	nchess "github.com/corentings/chess/v2"
)

// sanFor renders uci in SAN for the position fen. Card relocations can produce
// positions the library refuses; the UCI string is returned then.
func sanFor(fen, uci string) string {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return uci
	}
	game := nchess.NewGame(opt)
	pos := game.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil || mv == nil {
		return uci
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	if san == "" {
		return uci
	}
	return san
}
