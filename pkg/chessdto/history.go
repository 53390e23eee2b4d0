package chessdto

import "time"

// HistoryEntry is one line of a session's move/card log.
type HistoryEntry struct {
	Seq         int       `json:"seq"`
	Kind        string    `json:"kind"`
	Player      string    `json:"player"`
	At          time.Time `json:"at"`
	ThinkMillis int64     `json:"think_ms"`
	UCI         string    `json:"uci,omitempty"`
	SAN         string    `json:"san,omitempty"`
	Captured    string    `json:"captured,omitempty"`
	CardID      string    `json:"card_id,omitempty"`
	CardName    string    `json:"card_name,omitempty"`
	CardSuccess bool      `json:"card_success,omitempty"`
	CardDetail  string    `json:"card_detail,omitempty"`
	WhiteMillis int64     `json:"white_ms"`
	BlackMillis int64     `json:"black_ms"`
}
