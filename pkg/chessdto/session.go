package chessdto

type Clock struct {
	WhiteMillis int64  `json:"white_ms"`
	BlackMillis int64  `json:"black_ms"`
	Active      string `json:"active,omitempty"`
}

type CapturedPieces struct {
	White []string `json:"white"`
	Black []string `json:"black"`
}

type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Computer bool   `json:"computer,omitempty"`
}

type Card struct {
	InstanceID       string `json:"instance_id"`
	ID               string `json:"id"`
	Name             string `json:"name"`
	AnimationDelayMs int64  `json:"animation_delay_ms,omitempty"`
}

// SessionState is what a viewer sees: the board plus their own hand only.
type SessionState struct {
	SessionID        string         `json:"session_id"`
	Mode             string         `json:"mode"`
	Status           string         `json:"status"`
	Message          string         `json:"message,omitempty"`
	FEN              string         `json:"fen"`
	Ranks            []string       `json:"ranks"`
	Turn             string         `json:"turn"`
	InCheck          bool           `json:"in_check,omitempty"`
	Result           string         `json:"result,omitempty"`
	Reason           string         `json:"reason,omitempty"`
	Winner           string         `json:"winner,omitempty"`
	Players          []Player       `json:"players"`
	Clock            Clock          `json:"clock"`
	Hand             []Card         `json:"hand"`
	DrawPile         int            `json:"draw_pile"`
	OpponentHandSize int            `json:"opponent_hand_size"`
	Captured         CapturedPieces `json:"captured"`
	ExtraTurnPending bool           `json:"extra_turn_pending,omitempty"`
	PromotionPending string         `json:"promotion_pending,omitempty"`
	MoveCount        int            `json:"move_count"`
	CardInProgress   bool           `json:"card_in_progress,omitempty"`
}
