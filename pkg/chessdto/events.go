package chessdto

// Event types pushed over the websocket.
const (
	EventTurnChanged   = "turn_changed"
	EventTimeUpdate    = "time_update"
	EventCardPlayed    = "card_played"
	EventHandUpdated   = "hand_updated"
	EventCardAnimation = "card_animation"
)

// Event is the websocket envelope. Payload is one of the *Payload types.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Payload   any    `json:"payload"`
}

type TurnChangedPayload struct {
	FEN        string   `json:"fen"`
	Ranks      []string `json:"ranks"`
	NextPlayer string   `json:"next_player"`
	Status     string   `json:"status"`
	Result     string   `json:"result,omitempty"`
	LastFrom   string   `json:"last_from,omitempty"`
	LastTo     string   `json:"last_to,omitempty"`
	Affected   []string `json:"affected,omitempty"`
	InCheck    bool     `json:"in_check,omitempty"`
}

type CardPlayedPayload struct {
	PlayerID string `json:"player_id"`
	Card     Card   `json:"card"`
}

type HandUpdatedPayload struct {
	Hand     []Card `json:"hand"`
	DrawPile int    `json:"draw_pile"`
}

type CardAnimationPayload struct {
	PlayerID string `json:"player_id"`
	Color    string `json:"color"`
	Card     Card   `json:"card"`
}
