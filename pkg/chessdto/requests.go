package chessdto

type CreateSessionRequest struct {
	Mode       string `json:"mode"`
	PlayerID   string `json:"player_id"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	Difficulty string `json:"difficulty"`

	// InitialSeconds overrides the server clock default when positive.
	InitialSeconds int    `json:"initial_seconds"`
	FEN            string `json:"fen"`
}

type JoinRequest struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
}

type JoinResponse struct {
	SessionID string        `json:"session_id"`
	Color     string        `json:"color"`
	State     *SessionState `json:"state"`
}

type MoveRequest struct {
	PlayerID  string `json:"player_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

type MoveResponse struct {
	Valid   bool          `json:"valid"`
	Code    string        `json:"code"`
	Message string        `json:"message"`
	State   *SessionState `json:"state"`
}

type CardRequest struct {
	PlayerID       string `json:"player_id"`
	InstanceID     string `json:"instance_id"`
	From           string `json:"from,omitempty"`
	To             string `json:"to,omitempty"`
	PieceType      string `json:"piece_type,omitempty"`
	TargetInstance string `json:"target_instance,omitempty"`
}

type CardResponse struct {
	Success  bool          `json:"success"`
	Consumed bool          `json:"consumed"`
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Card     *Card         `json:"card,omitempty"`
	State    *SessionState `json:"state"`
}

type PromoteRequest struct {
	PlayerID string `json:"player_id"`
	Piece    string `json:"piece"`
}

type ResignRequest struct {
	PlayerID string `json:"player_id"`
}

type LegalMovesResponse struct {
	From    string   `json:"from"`
	Targets []string `json:"targets"`
}

type LobbyRequest struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
}

type LobbyResponse struct {
	Code      string `json:"code"`
	SessionID string `json:"session_id,omitempty"`
	Ready     bool   `json:"ready"`
}
