package lobby

import (
	"context"
	"time"

	"github.com/park285/cardchess/internal/session"
)

// State is the lifecycle of a lobby code.
type State string

const (
	StateLobby    State = "LOBBY"
	StateActive   State = "ACTIVE"
	StateFinished State = "FINISHED"
	StateAborted  State = "ABORTED"
)

// Meta is stored as JSON in Redis under lobby:<code>.
type Meta struct {
	Code      string    `json:"code"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`

	CreatorID    string `json:"creator_id"`
	CreatorName  string `json:"creator_name"`
	CreatorColor string `json:"creator_color,omitempty"`

	WhiteID   string `json:"white_id,omitempty"`
	WhiteName string `json:"white_name,omitempty"`
	BlackID   string `json:"black_id,omitempty"`
	BlackName string `json:"black_name,omitempty"`

	SessionID string `json:"session_id,omitempty"`
}

type MakeResult struct {
	Code string
	Meta *Meta
}

type JoinResult struct {
	Started   bool
	SessionID string
	Meta      *Meta
}

// Seat is one side of a lobby handed to the Starter.
type Seat struct {
	ID   string
	Name string
	Pref session.ColorPreference
}

// Started reports the seating chosen by the Starter.
type Started struct {
	SessionID string
	WhiteID   string
	WhiteName string
	BlackID   string
	BlackName string
}

// Starter creates the game once both seats are taken.
type Starter interface {
	Start(ctx context.Context, creator, joiner Seat) (Started, error)
	// Active reports whether a previously started session is still being played.
	Active(sessionID string) bool
}

var (
	ErrInvalidArgs     = errf("invalid arguments")
	ErrLobbyGone       = errf("lobby not found or expired")
	ErrLobbyClosed     = errf("lobby is no longer open")
	ErrFull            = errf("lobby already has two participants")
	ErrSelfJoin        = errf("cannot join your own lobby")
	ErrPlayerBusy      = errf("player has an active game")
	ErrCreatorHasLobby = errf("user already has an open lobby")
	ErrNotCreator      = errf("only the creator can cancel a lobby")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

func errf(s string) error { return staticErr(s) }
