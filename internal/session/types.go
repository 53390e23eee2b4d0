package session

import (
	"context"
	"errors"
	"time"

	"github.com/park285/cardchess/internal/cards"
	"github.com/park285/cardchess/internal/domain"
	"github.com/park285/cardchess/internal/msgcat"
	"github.com/park285/cardchess/internal/rules"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionFull      = errors.New("session already has two players")
	ErrAlreadyJoined    = errors.New("player already seated")
	ErrTooManySessions  = errors.New("session limit reached")
	ErrMalformedRequest = errors.New("malformed request")
	ErrSessionClosed    = errors.New("session closed")
)

type Mode string

const (
	ModeHuman    Mode = "pvp"
	ModeComputer Mode = "computer"
)

// ParseMode accepts "pvp"/"human" and "computer"/"ai". Empty means pvp.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "", "pvp", "human":
		return ModeHuman, true
	case "computer", "ai", "cpu":
		return ModeComputer, true
	}
	return "", false
}

// Notifier receives outbound events. Calls are made after the session lock is
// released; implementations must not block and must not call back into the session.
type Notifier interface {
	NotifyTurnChanged(sessionID string, ev TurnChanged)
	NotifyTimeUpdate(sessionID string, ev TimeUpdate)
	NotifyCardPlayed(sessionID, playerID string, card cards.Card)
	NotifyHandUpdated(sessionID, playerID string, hand []cards.Card, drawPileCount int)
	NotifyCardActivationAnimation(sessionID string, card cards.Card, playerID string, color rules.Color)
}

// Oracle picks a move for a position. An empty move with a nil error means none.
type Oracle interface {
	GetNextMove(ctx context.Context, fen string, depth int) (string, error)
}

// Archiver persists finished games.
type Archiver interface {
	SaveGame(ctx context.Context, rec *domain.GameRecord) error
}

// TurnChanged is the board broadcast after every resolved action.
type TurnChanged struct {
	FEN        string
	Ranks      []string
	NextPlayer rules.Color
	Status     string
	Result     string
	LastFrom   string
	LastTo     string
	Affected   []string
	InCheck    bool
}

// TimeUpdate carries both balances; Active is "" when no clock runs.
type TimeUpdate struct {
	White  time.Duration
	Black  time.Duration
	Active string
}

// Options configures one session.
type Options struct {
	Mode         Mode
	InitialTime  time.Duration
	TickInterval time.Duration

	// ComputerDepth is the search depth handed to the oracle.
	ComputerDepth int
	// ComputerDelay is the pause before the computer asks the oracle.
	ComputerDelay time.Duration
	ComputerName  string

	Catalog *cards.Catalog
	// Seed drives deck shuffles; 0 picks a time based seed.
	Seed int64
	// FEN optionally starts from a custom position.
	FEN string

	Now func() time.Time
	// ManualClock disables the background ticker (tests).
	ManualClock bool
	// SkipAnimations ignores card animation delays (tests).
	SkipAnimations bool
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeHuman
	}
	if o.InitialTime <= 0 {
		o.InitialTime = 10 * time.Minute
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.ComputerDepth <= 0 {
		o.ComputerDepth = 8
	}
	if o.ComputerDelay < 0 {
		o.ComputerDelay = 0
	}
	if o.ComputerName == "" {
		o.ComputerName = "Computer"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Deps are the collaborators shared by every session of a registry.
type Deps struct {
	Notifier Notifier
	Oracle   Oracle
	Archiver Archiver
	Messages *msgcat.Catalog
}

// CardRequest is a decoded activation request.
type CardRequest struct {
	InstanceID string
	Params     cards.Params
}

// MoveResult is returned by MakeMove, Promote and Resign.
type MoveResult struct {
	IsValid  bool
	Code     string
	Message  string
	Snapshot Snapshot
}

// CardResult is returned by ActivateCard.
type CardResult struct {
	Success  bool
	Consumed bool
	Code     string
	Message  string
	Card     cards.Card
	Snapshot Snapshot
}

// PlayerView is the public part of a seat.
type PlayerView struct {
	ID       string
	Name     string
	Color    rules.Color
	Computer bool
}

// Snapshot is a viewer specific read of the whole session.
type Snapshot struct {
	SessionID string
	Mode      Mode
	Status    string
	Message   string
	FEN       string
	Ranks     []string
	Turn      rules.Color
	InCheck   bool
	Result    string
	Reason    string
	Winner    string

	Players []PlayerView

	WhiteTime   time.Duration
	BlackTime   time.Duration
	ActiveClock string

	Hand             []cards.Card
	DrawPile         int
	OpponentHandSize int
	CapturedWhite    []string
	CapturedBlack    []string
	ExtraTurnPending bool
	PromotionPending string
	MoveCount        int
	CardInProgress   bool
}

const (
	StatusWaiting = "waiting"
	StatusOngoing = "ongoing"
	StatusOver    = "over"
)
