package notify

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/park285/cardchess/internal/adapter/chesspresenter"
	"github.com/park285/cardchess/internal/cards"
	"github.com/park285/cardchess/internal/rules"
	"github.com/park285/cardchess/internal/session"
	"github.com/park285/cardchess/pkg/chessdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// EventState is sent once right after a connection is accepted.
const EventState = "state"

var ErrUnauthorized = errors.New("player is not seated in this session")

// StateFunc resolves the viewer's current state. An error refuses the connection.
type StateFunc func(sessionID, playerID string) (*chessdto.SessionState, error)

// Options tunes per-connection behaviour. Zero values take defaults.
type Options struct {
	SendBuffer     int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	AllowAnyOrigin bool
	OriginPatterns []string
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	return o
}

// Hub fans session events out to websocket connections. It implements
// session.Notifier; every Notify call only enqueues and never blocks.
type Hub struct {
	opts   Options
	logger *zap.Logger
	state  StateFunc

	mu       sync.RWMutex
	sessions map[string]map[*client]struct{}
	closed   bool

	wg sync.WaitGroup
}

var _ session.Notifier = (*Hub)(nil)

func NewHub(opts Options, state StateFunc, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		opts:     opts.withDefaults(),
		logger:   logger,
		state:    state,
		sessions: make(map[string]map[*client]struct{}),
	}
}

type client struct {
	sessionID string
	playerID  string
	conn      *websocket.Conn
	send      chan chessdto.Event
	ctx       context.Context
	cancel    context.CancelFunc
}

// ServeHTTP upgrades GET /ws?session=<id>&player=<id>.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	playerID := strings.TrimSpace(r.URL.Query().Get("player"))
	if sessionID == "" || playerID == "" {
		http.Error(w, "session and player are required", http.StatusBadRequest)
		return
	}
	var initial *chessdto.SessionState
	if h.state != nil {
		st, err := h.state(sessionID, playerID)
		if err != nil {
			status := http.StatusForbidden
			if errors.Is(err, session.ErrSessionNotFound) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		initial = st
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: h.opts.AllowAnyOrigin,
		OriginPatterns:     h.opts.OriginPatterns,
		CompressionMode:    websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		h.logger.Warn("ws_accept_failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	// CloseRead discards client frames; its context ends when the peer goes away.
	ctx, cancel := context.WithCancel(conn.CloseRead(context.Background()))
	c := &client{
		sessionID: sessionID,
		playerID:  playerID,
		conn:      conn,
		send:      make(chan chessdto.Event, h.opts.SendBuffer),
		ctx:       ctx,
		cancel:    cancel,
	}
	if !h.add(c) {
		cancel()
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	h.logger.Info("ws_connected", zap.String("session_id", sessionID), zap.String("player_id", playerID))
	if initial != nil {
		c.enqueue(chessdto.Event{Type: EventState, SessionID: sessionID, Payload: initial})
	}

	go func() {
		defer h.wg.Done()
		h.pingLoop(c)
	}()
	defer h.wg.Done()
	h.writeLoop(c)
}

func (h *Hub) writeLoop(c *client) {
	defer h.remove(c)
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.send:
			ctx, cancel := context.WithTimeout(c.ctx, h.opts.WriteTimeout)
			err := wsjson.Write(ctx, c.conn, ev)
			cancel()
			if err != nil {
				h.logger.Debug("ws_write_failed", zap.String("session_id", c.sessionID), zap.String("player_id", c.playerID), zap.Error(err))
				return
			}
		}
	}
}

func (h *Hub) pingLoop(c *client) {
	t := time.NewTicker(h.opts.PingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(c.ctx, 3*time.Second)
			err := c.conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				c.cancel()
				return
			}
		}
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set := h.sessions[c.sessionID]
	if set == nil {
		set = make(map[*client]struct{})
		h.sessions[c.sessionID] = set
	}
	set[c] = struct{}{}
	// one for the write loop, one for the ping loop
	h.wg.Add(2)
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if set := h.sessions[c.sessionID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.sessions, c.sessionID)
		}
	}
	h.mu.Unlock()
	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
	h.logger.Info("ws_disconnected", zap.String("session_id", c.sessionID), zap.String("player_id", c.playerID))
}

// enqueue drops the event when the client is too slow to keep up.
func (c *client) enqueue(ev chessdto.Event) bool {
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (h *Hub) targets(sessionID, playerID string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.sessions[sessionID]
	out := make([]*client, 0, len(set))
	for c := range set {
		if playerID == "" || c.playerID == playerID {
			out = append(out, c)
		}
	}
	return out
}

// publish sends ev to every connection of the session, or only to playerID's when set.
func (h *Hub) publish(sessionID, playerID string, ev chessdto.Event) {
	for _, c := range h.targets(sessionID, playerID) {
		if !c.enqueue(ev) {
			h.logger.Warn("ws_event_dropped",
				zap.String("session_id", sessionID),
				zap.String("player_id", c.playerID),
				zap.String("type", ev.Type),
			)
		}
	}
}

func (h *Hub) NotifyTurnChanged(sessionID string, ev session.TurnChanged) {
	h.publish(sessionID, "", chessdto.Event{Type: chessdto.EventTurnChanged, SessionID: sessionID, Payload: chesspresenter.ToDTOTurn(ev)})
}

func (h *Hub) NotifyTimeUpdate(sessionID string, ev session.TimeUpdate) {
	h.publish(sessionID, "", chessdto.Event{Type: chessdto.EventTimeUpdate, SessionID: sessionID, Payload: chesspresenter.ToDTOClock(ev)})
}

func (h *Hub) NotifyCardPlayed(sessionID, playerID string, card cards.Card) {
	h.publish(sessionID, "", chessdto.Event{
		Type:      chessdto.EventCardPlayed,
		SessionID: sessionID,
		Payload:   chessdto.CardPlayedPayload{PlayerID: playerID, Card: chesspresenter.ToDTOCard(card)},
	})
}

// NotifyHandUpdated goes to the hand's owner only.
func (h *Hub) NotifyHandUpdated(sessionID, playerID string, hand []cards.Card, drawPileCount int) {
	h.publish(sessionID, playerID, chessdto.Event{
		Type:      chessdto.EventHandUpdated,
		SessionID: sessionID,
		Payload:   chessdto.HandUpdatedPayload{Hand: chesspresenter.ToDTOCards(hand), DrawPile: drawPileCount},
	})
}

func (h *Hub) NotifyCardActivationAnimation(sessionID string, card cards.Card, playerID string, color rules.Color) {
	h.publish(sessionID, "", chessdto.Event{
		Type:      chessdto.EventCardAnimation,
		SessionID: sessionID,
		Payload:   chesspresenter.ToDTOAnimation(card, playerID, color),
	})
}

// Connected reports whether playerID has at least one open connection to the session.
func (h *Hub) Connected(sessionID, playerID string) bool {
	return len(h.targets(sessionID, playerID)) > 0
}

// Count returns the number of open connections for a session.
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Disconnect closes every connection of a session that left the registry.
func (h *Hub) Disconnect(sessionID string) {
	for _, c := range h.targets(sessionID, "") {
		c.cancel()
	}
}

// Close refuses new connections, closes open ones and waits for their goroutines.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	var all []*client
	for _, set := range h.sessions {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.Unlock()
	for _, c := range all {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
