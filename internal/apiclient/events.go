package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// SubscriberState is the connection state of a Subscriber.
type SubscriberState string

const (
	StateDisconnected SubscriberState = "disconnected"
	StateConnecting   SubscriberState = "connecting"
	StateConnected    SubscriberState = "connected"
	StateReconnecting SubscriberState = "reconnecting"
	StateFailed       SubscriberState = "failed"
)

// Event is a pushed session event. Payload stays raw; decode it by Type.
type Event struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Payload   json.RawMessage `json:"payload"`
}

type EventCallback func(ev Event)

type StateCallback func(state SubscriberState)

// Subscriber follows one player's view of a session over the websocket feed,
// reconnecting with backoff when the connection drops.
type Subscriber struct {
	wsURL   string
	headers HeaderProvider

	maxReconnectAttempts int
	pingInterval         time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	state   SubscriberState
	onEvent EventCallback
	onState StateCallback

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSubscriber builds a subscriber for baseURL (ws:// or wss://, path included).
func NewSubscriber(baseURL, sessionID, playerID string, maxReconnectAttempts int) *Subscriber {
	q := url.Values{}
	q.Set("session", sessionID)
	q.Set("player", playerID)
	return &Subscriber{
		wsURL:                strings.TrimRight(baseURL, "?") + "?" + q.Encode(),
		state:                StateDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
	}
}

func (s *Subscriber) OnEvent(cb EventCallback) {
	s.mu.Lock()
	s.onEvent = cb
	s.mu.Unlock()
}

func (s *Subscriber) OnStateChange(cb StateCallback) {
	s.mu.Lock()
	s.onState = cb
	s.mu.Unlock()
}

// SetHeaderProvider allows injecting headers into the handshake.
func (s *Subscriber) SetHeaderProvider(h HeaderProvider) { s.headers = h }

func (s *Subscriber) State() SubscriberState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect dials once. On failure the error is returned and reconnection is
// scheduled in the background.
func (s *Subscriber) Connect(ctx context.Context) error {
	s.setState(StateConnecting)
	conn, err := s.dial(ctx)
	if err != nil {
		s.setState(StateFailed)
		s.scheduleReconnect()
		return err
	}
	s.attach(conn)
	return nil
}

func (s *Subscriber) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, s.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      s.buildHeaders(),
	})
	return conn, err
}

func (s *Subscriber) attach(conn *websocket.Conn) {
	s.mu.Lock()
	if s.stopping() {
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "close")
		return
	}
	s.conn = conn
	s.mu.Unlock()
	s.setState(StateConnected)

	ctx, cancel := context.WithCancel(context.Background())
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.listen(ctx, conn)
	}()
	go func() {
		defer s.wg.Done()
		s.pingLoop(ctx, conn)
	}()
}

func (s *Subscriber) listen(ctx context.Context, conn *websocket.Conn) {
	for {
		var ev Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			_ = conn.Close(websocket.StatusGoingAway, "reconnect")
			if s.stopping() {
				return
			}
			s.setState(StateDisconnected)
			s.scheduleReconnect()
			return
		}
		s.mu.Lock()
		cb := s.onEvent
		s.mu.Unlock()
		if cb != nil {
			cb(ev)
		}
	}
}

func (s *Subscriber) pingLoop(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(s.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				// listen notices the closed conn and reconnects
				_ = conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (s *Subscriber) scheduleReconnect() {
	if s.maxReconnectAttempts <= 0 || s.stopping() {
		return
	}
	s.setState(StateReconnecting)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for attempt := 1; attempt <= s.maxReconnectAttempts; attempt++ {
			t := time.NewTimer(backoffDuration(attempt))
			select {
			case <-s.stopCh:
				t.Stop()
				return
			case <-t.C:
			}
			conn, err := s.dial(context.Background())
			if err != nil {
				continue
			}
			s.attach(conn)
			return
		}
		s.setState(StateFailed)
	}()
}

func (s *Subscriber) setState(state SubscriberState) {
	s.mu.Lock()
	s.state = state
	cb := s.onState
	s.mu.Unlock()
	if cb != nil {
		cb(state)
	}
}

// Close stops reconnecting, closes the connection and waits for the reader.
func (s *Subscriber) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		s.setState(StateDisconnected)
		return nil
	}
}

func (s *Subscriber) stopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func (s *Subscriber) buildHeaders() http.Header {
	hdr := http.Header{}
	if s.headers == nil {
		return hdr
	}
	for k, v := range s.headers() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
