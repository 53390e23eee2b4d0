package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/park285/cardchess/internal/cards"
	"github.com/park285/cardchess/internal/rules"
	"github.com/park285/cardchess/internal/session"
	"github.com/park285/cardchess/pkg/chessdto"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type rawEvent struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Payload   json.RawMessage `json:"payload"`
}

func seatedOnly(sessionID, playerID string) (*chessdto.SessionState, error) {
	if sessionID != "s1" {
		return nil, session.ErrSessionNotFound
	}
	if playerID != "alice" && playerID != "bob" {
		return nil, ErrUnauthorized
	}
	return &chessdto.SessionState{SessionID: sessionID, Status: session.StatusOngoing}, nil
}

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(Options{}, seatedOnly, nil)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = hub.Close(ctx)
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, sessionID, playerID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, srv.URL+"?session="+sessionID+"&player="+playerID, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", playerID, err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) rawEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var ev rawEvent
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	return ev
}

func waitConnected(t *testing.T, hub *Hub, sessionID string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count(sessionID) < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connections, have %d", n, hub.Count(sessionID))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcastsAndTargetsHands(t *testing.T) {
	hub, srv := newTestHub(t)
	alice := dial(t, srv, "s1", "alice")
	bob := dial(t, srv, "s1", "bob")
	waitConnected(t, hub, "s1", 2)

	for _, c := range []*websocket.Conn{alice, bob} {
		if ev := read(t, c); ev.Type != EventState {
			t.Fatalf("first event = %s", ev.Type)
		}
	}

	hub.NotifyHandUpdated("s1", "alice", []cards.Card{{InstanceID: "i1", ID: cards.Teleport, Name: "Teleport"}}, 4)
	hub.NotifyTurnChanged("s1", session.TurnChanged{FEN: "x", NextPlayer: rules.Black, LastFrom: "e2", LastTo: "e4"})

	ev := read(t, alice)
	if ev.Type != chessdto.EventHandUpdated {
		t.Fatalf("alice expected hand first, got %s", ev.Type)
	}
	var hand chessdto.HandUpdatedPayload
	if err := json.Unmarshal(ev.Payload, &hand); err != nil || hand.DrawPile != 4 || len(hand.Hand) != 1 {
		t.Fatalf("hand payload = %s (%v)", ev.Payload, err)
	}
	if ev := read(t, alice); ev.Type != chessdto.EventTurnChanged {
		t.Fatalf("alice second event = %s", ev.Type)
	}

	// bob never sees alice's hand
	ev = read(t, bob)
	if ev.Type != chessdto.EventTurnChanged {
		t.Fatalf("bob got %s", ev.Type)
	}
	var turn chessdto.TurnChangedPayload
	if err := json.Unmarshal(ev.Payload, &turn); err != nil || turn.NextPlayer != "black" || turn.LastTo != "e4" {
		t.Fatalf("turn payload = %s (%v)", ev.Payload, err)
	}

	if !hub.Connected("s1", "bob") || hub.Connected("s1", "carol") {
		t.Fatalf("connection lookup is wrong")
	}
}

func TestHubRejectsUnknownViewers(t *testing.T) {
	_, srv := newTestHub(t)
	cases := []struct {
		query  string
		status int
	}{
		{"", http.StatusBadRequest},
		{"?session=nope&player=alice", http.StatusNotFound},
		{"?session=s1&player=mallory", http.StatusForbidden},
	}
	for _, tc := range cases {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, resp, err := websocket.Dial(ctx, srv.URL+tc.query, nil)
		cancel()
		if err == nil {
			t.Fatalf("%q: dial succeeded", tc.query)
		}
		if resp == nil || resp.StatusCode != tc.status {
			t.Fatalf("%q: response = %+v", tc.query, resp)
		}
	}
}

func TestHubDropsClosedClients(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv, "s1", "alice")
	waitConnected(t, hub, "s1", 1)
	_ = read(t, conn)

	hub.Disconnect("s1")
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count("s1") > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("connection not removed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var ev rawEvent
	err := wsjson.Read(ctx, conn, &ev)
	if err == nil {
		t.Fatalf("expected closed connection")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("connection left open")
	}

	// publishing to an empty session is a no-op
	hub.NotifyTimeUpdate("s1", session.TimeUpdate{White: time.Minute})
}

func TestRegistryState(t *testing.T) {
	reg := session.NewRegistry(0, session.Options{ManualClock: true, SkipAnimations: true}, session.Deps{})
	t.Cleanup(reg.CloseAll)
	gs, err := reg.Create(session.Options{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := gs.Join("alice", "Alice", session.PreferWhite); err != nil {
		t.Fatalf("join: %v", err)
	}
	state := RegistryState(reg.Get)

	st, err := state(gs.ID(), "alice")
	if err != nil || st.SessionID != gs.ID() || st.Status != session.StatusWaiting {
		t.Fatalf("alice state = %+v, %v", st, err)
	}
	if _, err := state(gs.ID(), "eve"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("eve: %v", err)
	}
	if _, err := state("missing", "alice"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("missing: %v", err)
	}
}
