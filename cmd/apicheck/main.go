package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/park285/cardchess/internal/apiclient"
)

// apicheck checks a running server: health over HTTP, then optionally watches
// one player's websocket feed for a short window.
func main() {
	baseURL := os.Getenv("CARDCHESS_URL")
	wsURL := os.Getenv("CARDCHESS_WS_URL")
	sessionID := os.Getenv("SESSION_ID")
	playerID := os.Getenv("PLAYER_ID")

	if baseURL == "" {
		log.Fatal("CARDCHESS_URL is required")
	}

	client := apiclient.NewClient(baseURL, apiclient.WithTimeout(8*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h, err := client.Health(ctx)
	if err != nil {
		log.Printf("/healthz error: %v", err)
	} else {
		log.Printf("/healthz ok: sessions=%d", h.Sessions)
	}

	if wsURL == "" || sessionID == "" || playerID == "" {
		log.Println("CARDCHESS_WS_URL, SESSION_ID or PLAYER_ID not set; skipping WS check")
		return
	}

	sub := apiclient.NewSubscriber(wsURL, sessionID, playerID, 5)
	sub.OnStateChange(func(state apiclient.SubscriberState) {
		log.Printf("WS state: %s", state)
	})
	sub.OnEvent(func(ev apiclient.Event) {
		fmt.Printf("WS event session=%s type=%s payload=%s\n", ev.SessionID, ev.Type, ev.Payload)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := sub.Connect(cctx); err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}

	// Observe for a short window
	t := time.NewTimer(10 * time.Second)
	<-t.C

	_ = sub.Close(context.Background())
}
