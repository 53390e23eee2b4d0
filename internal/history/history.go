package history

import (
	"sync"
	"time"
)

type Kind string

const (
	KindMove Kind = "move"
	KindCard Kind = "card"
)

// Entry is one line of the game log. Move fields are set for KindMove, card
// fields for KindCard. Remaining times are snapshots taken right after the action.
type Entry struct {
	Seq       int
	Kind      Kind
	Player    string // "white" / "black"
	PlayerID  string
	At        time.Time
	ThinkTime time.Duration

	UCI      string
	SAN      string
	Captured string

	CardID      string
	CardName    string
	CardSuccess bool
	CardDetail  string

	WhiteRemaining time.Duration
	BlackRemaining time.Duration
}

// Manager is an append-only log. Safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

// NewManager builds an empty log stamped by now. A nil now means time.Now.
func NewManager(now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{now: now}
}

func (m *Manager) append(e Entry) Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Seq = len(m.entries) + 1
	if e.At.IsZero() {
		e.At = m.now()
	}
	m.entries = append(m.entries, e)
	return e
}

// RecordMove appends a chess move. Kind is forced to KindMove.
func (m *Manager) RecordMove(e Entry) Entry {
	e.Kind = KindMove
	return m.append(e)
}

// RecordCard appends a card activation. Kind is forced to KindCard.
func (m *Manager) RecordCard(e Entry) Entry {
	e.Kind = KindCard
	return m.append(e)
}

// SetThinkTime fills in the think time of entry seq once it is known.
func (m *Manager) SetThinkTime(seq int, d time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq < 1 || seq > len(m.entries) {
		return false
	}
	m.entries[seq-1].ThinkTime = d
	return true
}

// Entries returns a copy of the whole log.
func (m *Manager) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Entry(nil), m.entries...)
}

// Last returns up to n most recent entries, oldest first.
func (m *Manager) Last(n int) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 || n > len(m.entries) {
		n = len(m.entries)
	}
	return append([]Entry(nil), m.entries[len(m.entries)-n:]...)
}

// Moves lists the UCI strings of all chess moves in order.
func (m *Manager) Moves() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, e := range m.entries {
		if e.Kind == KindMove {
			out = append(out, e.UCI)
		}
	}
	return out
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
