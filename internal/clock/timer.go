package clock

import (
	"sync"
	"time"

	"github.com/park285/cardchess/internal/obslog"
	"github.com/park285/cardchess/internal/rules"
	"go.uber.org/zap"
)

type State uint8

const (
	Stopped State = iota
	Running
	Paused
	GameOver
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case GameOver:
		return "game_over"
	}
	return "stopped"
}

// MinimumAfterAdjust is the floor applied by AddTime, SubtractTime and SwapTimes.
const MinimumAfterAdjust = time.Minute

const defaultInterval = time.Second

// Snapshot is a consistent read of both clocks. Active is only meaningful when HasActive.
type Snapshot struct {
	White     time.Duration
	Black     time.Duration
	Active    rules.Color
	HasActive bool
	State     State
}

func (s Snapshot) Remaining(c rules.Color) time.Duration {
	if c == rules.White {
		return s.White
	}
	return s.Black
}

// Listener receives clock events. Calls are made without any timer lock held,
// so a listener may call back into the Timer.
type Listener interface {
	OnTimeUpdated(Snapshot)
	OnTimeExpired(loser rules.Color)
}

type Option func(*Timer)

// WithNow injects the time source.
func WithNow(now func() time.Time) Option { return func(t *Timer) { t.now = now } }

func WithInterval(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.interval = d
		}
	}
}

func WithListener(l Listener) Option { return func(t *Timer) { t.listener = l } }

// WithoutTicker disables the periodic callback; tests drive ticks by hand.
func WithoutTicker() Option { return func(t *Timer) { t.manual = true } }

// Timer is the per-session dual clock. Every state change folds the exact
// elapsed wall time since the last observation into the active side's balance.
type Timer struct {
	mu        sync.Mutex
	remaining [2]time.Duration
	active    rules.Color
	state     State
	lastTick  time.Time
	// turnElapsed accumulates the active side's think time since StartPlayerTimer.
	turnElapsed time.Duration
	expired     bool

	interval time.Duration
	now      func() time.Time
	listener Listener
	manual   bool

	gen    uint64
	stopCh chan struct{}
}

func New(initial time.Duration, opts ...Option) *Timer {
	t := &Timer{
		remaining: [2]time.Duration{initial, initial},
		interval:  defaultInterval,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetListener swaps the listener; used when the session is built after the timer.
func (t *Timer) SetListener(l Listener) {
	t.mu.Lock()
	t.listener = l
	t.mu.Unlock()
}

// events collects notifications produced under the lock for delivery after unlock.
type events struct {
	update  *Snapshot
	expired bool
	loser   rules.Color
}

func (t *Timer) emit(l Listener, ev events) {
	if l == nil {
		return
	}
	if ev.update != nil {
		l.OnTimeUpdated(*ev.update)
	}
	if ev.expired {
		l.OnTimeExpired(ev.loser)
	}
}

// settleLocked charges the active side for time since lastTick.
func (t *Timer) settleLocked() {
	if t.state != Running {
		return
	}
	now := t.now()
	elapsed := now.Sub(t.lastTick)
	if elapsed < 0 {
		elapsed = 0
	}
	t.remaining[t.active] -= elapsed
	t.turnElapsed += elapsed
	t.lastTick = now
}

func (t *Timer) snapshotLocked() Snapshot {
	s := Snapshot{White: t.remaining[rules.White], Black: t.remaining[rules.Black], State: t.state}
	if t.state == Running {
		s.Active = t.active
		s.HasActive = true
		elapsed := t.now().Sub(t.lastTick)
		if elapsed > 0 {
			if t.active == rules.White {
				s.White -= elapsed
			} else {
				s.Black -= elapsed
			}
		}
	}
	if s.White < 0 {
		s.White = 0
	}
	if s.Black < 0 {
		s.Black = 0
	}
	return s
}

// expireLocked moves to GameOver. The expiry event is produced only once per timer.
func (t *Timer) expireLocked(loser rules.Color, ev *events) {
	t.remaining[loser] = 0
	t.state = GameOver
	t.stopTickerLocked()
	if t.expired {
		return
	}
	t.expired = true
	ev.expired = true
	ev.loser = loser
	obslog.L().Info("clock_expired", zap.String("loser", loser.String()))
}

func (t *Timer) checkExpiryLocked(ev *events) {
	for _, c := range []rules.Color{rules.White, rules.Black} {
		if t.remaining[c] <= 0 {
			t.expireLocked(c, ev)
			return
		}
	}
}

// StartPlayerTimer makes c the ticking side from now and restarts the periodic callback.
func (t *Timer) StartPlayerTimer(c rules.Color) {
	t.mu.Lock()
	if t.state == GameOver {
		t.mu.Unlock()
		return
	}
	var ev events
	t.settleLocked()
	t.checkExpiryLocked(&ev)
	if t.state != GameOver {
		t.active = c
		t.state = Running
		t.lastTick = t.now()
		t.turnElapsed = 0
		t.startTickerLocked()
		snap := t.snapshotLocked()
		ev.update = &snap
	}
	l := t.listener
	t.mu.Unlock()
	t.emit(l, ev)
}

// PauseTimer freezes the running clock and reports whether this call paused it.
func (t *Timer) PauseTimer() bool {
	t.mu.Lock()
	if t.state != Running {
		t.mu.Unlock()
		return false
	}
	var ev events
	t.settleLocked()
	t.state = Paused
	t.stopTickerLocked()
	t.checkExpiryLocked(&ev)
	paused := t.state == Paused
	l := t.listener
	t.mu.Unlock()
	t.emit(l, ev)
	return paused
}

// ResumeTimer restarts a paused clock from now.
func (t *Timer) ResumeTimer() {
	t.mu.Lock()
	if t.state != Paused {
		t.mu.Unlock()
		return
	}
	t.state = Running
	t.lastTick = t.now()
	t.startTickerLocked()
	snap := t.snapshotLocked()
	l := t.listener
	t.mu.Unlock()
	t.emit(l, events{update: &snap})
}

// StopAndCalculateElapsedTime charges the mover and returns their exact think time
// for this turn. The clock is left Stopped until the next StartPlayerTimer.
func (t *Timer) StopAndCalculateElapsedTime() time.Duration {
	t.mu.Lock()
	if t.state != Running && t.state != Paused {
		t.mu.Unlock()
		return 0
	}
	var ev events
	t.settleLocked()
	elapsed := t.turnElapsed
	t.turnElapsed = 0
	t.state = Stopped
	t.stopTickerLocked()
	t.checkExpiryLocked(&ev)
	l := t.listener
	t.mu.Unlock()
	t.emit(l, ev)
	return elapsed
}

// AddTime credits d to c.
func (t *Timer) AddTime(c rules.Color, d time.Duration) Snapshot {
	return t.adjust(func() []rules.Color {
		t.remaining[c] += d
		return []rules.Color{c}
	})
}

// SubtractTime debits d from c. A balance at or below zero is an expiry, not clamped.
func (t *Timer) SubtractTime(c rules.Color, d time.Duration) Snapshot {
	return t.adjust(func() []rules.Color {
		t.remaining[c] -= d
		return []rules.Color{c}
	})
}

// SwapTimes exchanges the two balances.
func (t *Timer) SwapTimes() Snapshot {
	return t.adjust(func() []rules.Color {
		t.remaining[rules.White], t.remaining[rules.Black] = t.remaining[rules.Black], t.remaining[rules.White]
		return []rules.Color{rules.White, rules.Black}
	})
}

func (t *Timer) adjust(apply func() []rules.Color) Snapshot {
	t.mu.Lock()
	if t.state == GameOver {
		snap := t.snapshotLocked()
		t.mu.Unlock()
		return snap
	}
	var ev events
	t.settleLocked()
	affected := apply()
	for _, c := range affected {
		if t.remaining[c] <= 0 {
			t.expireLocked(c, &ev)
			break
		}
		if t.remaining[c] < MinimumAfterAdjust {
			t.remaining[c] = MinimumAfterAdjust
		}
	}
	snap := t.snapshotLocked()
	ev.update = &snap
	l := t.listener
	t.mu.Unlock()
	t.emit(l, ev)
	return snap
}

// MarkGameOver stops the clock after the game ended by other means. No expiry event is raised.
func (t *Timer) MarkGameOver() {
	t.mu.Lock()
	t.settleLocked()
	t.state = GameOver
	t.stopTickerLocked()
	t.mu.Unlock()
}

func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Close stops the periodic callback.
func (t *Timer) Close() {
	t.mu.Lock()
	t.stopTickerLocked()
	t.mu.Unlock()
}

func (t *Timer) startTickerLocked() {
	t.stopTickerLocked()
	t.gen++
	if t.manual {
		return
	}
	stop := make(chan struct{})
	t.stopCh = stop
	go t.run(t.gen, stop)
}

func (t *Timer) stopTickerLocked() {
	if t.stopCh != nil {
		close(t.stopCh)
		t.stopCh = nil
	}
}

func (t *Timer) run(gen uint64, stop <-chan struct{}) {
	tk := time.NewTicker(t.interval)
	defer tk.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tk.C:
			if !t.tick(gen) {
				return
			}
		}
	}
}

// tick is the periodic callback; a stale generation means the ticker was replaced.
func (t *Timer) tick(gen uint64) bool {
	t.mu.Lock()
	if gen != t.gen || t.state != Running {
		t.mu.Unlock()
		return false
	}
	var ev events
	t.settleLocked()
	t.checkExpiryLocked(&ev)
	snap := t.snapshotLocked()
	ev.update = &snap
	alive := t.state == Running
	l := t.listener
	t.mu.Unlock()
	t.emit(l, ev)
	return alive
}
