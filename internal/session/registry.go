package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cardchess/internal/obslog"
	"go.uber.org/zap"
)

// Registry holds the live sessions of one process.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*GameSession
	limit    int
	deps     Deps
	defaults Options
	onRemove []func(id string)
}

// NewRegistry builds an empty registry. limit <= 0 means unlimited.
func NewRegistry(limit int, defaults Options, deps Deps) *Registry {
	return &Registry{
		sessions: make(map[string]*GameSession),
		limit:    limit,
		deps:     deps,
		defaults: defaults,
	}
}

// Defaults returns the options new sessions start from.
func (r *Registry) Defaults() Options { return r.defaults }

// Create starts a new session from opts. Zero fields fall back to the registry defaults.
func (r *Registry) Create(opts Options) (*GameSession, error) {
	opts = r.merge(opts)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.limit > 0 && len(r.sessions) >= r.limit {
		return nil, ErrTooManySessions
	}
	id := uuid.NewString()
	s, err := New(id, opts, r.deps)
	if err != nil {
		return nil, err
	}
	r.sessions[id] = s
	obslog.L().Info("session_created",
		zap.String("session_id", id),
		zap.String("mode", string(s.Mode())),
		zap.Int("live", len(r.sessions)),
	)
	return s, nil
}

func (r *Registry) merge(opts Options) Options {
	d := r.defaults
	if opts.Mode == "" {
		opts.Mode = d.Mode
	}
	if opts.InitialTime <= 0 {
		opts.InitialTime = d.InitialTime
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = d.TickInterval
	}
	if opts.ComputerDepth <= 0 {
		opts.ComputerDepth = d.ComputerDepth
	}
	if opts.ComputerDelay == 0 {
		opts.ComputerDelay = d.ComputerDelay
	}
	if opts.ComputerName == "" {
		opts.ComputerName = d.ComputerName
	}
	if opts.Catalog == nil {
		opts.Catalog = d.Catalog
	}
	if opts.Seed == 0 {
		opts.Seed = d.Seed
	}
	if opts.Now == nil {
		opts.Now = d.Now
	}
	opts.ManualClock = opts.ManualClock || d.ManualClock
	opts.SkipAnimations = opts.SkipAnimations || d.SkipAnimations
	return opts
}

// OnRemove registers fn to run after a session leaves the registry through
// Remove or Reap. Register hooks before serving traffic.
func (r *Registry) OnRemove(fn func(id string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRemove = append(r.onRemove, fn)
}

func (r *Registry) dropped(ids ...string) {
	r.mu.RLock()
	hooks := r.onRemove
	r.mu.RUnlock()
	for _, id := range ids {
		for _, fn := range hooks {
			fn(id)
		}
	}
}

func (r *Registry) Get(id string) (*GameSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove closes and forgets a session.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	r.dropped(id)
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Reap removes sessions that finished at least retention ago, and sessions
// still waiting for a second player retention after creation. It returns how
// many were dropped. Finished games stay readable until then.
func (r *Registry) Reap(retention time.Duration) int {
	r.mu.Lock()
	var done []*GameSession
	for id, s := range r.sessions {
		if s.staleBefore(s.opts.Now().Add(-retention)) {
			done = append(done, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()
	ids := make([]string, 0, len(done))
	for _, s := range done {
		s.Close()
		ids = append(ids, s.id)
	}
	r.dropped(ids...)
	if len(done) > 0 {
		obslog.L().Info("sessions_reaped", zap.Int("count", len(done)), zap.Int("live", r.Len()))
	}
	return len(done)
}

// Nudge retries any computer turn left pending by an earlier oracle failure.
func (r *Registry) Nudge() {
	r.mu.RLock()
	all := make([]*GameSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()
	for _, s := range all {
		s.Nudge()
	}
}

// CloseAll closes every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*GameSession)
	r.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
