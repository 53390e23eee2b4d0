package lobby

import (
	"context"

	"github.com/park285/cardchess/internal/rules"
	"github.com/park285/cardchess/internal/session"
)

// RegistryStarter opens a human vs human session in a session.Registry.
type RegistryStarter struct {
	Registry *session.Registry
}

func (r RegistryStarter) Start(_ context.Context, creator, joiner Seat) (Started, error) {
	s, err := r.Registry.Create(session.Options{Mode: session.ModeHuman})
	if err != nil {
		return Started{}, err
	}
	if _, err := s.Join(creator.ID, creator.Name, creator.Pref); err != nil {
		_ = r.Registry.Remove(s.ID())
		return Started{}, err
	}
	if _, err := s.Join(joiner.ID, joiner.Name, joiner.Pref); err != nil {
		_ = r.Registry.Remove(s.ID())
		return Started{}, err
	}
	out := Started{SessionID: s.ID()}
	for _, p := range s.Snapshot("").Players {
		if p.Color == rules.White {
			out.WhiteID, out.WhiteName = p.ID, p.Name
		} else {
			out.BlackID, out.BlackName = p.ID, p.Name
		}
	}
	return out, nil
}

func (r RegistryStarter) Active(sessionID string) bool {
	if sessionID == "" {
		return false
	}
	s, err := r.Registry.Get(sessionID)
	if err != nil {
		return false
	}
	return !s.IsOver()
}
