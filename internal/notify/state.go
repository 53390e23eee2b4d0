package notify

import (
	"github.com/park285/cardchess/internal/adapter/chesspresenter"
	"github.com/park285/cardchess/internal/session"
	"github.com/park285/cardchess/pkg/chessdto"
)

// RegistryState admits seated players of a live session and hands them their
// own view. lookup is usually Registry.Get.
func RegistryState(lookup func(id string) (*session.GameSession, error)) StateFunc {
	return func(sessionID, playerID string) (*chessdto.SessionState, error) {
		gs, err := lookup(sessionID)
		if err != nil {
			return nil, err
		}
		if !gs.Seated(playerID) {
			return nil, ErrUnauthorized
		}
		return chesspresenter.ToDTOState(gs.Snapshot(playerID)), nil
	}
}
