package lobby

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cardchess/internal/obslog"
	"github.com/park285/cardchess/internal/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Manager struct {
	rdb     *redis.Client
	store   *Store
	starter Starter
	now     func() time.Time
}

func NewManager(rdb *redis.Client, starter Starter) *Manager {
	return &Manager{rdb: rdb, store: NewStore(rdb), starter: starter, now: time.Now}
}

// Make opens a lobby code for userID. color is the creator's preference.
func (m *Manager) Make(ctx context.Context, userID, userName, color string) (*MakeResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidArgs
	}
	if _, ok := session.ParseColorPreference(color); !ok {
		return nil, ErrInvalidArgs
	}
	if err := m.ensureFree(ctx, userID, true); err != nil {
		return nil, err
	}
	if strings.TrimSpace(userName) == "" {
		userName = userID
	}

	for range 5 {
		code, err := codeGen()
		if err != nil {
			return nil, err
		}
		// reserve the key first so two makers never share a code
		ok, err := m.rdb.SetNX(ctx, m.store.keyMeta(code), []byte("{}"), ttlLobby).Result()
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		meta := &Meta{
			Code:         code,
			State:        StateLobby,
			CreatedAt:    m.now(),
			CreatorID:    userID,
			CreatorName:  userName,
			CreatorColor: strings.ToLower(strings.TrimSpace(color)),
		}
		if err := m.store.SaveMeta(ctx, meta); err != nil {
			return nil, err
		}
		pipe := m.rdb.TxPipeline()
		pipe.SAdd(ctx, m.store.keyParticipants(code), userID)
		pipe.Expire(ctx, m.store.keyParticipants(code), ttlLobby)
		pipe.SAdd(ctx, m.store.keyUserIdx(userID), code)
		pipe.Expire(ctx, m.store.keyUserIdx(userID), ttlLobby)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
		if err := m.store.AddOpen(ctx, code); err != nil {
			return nil, err
		}
		obslog.L().Info("lobby_make", zap.String("code", code), zap.String("creator_id", userID))
		return &MakeResult{Code: code, Meta: meta}, nil
	}
	return nil, fmt.Errorf("failed to allocate lobby code")
}

// ensureFree rejects users with a game in progress, and with an open lobby when
// creating is set.
func (m *Manager) ensureFree(ctx context.Context, userID string, creating bool) error {
	codes, err := m.store.CodesByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, c := range codes {
		meta, _ := m.store.LoadMeta(ctx, c)
		if meta == nil {
			continue
		}
		switch meta.State {
		case StateLobby:
			if creating && meta.CreatorID == userID {
				return ErrCreatorHasLobby
			}
		case StateActive:
			if m.starter != nil && m.starter.Active(meta.SessionID) {
				return ErrPlayerBusy
			}
		}
	}
	return nil
}

// Join takes the second seat. The session is created by the Starter as soon as
// both participants are present.
func (m *Manager) Join(ctx context.Context, code, userID, userName string) (*JoinResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	userID = strings.TrimSpace(userID)
	if code == "" || userID == "" {
		return nil, ErrInvalidArgs
	}
	if strings.TrimSpace(userName) == "" {
		userName = userID
	}
	meta, err := m.store.LoadMeta(ctx, code)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ErrLobbyGone
	}
	if meta.CreatorID == userID {
		return nil, ErrSelfJoin
	}
	// retried join of a started lobby
	if meta.State == StateActive {
		if member, _ := m.store.IsParticipant(ctx, code, userID); member {
			return &JoinResult{Started: true, SessionID: meta.SessionID, Meta: meta}, nil
		}
		return nil, ErrFull
	}
	if meta.State != StateLobby {
		return nil, ErrLobbyClosed
	}
	if err := m.ensureFree(ctx, userID, false); err != nil {
		return nil, err
	}

	// WATCH participants to prevent racing second joins
	partKey := m.store.keyParticipants(code)
	err = m.rdb.Watch(ctx, func(tx *redis.Tx) error {
		members, err := tx.SMembers(ctx, partKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if len(members) >= 2 {
			return ErrFull
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SAdd(ctx, partKey, userID)
			pipe.Expire(ctx, partKey, ttlLobby)
			pipe.SAdd(ctx, m.store.keyUserIdx(userID), code)
			pipe.Expire(ctx, m.store.keyUserIdx(userID), ttlLobby)
			return nil
		})
		return err
	}, partKey)
	if err != nil {
		obslog.L().Warn("lobby_join_error", zap.String("code", code), zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	pref, _ := session.ParseColorPreference(meta.CreatorColor)
	started, err := m.starter.Start(ctx,
		Seat{ID: meta.CreatorID, Name: meta.CreatorName, Pref: pref},
		Seat{ID: userID, Name: userName, Pref: session.PreferAny},
	)
	if err != nil {
		// free the seat again so someone else may join
		_ = m.rdb.SRem(ctx, partKey, userID).Err()
		_ = m.rdb.SRem(ctx, m.store.keyUserIdx(userID), code).Err()
		return nil, fmt.Errorf("start session: %w", err)
	}

	meta.State = StateActive
	meta.SessionID = started.SessionID
	meta.WhiteID, meta.WhiteName = started.WhiteID, started.WhiteName
	meta.BlackID, meta.BlackName = started.BlackID, started.BlackName
	if err := m.store.SaveMeta(ctx, meta); err != nil {
		return nil, err
	}
	_ = m.store.RemoveOpen(ctx, code)
	obslog.L().Info("lobby_start_game",
		zap.String("code", code),
		zap.String("session_id", started.SessionID),
		zap.String("white_id", started.WhiteID),
		zap.String("black_id", started.BlackID),
	)
	return &JoinResult{Started: true, SessionID: started.SessionID, Meta: meta}, nil
}

// Get returns the lobby for code.
func (m *Manager) Get(ctx context.Context, code string) (*Meta, error) {
	meta, err := m.store.LoadMeta(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ErrLobbyGone
	}
	return meta, nil
}

// Cancel aborts an open lobby. Only its creator may do so.
func (m *Manager) Cancel(ctx context.Context, code, userID string) error {
	meta, err := m.Get(ctx, code)
	if err != nil {
		return err
	}
	if meta.CreatorID != strings.TrimSpace(userID) {
		return ErrNotCreator
	}
	if meta.State != StateLobby {
		return ErrLobbyClosed
	}
	meta.State = StateAborted
	if err := m.store.SaveMeta(ctx, meta); err != nil {
		return err
	}
	_ = m.store.RemoveOpen(ctx, meta.Code)
	obslog.L().Info("lobby_cancel", zap.String("code", meta.Code), zap.String("creator_id", meta.CreatorID))
	return nil
}

// Finish marks the lobby of a completed session.
func (m *Manager) Finish(ctx context.Context, code string) error {
	meta, err := m.Get(ctx, code)
	if err != nil {
		return err
	}
	if meta.State != StateActive {
		return nil
	}
	meta.State = StateFinished
	return m.store.SaveMeta(ctx, meta)
}

// ListOpen returns lobbies waiting for a second player.
func (m *Manager) ListOpen(ctx context.Context) ([]*Meta, error) { return m.store.ListOpen(ctx) }
