package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cardchess/internal/domain"
	"github.com/park285/cardchess/internal/obslog"
	"go.uber.org/zap"

	_ "github.com/lib/pq"
)

var ErrNotFound = errors.New("archived game not found")

const schema = `CREATE TABLE IF NOT EXISTS card_games (
    session_id   TEXT PRIMARY KEY,
    mode         TEXT NOT NULL,
    white_id     TEXT NOT NULL,
    white_name   TEXT NOT NULL,
    black_id     TEXT NOT NULL,
    black_name   TEXT NOT NULL,
    result       TEXT NOT NULL,
    reason       TEXT NOT NULL,
    final_fen    TEXT NOT NULL,
    moves_uci    JSONB NOT NULL,
    moves_san    JSONB NOT NULL,
    log          JSONB NOT NULL,
    pgn          TEXT NOT NULL,
    started_at   TIMESTAMPTZ NOT NULL,
    ended_at     TIMESTAMPTZ NOT NULL,
    duration_ms  BIGINT NOT NULL
)`

// Repository stores finished games in postgres. It implements session.Archiver.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

// EnsureSchema creates the card_games table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveGame upserts a finished game keyed by session id.
func (r *Repository) SaveGame(ctx context.Context, rec *domain.GameRecord) error {
	if r == nil || r.db == nil || rec == nil {
		return nil
	}
	movesUCI, _ := json.Marshal(nonNil(rec.UCIMoves()))
	movesSAN, _ := json.Marshal(nonNil(rec.SANMoves()))
	logRaw, err := json.Marshal(rec.Log)
	if err != nil {
		return fmt.Errorf("encode log: %w", err)
	}
	duration := rec.EndedAt.Sub(rec.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO card_games (
        session_id, mode, white_id, white_name, black_id, black_name,
        result, reason, final_fen, moves_uci, moves_san, log, pgn,
        started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
      ) ON CONFLICT (session_id) DO UPDATE SET
        result=EXCLUDED.result,
        reason=EXCLUDED.reason,
        final_fen=EXCLUDED.final_fen,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        log=EXCLUDED.log,
        pgn=EXCLUDED.pgn,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, q,
		rec.SessionID, rec.Mode,
		rec.WhiteID, rec.WhiteName,
		rec.BlackID, rec.BlackName,
		rec.Result, rec.Reason, rec.FinalFEN,
		string(movesUCI), string(movesSAN), string(logRaw), BuildPGN(rec),
		rec.StartedAt, rec.EndedAt, duration,
	)
	if err != nil {
		obslog.L().Error("archive_persist_error", zap.String("session_id", rec.SessionID), zap.Error(err))
		return err
	}
	obslog.L().Info("archive_persist",
		zap.String("session_id", rec.SessionID),
		zap.String("result", rec.Result),
		zap.String("reason", rec.Reason),
	)
	return nil
}

// Game is a stored row.
type Game struct {
	SessionID string
	Mode      string
	WhiteName string
	BlackName string
	Result    string
	Reason    string
	FinalFEN  string
	PGN       string
	EndedAt   time.Time
	Duration  time.Duration
}

// Game loads one archived game.
func (r *Repository) Game(ctx context.Context, sessionID string) (*Game, error) {
	q := `SELECT session_id, mode, white_name, black_name, result, reason, final_fen, pgn, ended_at, duration_ms
        FROM card_games WHERE session_id = $1`
	var g Game
	var ms int64
	err := r.db.QueryRowContext(ctx, q, sessionID).Scan(
		&g.SessionID, &g.Mode, &g.WhiteName, &g.BlackName,
		&g.Result, &g.Reason, &g.FinalFEN, &g.PGN, &g.EndedAt, &ms,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	g.Duration = time.Duration(ms) * time.Millisecond
	return &g, nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
