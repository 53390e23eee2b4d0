package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/park285/cardchess/internal/adapter/chesspresenter"
	"github.com/park285/cardchess/internal/archive"
	"github.com/park285/cardchess/internal/lobby"
	"github.com/park285/cardchess/internal/rules"
	"github.com/park285/cardchess/internal/session"
	"github.com/park285/cardchess/pkg/chessdto"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// GameStore reads archived games.
type GameStore interface {
	Game(ctx context.Context, sessionID string) (*archive.Game, error)
}

// Server is the HTTP command surface. Lobby and Games are optional.
type Server struct {
	Registry  *session.Registry
	Lobby     *lobby.Manager
	Games     GameStore
	Formatter *chesspresenter.Formatter
	Logger    *zap.Logger

	// RequestTimeout bounds each command; card activations wait out the animation.
	RequestTimeout time.Duration
}

func (s *Server) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// requestContext is detached from the fasthttp ctx, which is recycled once the
// handler returns.
func (s *Server) requestContext() (context.Context, context.CancelFunc) {
	timeout := s.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// Handler routes requests. Paths:
//
//	GET  /healthz
//	GET  /presets
//	POST /sessions
//	GET  /sessions/{id}?player=&format=text
//	POST /sessions/{id}/join|move|card|promote|resign
//	GET  /sessions/{id}/legal?player=&square=
//	GET  /sessions/{id}/history
//	GET  /lobbies   POST /lobbies   POST /lobbies/{code}/join   DELETE /lobbies/{code}?player=
//	GET  /games/{id}
func (s *Server) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		started := time.Now()
		s.route(ctx)
		s.logger().Debug("http_request",
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()),
			zap.Int("status", ctx.Response.StatusCode()),
			zap.Duration("took", time.Since(started)),
		)
	}
}

func (s *Server) route(ctx *fasthttp.RequestCtx) {
	parts := strings.Split(strings.Trim(string(ctx.Path()), "/"), "/")
	method := string(ctx.Method())
	switch {
	case len(parts) == 1 && parts[0] == "healthz":
		writeJSON(ctx, fasthttp.StatusOK, map[string]any{"ok": true, "sessions": s.Registry.Len()})
	case len(parts) == 1 && parts[0] == "presets" && method == fasthttp.MethodGet:
		s.handlePresets(ctx)
	case parts[0] == "sessions":
		s.routeSessions(ctx, method, parts[1:])
	case parts[0] == "lobbies":
		s.routeLobbies(ctx, method, parts[1:])
	case len(parts) == 2 && parts[0] == "games" && method == fasthttp.MethodGet:
		s.handleArchivedGame(ctx, parts[1])
	default:
		writeError(ctx, fasthttp.StatusNotFound, "not_found", "no such route")
	}
}

func (s *Server) routeSessions(ctx *fasthttp.RequestCtx, method string, rest []string) {
	if len(rest) == 0 || rest[0] == "" {
		if method != fasthttp.MethodPost {
			writeError(ctx, fasthttp.StatusMethodNotAllowed, "method_not_allowed", "use POST")
			return
		}
		s.handleCreate(ctx)
		return
	}
	gs, err := s.Registry.Get(rest[0])
	if err != nil {
		s.fail(ctx, err)
		return
	}
	action := ""
	if len(rest) > 1 {
		action = rest[1]
	}
	switch {
	case action == "" && method == fasthttp.MethodGet:
		s.handleState(ctx, gs)
	case action == "legal" && method == fasthttp.MethodGet:
		s.handleLegal(ctx, gs)
	case action == "history" && method == fasthttp.MethodGet:
		writeJSON(ctx, fasthttp.StatusOK, chesspresenter.ToDTOHistory(gs.History()))
	case method != fasthttp.MethodPost:
		writeError(ctx, fasthttp.StatusMethodNotAllowed, "method_not_allowed", "use POST")
	case action == "join":
		s.handleJoin(ctx, gs)
	case action == "move":
		s.handleMove(ctx, gs)
	case action == "card":
		s.handleCard(ctx, gs)
	case action == "promote":
		s.handlePromote(ctx, gs)
	case action == "resign":
		s.handleResign(ctx, gs)
	default:
		writeError(ctx, fasthttp.StatusNotFound, "not_found", "no such action")
	}
}

func (s *Server) routeLobbies(ctx *fasthttp.RequestCtx, method string, rest []string) {
	if s.Lobby == nil {
		writeError(ctx, fasthttp.StatusNotImplemented, "lobby_disabled", "lobby requires REDIS_URL")
		return
	}
	switch {
	case (len(rest) == 0 || rest[0] == "") && method == fasthttp.MethodGet:
		s.handleLobbyList(ctx)
	case (len(rest) == 0 || rest[0] == "") && method == fasthttp.MethodPost:
		s.handleLobbyMake(ctx)
	case len(rest) == 2 && rest[1] == "join" && method == fasthttp.MethodPost:
		s.handleLobbyJoin(ctx, rest[0])
	case len(rest) == 1 && method == fasthttp.MethodDelete:
		s.handleLobbyCancel(ctx, rest[0])
	case len(rest) == 1 && method == fasthttp.MethodGet:
		s.handleLobbyGet(ctx, rest[0])
	default:
		writeError(ctx, fasthttp.StatusNotFound, "not_found", "no such route")
	}
}

func decode(ctx *fasthttp.RequestCtx, v any) bool {
	if err := json.Unmarshal(ctx.PostBody(), v); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_json", err.Error())
		return false
	}
	return true
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		ctx.Error("encode response: "+err.Error(), fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(raw)
}

func writeError(ctx *fasthttp.RequestCtx, status int, code, message string) {
	writeJSON(ctx, status, chessdto.DomainError{Code: code, Message: message, Retryable: status == fasthttp.StatusServiceUnavailable})
}

// fail maps package errors onto HTTP statuses.
func (s *Server) fail(ctx *fasthttp.RequestCtx, err error) {
	status, code := statusFor(err)
	if status >= fasthttp.StatusInternalServerError && status != fasthttp.StatusServiceUnavailable {
		s.logger().Error("http_handler_error", zap.ByteString("path", ctx.Path()), zap.Error(err))
	}
	writeError(ctx, status, code, err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, lobby.ErrLobbyGone), errors.Is(err, archive.ErrNotFound):
		return fasthttp.StatusNotFound, "not_found"
	case errors.Is(err, session.ErrSessionFull), errors.Is(err, lobby.ErrFull):
		return fasthttp.StatusConflict, "full"
	case errors.Is(err, session.ErrAlreadyJoined), errors.Is(err, lobby.ErrSelfJoin):
		return fasthttp.StatusConflict, "already_joined"
	case errors.Is(err, lobby.ErrCreatorHasLobby), errors.Is(err, lobby.ErrPlayerBusy), errors.Is(err, lobby.ErrLobbyClosed):
		return fasthttp.StatusConflict, "conflict"
	case errors.Is(err, lobby.ErrNotCreator):
		return fasthttp.StatusForbidden, "forbidden"
	case errors.Is(err, session.ErrSessionClosed):
		return fasthttp.StatusGone, "closed"
	case errors.Is(err, session.ErrTooManySessions):
		return fasthttp.StatusServiceUnavailable, "capacity"
	case errors.Is(err, session.ErrMalformedRequest), errors.Is(err, lobby.ErrInvalidArgs),
		errors.Is(err, rules.ErrInvalidFEN), errors.Is(err, rules.ErrInvalidSquare):
		return fasthttp.StatusBadRequest, "bad_request"
	case errors.Is(err, context.DeadlineExceeded):
		return fasthttp.StatusGatewayTimeout, "timeout"
	}
	return fasthttp.StatusInternalServerError, "internal"
}
