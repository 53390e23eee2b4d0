package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/cardchess/internal/adapter/chesspresenter"
	"github.com/park285/cardchess/internal/cards"
	"github.com/park285/cardchess/internal/engine"
	"github.com/park285/cardchess/internal/lobby"
	"github.com/park285/cardchess/internal/session"
	"github.com/park285/cardchess/pkg/chessdto"
	"github.com/valyala/fasthttp"
)

func (s *Server) handleCreate(ctx *fasthttp.RequestCtx) {
	var req chessdto.CreateSessionRequest
	if !decode(ctx, &req) {
		return
	}
	mode, ok := session.ParseMode(strings.ToLower(strings.TrimSpace(req.Mode)))
	if !ok {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_request", fmt.Sprintf("unknown mode %q", req.Mode))
		return
	}
	pref, ok := session.ParseColorPreference(req.Color)
	if !ok {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_request", fmt.Sprintf("unknown color %q", req.Color))
		return
	}
	opts := session.Options{Mode: mode, FEN: req.FEN}
	if req.InitialSeconds > 0 {
		opts.InitialTime = time.Duration(req.InitialSeconds) * time.Second
	}
	if mode == session.ModeComputer {
		preset, err := engine.LookupPreset(req.Difficulty)
		if err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, "bad_request", err.Error())
			return
		}
		opts.ComputerDepth = preset.Depth
	}

	gs, err := s.Registry.Create(opts)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	resp := chessdto.JoinResponse{SessionID: gs.ID()}
	if playerID := strings.TrimSpace(req.PlayerID); playerID != "" {
		color, err := gs.Join(playerID, req.Name, pref)
		if err != nil {
			_ = s.Registry.Remove(gs.ID())
			s.fail(ctx, err)
			return
		}
		resp.Color = color.String()
	}
	resp.State = chesspresenter.ToDTOState(gs.Snapshot(req.PlayerID))
	writeJSON(ctx, fasthttp.StatusCreated, resp)
}

func (s *Server) handleJoin(ctx *fasthttp.RequestCtx, gs *session.GameSession) {
	var req chessdto.JoinRequest
	if !decode(ctx, &req) {
		return
	}
	pref, ok := session.ParseColorPreference(req.Color)
	if !ok {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_request", fmt.Sprintf("unknown color %q", req.Color))
		return
	}
	color, err := gs.Join(req.PlayerID, req.Name, pref)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, chessdto.JoinResponse{
		SessionID: gs.ID(),
		Color:     color.String(),
		State:     chesspresenter.ToDTOState(gs.Snapshot(req.PlayerID)),
	})
}

func (s *Server) handleState(ctx *fasthttp.RequestCtx, gs *session.GameSession) {
	playerID := string(ctx.QueryArgs().Peek("player"))
	state := chesspresenter.ToDTOState(gs.Snapshot(playerID))
	if string(ctx.QueryArgs().Peek("format")) == "text" {
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString(s.Formatter.Status(state) + "\n")
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, state)
}

func (s *Server) handleLegal(ctx *fasthttp.RequestCtx, gs *session.GameSession) {
	square := string(ctx.QueryArgs().Peek("square"))
	targets, err := gs.LegalMoves(string(ctx.QueryArgs().Peek("player")), square)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, chessdto.LegalMovesResponse{From: strings.ToLower(square), Targets: targets})
}

func (s *Server) handleMove(ctx *fasthttp.RequestCtx, gs *session.GameSession) {
	var req chessdto.MoveRequest
	if !decode(ctx, &req) {
		return
	}
	cctx, cancel := s.requestContext()
	defer cancel()
	res, err := gs.MakeMove(cctx, req.PlayerID, req.From, req.To, req.Promotion)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, chesspresenter.ToDTOMove(res))
}

func (s *Server) handleCard(ctx *fasthttp.RequestCtx, gs *session.GameSession) {
	var req chessdto.CardRequest
	if !decode(ctx, &req) {
		return
	}
	cctx, cancel := s.requestContext()
	defer cancel()
	res, err := gs.ActivateCard(cctx, req.PlayerID, session.CardRequest{
		InstanceID: req.InstanceID,
		Params: cards.Params{
			From:           req.From,
			To:             req.To,
			PieceType:      req.PieceType,
			TargetInstance: req.TargetInstance,
		},
	})
	if err != nil {
		s.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, chesspresenter.ToDTOCardResult(res))
}

func (s *Server) handlePromote(ctx *fasthttp.RequestCtx, gs *session.GameSession) {
	var req chessdto.PromoteRequest
	if !decode(ctx, &req) {
		return
	}
	cctx, cancel := s.requestContext()
	defer cancel()
	res, err := gs.Promote(cctx, req.PlayerID, req.Piece)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, chesspresenter.ToDTOMove(res))
}

func (s *Server) handleResign(ctx *fasthttp.RequestCtx, gs *session.GameSession) {
	var req chessdto.ResignRequest
	if !decode(ctx, &req) {
		return
	}
	res, err := gs.Resign(req.PlayerID)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, chesspresenter.ToDTOMove(res))
}

func (s *Server) handlePresets(ctx *fasthttp.RequestCtx) {
	type presetView struct {
		Name  string `json:"name"`
		Depth int    `json:"depth"`
	}
	var out []presetView
	for _, name := range engine.PresetNames() {
		p, _ := engine.LookupPreset(name)
		out = append(out, presetView{Name: p.Name, Depth: p.Depth})
	}
	writeJSON(ctx, fasthttp.StatusOK, out)
}

func lobbyView(meta *lobby.Meta) chessdto.LobbyResponse {
	return chessdto.LobbyResponse{Code: meta.Code, SessionID: meta.SessionID, Ready: meta.State == lobby.StateActive}
}

func (s *Server) handleLobbyMake(ctx *fasthttp.RequestCtx) {
	var req chessdto.LobbyRequest
	if !decode(ctx, &req) {
		return
	}
	cctx, cancel := s.requestContext()
	defer cancel()
	res, err := s.Lobby.Make(cctx, req.PlayerID, req.Name, req.Color)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, lobbyView(res.Meta))
}

func (s *Server) handleLobbyJoin(ctx *fasthttp.RequestCtx, code string) {
	var req chessdto.LobbyRequest
	if !decode(ctx, &req) {
		return
	}
	cctx, cancel := s.requestContext()
	defer cancel()
	res, err := s.Lobby.Join(cctx, code, req.PlayerID, req.Name)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, lobbyView(res.Meta))
}

func (s *Server) handleLobbyGet(ctx *fasthttp.RequestCtx, code string) {
	cctx, cancel := s.requestContext()
	defer cancel()
	meta, err := s.Lobby.Get(cctx, code)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, lobbyView(meta))
}

func (s *Server) handleLobbyCancel(ctx *fasthttp.RequestCtx, code string) {
	cctx, cancel := s.requestContext()
	defer cancel()
	if err := s.Lobby.Cancel(cctx, code, string(ctx.QueryArgs().Peek("player"))); err != nil {
		s.fail(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) handleLobbyList(ctx *fasthttp.RequestCtx) {
	cctx, cancel := s.requestContext()
	defer cancel()
	metas, err := s.Lobby.ListOpen(cctx)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	out := make([]chessdto.LobbyResponse, 0, len(metas))
	for _, m := range metas {
		out = append(out, lobbyView(m))
	}
	writeJSON(ctx, fasthttp.StatusOK, out)
}

func (s *Server) handleArchivedGame(ctx *fasthttp.RequestCtx, sessionID string) {
	if s.Games == nil {
		writeError(ctx, fasthttp.StatusNotImplemented, "archive_disabled", "archive requires DATABASE_URL")
		return
	}
	cctx, cancel := s.requestContext()
	defer cancel()
	g, err := s.Games.Game(cctx, sessionID)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{
		"session_id":  g.SessionID,
		"mode":        g.Mode,
		"white":       g.WhiteName,
		"black":       g.BlackName,
		"result":      g.Result,
		"reason":      g.Reason,
		"final_fen":   g.FinalFEN,
		"pgn":         g.PGN,
		"ended_at":    g.EndedAt,
		"duration_ms": g.Duration.Milliseconds(),
	})
}
