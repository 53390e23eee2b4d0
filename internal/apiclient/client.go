package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/park285/cardchess/pkg/chessdto"
	"github.com/valyala/fasthttp"
)

// HeaderProvider allows injecting per-request headers
type HeaderProvider func() map[string]string

// Client talks to the cardchess HTTP API.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 20 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 20 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response. Domain carries the decoded error body when present.
type APIError struct {
	Status int
	Domain chessdto.DomainError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cardchess api: status=%d code=%s: %s", e.Status, e.Domain.Code, e.Domain.Error())
}

// Health is the server's liveness report.
type Health struct {
	OK       bool `json:"ok"`
	Sessions int  `json:"sessions"`
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/healthz", nil, &h, true); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) CreateSession(ctx context.Context, req chessdto.CreateSessionRequest) (*chessdto.JoinResponse, error) {
	var resp chessdto.JoinResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/sessions", req, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Join(ctx context.Context, sessionID string, req chessdto.JoinRequest) (*chessdto.JoinResponse, error) {
	var resp chessdto.JoinResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, sessionPath(sessionID, "join"), req, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) State(ctx context.Context, sessionID, playerID string) (*chessdto.SessionState, error) {
	var st chessdto.SessionState
	path := sessionPath(sessionID, "") + "?player=" + url.QueryEscape(playerID)
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, nil, &st, true); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) LegalMoves(ctx context.Context, sessionID, playerID, square string) ([]string, error) {
	var resp chessdto.LegalMovesResponse
	path := sessionPath(sessionID, "legal") + "?player=" + url.QueryEscape(playerID) + "&square=" + url.QueryEscape(square)
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Targets, nil
}

func (c *Client) History(ctx context.Context, sessionID string) ([]chessdto.HistoryEntry, error) {
	var out []chessdto.HistoryEntry
	if err := c.doJSON(ctx, fasthttp.MethodGet, sessionPath(sessionID, "history"), nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// Commands are never retried: a lost response does not mean the move was not played.
func (c *Client) Move(ctx context.Context, sessionID string, req chessdto.MoveRequest) (*chessdto.MoveResponse, error) {
	var resp chessdto.MoveResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, sessionPath(sessionID, "move"), req, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) PlayCard(ctx context.Context, sessionID string, req chessdto.CardRequest) (*chessdto.CardResponse, error) {
	var resp chessdto.CardResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, sessionPath(sessionID, "card"), req, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Promote(ctx context.Context, sessionID string, req chessdto.PromoteRequest) (*chessdto.MoveResponse, error) {
	var resp chessdto.MoveResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, sessionPath(sessionID, "promote"), req, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Resign(ctx context.Context, sessionID, playerID string) (*chessdto.MoveResponse, error) {
	var resp chessdto.MoveResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, sessionPath(sessionID, "resign"), chessdto.ResignRequest{PlayerID: playerID}, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

func sessionPath(sessionID, action string) string {
	p := "/sessions/" + url.PathEscape(strings.TrimSpace(sessionID))
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")

	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry {
		attempts = max(c.retryMax, 1)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt == attempts {
				return lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			apiErr := &APIError{Status: status}
			if json.Unmarshal(resp.Body(), &apiErr.Domain) != nil {
				apiErr.Domain.Message = truncate(string(resp.Body()), 512)
			}
			if attempt == attempts || !shouldRetryStatus(status) {
				return apiErr
			}
			lastErr = apiErr
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil && len(resp.Body()) > 0 {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	attempt = min(max(attempt, 1), 6)
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
