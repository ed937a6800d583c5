package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"granpix/internal/config"
	"granpix/internal/constants"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

// ChallongeClient talks to the Challonge v1 API: HTTP Basic auth,
// form-urlencoded request bodies, JSON responses. A 520 from the edge
// is transient and retried with bounded exponential backoff; every
// other non-2xx status is terminal.
type ChallongeClient struct {
	baseURL string
	auth    string
	client  *fasthttp.Client
	logger  zerolog.Logger
}

func NewChallongeClient(cfg *config.Config, logger zerolog.Logger) *ChallongeClient {
	creds := cfg.ChallongeUsername + ":" + cfg.ChallongeAPIKey
	return &ChallongeClient{
		baseURL: cfg.ChallongeBaseURL,
		auth:    "Basic " + base64.StdEncoding.EncodeToString([]byte(creds)),
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger,
	}
}

type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("challonge API error: %d", e.Status)
}

// StatusTransient is the Cloudflare origin-error status the Challonge
// edge returns intermittently; it is the only retryable status.
const StatusTransient = 520

// IsTransient reports whether err is worth retrying (network failure or
// Cloudflare 520).
func IsTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == StatusTransient
	}
	// Anything that never produced a status is a transport failure.
	return err != nil
}

type Tournament struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	State string `json:"state"`
}

type Participant struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Seed int    `json:"seed"`
}

type Match struct {
	ID        int64  `json:"id"`
	State     string `json:"state"`
	Round     int    `json:"round"`
	Player1ID *int64 `json:"player1_id"`
	Player2ID *int64 `json:"player2_id"`
	WinnerID  *int64 `json:"winner_id"`
	ScoresCSV string `json:"scores_csv"`
}

const (
	MatchOpen     = "open"
	MatchComplete = "complete"
)

type tournamentEnvelope struct {
	Tournament Tournament `json:"tournament"`
}

type participantEnvelope struct {
	Participant Participant `json:"participant"`
}

type matchEnvelope struct {
	Match Match `json:"match"`
}

func (c *ChallongeClient) CreateTournament(ctx context.Context, name, slug string) (*Tournament, error) {
	form := url.Values{}
	form.Set("tournament[name]", name)
	form.Set("tournament[url]", slug)
	form.Set("tournament[tournament_type]", "single elimination")

	body, err := c.doRetry(ctx, fasthttp.MethodPost, "/tournaments.json", form)
	if err != nil {
		return nil, err
	}
	var env tournamentEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &env.Tournament, nil
}

func (c *ChallongeClient) DeleteTournament(ctx context.Context, slug string) error {
	_, err := c.do(ctx, fasthttp.MethodDelete, fmt.Sprintf("/tournaments/%s.json", slug), nil)
	return err
}

func (c *ChallongeClient) AddParticipant(ctx context.Context, slug, name string, seed int) (*Participant, error) {
	form := url.Values{}
	form.Set("participant[name]", name)
	form.Set("participant[seed]", fmt.Sprintf("%d", seed))

	body, err := c.doRetry(ctx, fasthttp.MethodPost, fmt.Sprintf("/tournaments/%s/participants.json", slug), form)
	if err != nil {
		return nil, err
	}
	var env participantEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &env.Participant, nil
}

func (c *ChallongeClient) StartTournament(ctx context.Context, slug string) error {
	_, err := c.doRetry(ctx, fasthttp.MethodPost, fmt.Sprintf("/tournaments/%s/start.json", slug), nil)
	return err
}

func (c *ChallongeClient) ListMatches(ctx context.Context, slug string) ([]Match, error) {
	body, err := c.doRetry(ctx, fasthttp.MethodGet, fmt.Sprintf("/tournaments/%s/matches.json", slug), nil)
	if err != nil {
		return nil, err
	}
	var envs []matchEnvelope
	if err := json.Unmarshal(body, &envs); err != nil {
		return nil, err
	}
	matches := make([]Match, len(envs))
	for i, e := range envs {
		matches[i] = e.Match
	}
	return matches, nil
}

func (c *ChallongeClient) ListParticipants(ctx context.Context, slug string) ([]Participant, error) {
	body, err := c.doRetry(ctx, fasthttp.MethodGet, fmt.Sprintf("/tournaments/%s/participants.json", slug), nil)
	if err != nil {
		return nil, err
	}
	var envs []participantEnvelope
	if err := json.Unmarshal(body, &envs); err != nil {
		return nil, err
	}
	participants := make([]Participant, len(envs))
	for i, e := range envs {
		participants[i] = e.Participant
	}
	return participants, nil
}

func (c *ChallongeClient) ReportMatch(ctx context.Context, slug string, matchID, winnerID int64, scoresCSV string) (*Match, error) {
	form := url.Values{}
	form.Set("match[winner_id]", fmt.Sprintf("%d", winnerID))
	form.Set("match[scores_csv]", scoresCSV)

	body, err := c.doRetry(ctx, fasthttp.MethodPut, fmt.Sprintf("/tournaments/%s/matches/%d.json", slug, matchID), form)
	if err != nil {
		return nil, err
	}
	var env matchEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &env.Match, nil
}

func (c *ChallongeClient) FinalizeTournament(ctx context.Context, slug string) error {
	_, err := c.doRetry(ctx, fasthttp.MethodPost, fmt.Sprintf("/tournaments/%s/finalize.json", slug), nil)
	return err
}

func (c *ChallongeClient) ReopenMatch(ctx context.Context, slug string, matchID int64) error {
	_, err := c.doRetry(ctx, fasthttp.MethodPost, fmt.Sprintf("/tournaments/%s/matches/%d/reopen.json", slug, matchID), nil)
	return err
}

// doRetry wraps do with the bounded backoff ceiling; only transient
// failures are retried.
func (c *ChallongeClient) doRetry(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	backoff := retry.WithMaxRetries(constants.BracketRetryAttempts, retry.NewExponential(constants.BracketRetryBase))

	var body []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		body, err = c.do(ctx, method, path, form)
		if err != nil && IsTransient(err) {
			c.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("transient challonge failure, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
	return body, err
}

func (c *ChallongeClient) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", c.auth)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	if form != nil {
		req.Header.SetContentType("application/x-www-form-urlencoded")
		req.SetBodyString(form.Encode())
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(constants.ExternalAPITimeout)
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, err
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		return nil, &StatusError{Status: status, Body: string(resp.Body())}
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}
