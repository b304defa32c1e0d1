// Package remote implements ledger.Service over the HTTP API, so
// report generators and tooling can run against a deployed node with
// the same interface the in-process ledger exposes.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"sufragio.org/internal/ledger"
)

// Client talks to one API node. It exchanges each caller address for a
// bearer token on demand and caches it until shortly before expiry.
type Client struct {
	baseURL string
	hc      *http.Client

	mu     sync.Mutex
	tokens map[ledger.AccountID]cachedToken
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: 15 * time.Second},
		tokens:  make(map[ledger.AccountID]cachedToken),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ ledger.Service = (*Client)(nil)

// sentinelByMessage maps the API's error strings back to the ledger
// sentinels so errors.Is keeps working across the wire.
var sentinelByMessage = func() map[string]error {
	sentinels := []error{
		ledger.ErrNotAdministrator,
		ledger.ErrNotReportGenerator,
		ledger.ErrNotRegistered,
		ledger.ErrRegistrationClosed,
		ledger.ErrRegistrationAlreadyEnabled,
		ledger.ErrRegistrationAlreadyDisabled,
		ledger.ErrCallerIsAdministrator,
		ledger.ErrAlreadyRejected,
		ledger.ErrAlreadyRegistered,
		ledger.ErrAlreadyPending,
		ledger.ErrNoPendingUsers,
		ledger.ErrElectionNotFound,
		ledger.ErrAlreadyEnrolled,
		ledger.ErrVotingAlreadyStarted,
		ledger.ErrElectionEnded,
		ledger.ErrPreviouslyRejected,
		ledger.ErrTooEarly,
		ledger.ErrVotingEnded,
		ledger.ErrCandidateNotFound,
		ledger.ErrNotAVoter,
		ledger.ErrAlreadyVoted,
		ledger.ErrNotYetFinished,
		ledger.ErrElectionIDOverflow,
		ledger.ErrCandidateIDOverflow,
		ledger.ErrTallyOverflow,
		ledger.ErrUserNotFound,
		ledger.ErrBadStartDate,
		ledger.ErrBadEndDate,
		ledger.ErrInvalidRole,
	}
	m := make(map[string]error, len(sentinels))
	for _, s := range sentinels {
		m[s.Error()] = s
	}
	return m
}()

type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.status, e.message)
}

func mapError(status int, message string) error {
	if s, ok := sentinelByMessage[message]; ok {
		return s
	}
	return &apiError{status: status, message: message}
}

func (c *Client) token(ctx context.Context, caller ledger.AccountID) (string, error) {
	c.mu.Lock()
	cached, ok := c.tokens[caller]
	c.mu.Unlock()
	if ok && time.Until(cached.expiresAt) > 30*time.Second {
		return cached.token, nil
	}

	var resp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	err := c.call(ctx, "", http.MethodPost, "/v1/auth/token", map[string]any{
		"address": caller.Hex(),
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("obtain token: %w", err)
	}

	c.mu.Lock()
	c.tokens[caller] = cachedToken{token: resp.Token, expiresAt: resp.ExpiresAt}
	c.mu.Unlock()
	return resp.Token, nil
}

func (c *Client) do(ctx context.Context, caller ledger.AccountID, method, path string, body, out any) error {
	token, err := c.token(ctx, caller)
	if err != nil {
		return err
	}
	return c.call(ctx, token, method, path, body, out)
}

func (c *Client) call(ctx context.Context, token, method, path string, body, out any) error {
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return mapError(resp.StatusCode, errBody.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func electionPath(electionID uint64, rest string) string {
	p := "/v1/elections/" + strconv.FormatUint(electionID, 10)
	if rest != "" {
		p += "/" + rest
	}
	return p
}

// --- ledger.Service ---

func (c *Client) Register(ctx context.Context, caller ledger.AccountID, name, surname, nationalID string) error {
	return c.do(ctx, caller, http.MethodPost, "/v1/registration", map[string]any{
		"name":        name,
		"surname":     surname,
		"national_id": nationalID,
	}, nil)
}

func (c *Client) EnableRegistration(ctx context.Context, caller ledger.AccountID) error {
	return c.do(ctx, caller, http.MethodPost, "/v1/registration/enable", nil, nil)
}

func (c *Client) DisableRegistration(ctx context.Context, caller ledger.AccountID) error {
	return c.do(ctx, caller, http.MethodPost, "/v1/registration/disable", nil, nil)
}

func (c *Client) NextPendingUser(ctx context.Context, caller ledger.AccountID) (ledger.User, error) {
	var u ledger.User
	err := c.do(ctx, caller, http.MethodGet, "/v1/registration/next", nil, &u)
	return u, err
}

func (c *Client) ProcessNextPendingUser(ctx context.Context, caller ledger.AccountID, accept bool) (ledger.User, error) {
	var resp struct {
		User ledger.User `json:"user"`
	}
	err := c.do(ctx, caller, http.MethodPost, "/v1/registration/next", map[string]any{
		"accept": accept,
	}, &resp)
	return resp.User, err
}

func (c *Client) TransferAdministrator(ctx context.Context, caller, newAdmin ledger.AccountID) error {
	return c.do(ctx, caller, http.MethodPost, "/v1/admin/transfer", map[string]any{
		"new_admin": newAdmin.Hex(),
	}, nil)
}

func (c *Client) AssignReportGenerator(ctx context.Context, caller, generator ledger.AccountID) error {
	return c.do(ctx, caller, http.MethodPost, "/v1/admin/report-generator", map[string]any{
		"generator": generator.Hex(),
	}, nil)
}

func (c *Client) CreateElection(ctx context.Context, caller ledger.AccountID, start, end string) (uint64, error) {
	var resp struct {
		ID uint64 `json:"id"`
	}
	err := c.do(ctx, caller, http.MethodPost, "/v1/elections", map[string]any{
		"starts_at": start,
		"ends_at":   end,
	}, &resp)
	return resp.ID, err
}

func (c *Client) StartVoting(ctx context.Context, caller ledger.AccountID, electionID uint64) error {
	return c.do(ctx, caller, http.MethodPost, electionPath(electionID, "start"), nil, nil)
}

func (c *Client) JoinElection(ctx context.Context, caller ledger.AccountID, electionID uint64, role ledger.Role) error {
	return c.do(ctx, caller, http.MethodPost, electionPath(electionID, "enroll"), map[string]any{
		"role": role.String(),
	}, nil)
}

func (c *Client) NextPendingElectionUser(ctx context.Context, caller ledger.AccountID, electionID uint64) (ledger.Enrollment, error) {
	var e ledger.Enrollment
	err := c.do(ctx, caller, http.MethodGet, electionPath(electionID, "enrollment/next"), nil, &e)
	return e, err
}

func (c *Client) ProcessElectionEnrollment(ctx context.Context, caller ledger.AccountID, electionID uint64, accept bool) (ledger.Enrollment, error) {
	var resp struct {
		Enrollment ledger.Enrollment `json:"enrollment"`
	}
	err := c.do(ctx, caller, http.MethodPost, electionPath(electionID, "enrollment/next"), map[string]any{
		"accept": accept,
	}, &resp)
	return resp.Enrollment, err
}

func (c *Client) CastVote(ctx context.Context, caller ledger.AccountID, electionID uint64, candidateNumber uint32) error {
	return c.do(ctx, caller, http.MethodPost, electionPath(electionID, "votes"), map[string]any{
		"candidate_number": candidateNumber,
	}, nil)
}

func (c *Client) CandidateInfo(ctx context.Context, caller ledger.AccountID, electionID uint64, candidateNumber uint32) (ledger.User, error) {
	var u ledger.User
	path := electionPath(electionID, "candidates/"+strconv.FormatUint(uint64(candidateNumber), 10))
	err := c.do(ctx, caller, http.MethodGet, path, nil, &u)
	return u, err
}

func (c *Client) UserInfo(ctx context.Context, caller, userID ledger.AccountID) (ledger.User, error) {
	var u ledger.User
	err := c.do(ctx, caller, http.MethodGet, "/v1/users/"+userID.Hex(), nil, &u)
	return u, err
}

func (c *Client) ElectionVoters(ctx context.Context, caller ledger.AccountID, electionID uint64) ([]ledger.VoterEntry, error) {
	var resp struct {
		Items []ledger.VoterEntry `json:"items"`
	}
	err := c.do(ctx, caller, http.MethodGet, electionPath(electionID, "voters"), nil, &resp)
	return resp.Items, err
}

func (c *Client) ElectionCandidates(ctx context.Context, caller ledger.AccountID, electionID uint64) ([]ledger.CandidateTally, error) {
	var resp struct {
		Items []ledger.CandidateTally `json:"items"`
	}
	err := c.do(ctx, caller, http.MethodGet, electionPath(electionID, "candidates"), nil, &resp)
	return resp.Items, err
}

func (c *Client) Results(ctx context.Context, caller ledger.AccountID, electionID uint64) (ledger.Results, error) {
	var res ledger.Results
	err := c.do(ctx, caller, http.MethodGet, electionPath(electionID, "results"), nil, &res)
	return res, err
}
