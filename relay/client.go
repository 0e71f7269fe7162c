package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/autosave-fi/autosave/internal/types"
)

// ExecuteResponse is the ledger's report of a settled execution.
type ExecuteResponse struct {
	Plan        types.Plan `json:"plan"`
	AmountSaved string     `json:"amount_saved"`
	Yield       string     `json:"yield"`
	Fee         string     `json:"fee"`
	Height      uint64     `json:"height"`
}

type HeightResponse struct {
	Height uint64 `json:"height"`
}

type WithdrawResponse struct {
	Relayer string `json:"relayer"`
	Amount  string `json:"amount"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Client talks to the ledger service's HTTP API on behalf of the
// scheduler and worker. All mutating calls carry the relayer's bearer
// token.
type Client struct {
	url        string
	authToken  string
	httpClient http.Client
	logger     *logrus.Logger
}

func NewClient(url string, authToken string) *Client {
	return &Client{
		url:        url,
		authToken:  authToken,
		httpClient: http.Client{Timeout: 10 * time.Second},
		logger:     logrus.WithField("service", "ledger-client").Logger,
	}
}

func (c *Client) bodyCloser(body io.ReadCloser) {
	if body != nil {
		if err := body.Close(); err != nil {
			c.logger.Error("Failed to close body,err:", err)
		}
	}
}

func (c *Client) do(ctx context.Context, method string, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("fail to marshal payload: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url+path, body)
	if err != nil {
		return fmt.Errorf("fail to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fail to call ledger: %w", err)
	}
	defer c.bodyCloser(resp.Body)

	buff, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("fail to read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return c.remoteError(resp.StatusCode, buff)
	}

	if out != nil {
		if err := json.Unmarshal(buff, out); err != nil {
			return fmt.Errorf("fail to unmarshal response body: %w", err)
		}
	}
	return nil
}

// remoteError maps the ledger's error responses back onto the sentinel
// errors callers dispatch on, so a remote ErrTooSoon reads the same as
// a local one.
func (c *Client) remoteError(status int, body []byte) error {
	var remote errorResponse
	message := string(body)
	if err := json.Unmarshal(body, &remote); err == nil && remote.Message != "" {
		message = remote.Message
	}

	for _, sentinel := range []error{
		types.ErrInvalidParameters,
		types.ErrUnsupportedToken,
		types.ErrTokenDisabled,
		types.ErrAuthorizationRejected,
		types.ErrPlanNotFound,
		types.ErrPlanInactive,
		types.ErrTooSoon,
		types.ErrNotActive,
		types.ErrTransferRejected,
		types.ErrNothingToWithdraw,
		types.ErrUnauthorized,
	} {
		if message == sentinel.Error() {
			return sentinel
		}
	}
	return fmt.Errorf("ledger returned %d: %s", status, message)
}

func (c *Client) GetPlan(ctx context.Context, planID string) (types.Plan, error) {
	var plan types.Plan
	if err := c.do(ctx, http.MethodGet, "/v1/plans/"+url.PathEscape(planID), nil, &plan); err != nil {
		return types.Plan{}, fmt.Errorf("fail to get plan: %w", err)
	}
	return plan, nil
}

func (c *Client) CurrentHeight(ctx context.Context) (uint64, error) {
	var resp HeightResponse
	if err := c.do(ctx, http.MethodGet, "/v1/height", nil, &resp); err != nil {
		return 0, fmt.Errorf("fail to get height: %w", err)
	}
	return resp.Height, nil
}

func (c *Client) EventsInRange(ctx context.Context, from uint64, to uint64, kind types.EventKind) ([]types.Event, error) {
	query := url.Values{}
	query.Set("from", strconv.FormatUint(from, 10))
	query.Set("to", strconv.FormatUint(to, 10))
	if kind != "" {
		query.Set("kind", string(kind))
	}

	var events []types.Event
	if err := c.do(ctx, http.MethodGet, "/v1/events?"+query.Encode(), nil, &events); err != nil {
		return nil, fmt.Errorf("fail to get events: %w", err)
	}
	return events, nil
}

func (c *Client) Execute(ctx context.Context, planID string) (*ExecuteResponse, error) {
	var resp ExecuteResponse
	if err := c.do(ctx, http.MethodPost, "/v1/plans/"+url.PathEscape(planID)+"/execute", nil, &resp); err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"plan":   planID,
		"amount": resp.AmountSaved,
		"fee":    resp.Fee,
		"height": resp.Height,
	}).Info("Plan executed on ledger")
	return &resp, nil
}

func (c *Client) WithdrawCredit(ctx context.Context) (*WithdrawResponse, error) {
	var resp WithdrawResponse
	if err := c.do(ctx, http.MethodPost, "/v1/relayer/credit/withdraw", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
