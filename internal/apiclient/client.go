// Package apiclient is a typed HTTP client for the campaign API. It is the
// data source of the sync layer and the CLI.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/crowdfund/backend/internal/ledger"
	"github.com/crowdfund/backend/internal/models"
	"go.uber.org/zap"
)

// ErrUnavailable wraps transport failures and timeouts.
var ErrUnavailable = errors.New("api unavailable")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("api returned %d %s: %s (request %s)", e.Status, e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("api returned %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap exposes the ledger sentinel for the error code, so callers can use
// errors.Is(err, ledger.ErrNotFound).
func (e *APIError) Unwrap() error { return ledger.FromCode(e.Code) }

// Temporary reports whether retrying may succeed: server-side failures and
// rate limiting, never business-rule rejections.
func (e *APIError) Temporary() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

type unavailableError struct{ err error }

func (e *unavailableError) Error() string   { return fmt.Sprintf("%v: %v", ErrUnavailable, e.err) }
func (e *unavailableError) Unwrap() []error { return []error{ErrUnavailable, e.err} }
func (e *unavailableError) Temporary() bool { return true }

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.Logger
}

// New returns a client for baseURL (e.g. http://localhost:8080). Every
// request is bounded by timeout.
func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// WithToken returns a copy that authenticates with a session token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

type envelope struct {
	OK        bool            `json:"ok"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Code      string          `json:"code"`
	RequestID string          `json:"request_id"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + "/api/v1" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &unavailableError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return &unavailableError{err: err}
	}

	var env envelope
	if len(body) > 0 {
		if err := json.Unmarshal(body, &env); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Error, RequestID: env.RequestID}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		c.log.Debug("api error", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.String("code", env.Code))
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", path, err)
	}
	return nil
}

// Campaigns lists every campaign in id order.
func (c *Client) Campaigns(ctx context.Context) ([]models.Campaign, error) {
	var out []models.Campaign
	if err := c.get(ctx, "/campaigns", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Campaign(ctx context.Context, id uint64) (models.Campaign, error) {
	var out models.Campaign
	err := c.get(ctx, "/campaigns/"+strconv.FormatUint(id, 10), nil, &out)
	return out, err
}

func (c *Client) Stats(ctx context.Context, id uint64) (models.CampaignStats, error) {
	var out models.CampaignStats
	err := c.get(ctx, "/campaigns/"+strconv.FormatUint(id, 10)+"/stats", nil, &out)
	return out, err
}

// UserTransactions returns the identity's ledger entries newest first. A
// positive limit caps the result.
func (c *Client) UserTransactions(ctx context.Context, identity string, limit int) ([]models.Transaction, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var out []models.Transaction
	if err := c.get(ctx, "/users/"+url.PathEscape(identity)+"/transactions", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	if err := c.get(ctx, "/meta/categories", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
