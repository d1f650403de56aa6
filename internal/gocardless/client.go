// Package gocardless is a minimal client for the GoCardless Pro API,
// covering the payout, event and payment endpoints the reconciler needs.
package gocardless

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/treasuryops/payout-reconciler/internal/domain"
	"github.com/treasuryops/payout-reconciler/internal/paging"
)

const (
	liveBaseURL    = "https://api.gocardless.com"
	sandboxBaseURL = "https://api-sandbox.gocardless.com"

	apiVersion = "2015-07-06"

	// Page size for payout listing; events use the API default.
	payoutPageSize = 500
)

// Config holds the client parameters. Token is required; Environment is
// "live" (the default) or "sandbox". BaseURL overrides Environment, for
// tests.
type Config struct {
	Token       string
	Environment string
	BaseURL     string
	HTTPClient  *http.Client
}

// Client talks to the GoCardless Pro API. All calls are synchronous and
// blocking; retries and timeouts are left to the injected http.Client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New builds a client, validating the configuration up front.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: GoCardless token missing - check parameters", domain.ErrInvalidParameter)
	}

	base := cfg.BaseURL
	if base == "" {
		switch cfg.Environment {
		case "", "live":
			base = liveBaseURL
		case "sandbox":
			base = sandboxBaseURL
		default:
			return nil, fmt.Errorf("%w: unknown environment %q", domain.ErrInvalidParameter, cfg.Environment)
		}
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{baseURL: base, token: cfg.Token, httpClient: hc}, nil
}

// PayoutListRequest filters a payout listing.
type PayoutListRequest struct {
	Status       string
	CreatedAtGte string
	After        string
}

// EventListRequest filters an event listing. Action/Payout select a
// payout's originating paid event; ResourceType/ParentEvent/Include select
// the child payment events of that event.
type EventListRequest struct {
	Action       string
	Payout       string
	ResourceType string
	ParentEvent  string
	Include      string
	After        string
}

type meta struct {
	Cursors struct {
		Before string `json:"before"`
		After  string `json:"after"`
	} `json:"cursors"`
	Limit int `json:"limit"`
}

// ListPayouts returns one page of payouts plus the cursor for the next.
func (c *Client) ListPayouts(req PayoutListRequest) (paging.Page[domain.Payout], error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(payoutPageSize))
	if req.Status != "" {
		q.Set("status", req.Status)
	}
	if req.CreatedAtGte != "" {
		q.Set("created_at[gte]", req.CreatedAtGte)
	}
	if req.After != "" {
		q.Set("after", req.After)
	}

	var body struct {
		Payouts []domain.Payout `json:"payouts"`
		Meta    meta            `json:"meta"`
	}
	if err := c.get("/payouts", q, &body); err != nil {
		return paging.Page[domain.Payout]{}, err
	}
	return paging.Page[domain.Payout]{Records: body.Payouts, After: body.Meta.Cursors.After}, nil
}

// ListEvents returns one page of events plus the cursor for the next.
func (c *Client) ListEvents(req EventListRequest) (paging.Page[domain.Event], error) {
	q := url.Values{}
	if req.Action != "" {
		q.Set("action", req.Action)
	}
	if req.Payout != "" {
		q.Set("payout", req.Payout)
	}
	if req.ResourceType != "" {
		q.Set("resource_type", req.ResourceType)
	}
	if req.ParentEvent != "" {
		q.Set("parent_event", req.ParentEvent)
	}
	if req.Include != "" {
		q.Set("include", req.Include)
	}
	if req.After != "" {
		q.Set("after", req.After)
	}

	var body struct {
		Events []domain.Event `json:"events"`
		Meta   meta           `json:"meta"`
	}
	if err := c.get("/events", q, &body); err != nil {
		return paging.Page[domain.Event]{}, err
	}
	return paging.Page[domain.Event]{Records: body.Events, After: body.Meta.Cursors.After}, nil
}

// GetPayment fetches a single payment by ID.
func (c *Client) GetPayment(id string) (*domain.Payment, error) {
	var body struct {
		Payment domain.Payment `json:"payments"`
	}
	if err := c.get("/payments/"+id, nil, &body); err != nil {
		return nil, err
	}
	return &body.Payment, nil
}

func (c *Client) get(path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("GoCardless-Version", apiVersion)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: unexpected status %d: %s",
			path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}
