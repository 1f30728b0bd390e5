package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TimurManjosov/hostmatch/internal/api"
	"github.com/TimurManjosov/hostmatch/internal/attribute"
	"github.com/TimurManjosov/hostmatch/internal/routing"
)

// Client is an HTTP client for the hostmatch API
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewInProcess returns a client that serves every request with h directly,
// without a network listener.
func NewInProcess(h http.Handler) *Client {
	return &Client{
		BaseURL:    "http://in-process",
		HTTPClient: &http.Client{Transport: handlerTransport{h}},
	}
}

type handlerTransport struct {
	h http.Handler
}

func (t handlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rec := httptest.NewRecorder()
	t.h.ServeHTTP(rec, req)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status   int
	Response api.ErrorResponse
	Body     string
}

func (e *APIError) Error() string {
	if e.Response.Message != "" {
		return fmt.Sprintf("API error (status %d, %s): %s", e.Status, e.Response.Code, e.Response.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Body)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// ListAttributes returns the attribute catalog visible to a team.
func (c *Client) ListAttributes(ctx context.Context, teamID int64, orgID *int64) ([]attribute.Attribute, error) {
	u, err := url.Parse(c.BaseURL + "/v1/teams/" + strconv.FormatInt(teamID, 10) + "/attributes")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if orgID != nil {
		q := u.Query()
		q.Set("orgId", strconv.FormatInt(*orgID, 10))
		u.RawQuery = q.Encode()
	}

	var result struct {
		Attributes []attribute.Attribute `json:"attributes"`
	}
	if err := c.do(ctx, http.MethodGet, u.String(), nil, &result); err != nil {
		return nil, err
	}
	return result.Attributes, nil
}

// Match evaluates a route against a team's members.
func (c *Client) Match(ctx context.Context, req api.MatchRequest) (*api.MatchResponse, error) {
	var resp api.MatchResponse
	if err := c.do(ctx, http.MethodPost, c.BaseURL+"/v1/match", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ValidateQuery checks a query against a team's catalog.
func (c *Client) ValidateQuery(ctx context.Context, req api.ValidateQueryRequest) (*api.ValidateQueryResponse, error) {
	var resp api.ValidateQueryResponse
	if err := c.do(ctx, http.MethodPost, c.BaseURL+"/v1/queries/validate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FilterHosts narrows a round-robin host pool.
func (c *Client) FilterHosts(ctx context.Context, req api.FilterHostsRequest) (*api.FilterHostsResponse, error) {
	var resp api.FilterHostsResponse
	if err := c.do(ctx, http.MethodPost, c.BaseURL+"/v1/hosts/filter", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RouteForm routes a routing-form response.
func (c *Client) RouteForm(ctx context.Context, req api.RouteFormRequest) (*routing.Decision, error) {
	var resp routing.Decision
	if err := c.do(ctx, http.MethodPost, c.BaseURL+"/v1/forms/route", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode, Body: string(bodyBytes)}
		_ = json.Unmarshal(bodyBytes, &apiErr.Response)
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
