package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/TimurManjosov/hostmatch/internal/api"
	"github.com/TimurManjosov/hostmatch/internal/client"
	"github.com/TimurManjosov/hostmatch/internal/matching"
	"github.com/TimurManjosov/hostmatch/internal/roundrobin"
	"github.com/TimurManjosov/hostmatch/internal/testutil"
)

func newClient(t *testing.T) *client.Client {
	t.Helper()
	server, _ := testutil.NewTestServer(t)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return client.NewClient(ts.URL + "/")
}

const engineers = `{"type":"group","children":[{"type":"rule","properties":{"field":"dept","operator":"select_equals","value":["opt-eng"]}}]}`

func TestClient_ListAttributes(t *testing.T) {
	c := newClient(t)

	attrs, err := c.ListAttributes(context.Background(), 10, nil)
	if err != nil {
		t.Fatalf("ListAttributes() error = %v", err)
	}
	if len(attrs) != 4 {
		t.Errorf("got %d attributes, want 4", len(attrs))
	}

	_, err = c.ListAttributes(context.Background(), 99, nil)
	if !client.IsStatus(err, http.StatusNotFound) {
		t.Errorf("expected 404 APIError, got %v", err)
	}
}

func TestClient_Match(t *testing.T) {
	c := newClient(t)

	resp, err := c.Match(context.Background(), api.MatchRequest{
		ScopeRequest: api.ScopeRequest{TeamID: 10},
		Route:        api.RouteRequest{ID: "r", AttributesQueryValue: json.RawMessage(engineers)},
	})
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if resp.Outcome != matching.OutcomeMatched {
		t.Errorf("outcome = %s, want matched", resp.Outcome)
	}
	if len(resp.MatchedMemberIDs) != 2 || resp.MatchedMemberIDs[0] != 1 || resp.MatchedMemberIDs[1] != 3 {
		t.Errorf("matched = %v, want [1 3]", resp.MatchedMemberIDs)
	}
}

func TestClient_MatchValidationError(t *testing.T) {
	c := newClient(t)

	_, err := c.Match(context.Background(), api.MatchRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*client.APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Response.Code != api.ErrCodeValidation {
		t.Errorf("unexpected error: %v", apiErr)
	}
}

func TestClient_ValidateQuery(t *testing.T) {
	c := newClient(t)

	resp, err := c.ValidateQuery(context.Background(), api.ValidateQueryRequest{
		ScopeRequest: api.ScopeRequest{TeamID: 10},
		Query:        json.RawMessage(engineers),
	})
	if err != nil {
		t.Fatalf("ValidateQuery() error = %v", err)
	}
	if !resp.Valid || len(resp.RuleErrors) != 0 {
		t.Errorf("expected clean query, got %+v", resp)
	}
}

func TestClient_FilterHosts(t *testing.T) {
	c := newClient(t)

	resp, err := c.FilterHosts(context.Background(), api.FilterHostsRequest{
		ScopeRequest: api.ScopeRequest{TeamID: 10},
		Route:        api.RouteRequest{AttributesQueryValue: json.RawMessage(engineers)},
		Hosts: []roundrobin.Host{
			{MemberID: 1, RecentBookings: 3},
			{MemberID: 2},
			{MemberID: 3, RecentBookings: 1},
		},
	})
	if err != nil {
		t.Fatalf("FilterHosts() error = %v", err)
	}
	if len(resp.Hosts) != 2 {
		t.Errorf("hosts = %+v, want members 1 and 3", resp.Hosts)
	}
	if resp.Lead == nil || resp.Lead.MemberID != 3 {
		t.Errorf("lead = %+v, want member 3", resp.Lead)
	}
}

func TestNewInProcess(t *testing.T) {
	server, _ := testutil.NewTestServer(t)
	c := client.NewInProcess(server.Router())

	resp, err := c.Match(context.Background(), api.MatchRequest{
		ScopeRequest: api.ScopeRequest{TeamID: 20},
		Route: api.RouteRequest{
			AttributesQueryValue: json.RawMessage(engineers),
			FallbackAction:       &matching.FallbackAction{Type: matching.ActionCustomPageMessage, Value: "later"},
		},
	})
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if resp.Outcome != matching.OutcomeUnevaluated || resp.MatchedMemberIDs != nil {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.FallbackAction == nil || resp.FallbackAction.Value != "later" {
		t.Errorf("fallbackAction = %+v", resp.FallbackAction)
	}
}
