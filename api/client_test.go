package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deemkeen/fedcal/api/apitest"
	"github.com/deemkeen/fedcal/domain"
	"github.com/google/uuid"
)

func newTestServer(t *testing.T) (*apitest.Server, *Client) {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)

	srv.Users = []domain.User{
		{Id: uuid.New(), Username: "alice", EventsCount: domain.Count(3)},
		{Id: uuid.New(), Username: "bob"},
	}
	srv.Tokens["alice-token"] = "alice"

	c, err := NewClient(WithURI(srv.URL()), WithToken("alice-token"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return srv, c
}

func TestNewClientAddsTrailingSlash(t *testing.T) {
	c, err := NewClient(WithURI("http://localhost:3000/api"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.BaseURL.Path != "/api/" {
		t.Errorf("Expected path '/api/', got '%s'", c.BaseURL.Path)
	}
}

func TestMe(t *testing.T) {
	_, c := newTestServer(t)

	me, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if me.Username != "alice" {
		t.Errorf("Expected alice, got %s", me.Username)
	}

	_, err = c.WithToken("nope").Me(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
}

func TestWithTokenDoesNotMutateOriginal(t *testing.T) {
	_, c := newTestServer(t)
	other := c.WithToken("x")
	if c.Config.Token != "alice-token" {
		t.Errorf("Original token changed to %s", c.Config.Token)
	}
	if other.Config.Token != "x" {
		t.Errorf("Copy should carry new token, got %s", other.Config.Token)
	}
}

func TestSearchUsersKeepsUnknownCounts(t *testing.T) {
	_, c := newTestServer(t)

	users, err := c.SearchUsers(context.Background(), "", 20)
	if err != nil {
		t.Fatalf("SearchUsers failed: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(users))
	}
	if users[0].EventsCount == nil || *users[0].EventsCount != 3 {
		t.Errorf("Expected alice events 3, got %v", users[0].EventsCount)
	}
	if users[1].EventsCount != nil {
		t.Errorf("Expected bob events unknown, got %d", *users[1].EventsCount)
	}
}

func TestFollowUserRoundTrip(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()

	if err := c.FollowUser(ctx, "bob"); err != nil {
		t.Fatalf("FollowUser failed: %v", err)
	}
	following, err := c.UserFollowing(ctx, "alice")
	if err != nil {
		t.Fatalf("UserFollowing failed: %v", err)
	}
	if len(following) != 1 || following[0].Username != "bob" {
		t.Fatalf("Expected alice to follow bob, got %+v", following)
	}

	if err := c.UnfollowUser(ctx, "bob"); err != nil {
		t.Fatalf("UnfollowUser failed: %v", err)
	}
	following, _ = c.UserFollowing(ctx, "alice")
	if len(following) != 0 {
		t.Errorf("Expected no follows, got %+v", following)
	}
}

func TestSearchActorNotFoundCarriesMessage(t *testing.T) {
	_, c := newTestServer(t)

	_, err := c.SearchActor(context.Background(), "ghost@nowhere.example")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", apiErr.Status)
	}
	if got := ErrorText(err, "fallback"); got != "Could not resolve ghost@nowhere.example" {
		t.Errorf("Expected server message, got %q", got)
	}
}

func TestFollowActorDelivered(t *testing.T) {
	srv, c := newTestServer(t)
	uri := "https://remote.example/users/carol"
	srv.Undelivered["https://remote.example/users/dave"] = true

	res, err := c.FollowActor(context.Background(), uri)
	if err != nil {
		t.Fatalf("FollowActor failed: %v", err)
	}
	if !res.Ok || !res.Delivered {
		t.Errorf("Expected ok and delivered, got %+v", res)
	}

	res, err = c.FollowActor(context.Background(), "https://remote.example/users/dave")
	if err != nil {
		t.Fatalf("FollowActor failed: %v", err)
	}
	if res.Delivered {
		t.Error("Expected delivered=false")
	}
}

func TestRefreshActors(t *testing.T) {
	srv, c := newTestServer(t)
	srv.RefreshChanged = 2

	res, err := c.RefreshActors(context.Background(), 10, 24)
	if err != nil {
		t.Fatalf("RefreshActors failed: %v", err)
	}
	if res.Changed != 2 {
		t.Errorf("Expected 2 changed, got %d", res.Changed)
	}
	if srv.Calls("POST /federation/refresh-actors") != 1 {
		t.Errorf("Expected one refresh call")
	}
}

func TestErrorWithoutBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c, _ := NewClient(WithURI(ts.URL))
	_, err := c.KnownActors(context.Background(), 5)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("Expected 502 APIError, got %v", err)
	}
	if got := ErrorText(err, "fallback"); got != "fallback" {
		t.Errorf("Expected fallback text, got %q", got)
	}
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{"actors":[]}`))
	}))
	defer ts.Close()

	c, _ := NewClient(WithURI(ts.URL), WithToken("k"), WithUserAgent("test/1"))
	if _, err := c.FollowedActors(context.Background()); err != nil {
		t.Fatalf("FollowedActors failed: %v", err)
	}

	if got.Get("Authorization") != "Bearer k" {
		t.Errorf("Expected bearer token, got %q", got.Get("Authorization"))
	}
	if got.Get("User-Agent") != "test/1" {
		t.Errorf("Expected user agent, got %q", got.Get("User-Agent"))
	}
	if _, err := uuid.Parse(got.Get("X-Request-Id")); err != nil {
		t.Errorf("Expected uuid request id, got %q", got.Get("X-Request-Id"))
	}
}

func TestWithTokenIsolatesCookies(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.SessionCookies = true

	base, err := NewClient(WithURI(srv.URL()))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	ctx := context.Background()

	alice := base.WithToken("alice-token")
	if _, err := alice.Me(ctx); err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if _, err := alice.SearchUsers(ctx, "", 10); err != nil {
		t.Fatalf("SearchUsers failed: %v", err)
	}
	if got := srv.LastHeader("GET /users", "Cookie"); got != "session=alice-session" {
		t.Errorf("Expected alice's own cookie to be replayed, got %q", got)
	}

	tests := []struct {
		name   string
		client *Client
	}{
		{"shared client", base},
		{"anonymous copy", base.WithToken("")},
		{"other viewer", base.WithToken("bob-token")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.client.SearchUsers(ctx, "", 10); err != nil {
				t.Fatalf("SearchUsers failed: %v", err)
			}
			if got := srv.LastHeader("GET /users", "Cookie"); got != "" {
				t.Errorf("Expected no cookie, got %q", got)
			}
		})
	}
}

func TestWithoutCookies(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.SessionCookies = true

	base, err := NewClient(WithURI(srv.URL()), WithoutCookies())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	alice := base.WithToken("alice-token")
	if _, err := alice.Me(context.Background()); err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if _, err := alice.SearchUsers(context.Background(), "", 10); err != nil {
		t.Fatalf("SearchUsers failed: %v", err)
	}
	if got := srv.LastHeader("GET /users", "Cookie"); got != "" {
		t.Errorf("Expected no cookie without a jar, got %q", got)
	}
	if got := srv.LastHeader("GET /users", "Authorization"); got != "Bearer alice-token" {
		t.Errorf("Expected bearer token, got %q", got)
	}
}

func TestNewClientIgnoresTokenEnv(t *testing.T) {
	srv, _ := newTestServer(t)
	t.Setenv("FEDCAL_API_TOKEN", "operator-secret")

	c, err := NewClient(WithURI(srv.URL()))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, err := c.SearchUsers(context.Background(), "", 10); err != nil {
		t.Fatalf("SearchUsers failed: %v", err)
	}
	if got := srv.LastHeader("GET /users", "Authorization"); got != "" {
		t.Errorf("Expected an anonymous request, got Authorization %q", got)
	}
}
