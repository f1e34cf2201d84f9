package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/deemkeen/fedcal/domain"
	"github.com/deemkeen/fedcal/util"
	"github.com/google/uuid"
)

// Client talks to the events REST API.
type Client struct {
	BaseURL   *url.URL
	Config    *Config
	UserAgent string

	httpClient *http.Client
}

// NewClient ...
func NewClient(options ...Option) (*Client, error) {
	config := NewConfig()

	for _, opt := range options {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	u, err := url.Parse(config.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid api uri: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	httpClient := config.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
		if !config.NoCookies {
			jar, err := cookiejar.New(nil)
			if err != nil {
				return nil, fmt.Errorf("cookie jar: %w", err)
			}
			httpClient.Jar = jar
		}
	} else if config.NoCookies && httpClient.Jar != nil {
		hc := *httpClient
		hc.Jar = nil
		httpClient = &hc
	}

	ua := config.UserAgent
	if ua == "" {
		ua = util.UserAgent()
	}

	return &Client{
		BaseURL:    u,
		Config:     config,
		UserAgent:  ua,
		httpClient: httpClient,
	}, nil
}

// WithToken returns a copy of c that authenticates with token. The copy
// shares the transport but gets its own cookie jar, so session cookies
// never travel between viewers.
func (c *Client) WithToken(token string) *Client {
	conf := *c.Config
	conf.Token = token
	cp := *c
	cp.Config = &conf

	hc := *c.httpClient
	if hc.Jar != nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			hc.Jar = nil
		} else {
			hc.Jar = jar
		}
	}
	cp.httpClient = &hc
	return &cp
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Request, error) {
	rel, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, err
	}
	u := c.BaseURL.ResolveReference(rel)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var buf io.ReadWriter
	if body != nil {
		buf = new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), buf)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.Config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Config.Token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, v interface{}) error {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := &APIError{Status: res.StatusCode}
		var body struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(res.Body, 64*1024))
		if json.Unmarshal(data, &body) == nil {
			apiErr.Message = body.Error
		}
		return apiErr
	}

	if v == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse %s response: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, v interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return c.do(req, v)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, v interface{}) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	return c.do(req, v)
}

func limitQuery(limit int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

// Me returns the viewer behind the current credentials.
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var res struct {
		User *domain.User `json:"user"`
	}
	if err := c.get(ctx, "auth/me", nil, &res); err != nil {
		return nil, err
	}
	if res.User == nil {
		return nil, ErrUnauthorized
	}
	return res.User, nil
}

// SearchUsers lists local users, filtered by q when set.
func (c *Client) SearchUsers(ctx context.Context, q string, limit int) ([]domain.User, error) {
	query := limitQuery(limit)
	if q != "" {
		query.Set("q", q)
	}
	var res struct {
		Users []domain.User `json:"users"`
	}
	if err := c.get(ctx, "users", query, &res); err != nil {
		return nil, err
	}
	return res.Users, nil
}

func (c *Client) GetUser(ctx context.Context, username string) (*domain.User, error) {
	var res struct {
		User domain.User `json:"user"`
	}
	if err := c.get(ctx, "users/"+url.PathEscape(username), nil, &res); err != nil {
		return nil, err
	}
	return &res.User, nil
}

func (c *Client) UserEvents(ctx context.Context, username string) ([]domain.Event, error) {
	var res struct {
		Events []domain.Event `json:"events"`
	}
	if err := c.get(ctx, "users/"+url.PathEscape(username)+"/events", nil, &res); err != nil {
		return nil, err
	}
	return res.Events, nil
}

// UserFollowing lists the local users username follows.
func (c *Client) UserFollowing(ctx context.Context, username string) ([]domain.User, error) {
	var res struct {
		Users []domain.User `json:"users"`
	}
	if err := c.get(ctx, "users/"+url.PathEscape(username)+"/following", nil, &res); err != nil {
		return nil, err
	}
	return res.Users, nil
}

func (c *Client) FollowUser(ctx context.Context, username string) error {
	return c.send(ctx, http.MethodPost, "users/"+url.PathEscape(username)+"/follow", nil, nil, nil)
}

func (c *Client) UnfollowUser(ctx context.Context, username string) error {
	return c.send(ctx, http.MethodDelete, "users/"+url.PathEscape(username)+"/follow", nil, nil, nil)
}

// KnownActors lists remote actors the server has already discovered.
func (c *Client) KnownActors(ctx context.Context, limit int) ([]domain.RemoteActor, error) {
	var res struct {
		Actors []domain.RemoteActor `json:"actors"`
	}
	if err := c.get(ctx, "federation/actors", limitQuery(limit), &res); err != nil {
		return nil, err
	}
	return res.Actors, nil
}

// SearchActor resolves a handle or url to a remote actor. The server may
// fetch it from the remote peer.
func (c *Client) SearchActor(ctx context.Context, q string) (*domain.RemoteActor, error) {
	var res struct {
		Actor *domain.RemoteActor `json:"actor"`
	}
	if err := c.get(ctx, "federation/search", url.Values{"q": {q}}, &res); err != nil {
		return nil, err
	}
	if res.Actor == nil {
		return nil, &APIError{Status: http.StatusNotFound, Message: "Actor not found"}
	}
	return res.Actor, nil
}

type actorRequest struct {
	ActorUri string `json:"actorUri"`
}

func (c *Client) FollowActor(ctx context.Context, actorURI string) (domain.FollowResult, error) {
	var res domain.FollowResult
	err := c.send(ctx, http.MethodPost, "federation/follow", nil, actorRequest{ActorUri: actorURI}, &res)
	return res, err
}

func (c *Client) UnfollowActor(ctx context.Context, actorURI string) error {
	return c.send(ctx, http.MethodPost, "federation/unfollow", nil, actorRequest{ActorUri: actorURI}, nil)
}

// FollowedActors lists the remote actors the viewer follows.
func (c *Client) FollowedActors(ctx context.Context) ([]domain.RemoteActor, error) {
	var res struct {
		Actors []domain.RemoteActor `json:"actors"`
	}
	if err := c.get(ctx, "federation/following", nil, &res); err != nil {
		return nil, err
	}
	return res.Actors, nil
}

// RefreshActors asks the server to refetch actors older than maxAgeHours.
func (c *Client) RefreshActors(ctx context.Context, limit, maxAgeHours int) (domain.RefreshResult, error) {
	query := limitQuery(limit)
	if maxAgeHours > 0 {
		query.Set("maxAgeHours", strconv.Itoa(maxAgeHours))
	}
	var res domain.RefreshResult
	err := c.send(ctx, http.MethodPost, "federation/refresh-actors", query, nil, &res)
	return res, err
}
