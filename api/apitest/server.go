// Package apitest runs an in-memory events API for tests.
package apitest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/deemkeen/fedcal/domain"
	"github.com/gin-gonic/gin"
)

// Server is a fake events API. All fields may be set before requests
// are made; use the methods afterwards.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	Users  []domain.User
	Actors []domain.RemoteActor
	Events map[string][]domain.Event
	// Tokens maps bearer tokens to local usernames.
	Tokens map[string]string
	// Resolvable maps search queries to actors.
	Resolvable map[string]domain.RemoteActor
	// Undelivered remote follows are accepted but report delivered=false.
	Undelivered map[string]bool
	// Fail maps "METHOD /path" to a status answered with {error}.
	Fail map[string]int
	// RefreshChanged is returned by refresh-actors.
	RefreshChanged int
	// SessionCookies makes /auth/me set a "session" cookie for the viewer.
	SessionCookies bool
	// Hook runs for every request before it is answered.
	Hook func(route string)

	following      map[string]map[string]bool
	followedActors map[string]map[string]bool
	calls          map[string]int
	headers        map[string]http.Header
}

func New() *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		Events:         map[string][]domain.Event{},
		Tokens:         map[string]string{},
		Resolvable:     map[string]domain.RemoteActor{},
		Undelivered:    map[string]bool{},
		Fail:           map[string]int{},
		following:      map[string]map[string]bool{},
		followedActors: map[string]map[string]bool{},
		calls:          map[string]int{},
		headers:        map[string]http.Header{},
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

// URL returns the api base url.
func (s *Server) URL() string {
	return s.Server.URL + "/api/"
}

// Calls returns how often "METHOD /path" was requested.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// LastHeader returns header key of the latest "METHOD /path" request.
func (s *Server) LastHeader(route, key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers[route].Get(key)
}

// Revoke invalidates a bearer token.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Tokens, token)
}

// SetFollowing marks username as following the local user target.
func (s *Server) SetFollowing(username, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.following[username] == nil {
		s.following[username] = map[string]bool{}
	}
	s.following[username][target] = true
}

// SetFollowingActor marks username as following a remote actor.
func (s *Server) SetFollowingActor(username, uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.followedActors[username] == nil {
		s.followedActors[username] = map[string]bool{}
	}
	s.followedActors[username][uri] = true
}

func (s *Server) FollowsActor(username, uri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.followedActors[username][uri]
}

func (s *Server) router() *gin.Engine {
	g := gin.New()
	g.Use(s.track)

	a := g.Group("/api")
	a.GET("/auth/me", s.viewer, s.me)
	a.GET("/users", s.listUsers)
	a.GET("/users/:username", s.getUser)
	a.GET("/users/:username/events", s.userEvents)
	a.GET("/users/:username/following", s.userFollowing)
	a.POST("/users/:username/follow", s.viewer, s.followUser)
	a.DELETE("/users/:username/follow", s.viewer, s.unfollowUser)
	a.GET("/federation/actors", s.knownActors)
	a.GET("/federation/search", s.viewer, s.search)
	a.POST("/federation/follow", s.viewer, s.followActor)
	a.POST("/federation/unfollow", s.viewer, s.unfollowActor)
	a.GET("/federation/following", s.viewer, s.followingActors)
	a.POST("/federation/refresh-actors", s.refresh)
	return g
}

func (s *Server) track(c *gin.Context) {
	route := c.Request.Method + " " + strings.TrimPrefix(c.Request.URL.Path, "/api")
	s.mu.Lock()
	s.calls[route]++
	s.headers[route] = c.Request.Header.Clone()
	status, fail := s.Fail[route]
	s.mu.Unlock()

	if s.Hook != nil {
		s.Hook(route)
	}
	if fail {
		c.AbortWithStatusJSON(status, gin.H{"error": "injected failure"})
		return
	}
	c.Next()
}

func (s *Server) viewer(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	s.mu.Lock()
	username, ok := s.Tokens[token]
	s.mu.Unlock()
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.Set("viewer", username)
}

func (s *Server) findUser(username string) (domain.User, bool) {
	for _, u := range s.Users {
		if u.Username == username {
			return u, true
		}
	}
	return domain.User{}, false
}

func (s *Server) me(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.findUser(c.GetString("viewer"))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	if s.SessionCookies {
		c.SetCookie("session", u.Username+"-session", 3600, "/", "", false, true)
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (s *Server) listUsers(c *gin.Context) {
	q := strings.ToLower(c.Query("q"))
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]domain.User, 0, len(s.Users))
	for _, u := range s.Users {
		if q == "" || strings.Contains(strings.ToLower(u.Username), q) {
			users = append(users, u)
		}
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (s *Server) getUser(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.findUser(c.Param("username"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (s *Server) userEvents(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.Events[c.Param("username")]
	if events == nil {
		events = []domain.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) userFollowing(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := []domain.User{}
	for target := range s.following[c.Param("username")] {
		if u, ok := s.findUser(target); ok {
			users = append(users, u)
		}
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (s *Server) followUser(c *gin.Context) {
	viewer := c.GetString("viewer")
	target := c.Param("username")
	s.mu.Lock()
	_, ok := s.findUser(target)
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	s.SetFollowing(viewer, target)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) unfollowUser(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.following[c.GetString("viewer")], c.Param("username"))
	c.Status(http.StatusNoContent)
}

func (s *Server) knownActors(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	actors := append([]domain.RemoteActor{}, s.Actors...)
	c.JSON(http.StatusOK, gin.H{"actors": actors})
}

func (s *Server) search(c *gin.Context) {
	q := c.Query("q")
	s.mu.Lock()
	defer s.mu.Unlock()
	actor, ok := s.Resolvable[q]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Could not resolve " + q})
		return
	}
	known := false
	for _, a := range s.Actors {
		if a.Uri == actor.Uri {
			known = true
			break
		}
	}
	if !known {
		s.Actors = append(s.Actors, actor)
	}
	c.JSON(http.StatusOK, gin.H{"actor": actor})
}

type actorBody struct {
	ActorUri string `json:"actorUri"`
}

func (s *Server) followActor(c *gin.Context) {
	var body actorBody
	if err := c.ShouldBindJSON(&body); err != nil || body.ActorUri == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "actorUri required"})
		return
	}
	s.mu.Lock()
	undelivered := s.Undelivered[body.ActorUri]
	s.mu.Unlock()
	if !undelivered {
		s.SetFollowingActor(c.GetString("viewer"), body.ActorUri)
	}
	c.JSON(http.StatusOK, domain.FollowResult{Ok: true, Delivered: !undelivered})
}

func (s *Server) unfollowActor(c *gin.Context) {
	var body actorBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "actorUri required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.followedActors[c.GetString("viewer")], body.ActorUri)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) followingActors(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	actors := []domain.RemoteActor{}
	for _, a := range s.Actors {
		if s.followedActors[c.GetString("viewer")][a.Uri] {
			actors = append(actors, a)
		}
	}
	c.JSON(http.StatusOK, gin.H{"actors": actors})
}

func (s *Server) refresh(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, domain.RefreshResult{Refreshed: len(s.Actors), Changed: s.RefreshChanged})
}
