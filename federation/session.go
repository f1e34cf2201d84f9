package federation

import (
	"context"
	"errors"
	"log"

	"github.com/deemkeen/fedcal/api"
	"github.com/deemkeen/fedcal/domain"
)

// Session is the viewer context handed to every reconciliation call.
// There is one per running client; Close tears it down on logout.
type Session struct {
	Viewer *domain.User
	Token  string
}

// Anonymous returns a session without a viewer.
func Anonymous() *Session {
	return &Session{}
}

// Authenticated reports whether a viewer is logged in.
func (s *Session) Authenticated() bool {
	return s != nil && s.Viewer != nil
}

// ViewerKey identifies the viewer for follow-state generations.
func (s *Session) ViewerKey() string {
	if !s.Authenticated() {
		return ""
	}
	return domain.LocalKey(s.Viewer.Id)
}

// Snapshot copies s for commands that run off the program goroutine.
// Closing s later does not affect the copy.
func (s *Session) Snapshot() *Session {
	if s == nil {
		return Anonymous()
	}
	cp := *s
	if s.Viewer != nil {
		viewer := *s.Viewer
		cp.Viewer = &viewer
	}
	return &cp
}

// Close clears the session. Call it from the goroutine that owns s.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.Viewer = nil
	s.Token = ""
}

// Login verifies token against the API and returns a session for its
// viewer. An unauthorized token yields ErrUnauthorized.
func Login(ctx context.Context, c *api.Client, token string) (*Session, error) {
	me, err := c.WithToken(token).Me(ctx)
	if err != nil {
		if !errors.Is(err, api.ErrUnauthorized) {
			log.Printf("Login failed: %v", err)
		}
		return nil, err
	}
	return &Session{Viewer: me, Token: token}, nil
}
