package middleware

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/deemkeen/fedcal/api"
	"github.com/deemkeen/fedcal/domain"
	"github.com/deemkeen/fedcal/federation"
	"github.com/deemkeen/fedcal/util"
)

type contextKey struct{ name string }

var (
	sessionKey = &contextKey{"session"}
	keyHashKey = &contextKey{"keyHash"}
)

// KeyLinks is the part of the local store the SSH layer needs.
type KeyLinks interface {
	ReadKeyLinkByHash(keyHash string) (*domain.KeyLink, error)
	DeleteKeyLink(keyHash string) error
}

// AuthMiddleware restores the viewer linked to the client's public key.
// Unknown keys and revoked tokens continue anonymously.
func AuthMiddleware(client *api.Client, links KeyLinks) wish.Middleware {
	return func(h ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			util.LogPublicKey(s)

			keyHash := KeyHash(s)
			session := federation.Anonymous()
			if keyHash != "" {
				session = restoreSession(s.Context(), client, links, keyHash)
			}

			s.Context().SetValue(keyHashKey, keyHash)
			s.Context().SetValue(sessionKey, session)
			h(s)
		}
	}
}

func restoreSession(ctx context.Context, client *api.Client, links KeyLinks, keyHash string) *federation.Session {
	link, err := links.ReadKeyLinkByHash(keyHash)
	if err != nil {
		log.Printf("Could not read key link: %v", err)
		return federation.Anonymous()
	}
	if link == nil {
		return federation.Anonymous()
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	session, err := federation.Login(ctx, client, link.Token)
	if errors.Is(err, api.ErrUnauthorized) {
		log.Printf("Token of %s was revoked, unlinking key", link.Username)
		if err := links.DeleteKeyLink(keyHash); err != nil {
			log.Printf("Could not unlink key: %v", err)
		}
		return federation.Anonymous()
	}
	if err != nil {
		return federation.Anonymous()
	}
	return session
}

// KeyHash identifies the session's public key, or is empty for
// keyboard-interactive logins.
func KeyHash(s ssh.Session) string {
	if s.PublicKey() == nil {
		return ""
	}
	return util.PkToHash(util.PublicKeyToString(s.PublicKey()))
}

// SessionFrom returns the viewer AuthMiddleware stored on the session.
func SessionFrom(ctx context.Context) *federation.Session {
	if s, ok := ctx.Value(sessionKey).(*federation.Session); ok {
		return s
	}
	return federation.Anonymous()
}

func keyHashFrom(ctx context.Context) string {
	h, _ := ctx.Value(keyHashKey).(string)
	return h
}
