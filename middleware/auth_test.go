package middleware

import (
	"context"
	"testing"

	"github.com/deemkeen/fedcal/api"
	"github.com/deemkeen/fedcal/api/apitest"
	"github.com/deemkeen/fedcal/domain"
	"github.com/google/uuid"
)

type fakeLinks struct {
	links   map[string]domain.KeyLink
	deleted []string
}

func (f *fakeLinks) ReadKeyLinkByHash(keyHash string) (*domain.KeyLink, error) {
	if l, ok := f.links[keyHash]; ok {
		return &l, nil
	}
	return nil, nil
}

func (f *fakeLinks) DeleteKeyLink(keyHash string) error {
	f.deleted = append(f.deleted, keyHash)
	delete(f.links, keyHash)
	return nil
}

func newClient(t *testing.T) (*apitest.Server, *api.Client) {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)
	srv.Users = []domain.User{{Id: uuid.New(), Username: "alice"}}
	srv.Tokens["good"] = "alice"
	client, err := api.NewClient(api.WithURI(srv.URL()))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return srv, client
}

func TestRestoreSession(t *testing.T) {
	_, client := newClient(t)
	links := &fakeLinks{links: map[string]domain.KeyLink{
		"linked":  {KeyHash: "linked", Token: "good", Username: "alice"},
		"revoked": {KeyHash: "revoked", Token: "bad", Username: "alice"},
	}}

	tests := []struct {
		keyHash  string
		wantAuth bool
	}{
		{"linked", true},
		{"revoked", false},
		{"unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.keyHash, func(t *testing.T) {
			s := restoreSession(context.Background(), client, links, tt.keyHash)
			if s.Authenticated() != tt.wantAuth {
				t.Errorf("Expected authenticated=%v, got %v", tt.wantAuth, s.Authenticated())
			}
		})
	}

	if len(links.deleted) != 1 || links.deleted[0] != "revoked" {
		t.Errorf("Expected the revoked link to be deleted, got %v", links.deleted)
	}
}

func TestSessionFromDefaultsToAnonymous(t *testing.T) {
	ctx := context.WithValue(context.Background(), keyHashKey, "abc")
	if SessionFrom(ctx).Authenticated() {
		t.Error("Expected an anonymous session")
	}
	if keyHashFrom(ctx) != "abc" {
		t.Errorf("Expected key hash 'abc', got '%s'", keyHashFrom(ctx))
	}
	if keyHashFrom(context.Background()) != "" {
		t.Error("Expected no key hash")
	}
}
