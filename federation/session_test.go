package federation

import (
	"context"
	"errors"
	"testing"

	"github.com/deemkeen/fedcal/api"
)

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)

	var nilSession *Session
	if nilSession.Authenticated() || Anonymous().Authenticated() {
		t.Error("Nil and anonymous sessions are not authenticated")
	}

	s, err := Login(context.Background(), f.client, "alice-token")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !s.Authenticated() || s.Viewer.Username != "alice" {
		t.Errorf("Unexpected session %+v", s)
	}
	if s.ViewerKey() != f.alice.Id.String() {
		t.Errorf("Unexpected viewer key %s", s.ViewerKey())
	}

	s.Close()
	if s.Authenticated() || s.Token != "" || s.ViewerKey() != "" {
		t.Errorf("Close should clear the session, got %+v", s)
	}
}

func TestSessionSnapshot(t *testing.T) {
	f := newFixture(t)

	snap := f.session.Snapshot()
	if snap == f.session || snap.Viewer == f.session.Viewer {
		t.Fatal("Snapshot must not share the session or its viewer")
	}

	done := make(chan struct{})
	go func() {
		f.session.Close()
		close(done)
	}()
	if !snap.Authenticated() || snap.Viewer.Username != "alice" || snap.Token != "alice-token" {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
	<-done

	var nilSession *Session
	if nilSession.Snapshot().Authenticated() {
		t.Error("Snapshot of nil must be anonymous")
	}
}

func TestLoginUnauthorized(t *testing.T) {
	f := newFixture(t)

	_, err := Login(context.Background(), f.client, "wrong")
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
}
