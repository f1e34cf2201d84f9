package federation

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/deemkeen/fedcal/api"
	"github.com/deemkeen/fedcal/api/apitest"
	"github.com/deemkeen/fedcal/domain"
	"github.com/google/uuid"
)

// drain runs cmd and any batched commands, returning the produced msgs.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

type fixture struct {
	srv     *apitest.Server
	client  *api.Client
	session *Session
	alice   domain.User
	bob     domain.User
	carol   domain.RemoteActor
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)

	f := fixture{
		srv:   srv,
		alice: domain.User{Id: uuid.New(), Username: "alice", EventsCount: domain.Count(2)},
		bob:   domain.User{Id: uuid.New(), Username: "bob", EventsCount: domain.Count(0)},
		carol: domain.RemoteActor{
			Uri:      "https://remote.example/users/carol",
			Username: "carol",
			Domain:   "remote.example",
		},
	}
	srv.Users = []domain.User{f.alice, f.bob}
	srv.Actors = []domain.RemoteActor{f.carol}
	srv.Tokens["alice-token"] = "alice"

	client, err := api.NewClient(api.WithURI(srv.URL()), api.WithToken("alice-token"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	f.client = client
	viewer := f.alice
	f.session = &Session{Viewer: &viewer, Token: "alice-token"}
	return f
}
