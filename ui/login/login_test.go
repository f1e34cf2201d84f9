package login

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/deemkeen/fedcal/api"
	"github.com/deemkeen/fedcal/api/apitest"
	"github.com/deemkeen/fedcal/db"
	"github.com/deemkeen/fedcal/domain"
	"github.com/deemkeen/fedcal/federation"
	"github.com/deemkeen/fedcal/ui/common"
	"github.com/google/uuid"
)

func setup(t *testing.T) (*apitest.Server, *db.DB, common.Deps) {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)
	srv.Users = []domain.User{{Id: uuid.New(), Username: "alice"}}
	srv.Tokens["alice-token"] = "alice"

	client, err := api.NewClient(api.WithURI(srv.URL()))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return srv, database, common.Deps{Client: client, Store: database, KeyHash: "key"}
}

// submit types token and presses enter, then runs the login command.
func submit(t *testing.T, m Model, token string) (Model, tea.Msg) {
	t.Helper()
	m.TextInput.SetValue(token)
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.Pending || cmd == nil {
		t.Fatal("Expected a pending login")
	}
	m, cmd = m.Update(cmd())
	if cmd == nil {
		return m, nil
	}
	return m, cmd()
}

func TestLoginLinksKey(t *testing.T) {
	_, database, deps := setup(t)
	m := InitialModel(deps, federation.Anonymous())

	m, msg := submit(t, m, "  alice-token ")
	changed, ok := msg.(common.SessionChangedMsg)
	if !ok {
		t.Fatalf("Expected SessionChangedMsg, got %T", msg)
	}
	if !changed.Session.Authenticated() || changed.Session.Viewer.Username != "alice" {
		t.Errorf("Unexpected session %+v", changed.Session)
	}
	if m.Pending || m.TextInput.Value() != "" {
		t.Error("Expected the form to be reset")
	}

	link, err := database.ReadKeyLinkByHash("key")
	if err != nil || link == nil {
		t.Fatalf("Expected a key link, got %v, %v", link, err)
	}
	if link.Token != "alice-token" || link.Username != "alice" {
		t.Errorf("Unexpected link %+v", link)
	}
}

func TestLoginRejectsToken(t *testing.T) {
	_, database, deps := setup(t)
	m := InitialModel(deps, federation.Anonymous())

	m, msg := submit(t, m, "wrong")
	if msg != nil {
		t.Errorf("Expected no session change, got %T", msg)
	}
	if m.Err != "That token was not accepted." {
		t.Errorf("Unexpected error %q", m.Err)
	}
	if link, _ := database.ReadKeyLinkByHash("key"); link != nil {
		t.Error("A rejected token must not be linked")
	}
}

func TestLoginEmptyTokenIgnored(t *testing.T) {
	srv, _, deps := setup(t)
	m := InitialModel(deps, federation.Anonymous())

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || m.Pending {
		t.Error("Empty input must not start a login")
	}
	if calls := srv.Calls("GET /auth/me"); calls != 0 {
		t.Errorf("Expected no calls, got %d", calls)
	}
}

func TestLogoutUnlinksKey(t *testing.T) {
	_, database, deps := setup(t)
	if err := database.CreateKeyLink("key", "alice-token", "alice"); err != nil {
		t.Fatalf("CreateKeyLink failed: %v", err)
	}

	viewer := domain.User{Id: uuid.New(), Username: "alice"}
	s := &federation.Session{Viewer: &viewer, Token: "alice-token"}
	m := InitialModel(deps, s)
	if !strings.Contains(m.View(), "Logged in as @alice") {
		t.Errorf("Expected logged in view, got %s", m.View())
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	if cmd == nil {
		t.Fatal("Expected a logout command")
	}
	changed, ok := cmd().(common.SessionChangedMsg)
	if !ok || changed.Session.Authenticated() {
		t.Fatalf("Expected an anonymous session, got %+v", changed)
	}

	// the old session is left for the root model to close
	if !s.Authenticated() {
		t.Error("Logout command must not touch the live session")
	}
	if link, _ := database.ReadKeyLinkByHash("key"); link != nil {
		t.Error("Expected the key link to be deleted")
	}

	m = m.SetSession(changed.Session)
	if !strings.Contains(m.View(), "Log in to follow accounts") {
		t.Error("Expected the login form after logout")
	}
}
