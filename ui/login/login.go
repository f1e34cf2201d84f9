package login

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/fedcal/api"
	"github.com/deemkeen/fedcal/federation"
	"github.com/deemkeen/fedcal/ui/common"
	"github.com/deemkeen/fedcal/util"
)

var (
	Style = lipgloss.NewStyle().Height(15).Width(80).
		Align(lipgloss.Center, lipgloss.Center).
		BorderStyle(lipgloss.ThickBorder()).
		Margin(0, 3)
)

type Model struct {
	deps    common.Deps
	session *federation.Session

	TextInput textinput.Model
	Pending   bool
	Err       string
}

type loginResultMsg struct {
	session *federation.Session
	err     error
}

func InitialModel(deps common.Deps, s *federation.Session) Model {
	ti := textinput.New()
	ti.Placeholder = "paste your API token"
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.CharLimit = 512
	ti.Width = 40
	ti.Focus()

	return Model{deps: deps, session: s, TextInput: ti}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) SetSession(s *federation.Session) Model {
	m.session = s
	m.Pending = false
	m.Err = ""
	m.TextInput.Reset()
	return m
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case loginResultMsg:
		m.Pending = false
		if msg.err != nil {
			m.Err = loginErrorText(msg.err)
			return m, nil
		}
		m.TextInput.Reset()
		s := msg.session
		return m, func() tea.Msg { return common.SessionChangedMsg{Session: s} }

	case tea.KeyMsg:
		if m.session.Authenticated() {
			if msg.String() == "x" {
				return m, m.logout()
			}
			return m, nil
		}
		if msg.String() == "enter" {
			token := strings.TrimSpace(m.TextInput.Value())
			if token == "" || m.Pending {
				return m, nil
			}
			m.Pending = true
			m.Err = ""
			return m, m.login(token)
		}
	}

	m.TextInput, cmd = m.TextInput.Update(msg)
	return m, cmd
}

func (m Model) login(token string) tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		s, err := federation.Login(ctx, deps.Client, token)
		if err != nil {
			return loginResultMsg{err: err}
		}
		if deps.Store != nil && deps.KeyHash != "" {
			if err := deps.Store.CreateKeyLink(deps.KeyHash, token, s.Viewer.Username); err != nil {
				log.Printf("Failed to link key for %s: %v", s.Viewer.Username, err)
			}
		}
		log.Printf("Logged in as %s with token %s", s.Viewer.Username, util.MaskToken(token))
		return loginResultMsg{session: s}
	}
}

// logout unlinks the key. The old session is closed by the root model
// once every screen has switched to the anonymous one.
func (m Model) logout() tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		if deps.Store != nil && deps.KeyHash != "" {
			if err := deps.Store.DeleteKeyLink(deps.KeyHash); err != nil {
				log.Printf("Failed to unlink key: %v", err)
			}
		}
		return common.SessionChangedMsg{Session: federation.Anonymous()}
	}
}

func loginErrorText(err error) string {
	if errors.Is(err, api.ErrUnauthorized) {
		return "That token was not accepted."
	}
	return api.ErrorText(err, "Could not reach the server, please try again.")
}

func (m Model) View() string {
	if m.session.Authenticated() {
		return fmt.Sprintf(
			"%s\n\nLogged in as @%s.\n\n%s",
			util.GetNameAndVersion(),
			m.session.Viewer.Username,
			common.HelpStyle.Render("(x to log out)"),
		) + "\n"
	}

	status := common.HelpStyle.Render("(enter to log in)")
	if m.Pending {
		status = common.StatusStyle.Render("checking…")
	} else if m.Err != "" {
		status = common.ErrorStyle.Render(m.Err)
	}
	return fmt.Sprintf(
		"%s\n\nLog in to follow accounts and resolve remote handles.\n\n%s\n\n%s",
		util.GetNameAndVersion(),
		m.TextInput.View(),
		status,
	) + "\n"
}

// ViewWithWidth centers the bordered view in the terminal.
func (m Model) ViewWithWidth(termWidth, termHeight int) string {
	contentWidth := termWidth - 8
	if contentWidth < 40 {
		contentWidth = 40
	}

	bordered := Style.Width(contentWidth).Render(m.View())
	return lipgloss.Place(termWidth, termHeight, lipgloss.Center, lipgloss.Center, bordered)
}
