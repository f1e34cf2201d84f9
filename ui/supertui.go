package ui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/fedcal/federation"
	"github.com/deemkeen/fedcal/ui/common"
	"github.com/deemkeen/fedcal/ui/discover"
	"github.com/deemkeen/fedcal/ui/following"
	"github.com/deemkeen/fedcal/ui/header"
	"github.com/deemkeen/fedcal/ui/login"
	"github.com/deemkeen/fedcal/ui/profileview"
)

const defaultRefreshEvery = 10 * time.Minute

var (
	focusedModelStyle = lipgloss.NewStyle().
		Align(lipgloss.Top, lipgloss.Top).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(common.COLOR_LIGHTBLUE)).MarginLeft(1)
)

type MainModel struct {
	deps    common.Deps
	session *federation.Session

	width          int
	height         int
	state          common.SessionState
	previous       common.SessionState
	headerModel    header.Model
	discoverModel  discover.Model
	followingModel following.Model
	profileModel   profileview.Model
	loginModel     login.Model
}

type refreshTickMsg struct{}

func NewModel(deps common.Deps, s *federation.Session, width int, height int) MainModel {
	if s == nil {
		s = federation.Anonymous()
	}
	width = common.DefaultWindowWidth(width)
	height = common.DefaultWindowHeight(height)

	return MainModel{
		deps:           deps,
		session:        s,
		width:          width,
		height:         height,
		state:          common.DiscoverView,
		headerModel:    header.Model{Width: width, Session: s},
		discoverModel:  discover.InitialModel(deps, s, width, height),
		followingModel: following.InitialModel(deps, s, width, height),
		profileModel:   profileview.InitialModel(deps, s, width, height),
		loginModel:     login.InitialModel(deps, s),
	}
}

// Session is the viewer of this program.
func (m MainModel) Session() *federation.Session {
	return m.session
}

func (m MainModel) State() common.SessionState {
	return m.state
}

func (m MainModel) Init() tea.Cmd {
	return tea.Batch(
		m.discoverModel.Init(),
		m.loginModel.Init(),
		m.refresh(),
		m.scheduleRefresh(),
	)
}

func (m MainModel) refresh() tea.Cmd {
	return federation.RefreshCmd(m.deps.Client, m.deps.RefreshLimit, m.deps.RefreshMaxAgeHours)
}

func (m MainModel) scheduleRefresh() tea.Cmd {
	every := m.deps.RefreshEvery
	if every <= 0 {
		every = defaultRefreshEvery
	}
	return tea.Tick(every, func(time.Time) tea.Msg { return refreshTickMsg{} })
}

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.headerModel.Width = msg.Width
		return m, nil

	case refreshTickMsg:
		return m, tea.Batch(m.refresh(), m.scheduleRefresh())

	case common.SessionChangedMsg:
		old := m.session
		m.session = msg.Session
		m.headerModel, _ = m.headerModel.Update(msg)
		m.loginModel = m.loginModel.SetSession(msg.Session)
		m.discoverModel, cmd = m.discoverModel.SetSession(msg.Session)
		cmds = append(cmds, cmd)
		m.followingModel, cmd = m.followingModel.SetSession(msg.Session)
		cmds = append(cmds, cmd)
		m.profileModel, cmd = m.profileModel.SetSession(msg.Session)
		cmds = append(cmds, cmd)
		if m.state == common.LoginView && msg.Session.Authenticated() {
			m.state = common.DiscoverView
		}
		// no screen holds the old session any more
		if old != msg.Session {
			old.Close()
		}
		return m, tea.Batch(cmds...)

	case common.OpenProfileMsg:
		if m.state != common.ProfileView {
			m.previous = m.state
		}
		m.state = common.ProfileView
		m.profileModel, cmd = m.profileModel.Open(msg.Item)
		return m, cmd

	case common.CloseProfileMsg:
		m.state = m.previous
		return m, m.activate(m.state)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.state = nextView(m.state)
			return m, m.activate(m.state)
		case "shift+tab":
			m.state = prevView(m.state)
			return m, m.activate(m.state)
		}
	}

	// Non-keyboard messages reach every screen so that loads finish in the
	// background; keys only go to the active one.
	if _, isKeyMsg := msg.(tea.KeyMsg); !isKeyMsg {
		m.discoverModel, cmd = m.discoverModel.Update(msg)
		cmds = append(cmds, cmd)
		m.followingModel, cmd = m.followingModel.Update(msg)
		cmds = append(cmds, cmd)
		m.profileModel, cmd = m.profileModel.Update(msg)
		cmds = append(cmds, cmd)
		m.loginModel, cmd = m.loginModel.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)
	}

	switch m.state {
	case common.DiscoverView:
		m.discoverModel, cmd = m.discoverModel.Update(msg)
	case common.FollowingView:
		m.followingModel, cmd = m.followingModel.Update(msg)
	case common.ProfileView:
		m.profileModel, cmd = m.profileModel.Update(msg)
	case common.LoginView:
		m.loginModel, cmd = m.loginModel.Update(msg)
	}
	return m, cmd
}

// activate reloads data of a screen when it comes into focus.
func (m *MainModel) activate(state common.SessionState) tea.Cmd {
	var cmd tea.Cmd
	switch state {
	case common.FollowingView:
		m.followingModel, cmd = m.followingModel.Reload()
	case common.DiscoverView:
		m.discoverModel, cmd = m.discoverModel.Reload()
	}
	return cmd
}

func nextView(s common.SessionState) common.SessionState {
	switch s {
	case common.DiscoverView:
		return common.FollowingView
	case common.FollowingView:
		return common.LoginView
	}
	return common.DiscoverView
}

func prevView(s common.SessionState) common.SessionState {
	switch s {
	case common.DiscoverView:
		return common.LoginView
	case common.LoginView:
		return common.FollowingView
	}
	return common.DiscoverView
}

func (m MainModel) View() string {
	availableHeight := m.height - 10
	panelWidth := m.width - 4

	var body string
	switch m.state {
	case common.DiscoverView:
		body = m.discoverModel.View()
	case common.FollowingView:
		body = m.followingModel.View()
	case common.ProfileView:
		body = m.profileModel.View()
	case common.LoginView:
		return m.headerModel.View() + "\n" + m.loginModel.ViewWithWidth(m.width, availableHeight)
	}

	panel := lipgloss.NewStyle().
		MaxHeight(availableHeight).
		Height(availableHeight).
		Width(panelWidth).
		MaxWidth(panelWidth).
		Render(body)

	s := m.headerModel.View() + "\n"
	s += focusedModelStyle.Render(panel)
	s += common.HelpStyle.Render(fmt.Sprintf(
		"focused > %s\t\tkeys > tab: next • shift+tab: prev • %s • ctrl-c: exit",
		m.currentFocusedModel(), m.viewCommands()))
	return s
}

func (m MainModel) viewCommands() string {
	switch m.state {
	case common.DiscoverView:
		return "↑/↓: select • enter: open • ctrl+f: follow • ctrl+s: source • ctrl+t: follows • ctrl+o: sort • ctrl+e: show empty • ctrl+x: hide empty"
	case common.FollowingView:
		return "↑/↓: select • enter: open • u: unfollow"
	case common.ProfileView:
		return "f: follow • esc: back"
	case common.LoginView:
		if m.session.Authenticated() {
			return "x: log out"
		}
		return "enter: log in"
	}
	return " "
}

func (m MainModel) currentFocusedModel() string {
	switch m.state {
	case common.DiscoverView:
		return "discover"
	case common.FollowingView:
		return "following"
	case common.ProfileView:
		return "profile"
	default:
		return "login"
	}
}
