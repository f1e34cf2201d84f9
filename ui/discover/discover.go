package discover

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/deemkeen/fedcal/domain"
	"github.com/deemkeen/fedcal/federation"
	"github.com/deemkeen/fedcal/ui/common"
)

const (
	listLimit   = 100
	loadTimeout = 15 * time.Second
)

type Model struct {
	deps    common.Deps
	session *federation.Session

	Input    textinput.Model
	resolver federation.Resolver
	follows  federation.FollowState
	spinner  spinner.Model

	gen     int
	loading bool
	dir     federation.Directory
	opts    federation.DiscoverOptions
	result  federation.DiscoverResult

	ShowHidden bool
	Selected   int
	Width      int
	Height     int
	Status     string
	Error      string
}

type directoryLoadedMsg struct {
	gen int
	dir federation.Directory
}

type prefsLoadedMsg struct {
	prefs domain.Preferences
}

type clearStatusMsg struct{}

// reloadMsg defers the first load into Update, where state changes stick.
type reloadMsg struct{}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func InitialModel(deps common.Deps, s *federation.Session, width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "search, @user@domain or https://…"
	ti.Prompt = "› "
	ti.CharLimit = 256
	ti.Width = 50
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	client := deps.ClientFor(s.Token)
	return Model{
		deps:     deps,
		session:  s,
		Input:    ti,
		resolver: federation.NewResolver(client, deps.Debounce),
		follows:  federation.NewFollowState(client),
		spinner:  sp,
		opts:     federation.DefaultDiscoverOptions(),
		loading:  true,
		Width:    width,
		Height:   height,
	}
}

func (m Model) Init() tea.Cmd {
	reload := func() tea.Msg { return reloadMsg{} }
	return tea.Batch(textinput.Blink, m.spinner.Tick, reload, m.loadPrefs())
}

// Reload refetches the directory and the follow sets.
func (m Model) Reload() (Model, tea.Cmd) {
	var followCmd tea.Cmd
	m.follows, followCmd = m.follows.Load(m.session)
	m.gen++
	m.loading = true
	return m, tea.Batch(m.loadDirectory(), followCmd)
}

// SetSession swaps the viewer; pending resolutions are dropped.
func (m Model) SetSession(s *federation.Session) (Model, tea.Cmd) {
	m.session = s
	client := m.deps.ClientFor(s.Token)
	m.resolver = federation.NewResolver(client, m.deps.Debounce)
	m.follows = federation.NewFollowState(client)
	m.Status, m.Error = "", ""

	var cmd, inputCmd tea.Cmd
	m, cmd = m.Reload()
	m.resolver, inputCmd = m.resolver.SetInput(m.Input.Value(), s)
	return m, tea.Batch(cmd, inputCmd)
}

func (m Model) loadDirectory() tea.Cmd {
	gen, client := m.gen, m.deps.ClientFor(m.session.Token)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		return directoryLoadedMsg{gen: gen, dir: federation.FetchDirectory(ctx, client, listLimit)}
	}
}

func (m Model) loadPrefs() tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		return prefsLoadedMsg{prefs: deps.ReadPreferences()}
	}
}

func (m Model) savePrefs() tea.Cmd {
	deps, prefs := m.deps, domain.Preferences{HideZeroEvents: m.opts.HideZeroEvents}
	return func() tea.Msg {
		deps.SavePreferences(prefs)
		return nil
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case reloadMsg:
		return m.Reload()

	case directoryLoadedMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.dir = msg.dir
		m.loading = false
		m.recompute()
		return m, nil

	case prefsLoadedMsg:
		m.opts.HideZeroEvents = msg.prefs.HideZeroEvents
		m.recompute()
		return m, nil

	case federation.ActorResolvedMsg:
		m.recompute()
		m.gen++
		m.loading = true
		return m, m.loadDirectory()

	case federation.ActorsRefreshedMsg:
		m.gen++
		m.loading = true
		return m, m.loadDirectory()

	case federation.FollowChangedMsg:
		name := federation.Normalize(msg.Item).Handle
		if msg.Err != nil {
			m.Error = federation.FollowErrorText(msg.Err, !msg.Followed)
			m.Status = ""
		} else {
			m.Error = ""
			if msg.Followed {
				m.Status = "Following " + name
			} else {
				m.Status = "Unfollowed " + name
			}
		}
		m.recompute()
		return m, clearStatusAfter(3 * time.Second)

	case clearStatusMsg:
		m.Status, m.Error = "", ""
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "ctrl+p":
			if m.Selected > 0 {
				m.Selected--
			}
			return m, nil
		case "down", "ctrl+n":
			if m.Selected < len(m.rows())-1 {
				m.Selected++
			}
			return m, nil
		case "enter":
			if item := m.SelectedItem(); item != nil {
				return m, func() tea.Msg { return common.OpenProfileMsg{Item: item} }
			}
			return m, nil
		case "ctrl+f":
			if item := m.SelectedItem(); item != nil {
				var cmd tea.Cmd
				m.follows, cmd = m.follows.Toggle(item)
				return m, cmd
			}
			return m, nil
		case "ctrl+s":
			m.opts.Source = m.opts.Source.Next()
			m.recompute()
			return m, nil
		case "ctrl+t":
			m.opts.Follow = m.opts.Follow.Next()
			m.recompute()
			return m, nil
		case "ctrl+o":
			m.opts.Sort = m.opts.Sort.Next()
			m.recompute()
			return m, nil
		case "ctrl+e":
			m.ShowHidden = !m.ShowHidden
			m.recompute()
			return m, nil
		case "ctrl+x":
			m.opts.HideZeroEvents = !m.opts.HideZeroEvents
			m.recompute()
			return m, m.savePrefs()
		case "ctrl+l":
			return m.Reload()
		}

		var cmd tea.Cmd
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
		m.resolver, cmd = m.resolver.SetInput(m.Input.Value(), m.session)
		cmds = append(cmds, cmd)
		m.recompute()
		return m, tea.Batch(cmds...)
	}

	// cursor blinks, resolver and follow-state messages
	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	cmds = append(cmds, cmd)
	m.resolver, cmd = m.resolver.Update(msg)
	cmds = append(cmds, cmd)
	m.follows, cmd = m.follows.Update(msg)
	cmds = append(cmds, cmd)
	m.recompute()
	return m, tea.Batch(cmds...)
}

func (m *Model) recompute() {
	dir := m.dir
	dir.Resolved = m.resolver.Resolved()
	m.opts.Query = m.Input.Value()
	m.result = federation.Assemble(dir, m.follows.Sets(), m.session, m.opts)
	if n := len(m.rows()); m.Selected >= n {
		m.Selected = max(n-1, 0)
	}
}

// rows are the selectable items: visible ones, then the hidden bucket
// when expanded.
func (m Model) rows() []domain.ProfileItem {
	if !m.ShowHidden {
		return m.result.Visible
	}
	rows := make([]domain.ProfileItem, 0, len(m.result.Visible)+len(m.result.Hidden))
	rows = append(rows, m.result.Visible...)
	return append(rows, m.result.Hidden...)
}

func (m Model) SelectedItem() domain.ProfileItem {
	rows := m.rows()
	if m.Selected < 0 || m.Selected >= len(rows) {
		return nil
	}
	return rows[m.Selected]
}

func (m Model) Result() federation.DiscoverResult {
	return m.result
}

func (m Model) Options() federation.DiscoverOptions {
	return m.opts
}

func (m Model) Resolver() federation.Resolver {
	return m.resolver
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("discover (%d)", len(m.result.Visible))))
	s.WriteString("\n")
	s.WriteString(m.Input.View())
	s.WriteString("\n")
	s.WriteString(common.DimStyle.Render(fmt.Sprintf("source: %s • follows: %s • sort: %s • hide empty: %t",
		m.opts.Source, m.opts.Follow, m.opts.Sort, m.opts.HideZeroEvents)))
	s.WriteString("\n")
	if line := m.resolverLine(); line != "" {
		s.WriteString(line)
		s.WriteString("\n")
	}
	s.WriteString("\n")

	rows := m.rows()
	switch {
	case m.loading && len(rows) == 0:
		s.WriteString(m.spinner.View() + " loading accounts…")
	case len(rows) == 0:
		s.WriteString(common.EmptyStyle.Render("No accounts match."))
	default:
		for i, item := range rows {
			if i == len(m.result.Visible) {
				s.WriteString(common.DimStyle.Render("  ── without events ──"))
				s.WriteString("\n")
			}
			s.WriteString(m.renderRow(item, i == m.Selected))
			s.WriteString("\n")
		}
	}
	s.WriteString("\n")

	if n := len(m.result.Hidden); n > 0 && !m.ShowHidden {
		s.WriteString(common.DimStyle.Render(fmt.Sprintf("%d accounts without events hidden (ctrl+e to show)", n)))
		s.WriteString("\n")
	}
	if m.Status != "" {
		s.WriteString(common.StatusStyle.Render(m.Status))
		s.WriteString("\n")
	}
	if m.Error != "" {
		s.WriteString(common.ErrorStyle.Render(m.Error))
		s.WriteString("\n")
	}
	return s.String()
}

func (m Model) resolverLine() string {
	r := m.resolver
	switch {
	case r.NeedsLogin:
		return common.StatusStyle.Render("Log in to look up remote accounts.")
	case r.State == federation.Debouncing || r.State == federation.Resolving:
		return m.spinner.View() + " resolving " + r.Query + "…"
	case r.State == federation.Failed:
		return common.ErrorStyle.Render(r.Err)
	}
	return ""
}

func (m Model) renderRow(item domain.ProfileItem, selected bool) string {
	p := federation.Normalize(item)

	badge := "local"
	if p.Kind == federation.KindRemote {
		badge = "remote"
	}
	var flags []string
	switch {
	case m.follows.Busy(item):
		flags = append(flags, "…")
	case m.follows.IsOwn(item):
		flags = append(flags, "you")
	case m.follows.IsFollowed(item):
		flags = append(flags, "following")
	}

	line := fmt.Sprintf("[%s] %s %s %s · %s",
		p.AvatarFallback, p.DisplayName, common.DimStyle.Render(p.Handle),
		common.FormatCount(p.Followers, "followers"), common.FormatCount(p.Events, "events"))
	line += " " + common.BadgeStyle.Render(badge)
	if len(flags) > 0 {
		line += " " + common.StatusStyle.Render("["+strings.Join(flags, ", ")+"]")
	}
	if p.Summary != "" {
		line += "\n    " + common.DimStyle.Render(federation.Truncate(p.Summary, 80))
	}

	if selected {
		return "→ " + common.SelectedStyle.Render(line)
	}
	return "  " + common.ItemStyle.Render(line)
}
