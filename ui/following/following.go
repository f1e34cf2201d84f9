package following

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/deemkeen/fedcal/domain"
	"github.com/deemkeen/fedcal/federation"
	"github.com/deemkeen/fedcal/ui/common"
	"golang.org/x/sync/errgroup"
)

type Model struct {
	deps    common.Deps
	session *federation.Session
	follows federation.FollowState

	gen      int
	Items    []domain.ProfileItem
	Selected int
	Width    int
	Height   int
	Status   string
	Error    string
}

type followingLoadedMsg struct {
	gen   int
	items []domain.ProfileItem
}

type clearStatusMsg struct{}

var statusTimeout = 3 * time.Second

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func InitialModel(deps common.Deps, s *federation.Session, width, height int) Model {
	return Model{
		deps:    deps,
		session: s,
		follows: federation.NewFollowState(deps.ClientFor(s.Token)),
		Items:   []domain.ProfileItem{},
		Width:   width,
		Height:  height,
	}
}

// Reload refetches the viewer's followed accounts.
func (m Model) Reload() (Model, tea.Cmd) {
	var followCmd tea.Cmd
	m.follows, followCmd = m.follows.Load(m.session)
	m.gen++
	if !m.session.Authenticated() {
		m.Items = []domain.ProfileItem{}
		return m, followCmd
	}
	return m, tea.Batch(loadFollowing(m.deps, m.session, m.gen), followCmd)
}

func (m Model) SetSession(s *federation.Session) (Model, tea.Cmd) {
	m.session = s
	m.follows = federation.NewFollowState(m.deps.ClientFor(s.Token))
	m.Selected = 0
	return m.Reload()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case followingLoadedMsg:
		if msg.gen == m.gen {
			m.Items = msg.items
			if m.Selected >= len(m.Items) {
				m.Selected = max(len(m.Items)-1, 0)
			}
		}
		return m, nil

	case federation.FollowChangedMsg:
		if msg.Err != nil {
			m.Error = federation.FollowErrorText(msg.Err, !msg.Followed)
			return m, clearStatusAfter(statusTimeout)
		}
		if !msg.Followed {
			m.Status = "Unfollowed " + federation.Normalize(msg.Item).Handle
		}
		var cmd tea.Cmd
		m, cmd = m.Reload()
		return m, tea.Batch(cmd, clearStatusAfter(statusTimeout))

	case clearStatusMsg:
		m.Status, m.Error = "", ""
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.Selected > 0 {
				m.Selected--
			}
		case "down", "j":
			if m.Selected < len(m.Items)-1 {
				m.Selected++
			}
		case "u":
			if m.Selected < len(m.Items) {
				var cmd tea.Cmd
				m.follows, cmd = m.follows.Unfollow(m.Items[m.Selected])
				return m, cmd
			}
		case "enter", "o":
			if m.Selected < len(m.Items) {
				item := m.Items[m.Selected]
				return m, func() tea.Msg { return common.OpenProfileMsg{Item: item} }
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.follows, cmd = m.follows.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("following (%d)", len(m.Items))))
	s.WriteString("\n\n")

	switch {
	case !m.session.Authenticated():
		s.WriteString(common.EmptyStyle.Render("Log in to see who you follow."))
	case len(m.Items) == 0:
		s.WriteString(common.EmptyStyle.Render("You're not following anyone yet."))
	default:
		for i, item := range m.Items {
			p := federation.Normalize(item)
			text := fmt.Sprintf("%s %s", p.DisplayName, common.DimStyle.Render(p.Handle))
			if m.follows.Busy(item) {
				text += " …"
			}
			if i == m.Selected {
				s.WriteString("→ " + common.SelectedStyle.Render(text))
			} else {
				s.WriteString("  " + common.ItemStyle.Render(text))
			}
			s.WriteString("\n")
		}
	}
	s.WriteString("\n")

	if m.Status != "" {
		s.WriteString(common.StatusStyle.Render(m.Status))
		s.WriteString("\n\n")
	}
	if m.Error != "" {
		s.WriteString(common.ErrorStyle.Render(m.Error))
		s.WriteString("\n\n")
	}
	return s.String()
}

// loadFollowing lists followed local users first, then remote actors.
func loadFollowing(deps common.Deps, s *federation.Session, gen int) tea.Cmd {
	client := deps.ClientFor(s.Token)
	username := s.Viewer.Username
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		var users []domain.User
		var actors []domain.RemoteActor
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			if users, err = client.UserFollowing(ctx, username); err != nil {
				log.Printf("Failed to load local following: %v", err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			if actors, err = client.FollowedActors(ctx); err != nil {
				log.Printf("Failed to load remote following: %v", err)
			}
			return nil
		})
		_ = g.Wait()

		return followingLoadedMsg{gen: gen, items: federation.Merge(federation.Directory{Users: users, Actors: actors})}
	}
}
