package profileview

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/deemkeen/fedcal/domain"
	"github.com/deemkeen/fedcal/federation"
	"github.com/deemkeen/fedcal/ui/common"
	"golang.org/x/sync/errgroup"
)

const maxEvents = 10

// Upcoming is an event with its next start.
type Upcoming struct {
	Event domain.Event
	Next  time.Time
}

type Model struct {
	deps    common.Deps
	session *federation.Session
	follows federation.FollowState
	spinner spinner.Model

	gen      int
	Item     domain.ProfileItem
	Upcoming []Upcoming
	Loading  bool
	Width    int
	Height   int
	Status   string
	Error    string
}

type profileLoadedMsg struct {
	gen      int
	item     domain.ProfileItem
	upcoming []Upcoming
	err      error
}

func InitialModel(deps common.Deps, s *federation.Session, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		deps:    deps,
		session: s,
		follows: federation.NewFollowState(deps.ClientFor(s.Token)),
		spinner: sp,
		Width:   width,
		Height:  height,
	}
}

func (m Model) SetSession(s *federation.Session) (Model, tea.Cmd) {
	m.session = s
	m.follows = federation.NewFollowState(m.deps.ClientFor(s.Token))
	if m.Item == nil {
		return m, nil
	}
	return m.Open(m.Item)
}

// Open shows item and loads its current counts and events.
func (m Model) Open(item domain.ProfileItem) (Model, tea.Cmd) {
	var followCmd tea.Cmd
	m.follows, followCmd = m.follows.Load(m.session)
	m.gen++
	m.Item = item
	m.Upcoming = nil
	m.Loading = true
	m.Status, m.Error = "", ""
	return m, tea.Batch(loadProfile(m.deps, m.session, item, m.gen), followCmd, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case profileLoadedMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.Loading = false
		m.Item = msg.item
		m.Upcoming = msg.upcoming
		if msg.err != nil {
			m.Error = "Could not load this profile."
		}
		return m, nil

	case federation.FollowChangedMsg:
		if m.Item == nil || msg.Item.Key() != m.Item.Key() {
			return m, nil
		}
		if msg.Err != nil {
			m.Error = federation.FollowErrorText(msg.Err, !msg.Followed)
			return m, nil
		}
		m.Error = ""
		if msg.Followed {
			m.Status = "Following"
		} else {
			m.Status = "Not following"
		}
		return m, loadProfile(m.deps, m.session, m.Item, m.gen)

	case spinner.TickMsg:
		if !m.Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "f":
			if m.Item != nil {
				var cmd tea.Cmd
				m.follows, cmd = m.follows.Toggle(m.Item)
				return m, cmd
			}
		case "esc", "q":
			return m, func() tea.Msg { return common.CloseProfileMsg{} }
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.follows, cmd = m.follows.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.Item == nil {
		return common.EmptyStyle.Render("No profile selected.")
	}

	p := federation.Normalize(m.Item)
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("[%s] %s", p.AvatarFallback, p.DisplayName)))
	s.WriteString("\n")
	s.WriteString("  " + common.DimStyle.Render(p.Handle))
	switch {
	case m.follows.IsOwn(m.Item):
		s.WriteString(" " + common.BadgeStyle.Render("(you)"))
	case m.follows.Busy(m.Item):
		s.WriteString(" " + common.BadgeStyle.Render("…"))
	case m.follows.IsFollowed(m.Item):
		s.WriteString(" " + common.BadgeStyle.Render("[following]"))
	}
	s.WriteString("\n\n")

	s.WriteString(fmt.Sprintf("  %s · %s · %s\n",
		common.FormatCount(p.Followers, "followers"),
		common.FormatCount(p.Following, "following"),
		common.FormatCount(p.Events, "events")))
	if p.Summary != "" {
		s.WriteString("\n  " + p.Summary + "\n")
	}
	s.WriteString("\n")

	switch {
	case m.Loading:
		s.WriteString(m.spinner.View() + " loading events…")
	case p.Kind == federation.KindRemote:
		s.WriteString(common.EmptyStyle.Render("Events of remote accounts show up once they are federated."))
	case len(m.Upcoming) == 0:
		s.WriteString(common.EmptyStyle.Render("No upcoming events."))
	default:
		s.WriteString(common.DimStyle.Render("  upcoming"))
		s.WriteString("\n")
		for _, u := range m.Upcoming {
			line := fmt.Sprintf("%s  %s", u.Next.Format("Mon Jan 2 15:04"), u.Event.Title)
			if u.Event.Location != "" {
				line += common.DimStyle.Render(" @ " + u.Event.Location)
			}
			if u.Event.Recurrence != "" {
				line += common.BadgeStyle.Render(" ↻")
			}
			line += common.DimStyle.Render(" (" + common.FormatWhen(u.Next) + ")")
			s.WriteString(common.ItemStyle.Render(line))
			s.WriteString("\n")
		}
	}
	s.WriteString("\n")

	if m.Status != "" {
		s.WriteString(common.StatusStyle.Render(m.Status) + "\n")
	}
	if m.Error != "" {
		s.WriteString(common.ErrorStyle.Render(m.Error) + "\n")
	}
	return s.String()
}

// UpcomingEvents returns the next occurrence of each event at or after
// now, soonest first. Events with a broken recurrence are skipped.
func UpcomingEvents(events []domain.Event, now time.Time, limit int) []Upcoming {
	var out []Upcoming
	for _, e := range events {
		next, ok, err := e.NextOccurrence(now)
		if err != nil {
			log.Printf("Skipping event %s: %v", e.Id, err)
			continue
		}
		if ok {
			out = append(out, Upcoming{Event: e, Next: next})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Next.Before(out[j].Next) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// loadProfile refreshes a local user and its events. Remote actors are
// shown as listed; there is no per-actor endpoint.
func loadProfile(deps common.Deps, s *federation.Session, item domain.ProfileItem, gen int) tea.Cmd {
	local, ok := item.(domain.LocalItem)
	if !ok {
		return func() tea.Msg { return profileLoadedMsg{gen: gen, item: item} }
	}

	client := deps.ClientFor(s.Token)
	username := local.User.Username
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		msg := profileLoadedMsg{gen: gen, item: item}
		var events []domain.Event
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			u, err := client.GetUser(gctx, username)
			if err != nil {
				return fmt.Errorf("get user %s: %w", username, err)
			}
			msg.item = domain.LocalItem{User: *u}
			return nil
		})
		g.Go(func() error {
			var err error
			events, err = client.UserEvents(gctx, username)
			if err != nil {
				return fmt.Errorf("events of %s: %w", username, err)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			log.Printf("Failed to load profile: %v", err)
			msg.err = err
		}
		msg.upcoming = UpcomingEvents(events, time.Now(), maxEvents)
		return msg
	}
}
