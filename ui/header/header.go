package header

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/fedcal/federation"
	"github.com/deemkeen/fedcal/ui/common"
	"github.com/deemkeen/fedcal/util"
)

type Model struct {
	Width   int
	Session *federation.Session
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(common.SessionChangedMsg); ok {
		m.Session = msg.Session
	}
	return m, nil
}

func (m Model) View() string {
	return GetHeaderStyle(m.Session, m.Width)
}

func GetHeaderStyle(s *federation.Session, width int) string {
	// three boxes, each adds padding(2) to the content width
	availableWidth := width - 6
	if availableWidth < 40 {
		availableWidth = 40
	}

	viewerWidth := availableWidth / 3
	versionWidth := availableWidth / 3
	statusWidth := availableWidth - viewerWidth - versionWidth

	viewer, status := "anonymous", "not logged in"
	bg := common.COLOR_GREY
	if s.Authenticated() {
		viewer = "@" + s.Viewer.Username
		status = "logged in"
		if s.Viewer.DisplayName != "" {
			status = "logged in as " + s.Viewer.DisplayName
		}
		bg = common.COLOR_PURPLE
	}

	box := lipgloss.NewStyle().
		Padding(1).
		Height(2).
		Border(lipgloss.NormalBorder(), true, false, true, false).
		BorderForeground(lipgloss.Color(common.COLOR_MAGENTA))

	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		box.Width(viewerWidth).Background(lipgloss.Color(bg)).Render(viewer),
		box.Width(versionWidth).Background(lipgloss.Color(common.COLOR_GREY)).Render(util.GetNameAndVersion()),
		box.Width(statusWidth).Background(lipgloss.Color(common.COLOR_MAGENTA)).Render(status),
	)
}
